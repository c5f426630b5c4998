package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All components MUST use these constants instead of hardcoded strings.
const (
	// Validation (caller errors, never retried)
	ErrCodeUnknownTreatmentType    ErrorCode = "validation_unknown_treatment_type"
	ErrCodeInvalidWeatherData      ErrorCode = "validation_invalid_weather_data"
	ErrCodeInvalidMonitoringConfig ErrorCode = "validation_invalid_monitoring_config"
	ErrCodeInvalidRating           ErrorCode = "validation_invalid_rating"
	ErrCodeInvalidLocation         ErrorCode = "validation_invalid_location"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"

	// Not Found
	ErrCodeNoSuitableWindow  ErrorCode = "not_found_suitable_window"
	ErrCodeNotFoundTreatment ErrorCode = "not_found_treatment"

	// Upstream (transient)
	ErrCodeGatewayUnavailable  ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Internal
	ErrCodeTrainingStore      ErrorCode = "internal_training_store_error"
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// IsTransient reports whether errors with this code may succeed on a later attempt.
// Monitoring ticks use this to decide between a warning and an error log line.
func (c ErrorCode) IsTransient() bool {
	switch c {
	case ErrCodeGatewayUnavailable, ErrCodeUpstreamUnavailable, ErrCodeUpstreamRateLimited,
		ErrCodeTrainingStore, ErrCodeInternalDB:
		return true
	default:
		return false
	}
}

// AppError is the standard application error type used throughout the engine.
// All domain errors should be expressed as AppError to enable consistent
// classification by callers and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode of the first AppError in err's chain.
// Returns an empty code when err is nil or carries no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err's chain contains an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrUnknownTreatmentType builds the canonical error for an unsupported treatment type.
func ErrUnknownTreatmentType(t TreatmentType) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeUnknownTreatmentType,
		fmt.Sprintf("unknown treatment type %q", string(t)),
		nil,
		map[string]any{"treatment_type": string(t)},
	)
}
