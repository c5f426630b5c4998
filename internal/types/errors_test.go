package types

import (
	"errors"
	"fmt"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the Error() method produces "code: message".
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeInvalidLocation,
		Message: "latitude must be between -90 and 90",
	}

	expected := "validation_invalid_location: latitude must be between -90 and 90"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := &AppError{
		Code:    ErrCodeInternalDB,
		Message: "failed to query training samples",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

// TestAppErrorUnwrapNil verifies Unwrap returns nil when no underlying error exists.
func TestAppErrorUnwrapNil(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNoSuitableWindow,
		Message: "no suitable window",
	}

	if appErr.Unwrap() != nil {
		t.Errorf("Unwrap() should return nil when Err is nil, got %v", appErr.Unwrap())
	}
}

// TestAppErrorErrorsAs verifies that errors.As can extract AppError from an error chain.
func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeGatewayUnavailable,
		Message: "weather provider unreachable",
	}
	wrappedErr := fmt.Errorf("monitor check failed: %w", appErr)

	var target *AppError
	if !errors.As(wrappedErr, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeGatewayUnavailable {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeGatewayUnavailable)
	}
}

func TestAppErrorWithDetailsDoesNotMutate(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeInvalidRating, "bad rating", nil, map[string]any{"rating": 7})
	enriched := orig.WithDetails(map[string]any{"treatment_id": "t1"})

	if len(orig.Details) != 1 {
		t.Errorf("original Details mutated: %v", orig.Details)
	}
	if enriched.Details["rating"] != 7 || enriched.Details["treatment_id"] != "t1" {
		t.Errorf("merged Details = %v", enriched.Details)
	}
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("optimizer: %w", NewAppError(ErrCodeNoSuitableWindow, "none", nil))

	if !IsCode(wrapped, ErrCodeNoSuitableWindow) {
		t.Error("IsCode should find the code through wrapping")
	}
	if IsCode(wrapped, ErrCodeGatewayUnavailable) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(nil, ErrCodeNoSuitableWindow) {
		t.Error("IsCode(nil) should be false")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf on a plain error should be empty")
	}
}

func TestErrorCodeIsTransient(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeGatewayUnavailable, true},
		{ErrCodeUpstreamRateLimited, true},
		{ErrCodeTrainingStore, true},
		{ErrCodeUnknownTreatmentType, false},
		{ErrCodeNoSuitableWindow, false},
		{ErrCodeInvalidWeatherData, false},
	}
	for _, tt := range tests {
		if got := tt.code.IsTransient(); got != tt.want {
			t.Errorf("%s.IsTransient() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestErrUnknownTreatmentType(t *testing.T) {
	err := ErrUnknownTreatmentType("Painting")
	if err.Code != ErrCodeUnknownTreatmentType {
		t.Errorf("Code = %q", err.Code)
	}
	if err.Details["treatment_type"] != "Painting" {
		t.Errorf("Details = %v", err.Details)
	}
}
