package types

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Physical bounds for the required reading fields. Values outside these
// ranges are invalid; scoring rejects them and prediction clamps them.
const (
	MinTemperatureC    = -50.0
	MaxTemperatureC    = 150.0
	MinHumidityPercent = 0.0
	MaxHumidityPercent = 100.0
	MinPrecipitationMM = 0.0
	MaxPrecipitationMM = 100.0
	MinWindSpeedKmh    = 0.0
	MaxWindSpeedKmh    = 200.0
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator instance. Validator caches
// struct metadata, so a single instance is reused across calls.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateReading checks a reading against its physical bounds.
// Returns an AppError with ErrCodeInvalidWeatherData listing each offending field.
func ValidateReading(r WeatherReading) error {
	if err := structValidator().Struct(r); err != nil {
		return wrapValidation(ErrCodeInvalidWeatherData, "weather reading out of bounds", err)
	}
	return nil
}

// ValidateLocation checks latitude and longitude ranges.
func ValidateLocation(l Location) error {
	if err := structValidator().Struct(l); err != nil {
		return wrapValidation(ErrCodeInvalidLocation, "location out of bounds", err)
	}
	return nil
}

// ValidateMonitoringConfig checks the session tuning bounds
// (check interval 15–360 minutes, forecast window 24–168 hours).
func ValidateMonitoringConfig(c MonitoringConfig) error {
	if err := structValidator().Struct(c); err != nil {
		return wrapValidation(ErrCodeInvalidMonitoringConfig, "monitoring config out of bounds", err)
	}
	return nil
}

// ValidateRating checks an effectiveness rating is within 1..5.
func ValidateRating(rating int) error {
	if rating < MinEffectivenessRating || rating > MaxEffectivenessRating {
		return NewAppErrorWithDetails(
			ErrCodeInvalidRating,
			fmt.Sprintf("effectiveness rating must be between %d and %d", MinEffectivenessRating, MaxEffectivenessRating),
			nil,
			map[string]any{"rating": rating},
		)
	}
	return nil
}

// wrapValidation converts validator.ValidationErrors into an AppError whose
// details name each failing field and the rule it broke.
func wrapValidation(code ErrorCode, msg string, err error) *AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError(code, msg, err)
	}

	fields := make(map[string]any, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		names = append(names, fe.Field())
	}

	return NewAppErrorWithDetails(
		code,
		fmt.Sprintf("%s: %s", msg, strings.Join(names, ", ")),
		err,
		fields,
	)
}
