package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// WeatherGateway supplies current conditions and multi-day forecasts for a point.
// Implementations must return an AppError with ErrCodeGatewayUnavailable when the
// provider cannot be reached or returns an unusable response.
type WeatherGateway interface {
	GetCurrentWeather(ctx context.Context, loc Location) (*WeatherReading, error)
	// GetForecast returns hourly points covering the next days days, ordered by date.
	GetForecast(ctx context.Context, loc Location, days int) ([]ForecastPoint, error)
}
