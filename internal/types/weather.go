package types

import (
	"log/slog"
	"time"
)

// Location represents the geographic point of a lawn. It is passed by value.
type Location struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lon      float64 `json:"lon" validate:"longitude"`
	Timezone string  `json:"timezone,omitempty"`
}

// TimeLocation resolves the IANA timezone of the location. An empty or
// unrecognized timezone resolves to UTC.
func (l Location) TimeLocation() *time.Location {
	if l.Timezone == "" {
		return time.UTC
	}
	tz, err := time.LoadLocation(l.Timezone)
	if err != nil {
		slog.Warn("unknown location timezone, falling back to UTC",
			"timezone", l.Timezone,
			"error", err,
		)
		return time.UTC
	}
	return tz
}

// Canonical condition strings produced by the weather gateway adapters.
const (
	ConditionClear        = "Clear"
	ConditionPartlyCloudy = "Partly Cloudy"
	ConditionCloudy       = "Cloudy"
	ConditionFog          = "Fog"
	ConditionDrizzle      = "Drizzle"
	ConditionLightRain    = "Light Rain"
	ConditionRain         = "Rain"
	ConditionRainShowers  = "Rain Showers"
	ConditionSnow         = "Snow"
	ConditionSnowShowers  = "Snow Showers"
	ConditionThunderstorm = "Thunderstorm"
	ConditionUnknown      = "Unknown"
)

// ConditionsReported reports whether c carries an actual observation.
// Empty and ConditionUnknown mean the provider gave no usable condition.
func ConditionsReported(c string) bool {
	return c != "" && c != ConditionUnknown
}

// WeatherReading is a single observation or forecast sample. Optional metrics
// are pointers; nil means the provider did not report the value.
//
// Bounds are enforced by ValidateReading. Scoring rejects out-of-bound readings,
// prediction sanitizes them instead.
type WeatherReading struct {
	TemperatureC        float64  `json:"temperature_c" validate:"gte=-50,lte=150"`
	HumidityPercent     float64  `json:"humidity_percent" validate:"gte=0,lte=100"`
	PrecipitationMM     float64  `json:"precipitation_mm" validate:"gte=0,lte=100"`
	WindSpeedKmh        float64  `json:"wind_speed_kmh" validate:"gte=0,lte=200"`
	Conditions          string   `json:"conditions"`
	UVIndex             *float64 `json:"uv_index,omitempty" validate:"omitempty,gte=0,lte=20"`
	SoilMoisturePercent *float64 `json:"soil_moisture_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	DewPointC           *float64 `json:"dew_point_c,omitempty" validate:"omitempty,gte=-60,lte=60"`
	PressureHPa         *float64 `json:"pressure_hpa,omitempty" validate:"omitempty,gte=800,lte=1100"`
	VisibilityKm        *float64 `json:"visibility_km,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Snapshot flattens the reading into a metric map for audit trails.
// Absent optional metrics are omitted.
func (r WeatherReading) Snapshot() map[string]float64 {
	snap := map[string]float64{
		"temperature_c":    r.TemperatureC,
		"humidity_percent": r.HumidityPercent,
		"precipitation_mm": r.PrecipitationMM,
		"wind_speed_kmh":   r.WindSpeedKmh,
	}
	if r.UVIndex != nil {
		snap["uv_index"] = *r.UVIndex
	}
	if r.SoilMoisturePercent != nil {
		snap["soil_moisture_percent"] = *r.SoilMoisturePercent
	}
	if r.DewPointC != nil {
		snap["dew_point_c"] = *r.DewPointC
	}
	if r.PressureHPa != nil {
		snap["pressure_hpa"] = *r.PressureHPa
	}
	if r.VisibilityKm != nil {
		snap["visibility_km"] = *r.VisibilityKm
	}
	return snap
}

// ForecastPoint is a WeatherReading valid at a specific instant.
type ForecastPoint struct {
	WeatherReading
	Date                     time.Time `json:"date"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
}

// Float returns a pointer to v. Convenience for optional reading fields.
func Float(v float64) *float64 {
	return &v
}
