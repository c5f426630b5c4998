// Package alerts turns tolerance violations in a weather reading into at
// most one prioritized alert.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

// Context identifies the scheduled treatment a reading is evaluated for.
type Context struct {
	TreatmentID   string
	Location      types.Location
	ScheduledDate time.Time
	// ForecastDate is the instant the reading is valid for. Zero for
	// current conditions.
	ForecastDate time.Time
}

// candidate is a single violated metric. Candidates are built in
// declaration order, which breaks priority ties.
type candidate struct {
	kind     types.AlertKind
	severity types.AlertSeverity
	priority int
	message  string
}

// Generator is stateless apart from its clock and id source.
type Generator struct {
	clock types.Clock
	newID func() string
}

// NewGenerator creates a Generator. A nil clock uses the real clock.
func NewGenerator(clock types.Clock) *Generator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Generator{
		clock: clock,
		newID: func() string { return uuid.New().String() },
	}
}

// Generate returns the single highest-priority alert for reading, or nil
// when every metric is within tolerance.
func (g *Generator) Generate(reading types.WeatherReading, treatmentType types.TreatmentType, c Context) (*types.WeatherAlert, error) {
	profile, err := treatments.Lookup(treatmentType)
	if err != nil {
		return nil, err
	}

	candidates := violations(reading, profile)
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.priority > best.priority {
			best = cand
		}
	}

	return &types.WeatherAlert{
		ID:             g.newID(),
		TreatmentID:    c.TreatmentID,
		TreatmentType:  treatmentType,
		Kind:           best.kind,
		Severity:       best.severity,
		Priority:       best.priority,
		Message:        best.message,
		CreatedAt:      g.clock.Now(),
		Location:       c.Location,
		OriginalDate:   c.ScheduledDate,
		ForecastDate:   c.ForecastDate,
		MetricSnapshot: reading.Snapshot(),
	}, nil
}

// violations lists every tolerance violation in declaration order:
// temperature, wind, precipitation, uv, soil, dewpoint, conditions.
func violations(r types.WeatherReading, p treatments.Profile) []candidate {
	var out []candidate

	switch {
	case r.TemperatureC > p.MaxTemp:
		out = append(out, candidate{types.AlertKindTemperature, types.SeverityCritical, 5,
			fmt.Sprintf("Temperature %.1f°C is above the %.1f°C maximum for %s", r.TemperatureC, p.MaxTemp, p.Type)})
	case r.TemperatureC < p.MinTemp:
		out = append(out, candidate{types.AlertKindTemperature, types.SeverityCritical, 5,
			fmt.Sprintf("Temperature %.1f°C is below the %.1f°C minimum for %s", r.TemperatureC, p.MinTemp, p.Type)})
	}

	if r.WindSpeedKmh > p.MaxWindSpeed {
		out = append(out, candidate{types.AlertKindWind, types.SeverityWarning, 4,
			fmt.Sprintf("Wind speed %.1f km/h exceeds the %.1f km/h limit for %s", r.WindSpeedKmh, p.MaxWindSpeed, p.Type)})
	}

	if r.PrecipitationMM > p.MaxPrecipitation {
		out = append(out, candidate{types.AlertKindPrecipitation, types.SeverityWarning, 4,
			fmt.Sprintf("Precipitation %.1f mm exceeds the %.1f mm limit for %s", r.PrecipitationMM, p.MaxPrecipitation, p.Type)})
	}

	out = appendRange(out, r.UVIndex, p.Metrics.UVIndex, types.AlertKindUV, "UV index", "", p.Type)
	out = appendRange(out, r.SoilMoisturePercent, p.Metrics.SoilMoisture, types.AlertKindSoil, "Soil moisture", "%", p.Type)
	out = appendRange(out, r.DewPointC, p.Metrics.DewPoint, types.AlertKindDewPoint, "Dew point", "°C", p.Type)

	if types.ConditionsReported(r.Conditions) && !p.IsIdealCondition(r.Conditions) {
		out = append(out, candidate{types.AlertKindConditions, types.SeverityWarning, 2,
			fmt.Sprintf("%s conditions are not ideal for %s", r.Conditions, p.Type)})
	}

	return out
}

func appendRange(out []candidate, v *float64, rng treatments.Range, kind types.AlertKind, label, unit string, t types.TreatmentType) []candidate {
	if v == nil || rng.Contains(*v) {
		return out
	}
	return append(out, candidate{kind, types.SeverityWarning, 3,
		fmt.Sprintf("%s %.1f%s is outside the %.1f-%.1f%s range for %s", label, *v, unit, rng.Min, rng.Max, unit, t)})
}
