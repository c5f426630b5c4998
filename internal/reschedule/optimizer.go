// Package reschedule searches a forecast horizon for better times to apply
// a treatment.
package reschedule

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"lawnwatch/internal/scoring"
	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

// MaxDaysToCheck is the longest horizon the weather provider serves.
const MaxDaysToCheck = 16

// Config tunes the optimizer.
type Config struct {
	AlertThreshold float64 // Minimum adjusted score for an option. Default: 3
	DaysToCheck    int     // Used when a request leaves it zero. Default: 7
}

// Request describes the treatment being rescheduled.
type Request struct {
	TreatmentID   string
	TreatmentType types.TreatmentType
	Location      types.Location
	OriginalDate  time.Time
	DaysToCheck   int
}

// DateAssessment scores an externally generated occurrence date. Score and
// Conditions are nil when the date lies beyond the forecast horizon.
type DateAssessment struct {
	Date       time.Time             `json:"date"`
	Score      *float64              `json:"score,omitempty"`
	Conditions *types.WeatherReading `json:"conditions,omitempty"`
}

// Optimizer is stateless apart from its collaborators.
type Optimizer struct {
	cfg     Config
	gateway types.WeatherGateway
	scorer  *scoring.Scorer
	clock   types.Clock
	logger  *slog.Logger
}

// NewOptimizer creates an Optimizer. A nil clock or logger uses the defaults.
func NewOptimizer(cfg Config, gateway types.WeatherGateway, scorer *scoring.Scorer, clock types.Clock, logger *slog.Logger) *Optimizer {
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 3
	}
	if cfg.DaysToCheck <= 0 {
		cfg.DaysToCheck = 7
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		cfg:     cfg,
		gateway: gateway,
		scorer:  scorer,
		clock:   clock,
		logger:  logger.With("component", "reschedule_optimizer"),
	}
}

// TimeOfDayAdjustment biases scores toward cool mornings and away from
// midday heat. Ranges are inclusive and the first match wins, so hour 15
// gets the midday penalty.
func TimeOfDayAdjustment(hour int) float64 {
	switch {
	case hour >= 6 && hour <= 9:
		return 0.5
	case hour >= 11 && hour <= 15:
		return -0.3
	case hour >= 15 && hour <= 18:
		return 0.2
	default:
		return 0
	}
}

// FindOptions returns candidate dates scoring at least the alert threshold,
// best first. Ties go to the earlier date. Forecast points in the past are
// ignored.
func (o *Optimizer) FindOptions(ctx context.Context, req Request) ([]types.RescheduleOption, error) {
	if _, err := treatments.Lookup(req.TreatmentType); err != nil {
		return nil, err
	}

	points, err := o.forecast(ctx, req.Location, o.days(req.DaysToCheck))
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	tz := req.Location.TimeLocation()

	var options []types.RescheduleOption
	for _, p := range points {
		if p.Date.Before(now) {
			continue
		}
		adjusted, ok := o.adjustedScore(ctx, p, req.TreatmentType, tz)
		if !ok || adjusted < o.cfg.AlertThreshold {
			continue
		}
		options = append(options, types.RescheduleOption{
			Date:       p.Date,
			Score:      adjusted,
			Conditions: p.WeatherReading,
		})
	}

	slices.SortFunc(options, func(a, b types.RescheduleOption) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})

	o.logger.DebugContext(ctx, "reschedule options computed",
		"treatment_id", req.TreatmentID,
		"treatment_type", string(req.TreatmentType),
		"forecast_points", len(points),
		"options", len(options),
	)
	return options, nil
}

// FindOptimalTreatmentTime returns the single best date. An empty option
// list is an ErrCodeNoSuitableWindow error; the original date is never
// returned as a fallback.
func (o *Optimizer) FindOptimalTreatmentTime(ctx context.Context, req Request) (time.Time, error) {
	options, err := o.FindOptions(ctx, req)
	if err != nil {
		return time.Time{}, err
	}
	if len(options) == 0 {
		return time.Time{}, types.NewAppErrorWithDetails(
			types.ErrCodeNoSuitableWindow,
			"no forecast window meets the suitability threshold",
			nil,
			map[string]any{
				"treatment_id":   req.TreatmentID,
				"treatment_type": string(req.TreatmentType),
				"threshold":      o.cfg.AlertThreshold,
			},
		)
	}
	return options[0].Date, nil
}

// AssessDates scores each date against the forecast point nearest to it.
// Dates more than 90 minutes from any forecast point are left unscored.
func (o *Optimizer) AssessDates(ctx context.Context, treatmentType types.TreatmentType, loc types.Location, dates []time.Time) ([]DateAssessment, error) {
	if _, err := treatments.Lookup(treatmentType); err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}

	points, err := o.forecast(ctx, loc, MaxDaysToCheck)
	if err != nil {
		return nil, err
	}

	tz := loc.TimeLocation()
	out := make([]DateAssessment, len(dates))
	for i, d := range dates {
		out[i].Date = d
		p, ok := nearest(points, d, 90*time.Minute)
		if !ok {
			continue
		}
		if adjusted, ok := o.adjustedScore(ctx, p, treatmentType, tz); ok {
			conditions := p.WeatherReading
			out[i].Score = &adjusted
			out[i].Conditions = &conditions
		}
	}
	return out, nil
}

func (o *Optimizer) adjustedScore(ctx context.Context, p types.ForecastPoint, t types.TreatmentType, tz *time.Location) (float64, bool) {
	base, err := o.scorer.Score(p.WeatherReading, t)
	if err != nil {
		o.logger.DebugContext(ctx, "skipping unscorable forecast point",
			"date", p.Date,
			"error", err,
		)
		return 0, false
	}
	return scoring.ClampScore(float64(base) + TimeOfDayAdjustment(p.Date.In(tz).Hour())), true
}

func (o *Optimizer) forecast(ctx context.Context, loc types.Location, days int) ([]types.ForecastPoint, error) {
	points, err := o.gateway.GetForecast(ctx, loc, days)
	if err != nil {
		if types.CodeOf(err) == "" {
			return nil, types.NewAppError(types.ErrCodeGatewayUnavailable, "weather forecast unavailable", err)
		}
		return nil, err
	}
	return points, nil
}

func (o *Optimizer) days(requested int) int {
	if requested <= 0 {
		requested = o.cfg.DaysToCheck
	}
	return min(requested, MaxDaysToCheck)
}

func nearest(points []types.ForecastPoint, d time.Time, tolerance time.Duration) (types.ForecastPoint, bool) {
	var best types.ForecastPoint
	bestDiff := time.Duration(math.MaxInt64)
	for _, p := range points {
		diff := p.Date.Sub(d)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = p, diff
		}
	}
	return best, bestDiff <= tolerance
}
