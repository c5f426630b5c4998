// Package prediction estimates treatment effectiveness from weather with a
// deterministic weighted heuristic, and keeps rolling accuracy metrics
// computed against historical effectiveness feedback.
package prediction

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"lawnwatch/internal/telemetry"
	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

// SampleStore persists training samples. FindMany returns the most recent
// samples first.
type SampleStore interface {
	Create(ctx context.Context, sample types.TrainingSample) error
	FindMany(ctx context.Context, filter types.SampleFilter, limit int) ([]types.TrainingSample, error)
}

const (
	// TrainingQualityThreshold is the minimum data quality for a sample
	// to take part in retraining.
	TrainingQualityThreshold = 0.7

	// goodOutcome binarizes both predicted scores and normalized ratings.
	goodOutcome = 0.7

	baseConfidence      = 0.8
	abnormalPenalty     = 0.8
	storeFailurePenalty = 0.8
)

// Config tunes the engine.
type Config struct {
	ConfidenceThreshold float64             // Floor for reported confidence. Default: 0.3
	MinDataPoints       int                 // Samples required to publish metrics. Default: 10
	TrainingInterval    time.Duration       // Max model age before Predict retrains. Default: 24h
	MaxTrainingSamples  int                 // Most recent samples considered. Default: 1000
	FeatureWeights      map[Feature]float64 // Default: DefaultFeatureWeights
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.3
	}
	if c.MinDataPoints <= 0 {
		c.MinDataPoints = 10
	}
	if c.TrainingInterval <= 0 {
		c.TrainingInterval = 24 * time.Hour
	}
	if c.MaxTrainingSamples <= 0 {
		c.MaxTrainingSamples = 1000
	}
	if len(c.FeatureWeights) == 0 {
		c.FeatureWeights = DefaultFeatureWeights
	}
	return c
}

// Engine serves predictions and owns the current ModelMetrics snapshot.
type Engine struct {
	cfg     Config
	store   SampleStore
	clock   types.Clock
	metrics telemetry.Recorder
	logger  *slog.Logger
	newID   func() string

	model   atomic.Pointer[types.ModelMetrics]
	retrain singleflight.Group

	mu          sync.Mutex
	lastTrained time.Time
	// writes counts stored samples; covered is the writes value observed
	// by the most recent completed retrain before it read the store.
	writes  uint64
	covered uint64
}

// NewEngine creates an Engine. Clock, metrics and logger may be nil.
func NewEngine(cfg Config, store SampleStore, clock types.Clock, metrics telemetry.Recorder, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg.withDefaults(),
		store:   store,
		clock:   clock,
		metrics: telemetry.OrNoop(metrics),
		logger:  logger.With("component", "prediction_engine"),
		newID:   func() string { return uuid.New().String() },
	}
}

// AddSample records effectiveness feedback and retrains. Store failures are
// returned as ErrCodeTrainingStore; a failed retrain afterwards is only logged.
func (e *Engine) AddSample(ctx context.Context, weather types.WeatherReading, treatmentType types.TreatmentType, rating int) (types.TrainingSample, error) {
	if _, err := treatments.Lookup(treatmentType); err != nil {
		return types.TrainingSample{}, err
	}
	if err := types.ValidateRating(rating); err != nil {
		return types.TrainingSample{}, err
	}

	v := sanitize(weather)
	sample := types.TrainingSample{
		ID:            e.newID(),
		Weather:       v.clean,
		TreatmentType: treatmentType,
		Effectiveness: rating,
		Timestamp:     e.clock.Now(),
		DataQuality:   dataQuality(v),
		Confidence:    e.confidence(v, false),
	}

	if err := e.store.Create(ctx, sample); err != nil {
		return types.TrainingSample{}, types.NewAppError(types.ErrCodeTrainingStore, "failed to store training sample", err)
	}

	e.mu.Lock()
	e.writes++
	gen := e.writes
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "training sample added",
		"sample_id", sample.ID,
		"treatment_type", string(treatmentType),
		"effectiveness", rating,
		"data_quality", sample.DataQuality,
	)

	// A joined in-flight run may have read the store before this sample
	// was written. Any run started after the first one returns sees it.
	for attempt := 0; attempt < 2 && !e.coveredThrough(gen); attempt++ {
		if err := e.Retrain(ctx); err != nil {
			e.logger.WarnContext(ctx, "retrain after new sample failed", "error", err)
			break
		}
	}
	return sample, nil
}

// Predict estimates effectiveness. It retrains first when the model is
// older than the training interval. A failing store lowers confidence but
// never fails the prediction.
func (e *Engine) Predict(ctx context.Context, weather types.WeatherReading, treatmentType types.TreatmentType) (types.PredictionResult, error) {
	if _, err := treatments.Lookup(treatmentType); err != nil {
		return types.PredictionResult{}, err
	}

	storeFailed := false
	if e.retrainDue() {
		if err := e.Retrain(ctx); err != nil {
			storeFailed = types.IsCode(err, types.ErrCodeTrainingStore)
			e.logger.WarnContext(ctx, "retrain before prediction failed", "error", err)
		}
	}

	v := sanitize(weather)
	result := types.PredictionResult{
		Score:      baseScore(v, e.cfg.FeatureWeights),
		Confidence: e.confidence(v, storeFailed),
		Factors:    impactFactors(v, treatmentType, e.cfg.FeatureWeights),
	}

	e.metrics.RecordPrediction(ctx, treatmentType, result.Confidence)
	return result, nil
}

// Metrics returns the current snapshot, or nil before the first retrain
// that had enough samples.
func (e *Engine) Metrics() *types.ModelMetrics {
	return e.model.Load()
}

// Retrain re-evaluates the heuristic against recent quality-filtered
// samples and replaces the metrics snapshot. With fewer than MinDataPoints
// samples the snapshot is left as is. Concurrent calls share one run.
func (e *Engine) Retrain(ctx context.Context) error {
	_, err, _ := e.retrain.Do("retrain", func() (any, error) {
		return nil, e.doRetrain(ctx)
	})
	return err
}

func (e *Engine) coveredThrough(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.covered >= gen
}

// doRetrain reads the MaxTrainingSamples most recent samples and filters
// them by quality afterwards, so older samples never fill the window.
func (e *Engine) doRetrain(ctx context.Context) error {
	e.mu.Lock()
	gen := e.writes
	e.mu.Unlock()

	samples, err := e.store.FindMany(ctx, types.SampleFilter{}, e.cfg.MaxTrainingSamples)
	if err != nil {
		return types.NewAppError(types.ErrCodeTrainingStore, "failed to load training samples", err)
	}

	now := e.clock.Now()
	e.mu.Lock()
	e.lastTrained = now
	if gen > e.covered {
		e.covered = gen
	}
	e.mu.Unlock()

	quality := make([]types.TrainingSample, 0, len(samples))
	for _, s := range samples {
		if s.DataQuality >= TrainingQualityThreshold {
			quality = append(quality, s)
		}
	}

	if len(quality) < e.cfg.MinDataPoints {
		e.logger.DebugContext(ctx, "not enough quality samples to publish metrics",
			"samples", len(quality),
			"min_data_points", e.cfg.MinDataPoints,
		)
		return nil
	}

	m := evaluate(quality, e.cfg.FeatureWeights)
	m.LastUpdated = now
	e.model.Store(&m)

	e.logger.InfoContext(ctx, "prediction model retrained",
		"data_points", m.DataPoints,
		"accuracy", m.Accuracy,
		"f1_score", m.F1Score,
	)
	e.metrics.RecordModelMetrics(ctx, m)
	return nil
}

func (e *Engine) retrainDue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTrained.IsZero() || e.clock.Now().Sub(e.lastTrained) >= e.cfg.TrainingInterval
}

// confidence is 0.8 scaled by completeness, penalized for abnormal values
// and store failures, then clamped to [ConfidenceThreshold, 1].
func (e *Engine) confidence(v vector, storeFailed bool) float64 {
	c := baseConfidence * v.completeness()
	if hasAbnormal(v) {
		c *= abnormalPenalty
	}
	if storeFailed {
		c *= storeFailurePenalty
	}
	return math.Max(e.cfg.ConfidenceThreshold, math.Min(1, c))
}

// evaluate scores every sample with the current heuristic and compares the
// binarized prediction with the binarized rating.
func evaluate(samples []types.TrainingSample, weights map[Feature]float64) types.ModelMetrics {
	var tp, fp, tn, fn int
	for _, s := range samples {
		predicted := baseScore(sanitize(s.Weather), weights) >= goodOutcome
		actual := float64(s.Effectiveness)/types.MaxEffectivenessRating >= goodOutcome
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
	}

	m := types.ModelMetrics{DataPoints: len(samples)}
	m.Accuracy = ratio(tp+tn, len(samples))
	m.Precision = ratio(tp, tp+fp)
	m.Recall = ratio(tp, tp+fn)
	if m.Precision+m.Recall > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
