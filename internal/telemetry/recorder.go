// Package telemetry publishes engine metrics to CloudWatch or Prometheus.
package telemetry

import (
	"context"
	"time"

	"lawnwatch/internal/types"
)

// Recorder receives engine measurements. Implementations must not block
// the caller for long and must swallow their own delivery errors.
type Recorder interface {
	// RecordCheck is emitted once per monitoring check.
	RecordCheck(ctx context.Context, treatmentType types.TreatmentType, d time.Duration, err error)
	RecordActiveSessions(ctx context.Context, n int)
	// RecordAlert counts generated alerts; dropped marks alerts under the
	// batcher's priority floor.
	RecordAlert(ctx context.Context, kind types.AlertKind, dropped bool)
	RecordBatchFlush(ctx context.Context, alerts, treatments, failures int)
	RecordGatewayCall(ctx context.Context, provider string, d time.Duration, err error)
	RecordPrediction(ctx context.Context, treatmentType types.TreatmentType, confidence float64)
	RecordModelMetrics(ctx context.Context, m types.ModelMetrics)
}

// Noop discards every measurement.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordCheck(context.Context, types.TreatmentType, time.Duration, error) {}
func (Noop) RecordActiveSessions(context.Context, int) {}
func (Noop) RecordAlert(context.Context, types.AlertKind, bool) {}
func (Noop) RecordBatchFlush(context.Context, int, int, int) {}
func (Noop) RecordGatewayCall(context.Context, string, time.Duration, error) {}
func (Noop) RecordPrediction(context.Context, types.TreatmentType, float64) {}
func (Noop) RecordModelMetrics(context.Context, types.ModelMetrics) {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

func resultOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
