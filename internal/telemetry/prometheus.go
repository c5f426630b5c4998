package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lawnwatch/internal/types"
)

const promNamespace = "lawnwatch"

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder keeps collectors for scraping on the ops server's
// /metrics endpoint.
type PrometheusRecorder struct {
	checks          *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
	alerts          *prometheus.CounterVec
	batchAlerts     prometheus.Histogram
	dispatchFailed  prometheus.Counter
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	predictions     *prometheus.HistogramVec
	modelAccuracy   prometheus.Gauge
	modelF1         prometheus.Gauge
	modelDataPoints prometheus.Gauge
}

// NewPrometheusRecorder registers collectors with reg. Passing
// prometheus.DefaultRegisterer exposes them through promhttp.Handler.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace, Subsystem: "monitor", Name: "checks_total",
			Help: "Monitoring checks by treatment type and result.",
		}, []string{"treatment_type", "result"}),
		checkDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace, Subsystem: "monitor", Name: "check_duration_seconds",
			Help:    "Duration of a monitoring check.",
			Buckets: prometheus.DefBuckets,
		}, []string{"treatment_type"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace, Subsystem: "monitor", Name: "active_sessions",
			Help: "Number of active monitoring sessions.",
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace, Subsystem: "alerts", Name: "total",
			Help: "Alerts by kind and whether the batcher dropped them.",
		}, []string{"kind", "dropped"}),
		batchAlerts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: promNamespace, Subsystem: "alerts", Name: "batch_size",
			Help:    "Alerts per flushed batch.",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		}),
		dispatchFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace, Subsystem: "alerts", Name: "dispatch_failures_total",
			Help: "Per-treatment dispatch calls that failed.",
		}),
		gatewayCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace, Subsystem: "gateway", Name: "calls_total",
			Help: "Weather provider calls by provider and result.",
		}, []string{"provider", "result"}),
		gatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace, Subsystem: "gateway", Name: "call_duration_seconds",
			Help:    "Weather provider call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		predictions: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace, Subsystem: "prediction", Name: "confidence",
			Help:    "Confidence of served predictions.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"treatment_type"}),
		modelAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace, Subsystem: "prediction", Name: "model_accuracy",
			Help: "Accuracy of the last successful retrain.",
		}),
		modelF1: f.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace, Subsystem: "prediction", Name: "model_f1_score",
			Help: "F1 score of the last successful retrain.",
		}),
		modelDataPoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace, Subsystem: "prediction", Name: "model_data_points",
			Help: "Samples used by the last successful retrain.",
		}),
	}
}

func (p *PrometheusRecorder) RecordCheck(_ context.Context, treatmentType types.TreatmentType, d time.Duration, err error) {
	p.checks.WithLabelValues(string(treatmentType), resultOf(err)).Inc()
	p.checkDuration.WithLabelValues(string(treatmentType)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) RecordActiveSessions(_ context.Context, n int) {
	p.activeSessions.Set(float64(n))
}

func (p *PrometheusRecorder) RecordAlert(_ context.Context, kind types.AlertKind, dropped bool) {
	label := "false"
	if dropped {
		label = "true"
	}
	p.alerts.WithLabelValues(string(kind), label).Inc()
}

func (p *PrometheusRecorder) RecordBatchFlush(_ context.Context, alerts, _ int, failures int) {
	p.batchAlerts.Observe(float64(alerts))
	p.dispatchFailed.Add(float64(failures))
}

func (p *PrometheusRecorder) RecordGatewayCall(_ context.Context, provider string, d time.Duration, err error) {
	p.gatewayCalls.WithLabelValues(provider, resultOf(err)).Inc()
	p.gatewayDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (p *PrometheusRecorder) RecordPrediction(_ context.Context, treatmentType types.TreatmentType, confidence float64) {
	p.predictions.WithLabelValues(string(treatmentType)).Observe(confidence)
}

func (p *PrometheusRecorder) RecordModelMetrics(_ context.Context, m types.ModelMetrics) {
	p.modelAccuracy.Set(m.Accuracy)
	p.modelF1.Set(m.F1Score)
	p.modelDataPoints.Set(float64(m.DataPoints))
}
