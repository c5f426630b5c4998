package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"lawnwatch/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder emits one PutMetricData call per measurement under the
// LawnWatch namespace. Failures are logged and dropped.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

func (m *CloudWatchRecorder) RecordCheck(ctx context.Context, treatmentType types.TreatmentType, d time.Duration, err error) {
	dims := []cwtypes.Dimension{dim(types.DimTreatmentType, string(treatmentType))}
	data := []cwtypes.MetricDatum{
		datum(types.MetricMonitoringCheck, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims...),
	}
	if err != nil {
		data = append(data, datum(types.MetricMonitoringFailure, 1, cwtypes.StandardUnitCount, dims...))
	}
	m.put(ctx, data...)
}

func (m *CloudWatchRecorder) RecordActiveSessions(ctx context.Context, n int) {
	m.put(ctx, datum(types.MetricActiveSessions, float64(n), cwtypes.StandardUnitCount))
}

func (m *CloudWatchRecorder) RecordAlert(ctx context.Context, kind types.AlertKind, dropped bool) {
	name := types.MetricAlertGenerated
	if dropped {
		name = types.MetricAlertDropped
	}
	m.put(ctx, datum(name, 1, cwtypes.StandardUnitCount, dim(types.DimAlertKind, string(kind))))
}

func (m *CloudWatchRecorder) RecordBatchFlush(ctx context.Context, alerts, treatments, failures int) {
	data := []cwtypes.MetricDatum{
		datum(types.MetricBatchFlushed, float64(alerts), cwtypes.StandardUnitCount),
	}
	if failures > 0 {
		data = append(data, datum(types.MetricDispatchFailure, float64(failures), cwtypes.StandardUnitCount))
	}
	m.put(ctx, data...)
}

func (m *CloudWatchRecorder) RecordGatewayCall(ctx context.Context, provider string, d time.Duration, err error) {
	dims := []cwtypes.Dimension{dim(types.DimProvider, provider)}
	data := []cwtypes.MetricDatum{
		datum(types.MetricGatewayLatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims...),
	}
	if err != nil {
		data = append(data, datum(types.MetricExternalAPIFailure, 1, cwtypes.StandardUnitCount,
			dim(types.DimProvider, provider), dim(types.DimReason, string(types.CodeOf(err)))))
	}
	m.put(ctx, data...)
}

func (m *CloudWatchRecorder) RecordPrediction(ctx context.Context, treatmentType types.TreatmentType, confidence float64) {
	m.put(ctx, datum(types.MetricPrediction, confidence, cwtypes.StandardUnitNone,
		dim(types.DimTreatmentType, string(treatmentType))))
}

func (m *CloudWatchRecorder) RecordModelMetrics(ctx context.Context, mm types.ModelMetrics) {
	m.put(ctx,
		datum(types.MetricModelAccuracy, mm.Accuracy, cwtypes.StandardUnitNone),
		datum(types.MetricModelF1Score, mm.F1Score, cwtypes.StandardUnitNone),
		datum(types.MetricTrainingDataPoints, float64(mm.DataPoints), cwtypes.StandardUnitCount),
	)
}

func (m *CloudWatchRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to publish metric",
			"metric", aws.ToString(data[0].MetricName),
			"error", err,
		)
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
