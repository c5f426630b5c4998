package types

// Telemetry metric names shared by the CloudWatch and Prometheus recorders.
const (
	// Metric Names
	MetricMonitoringCheck    = "MonitoringCheck"
	MetricMonitoringFailure  = "MonitoringCheckFailure"
	MetricActiveSessions     = "ActiveSessions"
	MetricAlertGenerated     = "AlertGenerated"
	MetricAlertDropped       = "AlertDropped"
	MetricBatchFlushed       = "BatchFlushed"
	MetricDispatchFailure    = "DispatchFailure"
	MetricGatewayLatency     = "GatewayLatency"
	MetricExternalAPIFailure = "ExternalAPIFailure"
	MetricPrediction         = "Prediction"
	MetricModelAccuracy      = "ModelAccuracy"
	MetricModelF1Score       = "ModelF1Score"
	MetricTrainingDataPoints = "TrainingDataPoints"

	// Dimension Keys
	DimTreatmentType = "TreatmentType"
	DimAlertKind     = "AlertKind"
	DimProvider      = "Provider"
	DimReason        = "Reason"

	// Metric Namespace
	MetricNamespace = "LawnWatch"
)
