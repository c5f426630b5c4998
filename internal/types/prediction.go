package types

import "time"

// Effectiveness rating bounds for training feedback.
const (
	MinEffectivenessRating = 1
	MaxEffectivenessRating = 5
)

// TrainingSample is a historical (weather, treatment, outcome) observation.
// Samples are append-only.
type TrainingSample struct {
	ID            string         `json:"id"`
	Weather       WeatherReading `json:"weather_conditions"`
	TreatmentType TreatmentType  `json:"treatment_type"`
	Effectiveness int            `json:"effectiveness"`
	Timestamp     time.Time      `json:"timestamp"`
	DataQuality   float64        `json:"data_quality"`
	Confidence    float64        `json:"confidence"`
}

// SampleFilter narrows training sample queries.
type SampleFilter struct {
	TreatmentType  TreatmentType // empty means all types
	MinDataQuality float64
	Since          *time.Time
}

// ModelMetrics is the evaluation snapshot of the current prediction model.
type ModelMetrics struct {
	Accuracy    float64   `json:"accuracy"`
	Precision   float64   `json:"precision"`
	Recall      float64   `json:"recall"`
	F1Score     float64   `json:"f1_score"`
	DataPoints  int       `json:"data_points"`
	LastUpdated time.Time `json:"last_updated"`
}

// Impact describes the direction of a feature's contribution to a prediction.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// ImpactFactor explains a single weather feature's contribution.
type ImpactFactor struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Impact     Impact  `json:"impact"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the outcome of an effectiveness prediction.
type PredictionResult struct {
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Factors    []ImpactFactor `json:"factors"`
}
