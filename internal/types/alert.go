package types

import "time"

// AlertKind identifies the weather metric that triggered an alert.
type AlertKind string

const (
	AlertKindTemperature   AlertKind = "temperature"
	AlertKindWind          AlertKind = "wind"
	AlertKindPrecipitation AlertKind = "precipitation"
	AlertKindUV            AlertKind = "uv"
	AlertKindSoil          AlertKind = "soil"
	AlertKindDewPoint      AlertKind = "dewpoint"
	AlertKindConditions    AlertKind = "conditions"
)

// AlertSeverity classifies how harmful a violation is to the treatment.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert priority bounds. 5 is the most urgent.
const (
	MinAlertPriority = 1
	MaxAlertPriority = 5
)

// WeatherAlert is emitted when a forecast violates a treatment's tolerance.
// It is immutable once created.
type WeatherAlert struct {
	ID             string             `json:"id"`
	TreatmentID    string             `json:"treatment_id"`
	TreatmentType  TreatmentType      `json:"treatment_type"`
	Kind           AlertKind          `json:"kind"`
	Severity       AlertSeverity      `json:"severity"`
	Priority       int                `json:"priority"`
	Message        string             `json:"message"`
	SuggestedDate  *time.Time         `json:"suggested_date,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Location       Location           `json:"location"`
	OriginalDate   time.Time          `json:"original_date"`
	ForecastDate   time.Time          `json:"forecast_date"`
	MetricSnapshot map[string]float64 `json:"metric_snapshot"`
}

// WithSuggestedDate returns a copy of the alert carrying a suggested date.
func (a WeatherAlert) WithSuggestedDate(d time.Time) WeatherAlert {
	a.SuggestedDate = &d
	return a
}

// AlertBatch is a time-boxed group of alerts flushed together.
type AlertBatch struct {
	ID           string         `json:"id"`
	Alerts       []WeatherAlert `json:"alerts"`
	CreatedAt    time.Time      `json:"created_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	Priority     int            `json:"priority"`
	TreatmentIDs []string       `json:"treatment_ids"`
}

// Append adds an alert and maintains the derived Priority and TreatmentIDs fields.
func (b *AlertBatch) Append(a WeatherAlert) {
	b.Alerts = append(b.Alerts, a)
	if a.Priority > b.Priority {
		b.Priority = a.Priority
	}
	for _, id := range b.TreatmentIDs {
		if id == a.TreatmentID {
			return
		}
	}
	b.TreatmentIDs = append(b.TreatmentIDs, a.TreatmentID)
}
