package types

import "time"

// TreatmentType names a lawn-care treatment (e.g. "Fertilization").
// The supported set is defined by the tolerance profile table.
type TreatmentType string

// Supported treatment types.
const (
	TreatmentFertilization TreatmentType = "Fertilization"
	TreatmentWeedControl   TreatmentType = "Weed Control"
	TreatmentMowing        TreatmentType = "Mowing"
	TreatmentSeeding       TreatmentType = "Seeding"
	TreatmentAeration      TreatmentType = "Aeration"
	TreatmentInsectControl TreatmentType = "Insect Control"
)

// MonitoringConfig tunes a single monitoring session.
type MonitoringConfig struct {
	// CheckIntervalMinutes is the period between forecast re-checks.
	CheckIntervalMinutes int `json:"check_interval_minutes" validate:"min=15,max=360"`
	// ForecastHours is the look-ahead window evaluated on each check.
	ForecastHours int `json:"forecast_hours" validate:"min=24,max=168"`
}

// CheckInterval returns the check period as a duration.
func (c MonitoringConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// ForecastWindow returns the look-ahead window as a duration.
func (c MonitoringConfig) ForecastWindow() time.Duration {
	return time.Duration(c.ForecastHours) * time.Hour
}

// ScheduledTreatment is a treatment occurrence as known by the schedule store.
type ScheduledTreatment struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	LawnID        string        `json:"lawn_id"`
	TreatmentType TreatmentType `json:"treatment_type"`
	Location      Location      `json:"location"`
	ScheduledDate time.Time     `json:"scheduled_date"`
}

// RescheduleOption is a candidate date for moving a treatment, scored after
// the time-of-day adjustment.
type RescheduleOption struct {
	Date       time.Time      `json:"date"`
	Score      float64        `json:"score"`
	Conditions WeatherReading `json:"conditions"`
}
