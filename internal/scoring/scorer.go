// Package scoring rates how suitable a weather reading is for a treatment
// type on a 1-5 scale.
package scoring

import (
	"math"

	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

// Band bounds of the suitability score.
const (
	MinScore = 1
	MaxScore = 5
)

// Weights are the relative contributions of each sub-score. Weights of
// absent optional metrics are excluded and the rest renormalized.
type Weights struct {
	Temperature   float64
	Wind          float64
	Precipitation float64
	UVIndex       float64
	SoilMoisture  float64
	DewPoint      float64
}

// DefaultWeights is the canonical weighting.
var DefaultWeights = Weights{
	Temperature:   0.25,
	Wind:          0.20,
	Precipitation: 0.20,
	UVIndex:       0.10,
	SoilMoisture:  0.15,
	DewPoint:      0.10,
}

// Breakdown exposes the intermediate values behind a score.
type Breakdown struct {
	Temperature   float64  `json:"temperature"`
	Wind          float64  `json:"wind"`
	Precipitation float64  `json:"precipitation"`
	UVIndex       *float64 `json:"uv_index,omitempty"`
	SoilMoisture  *float64 `json:"soil_moisture,omitempty"`
	DewPoint      *float64 `json:"dew_point,omitempty"`
	// Weighted is the renormalized weighted average in [0,1].
	Weighted       float64 `json:"weighted"`
	IdealCondition bool    `json:"ideal_condition"`
	Score          int     `json:"score"`
}

// Scorer is stateless and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// New creates a Scorer using DefaultWeights.
func New() *Scorer {
	return &Scorer{weights: DefaultWeights}
}

// NewWithWeights creates a Scorer with custom weights.
func NewWithWeights(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score rates reading for treatmentType. Out-of-bound readings are rejected
// with ErrCodeInvalidWeatherData; unknown types with ErrCodeUnknownTreatmentType.
func (s *Scorer) Score(reading types.WeatherReading, treatmentType types.TreatmentType) (int, error) {
	b, err := s.Breakdown(reading, treatmentType)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Breakdown computes the score along with every sub-score.
func (s *Scorer) Breakdown(reading types.WeatherReading, treatmentType types.TreatmentType) (Breakdown, error) {
	profile, err := treatments.Lookup(treatmentType)
	if err != nil {
		return Breakdown{}, err
	}
	if err := types.ValidateReading(reading); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Temperature:    TemperatureScore(reading.TemperatureC, profile.MinTemp, profile.MaxTemp),
		Wind:           CeilingScore(reading.WindSpeedKmh, profile.MaxWindSpeed),
		Precipitation:  CeilingScore(reading.PrecipitationMM, profile.MaxPrecipitation),
		IdealCondition: profile.IsIdealCondition(reading.Conditions),
	}

	sum := s.weights.Temperature*b.Temperature +
		s.weights.Wind*b.Wind +
		s.weights.Precipitation*b.Precipitation
	total := s.weights.Temperature + s.weights.Wind + s.weights.Precipitation

	if reading.UVIndex != nil {
		v := RangeScore(*reading.UVIndex, profile.Metrics.UVIndex)
		b.UVIndex = &v
		sum += s.weights.UVIndex * v
		total += s.weights.UVIndex
	}
	if reading.SoilMoisturePercent != nil {
		v := RangeScore(*reading.SoilMoisturePercent, profile.Metrics.SoilMoisture)
		b.SoilMoisture = &v
		sum += s.weights.SoilMoisture * v
		total += s.weights.SoilMoisture
	}
	if reading.DewPointC != nil {
		v := RangeScore(*reading.DewPointC, profile.Metrics.DewPoint)
		b.DewPoint = &v
		sum += s.weights.DewPoint * v
		total += s.weights.DewPoint
	}

	if total > 0 {
		b.Weighted = sum / total
	}

	band := int(math.Round(b.Weighted*4)) + 1
	if !b.IdealCondition && types.ConditionsReported(reading.Conditions) {
		band--
	}
	b.Score = clampBand(band)
	return b, nil
}

// TemperatureScore is triangular: 0 outside [lo,hi], 1 at the midpoint,
// falling off linearly toward either bound.
func TemperatureScore(t, lo, hi float64) float64 {
	if t < lo || t > hi {
		return 0
	}
	half := (hi - lo) / 2
	if half == 0 {
		return 1
	}
	mid := lo + half
	return 1 - math.Abs(t-mid)/half
}

// CeilingScore is max(0, 1 - v/limit).
func CeilingScore(v, limit float64) float64 {
	if limit <= 0 {
		if v <= 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, 1-v/limit)
}

// RangeScore is 1 inside r and falls off in proportion to the overshoot
// relative to the range width, floored at 0.
func RangeScore(v float64, r treatments.Range) float64 {
	if r.Contains(v) {
		return 1
	}
	width := r.Max - r.Min
	if width <= 0 {
		width = 1
	}
	overshoot := r.Min - v
	if v > r.Max {
		overshoot = v - r.Max
	}
	return math.Max(0, 1-overshoot/width)
}

// ClampScore bounds a continuous score to [MinScore, MaxScore].
func ClampScore(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func clampBand(b int) int {
	if b < MinScore {
		return MinScore
	}
	if b > MaxScore {
		return MaxScore
	}
	return b
}
