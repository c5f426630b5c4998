package scoring

import (
	"math"
	"testing"

	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

func perfectFertilization() types.WeatherReading {
	return types.WeatherReading{
		TemperatureC:    20,
		HumidityPercent: 50,
		PrecipitationMM: 0,
		WindSpeedKmh:    5,
		Conditions:      types.ConditionClear,
	}
}

func TestScore_PerfectConditions(t *testing.T) {
	got, err := New().Score(perfectFertilization(), types.TreatmentFertilization)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got != 5 {
		t.Errorf("Score() = %d, want 5", got)
	}
}

func TestScore_UnreportedConditionsNotPenalized(t *testing.T) {
	for _, cond := range []string{"", types.ConditionUnknown} {
		r := perfectFertilization()
		r.Conditions = cond

		got, err := New().Score(r, types.TreatmentFertilization)
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if got != 5 {
			t.Errorf("Score() with conditions %q = %d, want 5", cond, got)
		}
	}
}

func TestScore_NonIdealConditionPenalty(t *testing.T) {
	r := perfectFertilization()
	r.Conditions = types.ConditionRain

	got, err := New().Score(r, types.TreatmentFertilization)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got != 4 {
		t.Errorf("Score() = %d, want 4", got)
	}
}

func TestScore_NonIdealPenaltyClampsAtOne(t *testing.T) {
	r := types.WeatherReading{
		TemperatureC:    40,
		WindSpeedKmh:    60,
		PrecipitationMM: 30,
		Conditions:      types.ConditionThunderstorm,
	}
	got, err := New().Score(r, types.TreatmentFertilization)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Score() = %d, want 1", got)
	}
}

func TestScore_Bounds(t *testing.T) {
	s := New()
	optional := []*float64{nil, types.Float(0), types.Float(15), types.Float(55)}

	for _, tt := range treatments.Supported() {
		for temp := -50.0; temp <= 150; temp += 12.5 {
			for wind := 0.0; wind <= 200; wind += 40 {
				for precip := 0.0; precip <= 100; precip += 25 {
					for _, opt := range optional {
						for _, cond := range []string{types.ConditionClear, types.ConditionSnow} {
							r := types.WeatherReading{
								TemperatureC:        temp,
								HumidityPercent:     50,
								WindSpeedKmh:        wind,
								PrecipitationMM:     precip,
								Conditions:          cond,
								SoilMoisturePercent: opt,
								DewPointC:           opt,
							}
							got, err := s.Score(r, tt)
							if err != nil {
								t.Fatalf("Score(%+v, %s) error = %v", r, tt, err)
							}
							if got < MinScore || got > MaxScore {
								t.Fatalf("Score(%+v, %s) = %d out of [1,5]", r, tt, got)
							}
						}
					}
				}
			}
		}
	}
}

func TestScore_UnknownTreatmentType(t *testing.T) {
	_, err := New().Score(perfectFertilization(), "Composting")
	if !types.IsCode(err, types.ErrCodeUnknownTreatmentType) {
		t.Errorf("error = %v, want %s", err, types.ErrCodeUnknownTreatmentType)
	}
}

func TestScore_InvalidReadingRejected(t *testing.T) {
	r := perfectFertilization()
	r.HumidityPercent = 140

	_, err := New().Score(r, types.TreatmentFertilization)
	if !types.IsCode(err, types.ErrCodeInvalidWeatherData) {
		t.Errorf("error = %v, want %s", err, types.ErrCodeInvalidWeatherData)
	}
}

func TestBreakdown_RenormalizesOverPresentMetrics(t *testing.T) {
	r := types.WeatherReading{
		TemperatureC:        35,
		WindSpeedKmh:        15,
		PrecipitationMM:     5,
		Conditions:          types.ConditionClear,
		SoilMoisturePercent: types.Float(50),
	}

	b, err := New().Breakdown(r, types.TreatmentFertilization)
	if err != nil {
		t.Fatalf("Breakdown() error = %v", err)
	}
	// Only soil scores (1.0); its weight 0.15 over a present total of 0.80.
	if want := 0.15 / 0.80; math.Abs(b.Weighted-want) > 1e-9 {
		t.Errorf("Weighted = %v, want %v", b.Weighted, want)
	}
	if b.SoilMoisture == nil || *b.SoilMoisture != 1 {
		t.Errorf("SoilMoisture = %v, want 1", b.SoilMoisture)
	}
	if b.UVIndex != nil || b.DewPoint != nil {
		t.Error("absent metrics should have nil sub-scores")
	}
}

func TestTemperatureScore(t *testing.T) {
	tests := []struct {
		temp float64
		want float64
	}{
		{9.9, 0},
		{10, 0},
		{19.5, 1},
		{24.25, 0.5},
		{29, 0},
		{29.1, 0},
	}
	for _, tt := range tests {
		if got := TemperatureScore(tt.temp, 10, 29); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TemperatureScore(%v) = %v, want %v", tt.temp, got, tt.want)
		}
	}
}

func TestCeilingScore(t *testing.T) {
	if got := CeilingScore(5, 15); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("CeilingScore(5, 15) = %v", got)
	}
	if got := CeilingScore(30, 15); got != 0 {
		t.Errorf("CeilingScore(30, 15) = %v, want 0", got)
	}
}

func TestRangeScore(t *testing.T) {
	r := treatments.Range{Min: 30, Max: 70}
	tests := []struct {
		v    float64
		want float64
	}{
		{50, 1},
		{30, 1},
		{80, 0.75},
		{20, 0.75},
		{120, 0},
	}
	for _, tt := range tests {
		if got := RangeScore(tt.v, r); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RangeScore(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	if ClampScore(5.5) != 5 || ClampScore(0.7) != 1 || ClampScore(3.2) != 3.2 {
		t.Error("ClampScore did not clamp to [1,5]")
	}
}
