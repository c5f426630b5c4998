package prediction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"lawnwatch/internal/types"
)

func TestSanitize_RequiredFields(t *testing.T) {
	v := sanitize(types.WeatherReading{
		TemperatureC:    math.NaN(),
		HumidityPercent: 140,
		WindSpeedKmh:    12,
		PrecipitationMM: math.Inf(1),
	})

	assert.Equal(t, 20.0, v.values[FeatureTemperature])
	assert.False(t, v.present[FeatureTemperature])
	assert.Equal(t, 100.0, v.values[FeatureHumidity])
	assert.False(t, v.present[FeatureHumidity])
	assert.Equal(t, 12.0, v.values[FeatureWindSpeed])
	assert.True(t, v.present[FeatureWindSpeed])
	assert.Equal(t, 0.0, v.values[FeaturePrecipitation])
	assert.Equal(t, 1, v.presentCount())
}

func TestSanitize_OptionalFields(t *testing.T) {
	v := sanitize(types.WeatherReading{
		PressureHPa:  types.Float(700),
		DewPointC:    types.Float(12),
		VisibilityKm: nil,
	})

	assert.Nil(t, v.clean.PressureHPa)
	assert.Equal(t, 1013.0, v.values[FeaturePressure])
	assert.False(t, v.present[FeaturePressure])
	assert.Equal(t, 12.0, *v.clean.DewPointC)
	assert.True(t, v.present[FeatureDewPoint])
	assert.Equal(t, 10.0, v.values[FeatureVisibility])
}

func TestDataQuality(t *testing.T) {
	tests := []struct {
		name string
		r    types.WeatherReading
		want float64
	}{
		{"complete and normal", fullReading(), 1},
		{"one value outside normal", func() types.WeatherReading {
			r := fullReading()
			r.HumidityPercent = 93
			return r
		}(), 0.9},
		{"one value outside wide", func() types.WeatherReading {
			r := fullReading()
			r.HumidityPercent = 98
			return r
		}(), 0.8},
		{"sparse floors at half", types.WeatherReading{TemperatureC: 20, HumidityPercent: 50}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, dataQuality(sanitize(tt.r)), 1e-9)
		})
	}
}

func TestBaseScore_CustomWeights(t *testing.T) {
	v := sanitize(fullReading())

	// Only precipitation (0 mm) and visibility (10 km) carry weight.
	weights := map[Feature]float64{FeaturePrecipitation: 1, FeatureVisibility: 1}
	assert.InDelta(t, 0.5, baseScore(v, weights), 1e-9)
	assert.Equal(t, 0.0, baseScore(v, map[Feature]float64{}))
}

func TestExtremes(t *testing.T) {
	r := fullReading()
	r.PrecipitationMM = 3
	r.SoilMoisturePercent = types.Float(95)
	r.UVIndex = types.Float(12)

	assert.Equal(t,
		[]Feature{FeaturePrecipitation, FeatureSoilMoisture, FeatureUVIndex},
		extremes(sanitize(r)),
	)

	// Absent soil and UV fall back to neutral values and never count.
	assert.Empty(t, extremes(sanitize(types.WeatherReading{TemperatureC: 20})))
}

func TestRulesFor_FallsBackToGeneral(t *testing.T) {
	assert.Equal(t, generalRules, rulesFor(types.TreatmentMowing))
	assert.Equal(t, generalRules, rulesFor(types.TreatmentInsectControl))
	assert.Equal(t, seedingRules, rulesFor(types.TreatmentSeeding))
}

func TestWeightsFromMap(t *testing.T) {
	got, err := WeightsFromMap(map[string]float64{"temperature": 0.5, "visibility": 0})
	if err != nil {
		t.Fatalf("WeightsFromMap() error = %v", err)
	}
	if got[FeatureTemperature] != 0.5 || got[FeatureVisibility] != 0 {
		t.Errorf("overrides not applied: %v", got)
	}
	if got[FeatureHumidity] != DefaultFeatureWeights[FeatureHumidity] {
		t.Errorf("humidity = %v, want default", got[FeatureHumidity])
	}
	if DefaultFeatureWeights[FeatureTemperature] != 0.25 {
		t.Error("defaults were mutated")
	}

	if _, err := WeightsFromMap(map[string]float64{"barometer": 1}); err == nil {
		t.Error("unknown feature accepted")
	}
	if _, err := WeightsFromMap(map[string]float64{"humidity": -0.1}); err == nil {
		t.Error("negative weight accepted")
	}
}
