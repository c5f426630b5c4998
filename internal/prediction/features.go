package prediction

import (
	"math"

	"lawnwatch/internal/types"
)

// Feature names a weather input of the prediction heuristic.
type Feature string

const (
	FeatureTemperature   Feature = "temperature"
	FeatureHumidity      Feature = "humidity"
	FeatureWindSpeed     Feature = "windSpeed"
	FeaturePrecipitation Feature = "precipitation"
	FeatureSoilMoisture  Feature = "soilMoisture"
	FeatureUVIndex       Feature = "uvIndex"
	FeaturePressure      Feature = "pressure"
	FeatureDewPoint      Feature = "dewPoint"
	FeatureVisibility    Feature = "visibility"
)

// Features lists every expected feature in canonical order.
var Features = []Feature{
	FeatureTemperature,
	FeatureHumidity,
	FeatureWindSpeed,
	FeaturePrecipitation,
	FeatureSoilMoisture,
	FeatureUVIndex,
	FeaturePressure,
	FeatureDewPoint,
	FeatureVisibility,
}

// DefaultFeatureWeights sum to 1.
var DefaultFeatureWeights = map[Feature]float64{
	FeatureTemperature:   0.25,
	FeatureHumidity:      0.15,
	FeatureWindSpeed:     0.15,
	FeaturePrecipitation: 0.20,
	FeatureSoilMoisture:  0.10,
	FeatureUVIndex:       0.05,
	FeaturePressure:      0.04,
	FeatureDewPoint:      0.03,
	FeatureVisibility:    0.03,
}

type interval struct{ lo, hi float64 }

func (i interval) contains(v float64) bool { return v >= i.lo && v <= i.hi }

func (i interval) clamp(v float64) float64 { return math.Max(i.lo, math.Min(i.hi, v)) }

// featureSpec describes how one feature is validated, normalized and
// judged for data quality.
type featureSpec struct {
	valid    interval // physical bounds; outside is invalid
	fallback float64  // neutral value when absent or invalid
	normal   interval // outside: quality x0.9, counts as extreme for confidence
	wide     interval // outside: quality x0.8
	scale    func(float64) float64
}

var inf = math.Inf(1)

var specs = map[Feature]featureSpec{
	FeatureTemperature: {
		valid: interval{types.MinTemperatureC, types.MaxTemperatureC}, fallback: 20,
		normal: interval{0, 100}, wide: interval{-20, 120},
		scale: func(v float64) float64 { return (v + 50) / 200 },
	},
	FeatureHumidity: {
		valid: interval{types.MinHumidityPercent, types.MaxHumidityPercent}, fallback: 50,
		normal: interval{10, 90}, wide: interval{5, 95},
		scale: func(v float64) float64 { return v / 100 },
	},
	FeatureWindSpeed: {
		valid: interval{types.MinWindSpeedKmh, types.MaxWindSpeedKmh}, fallback: 0,
		normal: interval{0, 30}, wide: interval{0, 50},
		scale: func(v float64) float64 { return v / 30 },
	},
	FeaturePrecipitation: {
		valid: interval{types.MinPrecipitationMM, types.MaxPrecipitationMM}, fallback: 0,
		normal: interval{0, 2}, wide: interval{0, 10},
		scale: func(v float64) float64 { return v / 2 },
	},
	FeatureSoilMoisture: {
		valid: interval{0, 100}, fallback: 50,
		normal: interval{10, 90}, wide: interval{5, 95},
		scale: func(v float64) float64 { return v / 100 },
	},
	FeatureUVIndex: {
		valid: interval{0, 20}, fallback: 0,
		normal: interval{0, 11}, wide: interval{0, 13},
		scale: func(v float64) float64 { return v / 11 },
	},
	FeaturePressure: {
		valid: interval{800, 1100}, fallback: 1013,
		normal: interval{980, 1040}, wide: interval{950, 1060},
		scale: func(v float64) float64 { return (v - 950) / 100 },
	},
	FeatureDewPoint: {
		valid: interval{-60, 60}, fallback: 0,
		normal: interval{-10, 30}, wide: interval{-20, 35},
		scale: func(v float64) float64 { return (v + 20) / 50 },
	},
	FeatureVisibility: {
		valid: interval{0, 100}, fallback: 10,
		normal: interval{1, inf}, wide: interval{0.5, inf},
		scale: func(v float64) float64 { return v / 10 },
	},
}

// vector is a sanitized reading. Every feature has a usable value;
// present marks the ones the caller actually supplied within bounds.
type vector struct {
	values  map[Feature]float64
	present map[Feature]bool
	clean   types.WeatherReading
}

// sanitize never fails. Out-of-bound required fields are clamped and
// treated as absent; missing or invalid optional fields get neutral
// defaults.
func sanitize(r types.WeatherReading) vector {
	v := vector{
		values:  make(map[Feature]float64, len(Features)),
		present: make(map[Feature]bool, len(Features)),
	}

	v.clean.Conditions = r.Conditions
	v.clean.TemperatureC = v.required(FeatureTemperature, r.TemperatureC)
	v.clean.HumidityPercent = v.required(FeatureHumidity, r.HumidityPercent)
	v.clean.WindSpeedKmh = v.required(FeatureWindSpeed, r.WindSpeedKmh)
	v.clean.PrecipitationMM = v.required(FeaturePrecipitation, r.PrecipitationMM)
	v.clean.SoilMoisturePercent = v.optional(FeatureSoilMoisture, r.SoilMoisturePercent)
	v.clean.UVIndex = v.optional(FeatureUVIndex, r.UVIndex)
	v.clean.PressureHPa = v.optional(FeaturePressure, r.PressureHPa)
	v.clean.DewPointC = v.optional(FeatureDewPoint, r.DewPointC)
	v.clean.VisibilityKm = v.optional(FeatureVisibility, r.VisibilityKm)
	return v
}

func (v *vector) required(f Feature, raw float64) float64 {
	spec := specs[f]
	switch {
	case math.IsNaN(raw) || math.IsInf(raw, 0):
		v.values[f] = spec.fallback
	case !spec.valid.contains(raw):
		v.values[f] = spec.valid.clamp(raw)
	default:
		v.values[f] = raw
		v.present[f] = true
	}
	return v.values[f]
}

func (v *vector) optional(f Feature, raw *float64) *float64 {
	spec := specs[f]
	if raw == nil || math.IsNaN(*raw) || math.IsInf(*raw, 0) || !spec.valid.contains(*raw) {
		v.values[f] = spec.fallback
		return nil
	}
	v.values[f] = *raw
	v.present[f] = true
	return types.Float(*raw)
}

func (v vector) presentCount() int {
	n := 0
	for _, f := range Features {
		if v.present[f] {
			n++
		}
	}
	return n
}

func (v vector) completeness() float64 {
	return float64(v.presentCount()) / float64(len(Features))
}

// dataQuality starts at 1, applies a penalty for each feature outside its
// normal range (x0.8 beyond the wide range), scales by completeness and is
// floored at 0.5.
func dataQuality(v vector) float64 {
	q := 1.0
	for _, f := range Features {
		spec := specs[f]
		val := v.values[f]
		switch {
		case !spec.wide.contains(val):
			q *= 0.8
		case !spec.normal.contains(val):
			q *= 0.9
		}
	}
	q *= v.completeness()
	return math.Max(0.5, q)
}

// hasAbnormal reports whether any supplied feature lies outside its normal range.
func hasAbnormal(v vector) bool {
	for _, f := range Features {
		if v.present[f] && !specs[f].normal.contains(v.values[f]) {
			return true
		}
	}
	return false
}

// baseScore is the weighted mean of normalized feature values over the
// features that carry a weight.
func baseScore(v vector, weights map[Feature]float64) float64 {
	var sum, total float64
	for _, f := range Features {
		w, ok := weights[f]
		if !ok || w <= 0 {
			continue
		}
		n := math.Max(0, math.Min(1, specs[f].scale(v.values[f])))
		sum += w * n
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, sum/total))
}

// WeightsFromMap overlays named weights onto DefaultFeatureWeights.
// Unknown feature names and negative weights are rejected.
func WeightsFromMap(overrides map[string]float64) (map[Feature]float64, error) {
	out := make(map[Feature]float64, len(DefaultFeatureWeights))
	for f, w := range DefaultFeatureWeights {
		out[f] = w
	}
	for name, w := range overrides {
		f := Feature(name)
		if _, ok := specs[f]; !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"unknown prediction feature "+name, nil, map[string]any{"feature": name})
		}
		if w < 0 || math.IsNaN(w) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"feature weight must be non-negative", nil, map[string]any{"feature": name, "weight": w})
		}
		out[f] = w
	}
	return out, nil
}
