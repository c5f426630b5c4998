package prediction

import (
	"cmp"
	"slices"
	"strings"

	"lawnwatch/internal/types"
)

const (
	extremeConfidence  = 0.9
	decisiveConfidence = 0.85
	neutralConfidence  = 0.6
)

// rule grades one feature: inside ideal is positive, inside acceptable is
// neutral, anything else negative.
type rule struct {
	feature    Feature
	ideal      interval
	acceptable interval
}

var (
	fertilizationRules = []rule{
		{FeatureTemperature, interval{10, 25}, interval{5, 30}},
		{FeatureHumidity, interval{40, 70}, interval{30, 85}},
		{FeatureWindSpeed, interval{0, 10}, interval{0, 15}},
		{FeaturePrecipitation, interval{0, 0.5}, interval{0, 2}},
		{FeatureSoilMoisture, interval{40, 70}, interval{25, 85}},
	}
	aerationRules = []rule{
		{FeatureSoilMoisture, interval{50, 75}, interval{35, 85}},
		{FeatureTemperature, interval{10, 24}, interval{5, 29}},
		{FeaturePrecipitation, interval{0, 1}, interval{0, 3}},
		{FeatureWindSpeed, interval{0, 20}, interval{0, 30}},
	}
	seedingRules = []rule{
		{FeatureTemperature, interval{15, 24}, interval{10, 29}},
		{FeatureSoilMoisture, interval{55, 80}, interval{40, 90}},
		{FeatureHumidity, interval{50, 80}, interval{40, 90}},
		{FeatureWindSpeed, interval{0, 10}, interval{0, 15}},
		{FeaturePrecipitation, interval{0, 2}, interval{0, 5}},
	}
	weedControlRules = []rule{
		{FeatureTemperature, interval{18, 29}, interval{12, 32}},
		{FeatureWindSpeed, interval{0, 8}, interval{0, 12}},
		{FeaturePrecipitation, interval{0, 0.2}, interval{0, 1}},
		{FeatureHumidity, interval{40, 70}, interval{30, 85}},
	}
	generalRules = []rule{
		{FeatureTemperature, interval{10, 27}, interval{5, 32}},
		{FeatureWindSpeed, interval{0, 15}, interval{0, 25}},
		{FeaturePrecipitation, interval{0, 1}, interval{0, 3}},
		{FeatureHumidity, interval{30, 80}, interval{20, 90}},
	}
)

func rulesFor(t types.TreatmentType) []rule {
	switch t {
	case types.TreatmentFertilization:
		return fertilizationRules
	case types.TreatmentAeration:
		return aerationRules
	case types.TreatmentSeeding:
		return seedingRules
	case types.TreatmentWeedControl:
		return weedControlRules
	default:
		return generalRules
	}
}

// extremes flags conditions that ruin any treatment regardless of type.
func extremes(v vector) []Feature {
	var out []Feature
	if v.values[FeatureTemperature] > 35 {
		out = append(out, FeatureTemperature)
	}
	if v.values[FeatureWindSpeed] > 25 {
		out = append(out, FeatureWindSpeed)
	}
	if v.values[FeaturePrecipitation] > 1.0 {
		out = append(out, FeaturePrecipitation)
	}
	if soil := v.values[FeatureSoilMoisture]; v.present[FeatureSoilMoisture] && (soil < 10 || soil > 90) {
		out = append(out, FeatureSoilMoisture)
	}
	if v.present[FeatureUVIndex] && v.values[FeatureUVIndex] > 10 {
		out = append(out, FeatureUVIndex)
	}
	return out
}

// impactFactors explains a prediction. Extreme conditions, when present,
// are the whole explanation. Otherwise each supplied feature covered by the
// treatment's rule table is graded.
func impactFactors(v vector, t types.TreatmentType, weights map[Feature]float64) []types.ImpactFactor {
	var factors []types.ImpactFactor

	if ext := extremes(v); len(ext) > 0 {
		for _, f := range ext {
			factors = append(factors, types.ImpactFactor{
				Name:       string(f),
				Weight:     weights[f],
				Impact:     types.ImpactNegative,
				Confidence: extremeConfidence,
			})
		}
	} else {
		for _, r := range rulesFor(t) {
			if !v.present[r.feature] {
				continue
			}
			val := v.values[r.feature]
			factor := types.ImpactFactor{Name: string(r.feature), Weight: weights[r.feature]}
			switch {
			case r.ideal.contains(val):
				factor.Impact, factor.Confidence = types.ImpactPositive, decisiveConfidence
			case r.acceptable.contains(val):
				factor.Impact, factor.Confidence = types.ImpactNeutral, neutralConfidence
			default:
				factor.Impact, factor.Confidence = types.ImpactNegative, decisiveConfidence
			}
			factors = append(factors, factor)
		}
	}

	slices.SortFunc(factors, func(a, b types.ImpactFactor) int {
		an, bn := a.Impact == types.ImpactNegative, b.Impact == types.ImpactNegative
		if an != bn {
			if an {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return factors
}
