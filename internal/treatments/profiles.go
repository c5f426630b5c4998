// Package treatments holds the static tolerance profiles that define which
// weather each supported lawn treatment can withstand.
package treatments

import (
	"strings"

	"lawnwatch/internal/types"
)

// Range is a closed interval of acceptable values for an optional metric.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// MetricRanges are the acceptable bands for optional reading fields.
type MetricRanges struct {
	UVIndex      Range
	SoilMoisture Range
	DewPoint     Range
}

// Profile is the read-only tolerance profile for one treatment type.
type Profile struct {
	Type             types.TreatmentType
	MinTemp          float64
	MaxTemp          float64
	MaxWindSpeed     float64
	MaxPrecipitation float64
	IdealConditions  []string
	Metrics          MetricRanges
}

// IsIdealCondition reports whether the condition string is in the ideal set.
// Matching ignores case. An empty ideal set accepts everything.
func (p Profile) IsIdealCondition(conditions string) bool {
	if len(p.IdealConditions) == 0 {
		return true
	}
	for _, c := range p.IdealConditions {
		if strings.EqualFold(c, conditions) {
			return true
		}
	}
	return false
}

var (
	sunny      = []string{types.ConditionClear, types.ConditionPartlyCloudy}
	dry        = []string{types.ConditionClear, types.ConditionPartlyCloudy, types.ConditionCloudy}
	germinates = []string{types.ConditionPartlyCloudy, types.ConditionCloudy, types.ConditionLightRain}
)

var profiles = map[types.TreatmentType]Profile{
	types.TreatmentFertilization: {
		MinTemp: 10, MaxTemp: 29, MaxWindSpeed: 15, MaxPrecipitation: 5,
		IdealConditions: dry,
		Metrics:         MetricRanges{UVIndex: Range{0, 8}, SoilMoisture: Range{30, 70}, DewPoint: Range{2, 18}},
	},
	types.TreatmentWeedControl: {
		MinTemp: 15, MaxTemp: 29, MaxWindSpeed: 10, MaxPrecipitation: 2,
		IdealConditions: sunny,
		Metrics:         MetricRanges{UVIndex: Range{0, 9}, SoilMoisture: Range{40, 80}, DewPoint: Range{5, 20}},
	},
	types.TreatmentMowing: {
		MinTemp: 5, MaxTemp: 32, MaxWindSpeed: 25, MaxPrecipitation: 1,
		IdealConditions: dry,
		Metrics:         MetricRanges{UVIndex: Range{0, 10}, SoilMoisture: Range{20, 60}, DewPoint: Range{0, 20}},
	},
	types.TreatmentSeeding: {
		MinTemp: 10, MaxTemp: 27, MaxWindSpeed: 15, MaxPrecipitation: 10,
		IdealConditions: germinates,
		Metrics:         MetricRanges{UVIndex: Range{0, 7}, SoilMoisture: Range{50, 85}, DewPoint: Range{5, 18}},
	},
	types.TreatmentAeration: {
		MinTemp: 10, MaxTemp: 27, MaxWindSpeed: 20, MaxPrecipitation: 5,
		IdealConditions: dry,
		Metrics:         MetricRanges{UVIndex: Range{0, 10}, SoilMoisture: Range{40, 75}, DewPoint: Range{0, 18}},
	},
	types.TreatmentInsectControl: {
		MinTemp: 15, MaxTemp: 30, MaxWindSpeed: 10, MaxPrecipitation: 2,
		IdealConditions: sunny,
		Metrics:         MetricRanges{UVIndex: Range{0, 8}, SoilMoisture: Range{30, 70}, DewPoint: Range{5, 20}},
	},
}

// Lookup returns the profile for t, or an ErrCodeUnknownTreatmentType AppError.
func Lookup(t types.TreatmentType) (Profile, error) {
	p, ok := profiles[t]
	if !ok {
		return Profile{}, types.ErrUnknownTreatmentType(t)
	}
	p.Type = t
	return p, nil
}

// Supported lists every treatment type with a profile, in a stable order.
func Supported() []types.TreatmentType {
	return []types.TreatmentType{
		types.TreatmentFertilization,
		types.TreatmentWeedControl,
		types.TreatmentMowing,
		types.TreatmentSeeding,
		types.TreatmentAeration,
		types.TreatmentInsectControl,
	}
}
