package alerts

import (
	"testing"
	"time"

	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var now = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	g := NewGenerator(fixedClock{now})
	g.newID = func() string { return "alert-1" }
	return g
}

func goodReading() types.WeatherReading {
	return types.WeatherReading{
		TemperatureC:    20,
		HumidityPercent: 50,
		WindSpeedKmh:    5,
		Conditions:      types.ConditionClear,
	}
}

func testContext() Context {
	return Context{
		TreatmentID:   "treat-1",
		Location:      types.Location{Lat: 40, Lon: -75},
		ScheduledDate: now.Add(48 * time.Hour),
		ForecastDate:  now.Add(24 * time.Hour),
	}
}

func TestGenerate_NoViolation(t *testing.T) {
	alert, err := newTestGenerator().Generate(goodReading(), types.TreatmentFertilization, testContext())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if alert != nil {
		t.Errorf("Generate() = %+v, want nil", alert)
	}
}

func TestGenerate_TemperatureViolation(t *testing.T) {
	r := goodReading()
	r.TemperatureC = 35

	alert, err := newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if alert == nil {
		t.Fatal("Generate() = nil, want alert")
	}
	if alert.Kind != types.AlertKindTemperature {
		t.Errorf("Kind = %q, want temperature", alert.Kind)
	}
	if alert.Severity != types.SeverityCritical {
		t.Errorf("Severity = %q, want critical", alert.Severity)
	}
	if alert.Priority != 5 {
		t.Errorf("Priority = %d, want 5", alert.Priority)
	}
	if alert.ID != "alert-1" || alert.TreatmentID != "treat-1" || !alert.CreatedAt.Equal(now) {
		t.Errorf("identity fields not populated: %+v", alert)
	}
	if alert.MetricSnapshot["temperature_c"] != 35 {
		t.Errorf("MetricSnapshot = %v", alert.MetricSnapshot)
	}
	if !alert.OriginalDate.Equal(testContext().ScheduledDate) {
		t.Errorf("OriginalDate = %v", alert.OriginalDate)
	}
}

func TestGenerate_SingleAlertForMultipleViolations(t *testing.T) {
	r := goodReading()
	r.TemperatureC = 35
	r.WindSpeedKmh = 40
	r.PrecipitationMM = 20
	r.UVIndex = types.Float(11)

	alert, err := newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if alert == nil || alert.Kind != types.AlertKindTemperature {
		t.Fatalf("Generate() = %+v, want temperature alert", alert)
	}
}

func TestGenerate_TieBrokenByDeclarationOrder(t *testing.T) {
	r := goodReading()
	r.WindSpeedKmh = 40
	r.PrecipitationMM = 20

	alert, _ := newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
	if alert == nil || alert.Kind != types.AlertKindWind {
		t.Fatalf("Generate() = %+v, want wind alert", alert)
	}
	if alert.Priority != 4 || alert.Severity != types.SeverityWarning {
		t.Errorf("Priority/Severity = %d/%s, want 4/warning", alert.Priority, alert.Severity)
	}
}

func TestGenerate_OptionalMetricViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.WeatherReading)
		want   types.AlertKind
	}{
		{"uv", func(r *types.WeatherReading) { r.UVIndex = types.Float(9) }, types.AlertKindUV},
		{"soil", func(r *types.WeatherReading) { r.SoilMoisturePercent = types.Float(90) }, types.AlertKindSoil},
		{"dewpoint", func(r *types.WeatherReading) { r.DewPointC = types.Float(-3) }, types.AlertKindDewPoint},
		{"uv beats soil", func(r *types.WeatherReading) {
			r.SoilMoisturePercent = types.Float(90)
			r.UVIndex = types.Float(9)
		}, types.AlertKindUV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := goodReading()
			tt.mutate(&r)
			alert, err := newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if alert == nil || alert.Kind != tt.want {
				t.Fatalf("Generate() = %+v, want %s", alert, tt.want)
			}
			if alert.Priority != 3 || alert.Severity != types.SeverityWarning {
				t.Errorf("Priority/Severity = %d/%s, want 3/warning", alert.Priority, alert.Severity)
			}
		})
	}
}

func TestGenerate_ConditionsLowestPriority(t *testing.T) {
	r := goodReading()
	r.Conditions = types.ConditionSnow

	alert, _ := newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
	if alert == nil || alert.Kind != types.AlertKindConditions || alert.Priority != 2 {
		t.Fatalf("Generate() = %+v, want conditions/2", alert)
	}

	r.DewPointC = types.Float(25)
	alert, _ = newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
	if alert == nil || alert.Kind != types.AlertKindDewPoint {
		t.Fatalf("Generate() = %+v, want dewpoint to outrank conditions", alert)
	}
}

func TestGenerate_UnreportedConditionsNoAlert(t *testing.T) {
	for _, cond := range []string{"", types.ConditionUnknown} {
		r := goodReading()
		r.Conditions = cond

		alert, err := newTestGenerator().Generate(r, types.TreatmentFertilization, testContext())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if alert != nil {
			t.Errorf("conditions %q raised %+v, want nil", cond, alert)
		}
	}
}

func TestGenerate_ColdTemperature(t *testing.T) {
	r := goodReading()
	r.TemperatureC = 2

	alert, _ := newTestGenerator().Generate(r, types.TreatmentSeeding, testContext())
	if alert == nil || alert.Kind != types.AlertKindTemperature || alert.Severity != types.SeverityCritical {
		t.Fatalf("Generate() = %+v, want critical temperature alert", alert)
	}
}

func TestGenerate_UnknownTreatmentType(t *testing.T) {
	_, err := newTestGenerator().Generate(goodReading(), "Composting", testContext())
	if !types.IsCode(err, types.ErrCodeUnknownTreatmentType) {
		t.Errorf("error = %v, want %s", err, types.ErrCodeUnknownTreatmentType)
	}
}

func TestViolations_DeclarationOrder(t *testing.T) {
	p, _ := treatments.Lookup(types.TreatmentWeedControl)
	r := types.WeatherReading{
		TemperatureC:        40,
		WindSpeedKmh:        30,
		PrecipitationMM:     10,
		Conditions:          types.ConditionRain,
		UVIndex:             types.Float(12),
		SoilMoisturePercent: types.Float(10),
		DewPointC:           types.Float(30),
	}

	got := violations(r, p)
	want := []types.AlertKind{
		types.AlertKindTemperature,
		types.AlertKindWind,
		types.AlertKindPrecipitation,
		types.AlertKindUV,
		types.AlertKindSoil,
		types.AlertKindDewPoint,
		types.AlertKindConditions,
	}
	if len(got) != len(want) {
		t.Fatalf("violations() returned %d candidates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].kind != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, got[i].kind, want[i])
		}
	}
}
