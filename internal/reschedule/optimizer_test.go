package reschedule

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"lawnwatch/internal/scoring"
	"lawnwatch/internal/types"
)

// --- Test Doubles ---

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubGateway struct {
	points   []types.ForecastPoint
	err      error
	lastDays int
}

func (s *stubGateway) GetCurrentWeather(context.Context, types.Location) (*types.WeatherReading, error) {
	return nil, errors.New("not used")
}

func (s *stubGateway) GetForecast(_ context.Context, _ types.Location, days int) ([]types.ForecastPoint, error) {
	s.lastDays = days
	return s.points, s.err
}

// --- Helpers ---

var now = time.Date(2026, 6, 10, 9, 30, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return time.Date(2026, 6, 10+day, hour, 0, 0, 0, time.UTC)
}

func perfect(d time.Time) types.ForecastPoint {
	return types.ForecastPoint{
		Date: d,
		WeatherReading: types.WeatherReading{
			TemperatureC: 20, HumidityPercent: 50, WindSpeedKmh: 5, Conditions: types.ConditionClear,
		},
	}
}

func rainy(d time.Time) types.ForecastPoint {
	p := perfect(d)
	p.Conditions = types.ConditionRain
	return p
}

func hot(d time.Time) types.ForecastPoint {
	p := perfect(d)
	p.TemperatureC = 35
	return p
}

func storm(d time.Time) types.ForecastPoint {
	return types.ForecastPoint{
		Date: d,
		WeatherReading: types.WeatherReading{
			TemperatureC: 40, WindSpeedKmh: 60, PrecipitationMM: 30, Conditions: types.ConditionThunderstorm,
		},
	}
}

func newOptimizer(gw *stubGateway) *Optimizer {
	return NewOptimizer(Config{AlertThreshold: 3, DaysToCheck: 7}, gw, scoring.New(), fixedClock{now}, nil)
}

func request() Request {
	return Request{
		TreatmentID:   "treat-1",
		TreatmentType: types.TreatmentFertilization,
		Location:      types.Location{Lat: 40, Lon: -75},
		OriginalDate:  at(1, 9),
	}
}

// --- Tests ---

func TestTimeOfDayAdjustment(t *testing.T) {
	tests := map[int]float64{
		0: 0, 5: 0, 6: 0.5, 9: 0.5, 10: 0,
		11: -0.3, 13: -0.3, 15: -0.3,
		16: 0.2, 18: 0.2, 19: 0, 23: 0,
	}
	for hour, want := range tests {
		if got := TimeOfDayAdjustment(hour); got != want {
			t.Errorf("TimeOfDayAdjustment(%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestFindOptions_OrderingAndThreshold(t *testing.T) {
	gw := &stubGateway{points: []types.ForecastPoint{
		perfect(at(0, 8)), // past
		perfect(at(1, 12)),
		rainy(at(1, 16)),
		hot(at(1, 20)),
		storm(at(2, 3)),
		perfect(at(2, 8)),
		perfect(at(2, 7)),
	}}

	opts, err := newOptimizer(gw).FindOptions(context.Background(), request())
	if err != nil {
		t.Fatalf("FindOptions() error = %v", err)
	}

	want := []struct {
		date  time.Time
		score float64
	}{
		{at(2, 7), 5},
		{at(2, 8), 5},
		{at(1, 12), 4.7},
		{at(1, 16), 4.2},
		{at(1, 20), 3},
	}
	if len(opts) != len(want) {
		t.Fatalf("got %d options, want %d: %+v", len(opts), len(want), opts)
	}
	for i, w := range want {
		if !opts[i].Date.Equal(w.date) || math.Abs(opts[i].Score-w.score) > 1e-9 {
			t.Errorf("option %d = (%v, %v), want (%v, %v)", i, opts[i].Date, opts[i].Score, w.date, w.score)
		}
		if opts[i].Score < 3 {
			t.Errorf("option %d below threshold: %v", i, opts[i].Score)
		}
	}
	if gw.lastDays != 7 {
		t.Errorf("forecast days = %d, want config default 7", gw.lastDays)
	}
}

func TestFindOptions_UsesLocalHour(t *testing.T) {
	gw := &stubGateway{points: []types.ForecastPoint{rainy(at(1, 11))}} // 07:00 in New York
	req := request()
	req.Location.Timezone = "America/New_York"

	opts, err := newOptimizer(gw).FindOptions(context.Background(), req)
	if err != nil {
		t.Fatalf("FindOptions() error = %v", err)
	}
	if len(opts) != 1 || math.Abs(opts[0].Score-4.5) > 1e-9 {
		t.Fatalf("options = %+v, want single option scoring 4.5", opts)
	}
}

func TestFindOptions_DaysCapped(t *testing.T) {
	gw := &stubGateway{}
	req := request()
	req.DaysToCheck = 40

	if _, err := newOptimizer(gw).FindOptions(context.Background(), req); err != nil {
		t.Fatalf("FindOptions() error = %v", err)
	}
	if gw.lastDays != MaxDaysToCheck {
		t.Errorf("forecast days = %d, want %d", gw.lastDays, MaxDaysToCheck)
	}
}

func TestFindOptions_UnknownTreatmentType(t *testing.T) {
	gw := &stubGateway{}
	req := request()
	req.TreatmentType = "Composting"

	_, err := newOptimizer(gw).FindOptions(context.Background(), req)
	if !types.IsCode(err, types.ErrCodeUnknownTreatmentType) {
		t.Errorf("error = %v, want %s", err, types.ErrCodeUnknownTreatmentType)
	}
	if gw.lastDays != 0 {
		t.Error("gateway called for an unknown treatment type")
	}
}

func TestFindOptions_GatewayFailure(t *testing.T) {
	gw := &stubGateway{err: errors.New("connection refused")}

	_, err := newOptimizer(gw).FindOptions(context.Background(), request())
	if !types.IsCode(err, types.ErrCodeGatewayUnavailable) {
		t.Errorf("error = %v, want %s", err, types.ErrCodeGatewayUnavailable)
	}

	gw.err = types.NewAppError(types.ErrCodeUpstreamRateLimited, "slow down", nil)
	_, err = newOptimizer(gw).FindOptions(context.Background(), request())
	if !types.IsCode(err, types.ErrCodeUpstreamRateLimited) {
		t.Errorf("typed gateway error should pass through, got %v", err)
	}
}

func TestFindOptimalTreatmentTime(t *testing.T) {
	gw := &stubGateway{points: []types.ForecastPoint{rainy(at(1, 12)), perfect(at(1, 17))}}

	got, err := newOptimizer(gw).FindOptimalTreatmentTime(context.Background(), request())
	if err != nil {
		t.Fatalf("FindOptimalTreatmentTime() error = %v", err)
	}
	if !got.Equal(at(1, 17)) {
		t.Errorf("FindOptimalTreatmentTime() = %v, want %v", got, at(1, 17))
	}
}

func TestFindOptimalTreatmentTime_NoSuitableWindow(t *testing.T) {
	gw := &stubGateway{points: []types.ForecastPoint{storm(at(1, 12)), storm(at(2, 12))}}

	got, err := newOptimizer(gw).FindOptimalTreatmentTime(context.Background(), request())
	if !types.IsCode(err, types.ErrCodeNoSuitableWindow) {
		t.Fatalf("error = %v, want %s", err, types.ErrCodeNoSuitableWindow)
	}
	if !got.IsZero() {
		t.Errorf("returned %v, want zero time instead of the original date", got)
	}
}

func TestAssessDates(t *testing.T) {
	gw := &stubGateway{points: []types.ForecastPoint{perfect(at(1, 7)), storm(at(2, 12))}}
	dates := []time.Time{
		at(1, 7).Add(30 * time.Minute),
		at(2, 12),
		at(20, 9), // beyond horizon
	}

	got, err := newOptimizer(gw).AssessDates(context.Background(), types.TreatmentFertilization, types.Location{}, dates)
	if err != nil {
		t.Fatalf("AssessDates() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d assessments, want 3", len(got))
	}
	if got[0].Score == nil || *got[0].Score != 5 {
		t.Errorf("first date score = %v, want 5", got[0].Score)
	}
	if got[1].Score == nil || *got[1].Score != 1 || got[1].Conditions == nil {
		t.Errorf("second date = %+v, want score 1 with conditions", got[1])
	}
	if got[2].Score != nil || got[2].Conditions != nil {
		t.Errorf("date beyond horizon should be unscored: %+v", got[2])
	}
	if gw.lastDays != MaxDaysToCheck {
		t.Errorf("forecast days = %d, want %d", gw.lastDays, MaxDaysToCheck)
	}
}
