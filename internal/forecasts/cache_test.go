package forecasts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnwatch/internal/types"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubGateway struct {
	forecastCalls atomic.Int32
	currentCalls  atomic.Int32
	gate          chan struct{}
	err           error
}

func (s *stubGateway) GetCurrentWeather(ctx context.Context, loc types.Location) (*types.WeatherReading, error) {
	s.currentCalls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &types.WeatherReading{TemperatureC: 21, HumidityPercent: 40}, nil
}

func (s *stubGateway) GetForecast(ctx context.Context, loc types.Location, days int) ([]types.ForecastPoint, error) {
	s.forecastCalls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	points := make([]types.ForecastPoint, days)
	for i := range points {
		points[i].TemperatureC = float64(10 + i)
	}
	return points, nil
}

func newCache(next *stubGateway) (*CachedGateway, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
	return NewCachedGateway(next, 10*time.Minute, clock, nil), clock
}

func TestCachedGateway_ForecastHitAndExpiry(t *testing.T) {
	stub := &stubGateway{}
	cache, clock := newCache(stub)
	ctx := context.Background()
	loc := types.Location{Lat: 40.71234, Lon: -74.00601}

	first, err := cache.GetForecast(ctx, loc, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	// Nearby coordinates round to the same key.
	_, err = cache.GetForecast(ctx, types.Location{Lat: 40.7149, Lon: -74.0089}, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stub.forecastCalls.Load())

	// A different horizon is a different key.
	_, _ = cache.GetForecast(ctx, loc, 5)
	assert.Equal(t, int32(2), stub.forecastCalls.Load())

	clock.Advance(10 * time.Minute)
	_, _ = cache.GetForecast(ctx, loc, 3)
	assert.Equal(t, int32(3), stub.forecastCalls.Load(), "expired entry should be refetched")
}

func TestCachedGateway_ReturnsCopies(t *testing.T) {
	stub := &stubGateway{}
	cache, _ := newCache(stub)
	ctx := context.Background()

	points, _ := cache.GetForecast(ctx, types.Location{}, 2)
	points[0].TemperatureC = 99

	again, _ := cache.GetForecast(ctx, types.Location{}, 2)
	assert.Equal(t, 10.0, again[0].TemperatureC)

	r, _ := cache.GetCurrentWeather(ctx, types.Location{})
	r.TemperatureC = -5
	r2, _ := cache.GetCurrentWeather(ctx, types.Location{})
	assert.Equal(t, 21.0, r2.TemperatureC)
	assert.Equal(t, int32(1), stub.currentCalls.Load())
}

func TestCachedGateway_ErrorsNotCached(t *testing.T) {
	stub := &stubGateway{err: types.NewAppError(types.ErrCodeGatewayUnavailable, "down", nil)}
	cache, _ := newCache(stub)
	ctx := context.Background()

	_, err := cache.GetForecast(ctx, types.Location{}, 1)
	assert.True(t, types.IsCode(err, types.ErrCodeGatewayUnavailable))

	stub.err = nil
	_, err = cache.GetForecast(ctx, types.Location{}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.forecastCalls.Load())

	stub.err = errors.New("boom")
	_, err = cache.GetCurrentWeather(ctx, types.Location{})
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestCachedGateway_ConcurrentMissesShareOneCall(t *testing.T) {
	stub := &stubGateway{gate: make(chan struct{})}
	cache, _ := newCache(stub)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := cache.GetForecast(ctx, types.Location{Lat: 1, Lon: 1}, 4)
			assert.NoError(t, err)
			assert.Len(t, points, 4)
		}()
	}

	// Let the goroutines pile up on the in-flight call before releasing it.
	require.Eventually(t, func() bool { return stub.forecastCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(stub.gate)
	wg.Wait()

	assert.Equal(t, int32(1), stub.forecastCalls.Load())
}
