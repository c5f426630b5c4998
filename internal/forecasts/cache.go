// Package forecasts caches weather gateway responses so that sessions
// watching the same lawn, and optimizer runs that follow a check, share
// one upstream call.
package forecasts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lawnwatch/internal/types"
)

// DefaultTTL is how long a response is served from memory.
const DefaultTTL = 10 * time.Minute

// sweepThreshold triggers removal of expired entries on write.
const sweepThreshold = 1024

type entry struct {
	reading  *types.WeatherReading
	points   []types.ForecastPoint
	expireAt time.Time
}

// CachedGateway decorates a types.WeatherGateway with a TTL cache keyed
// by location rounded to two decimals (about 1 km). Concurrent misses for
// the same key are collapsed into a single upstream request. Errors are
// never cached.
type CachedGateway struct {
	next   types.WeatherGateway
	ttl    time.Duration
	clock  types.Clock
	logger *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]entry
}

var _ types.WeatherGateway = (*CachedGateway)(nil)

func NewCachedGateway(next types.WeatherGateway, ttl time.Duration, clock types.Clock, logger *slog.Logger) *CachedGateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGateway{
		next:    next,
		ttl:     ttl,
		clock:   clock,
		logger:  logger.With("component", "forecast_cache"),
		entries: make(map[string]entry),
	}
}

func (g *CachedGateway) GetCurrentWeather(ctx context.Context, loc types.Location) (*types.WeatherReading, error) {
	key := "current:" + locationKey(loc)
	if e, ok := g.lookup(key); ok {
		r := *e.reading
		return &r, nil
	}

	v, err, shared := g.group.Do(key, func() (any, error) {
		r, err := g.next.GetCurrentWeather(ctx, loc)
		if err != nil {
			return nil, err
		}
		g.store(key, entry{reading: r})
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		g.logger.DebugContext(ctx, "current weather request shared", "key", key)
	}
	r := *v.(*types.WeatherReading)
	return &r, nil
}

func (g *CachedGateway) GetForecast(ctx context.Context, loc types.Location, days int) ([]types.ForecastPoint, error) {
	key := fmt.Sprintf("forecast:%s:%d", locationKey(loc), days)
	if e, ok := g.lookup(key); ok {
		return slices.Clone(e.points), nil
	}

	v, err, shared := g.group.Do(key, func() (any, error) {
		points, err := g.next.GetForecast(ctx, loc, days)
		if err != nil {
			return nil, err
		}
		g.store(key, entry{points: points})
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		g.logger.DebugContext(ctx, "forecast request shared", "key", key)
	}
	return slices.Clone(v.([]types.ForecastPoint)), nil
}

// Len returns the number of cached entries, expired or not.
func (g *CachedGateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *CachedGateway) lookup(key string) (entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok || !g.clock.Now().Before(e.expireAt) {
		return entry{}, false
	}
	return e, true
}

func (g *CachedGateway) store(key string, e entry) {
	now := g.clock.Now()
	e.expireAt = now.Add(g.ttl)

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.entries) >= sweepThreshold {
		for k, old := range g.entries {
			if !now.Before(old.expireAt) {
				delete(g.entries, k)
			}
		}
	}
	g.entries[key] = e
}

func locationKey(loc types.Location) string {
	return fmt.Sprintf("%.2f,%.2f", round2(loc.Lat), round2(loc.Lon))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
