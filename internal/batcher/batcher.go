// Package batcher groups weather alerts into time-boxed batches so a user
// receives one notification per treatment per window instead of a stream.
//
// At most one batch is open at a time. The first alert opens it and arms a
// flush timer; reaching the size cap flushes immediately. A flush detaches
// the batch under the lock, so a batch is delivered exactly once even when
// the timer and the size cap race.
package batcher

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"lawnwatch/internal/scheduler"
	"lawnwatch/internal/telemetry"
	"lawnwatch/internal/types"
)

// Dispatcher delivers one treatment's alerts. Delivery and retry semantics
// belong to the implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, batchID, treatmentID string, alerts []types.WeatherAlert) error
}

// Config tunes batching.
type Config struct {
	Window            time.Duration // Default: 15m
	MaxAlertsPerBatch int           // Default: 10
	MinAlertPriority  int           // Alerts below this are dropped. Default: 1
	DispatchTimeout   time.Duration // Per-flush deadline. Default: 30s
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.MaxAlertsPerBatch <= 0 {
		c.MaxAlertsPerBatch = 10
	}
	if c.MinAlertPriority < types.MinAlertPriority {
		c.MinAlertPriority = types.MinAlertPriority
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 30 * time.Second
	}
	return c
}

type openBatch struct {
	batch       types.AlertBatch
	cancelTimer scheduler.CancelFunc
}

// Batcher accumulates alerts and flushes them to a Dispatcher.
type Batcher struct {
	cfg        Config
	dispatcher Dispatcher
	sched      scheduler.Scheduler
	clock      types.Clock
	metrics    telemetry.Recorder
	logger     *slog.Logger
	newID      func() string

	mu     sync.Mutex
	open   *openBatch
	closed bool
}

// Deps are the Batcher's collaborators. Clock, Metrics and Logger are optional.
type Deps struct {
	Dispatcher Dispatcher
	Scheduler  scheduler.Scheduler
	Clock      types.Clock
	Metrics    telemetry.Recorder
	Logger     *slog.Logger
}

// New creates a Batcher.
func New(cfg Config, deps Deps) *Batcher {
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Batcher{
		cfg:        cfg.withDefaults(),
		dispatcher: deps.Dispatcher,
		sched:      deps.Scheduler,
		clock:      deps.Clock,
		metrics:    telemetry.OrNoop(deps.Metrics),
		logger:     deps.Logger.With("component", "alert_batcher"),
		newID:      func() string { return uuid.New().String() },
	}
}

// Add queues an alert. Alerts under the priority floor, or added after
// Close, are dropped. When the open batch reaches the cap it is flushed
// on the caller's goroutine before Add returns.
func (b *Batcher) Add(ctx context.Context, alert types.WeatherAlert) {
	if alert.Priority < b.cfg.MinAlertPriority {
		b.logger.DebugContext(ctx, "alert below priority floor dropped",
			"treatment_id", alert.TreatmentID,
			"priority", alert.Priority,
			"min_priority", b.cfg.MinAlertPriority,
		)
		b.metrics.RecordAlert(ctx, alert.Kind, true)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.WarnContext(ctx, "alert added after close dropped", "treatment_id", alert.TreatmentID)
		b.metrics.RecordAlert(ctx, alert.Kind, true)
		return
	}

	if b.open == nil {
		ob := &openBatch{batch: types.AlertBatch{ID: b.newID(), CreatedAt: b.clock.Now()}}
		ob.cancelTimer = b.sched.After(b.cfg.Window, func() { b.flushOnTimer(ob) })
		b.open = ob
	}
	ob := b.open
	ob.batch.Append(alert)

	full := len(ob.batch.Alerts) >= b.cfg.MaxAlertsPerBatch
	if full {
		b.open = nil
	}
	b.mu.Unlock()

	b.metrics.RecordAlert(ctx, alert.Kind, false)

	if full {
		ob.cancelTimer()
		b.deliver(context.WithoutCancel(ctx), ob.batch)
	}
}

// flushOnTimer delivers ob if it is still the open batch. A batch already
// detached by the size cap or Close is ignored.
func (b *Batcher) flushOnTimer(ob *openBatch) {
	b.mu.Lock()
	if b.open != ob {
		b.mu.Unlock()
		return
	}
	b.open = nil
	b.mu.Unlock()

	b.deliver(context.Background(), ob.batch)
}

// Pending returns the number of alerts in the open batch.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open == nil {
		return 0
	}
	return len(b.open.batch.Alerts)
}

// Close flushes the open batch and rejects further alerts.
func (b *Batcher) Close(ctx context.Context) {
	b.mu.Lock()
	b.closed = true
	ob := b.open
	b.open = nil
	b.mu.Unlock()

	if ob != nil {
		ob.cancelTimer()
		b.deliver(ctx, ob.batch)
	}
}

// deliver sorts the batch by priority, groups it by treatment and makes one
// dispatch call per treatment. A failed group does not stop the others.
func (b *Batcher) deliver(ctx context.Context, batch types.AlertBatch) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.DispatchTimeout)
	defer cancel()

	processed := b.clock.Now()
	batch.ProcessedAt = &processed

	sorted := slices.Clone(batch.Alerts)
	slices.SortStableFunc(sorted, func(x, y types.WeatherAlert) int {
		return cmp.Compare(y.Priority, x.Priority)
	})

	order, groups := groupByTreatment(sorted)

	failures := 0
	for _, id := range order {
		if err := b.dispatcher.Dispatch(ctx, batch.ID, id, groups[id]); err != nil {
			failures++
			b.logger.ErrorContext(ctx, "alert dispatch failed",
				"batch_id", batch.ID,
				"treatment_id", id,
				"alerts", len(groups[id]),
				"error", err,
			)
		}
	}

	b.logger.InfoContext(ctx, "alert batch flushed",
		"batch_id", batch.ID,
		"alerts", len(sorted),
		"treatments", len(order),
		"priority", batch.Priority,
		"failures", failures,
		"age_ms", processed.Sub(batch.CreatedAt).Milliseconds(),
	)
	b.metrics.RecordBatchFlush(ctx, len(sorted), len(order), failures)
}

// groupByTreatment preserves the order in which each treatment first
// appears in alerts.
func groupByTreatment(alerts []types.WeatherAlert) ([]string, map[string][]types.WeatherAlert) {
	var order []string
	groups := make(map[string][]types.WeatherAlert)
	for _, a := range alerts {
		if _, seen := groups[a.TreatmentID]; !seen {
			order = append(order, a.TreatmentID)
		}
		groups[a.TreatmentID] = append(groups[a.TreatmentID], a)
	}
	return order, groups
}
