package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lawnwatch/internal/types"
)

// TreatmentSource lists scheduled treatments. The Postgres treatment
// repository implements it.
type TreatmentSource interface {
	ListUpcoming(ctx context.Context, from, to time.Time) ([]types.ScheduledTreatment, error)
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	Started int `json:"started"`
	Stopped int `json:"stopped"`
	Failed  int `json:"failed"`
}

// SyncTreatments reconciles sessions with the treatment schedule. Upcoming
// treatments within horizon that are not monitored, or whose date or
// location changed, get a session with the default config. Sessions created
// by a previous sync whose treatment is no longer upcoming are stopped.
// Sessions started directly through StartMonitoring are left alone.
func (m *Manager) SyncTreatments(ctx context.Context, source TreatmentSource, horizon time.Duration, concurrency int) (SyncResult, error) {
	now := m.clock.Now()
	upcoming, err := source.ListUpcoming(ctx, now, now.Add(horizon))
	if err != nil {
		return SyncResult{}, fmt.Errorf("monitor: list upcoming treatments: %w", err)
	}

	wanted := make(map[string]types.ScheduledTreatment, len(upcoming))
	for _, t := range upcoming {
		wanted[t.ID] = t
	}

	var toStart []types.ScheduledTreatment
	var toStop []string

	m.mu.Lock()
	for _, t := range upcoming {
		s, ok := m.sessions[t.ID]
		if !ok || !s.info.ScheduledDate.Equal(t.ScheduledDate) || s.info.Location != t.Location {
			toStart = append(toStart, t)
		}
	}
	for id, s := range m.sessions {
		if _, ok := wanted[id]; !ok && s.origin == originSync {
			toStop = append(toStop, id)
		}
	}
	m.mu.Unlock()

	var result SyncResult
	for _, id := range toStop {
		m.StopMonitoring(ctx, id)
		result.Stopped++
	}

	if concurrency <= 0 {
		concurrency = 4
	}
	var started, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, t := range toStart {
		g.Go(func() error {
			err := m.start(gctx, StartRequest{
				TreatmentID:   t.ID,
				TreatmentType: t.TreatmentType,
				Location:      t.Location,
				ScheduledDate: t.ScheduledDate,
			}, originSync)
			if err != nil {
				failed.Add(1)
				m.logger.WarnContext(gctx, "treatment sync could not start monitoring",
					"treatment_id", t.ID,
					"treatment_type", string(t.TreatmentType),
					"error", err,
				)
				return nil
			}
			started.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result.Started = int(started.Load())
	result.Failed = int(failed.Load())

	m.logger.InfoContext(ctx, "treatment sync completed",
		"upcoming", len(upcoming),
		"started", result.Started,
		"stopped", result.Stopped,
		"failed", result.Failed,
	)
	return result, nil
}
