package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a background task run on a cron schedule.
type Job func(ctx context.Context) error

// CronRunner runs named jobs on cron specs. Specs use the six-field form
// with seconds, or descriptors such as "@every 6h".
type CronRunner struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewCronRunner creates a runner. Each job invocation gets its own context
// bounded by timeout.
func NewCronRunner(timeout time.Duration, logger *slog.Logger) *CronRunner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronRunner{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		logger:  logger.With("component", "cron_runner"),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add registers job under spec.
func (r *CronRunner) Add(name, spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, r.wrap(name, job))
	if err != nil {
		return fmt.Errorf("scheduler: invalid spec %q for job %s: %w", spec, name, err)
	}
	r.logger.Info("cron job registered", "job", name, "spec", spec)
	return nil
}

func (r *CronRunner) wrap(name string, job Job) func() {
	return func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
		defer cancel()

		if err := job(ctx); err != nil {
			r.logger.ErrorContext(ctx, "cron job failed",
				"job", name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return
		}
		r.logger.DebugContext(ctx, "cron job completed",
			"job", name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Start begins running registered jobs in the background.
func (r *CronRunner) Start() {
	r.cron.Start()
}

// Stop prevents new runs, cancels in-flight job contexts and waits for
// them to return or for ctx to expire.
func (r *CronRunner) Stop(ctx context.Context) error {
	stopped := r.cron.Stop()
	r.cancel()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
