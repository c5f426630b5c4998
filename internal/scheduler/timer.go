// Package scheduler provides the timer abstraction used by monitoring
// sessions and the alert batcher, plus cron-driven background jobs.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// CancelFunc stops a scheduled function. It is idempotent. Once it returns,
// no new invocation of the function will start; an invocation already
// running is allowed to finish.
type CancelFunc func()

// Scheduler arms recurring and one-shot timers.
type Scheduler interface {
	// Every runs fn every interval until cancelled. The first run happens
	// one interval from now.
	Every(interval time.Duration, fn func()) CancelFunc
	// After runs fn once after delay unless cancelled first.
	After(delay time.Duration, fn func()) CancelFunc
}

// TickerScheduler is the production Scheduler backed by the runtime timers.
type TickerScheduler struct{}

// NewTickerScheduler returns a Scheduler using real time.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

func (TickerScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var stopped atomic.Bool

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if stopped.Load() {
					return
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			close(done)
		})
	}
}

func (TickerScheduler) After(delay time.Duration, fn func()) CancelFunc {
	var stopped atomic.Bool
	t := time.AfterFunc(delay, func() {
		if stopped.Load() {
			return
		}
		fn()
	})
	return func() {
		stopped.Store(true)
		t.Stop()
	}
}
