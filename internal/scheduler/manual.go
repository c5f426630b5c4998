package scheduler

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a deterministic Scheduler and Clock for tests. Timers
// fire only when Advance moves the clock past their deadline.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*manualTimer
}

type manualTimer struct {
	id       int
	next     time.Time
	interval time.Duration // zero for one-shot timers
	fn       func()
}

// NewManualScheduler creates a ManualScheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		now:    start,
		timers: make(map[int]*manualTimer),
	}
}

// Now implements types.Clock.
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	return m.add(interval, interval, fn)
}

func (m *ManualScheduler) After(delay time.Duration, fn func()) CancelFunc {
	return m.add(delay, 0, fn)
}

func (m *ManualScheduler) add(delay, interval time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := m.seq
	m.timers[id] = &manualTimer{id: id, next: m.now.Add(delay), interval: interval, fn: fn}

	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// Pending returns the number of armed timers.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing every timer that comes due
// in deadline order. Functions run on the calling goroutine without the
// scheduler lock held, so they may schedule or cancel timers.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.next
		if t.interval > 0 {
			t.next = t.next.Add(t.interval)
		} else {
			delete(m.timers, t.id)
		}
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *ManualScheduler) nextDue(target time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}
