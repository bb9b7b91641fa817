package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeClock advances instantly whenever something waits on it.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	onAdvance func(now time.Time)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	hook := c.onAdvance
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// stubProber answers from a function of the phase and counts calls.
type stubProber struct {
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	hold     time.Duration
	answer   func(info PhaseInfo) Outcome
}

func (p *stubProber) Probe(ctx context.Context) Outcome {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	defer p.inFlight.Add(-1)

	if p.hold > 0 {
		time.Sleep(p.hold)
	}
	info, _ := PhaseFromContext(ctx)
	if p.answer != nil {
		return p.answer(info)
	}
	return okOutcome(100 * time.Millisecond)
}

func okOutcome(latency time.Duration) Outcome {
	return Outcome{Success: true, Latency: latency, Tokens: 10, StatusCode: 200, Timestamp: time.Now()}
}

func failedOutcome(msg string) Outcome {
	return Outcome{Success: false, Error: msg, StatusCode: 503, Timestamp: time.Now()}
}

func newTestRunner(p Prober, clock Clock, opts ...RunnerOption) *Runner {
	sched := NewScheduler(p, WithClock(clock))
	return NewRunner(sched, nil, opts...)
}
