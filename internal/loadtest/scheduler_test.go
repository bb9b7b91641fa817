package loadtest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSustained_DispatchCount(t *testing.T) {
	clock := newFakeClock()
	prober := &stubProber{}
	sched := NewScheduler(prober, WithClock(clock))

	result, err := sched.RunSustained(context.Background(), "steady", 5, 4*time.Second, 50)
	require.NoError(t, err)

	assert.Equal(t, 20, result.Planned)
	assert.Equal(t, 20, result.Dispatched)
	assert.Len(t, result.Outcomes, 20)
	assert.Equal(t, int64(20), prober.calls.Load())
	assert.Equal(t, 10, result.PoolSize)
	assert.False(t, result.Interrupted)
	assert.Equal(t, "steady", result.Name)
}

func TestRunSustained_DispatchSpacing(t *testing.T) {
	clock := newFakeClock()
	sched := NewScheduler(&stubProber{}, WithClock(clock))

	result, err := sched.RunSustained(context.Background(), "steady", 5, 4*time.Second, 50)
	require.NoError(t, err)

	times := make([]time.Time, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		times = append(times, o.DispatchedAt)
	}
	sortTimes(times)

	assert.Equal(t, result.StartTime, times[0])
	for i := 1; i < len(times); i++ {
		assert.Equal(t, 200*time.Millisecond, times[i].Sub(times[i-1]), "gap before request %d", i)
	}
}

func TestRunSustained_RealClockSpacing(t *testing.T) {
	if testing.Short() {
		t.Skip("uses real time")
	}
	sched := NewScheduler(ProberFunc(func(ctx context.Context) Outcome {
		return okOutcome(time.Millisecond)
	}))

	result, err := sched.RunSustained(context.Background(), "real", 50, 200*time.Millisecond, 50)
	require.NoError(t, err)
	require.Equal(t, 10, result.Dispatched)

	times := make([]time.Time, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		times = append(times, o.DispatchedAt)
	}
	sortTimes(times)

	const tolerance = 10 * time.Millisecond
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, 20*time.Millisecond-tolerance, "gap before request %d", i)
	}
	// Pacing is anchored to the start instant, so the last dispatch lands near 9/rate.
	assert.InDelta(t, float64(180*time.Millisecond), float64(times[len(times)-1].Sub(result.StartTime)), float64(3*tolerance))
}

func TestRunSustained_InvalidConfiguration(t *testing.T) {
	sched := NewScheduler(&stubProber{}, WithClock(newFakeClock()))

	tests := []struct {
		name     string
		rate     float64
		duration time.Duration
		cap      int
	}{
		{"zero rate", 0, time.Second, 10},
		{"negative rate", -1, time.Second, 10},
		{"zero duration", 5, 0, 10},
		{"zero cap", 5, time.Second, 0},
		{"uncountable plan", 1e300, time.Hour, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sched.RunSustained(context.Background(), "bad", tt.rate, tt.duration, tt.cap)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestRunSustained_ConcurrencyCapBoundsWorkers(t *testing.T) {
	prober := &stubProber{hold: 20 * time.Millisecond}
	sched := NewScheduler(prober, WithClock(newFakeClock()))

	result, err := sched.RunSustained(context.Background(), "capped", 10, 3*time.Second, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, result.PoolSize)
	assert.Len(t, result.Outcomes, 30)
	assert.LessOrEqual(t, prober.maxSeen.Load(), int64(3))
}

func TestRunSustained_Cancellation(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onAdvance = func(now time.Time) {
		if now.Sub(start) >= 5*time.Second {
			cancel()
		}
	}

	var mu sync.Mutex
	var probeErrs []error
	sched := NewScheduler(ProberFunc(func(ctx context.Context) Outcome {
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		probeErrs = append(probeErrs, ctx.Err())
		mu.Unlock()
		return okOutcome(2 * time.Millisecond)
	}), WithClock(clock))

	result, err := sched.RunSustained(ctx, "cancelled", 10, 10*time.Second, 50)
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.Equal(t, 100, result.Planned)
	assert.Equal(t, 50, result.Dispatched)
	assert.Len(t, result.Outcomes, result.Dispatched)
	for _, perr := range probeErrs {
		assert.NoError(t, perr, "in-flight probes must not see the cancellation")
	}
}

func TestRunSustained_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := &stubProber{}
	sched := NewScheduler(prober, WithClock(newFakeClock()))
	result, err := sched.RunSustained(ctx, "never", 5, time.Second, 10)
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.Zero(t, result.Dispatched)
	assert.Empty(t, result.Outcomes)
	assert.Zero(t, prober.calls.Load())
}

func TestRunSustained_HugePlanAllocatesNothingUpFront(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := NewScheduler(&stubProber{}, WithClock(newFakeClock()))
	result, err := sched.RunSustained(ctx, "huge", 1e12, time.Hour, 50)
	require.NoError(t, err)

	assert.Equal(t, 3_600_000_000_000_000, result.Planned)
	assert.True(t, result.Interrupted)
	assert.Zero(t, result.Dispatched)
	assert.Empty(t, result.Outcomes)
}

func TestWorkerPool_SubmitDoesNotWaitForWorkers(t *testing.T) {
	release := make(chan struct{})
	pool := startPool(1, func(j job) (Outcome, bool) {
		<-release
		return okOutcome(time.Millisecond), true
	})

	submitted := make(chan struct{})
	go func() {
		for i := range 100 {
			pool.submit(job{index: i})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("submit blocked on a busy worker")
	}
	assert.GreaterOrEqual(t, pool.backlog(), 99)

	close(release)
	outcomes := pool.wait()
	assert.Len(t, outcomes, 100)
	assert.Zero(t, pool.backlog())
}

func TestRunSustained_PhaseInContext(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]float64{}
	sched := NewScheduler(ProberFunc(func(ctx context.Context) Outcome {
		info, ok := PhaseFromContext(ctx)
		if ok {
			mu.Lock()
			seen[info.Name] = info.TargetRPS
			mu.Unlock()
		}
		return okOutcome(time.Millisecond)
	}), WithClock(newFakeClock()))

	_, err := sched.RunSustained(context.Background(), "40RPS", 40, time.Second, 50)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"40RPS": 40}, seen)
}

type recordingRecorder struct {
	mu       sync.Mutex
	phases   []string
	started  int
	finished int
	failed   int
}

func (r *recordingRecorder) PhaseStarted(phase string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recordingRecorder) ProbeStarted(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingRecorder) ProbeFinished(_ string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	if !o.Success {
		r.failed++
	}
}

func TestRunSustained_Recorder(t *testing.T) {
	rec := &recordingRecorder{}
	n := 0
	var mu sync.Mutex
	sched := NewScheduler(ProberFunc(func(ctx context.Context) Outcome {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n%2 == 0 {
			return failedOutcome("even")
		}
		return okOutcome(time.Millisecond)
	}), WithClock(newFakeClock()), WithRecorder(rec))

	_, err := sched.RunSustained(context.Background(), "rec", 4, time.Second, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"rec"}, rec.phases)
	assert.Equal(t, 4, rec.started)
	assert.Equal(t, 4, rec.finished)
	assert.Equal(t, 2, rec.failed)
}

func TestPoolSize(t *testing.T) {
	assert.Equal(t, 1, PoolSize(0.2, 50))
	assert.Equal(t, 3, PoolSize(1.5, 50))
	assert.Equal(t, 10, PoolSize(5, 50))
	assert.Equal(t, 50, PoolSize(30, 50))
	assert.Equal(t, 1, PoolSize(5, 1))
}

func TestErrorsWrapSentinel(t *testing.T) {
	err := invalidf("rate %d", 0)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), "rate 0")
}

func sortTimes(ts []time.Time) {
	slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })
}
