package loadtest

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Prober sends one timed request to the target. Implementations must absorb
// every transport and protocol error into the returned Outcome.
type Prober interface {
	Probe(ctx context.Context) Outcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) Outcome

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) Outcome {
	return f(ctx)
}

// Recorder observes probes as they run. Calls arrive concurrently from pool
// workers.
type Recorder interface {
	PhaseStarted(phase string, targetRPS float64)
	ProbeStarted(phase string)
	ProbeFinished(phase string, o Outcome)
}

// PhaseInfo identifies the phase a probe belongs to.
type PhaseInfo struct {
	Name      string
	TargetRPS float64
}

type phaseKey struct{}

// WithPhase returns a context carrying info.
func WithPhase(ctx context.Context, info PhaseInfo) context.Context {
	return context.WithValue(ctx, phaseKey{}, info)
}

// PhaseFromContext returns the phase attached by the scheduler, if any.
func PhaseFromContext(ctx context.Context) (PhaseInfo, bool) {
	info, ok := ctx.Value(phaseKey{}).(PhaseInfo)
	return info, ok
}

// Scheduler runs open-loop sustained load against a Prober.
type Scheduler struct {
	prober        Prober
	clock         Clock
	logger        *zap.Logger
	recorder      Recorder
	progressEvery time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRecorder attaches a probe observer such as Prometheus metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithProgressInterval sets how often dispatch progress is logged.
func WithProgressInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.progressEvery = d }
}

// NewScheduler creates a scheduler that drives p.
func NewScheduler(p Prober, opts ...Option) *Scheduler {
	s := &Scheduler{
		prober:        p,
		clock:         RealClock(),
		logger:        zap.NewNop(),
		progressEvery: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

func (s *Scheduler) withProgressInterval(d time.Duration) *Scheduler {
	cp := *s
	cp.progressEvery = d
	return &cp
}

// RunSustained dispatches floor(rate*duration) probes, request i at
// start + i/rate, on a pool of min(2*rate, concurrencyCap) workers, and
// returns once every dispatched probe has completed.
//
// Cancelling ctx stops further dispatches. Probes already in flight run to
// completion, and the truncated result is returned with Interrupted set and
// a nil error.
func (s *Scheduler) RunSustained(ctx context.Context, phase string, rate float64, duration time.Duration, concurrencyCap int) (PhaseResult, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return PhaseResult{}, invalidf("rate must be positive, got %g", rate)
	}
	if duration <= 0 {
		return PhaseResult{}, invalidf("duration must be positive, got %s", duration)
	}
	if concurrencyCap <= 0 {
		return PhaseResult{}, invalidf("concurrency cap must be positive, got %d", concurrencyCap)
	}

	planned := math.Floor(rate * duration.Seconds())
	if planned >= float64(math.MaxInt) {
		return PhaseResult{}, invalidf("%g RPS for %s plans more requests than can be counted", rate, duration)
	}
	total := int(planned)
	size := PoolSize(rate, concurrencyCap)
	result := PhaseResult{
		Name:      phase,
		TargetRPS: rate,
		Duration:  duration,
		Planned:   total,
		PoolSize:  size,
	}

	log := s.logger.With(zap.String("phase", phase), zap.Float64("target_rps", rate))
	if 2*rate > float64(concurrencyCap) {
		log.Warn("worker pool capped below 2x target rate, queueing may inflate latency",
			zap.Int("pool_size", size),
			zap.Int("concurrency_cap", concurrencyCap))
	}
	log.Info("phase starting",
		zap.Duration("duration", duration),
		zap.Int("planned", total),
		zap.Int("pool_size", size))

	if s.recorder != nil {
		s.recorder.PhaseStarted(phase, rate)
	}

	// In-flight probes must not be aborted by operator cancellation.
	probeCtx := WithPhase(context.WithoutCancel(ctx), PhaseInfo{Name: phase, TargetRPS: rate})
	pool := startPool(size, func(j job) (Outcome, bool) {
		return s.probe(probeCtx, phase, j), true
	})

	start := s.clock.Now()
	result.StartTime = start
	interval := float64(time.Second) / rate
	nextProgress := start.Add(s.progressEvery)

	for i := 0; i < total; i++ {
		target := start.Add(time.Duration(float64(i) * interval))
		if !s.waitUntil(ctx, target) {
			result.Interrupted = true
			break
		}

		now := s.clock.Now()
		pool.submit(job{index: i, dispatchedAt: now})
		result.Dispatched++

		if s.progressEvery > 0 && !now.Before(nextProgress) {
			log.Info("dispatch progress",
				zap.Int("dispatched", result.Dispatched),
				zap.Int("planned", total),
				zap.Int("queued", pool.backlog()),
				zap.Duration("elapsed", now.Sub(start)))
			nextProgress = nextProgress.Add(s.progressEvery)
		}
	}

	result.Outcomes = pool.wait()
	result.EndTime = s.clock.Now()

	summary := result.Summary()
	fields := []zap.Field{
		zap.Int("dispatched", result.Dispatched),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Float64("success_rate", summary.SuccessRate),
		zap.Duration("avg_latency", summary.AvgLatency),
	}
	if result.Interrupted {
		log.Warn("phase interrupted", fields...)
	} else {
		log.Info("phase complete", fields...)
	}

	return result, nil
}

// waitUntil blocks until target or ctx is done. It reports false when the
// run should stop dispatching.
func (s *Scheduler) waitUntil(ctx context.Context, target time.Time) bool {
	if ctx.Err() != nil {
		return false
	}
	wait := target.Sub(s.clock.Now())
	if wait <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(wait):
		return ctx.Err() == nil
	}
}

func (s *Scheduler) probe(ctx context.Context, phase string, j job) Outcome {
	if s.recorder != nil {
		s.recorder.ProbeStarted(phase)
	}
	o := s.prober.Probe(ctx)
	o.DispatchedAt = j.dispatchedAt
	if s.recorder != nil {
		s.recorder.ProbeFinished(phase, o)
	}
	return o
}
