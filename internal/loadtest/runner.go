package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultConcurrencyCap bounds the per-phase worker pool.
const DefaultConcurrencyCap = 50

// HealthChecker verifies the target is reachable before load is generated.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Runner composes sustained runs into scenarios. Only one scenario may run
// at a time on a Runner.
type Runner struct {
	scheduler      *Scheduler
	logger         *zap.Logger
	concurrencyCap int
	criteria       BreakCriteria

	mu      sync.Mutex
	running bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrencyCap overrides DefaultConcurrencyCap.
func WithConcurrencyCap(n int) RunnerOption {
	return func(r *Runner) { r.concurrencyCap = n }
}

// WithBreakCriteria overrides DefaultBreakCriteria for stress runs.
func WithBreakCriteria(c BreakCriteria) RunnerOption {
	return func(r *Runner) { r.criteria = c }
}

// NewRunner creates a scenario runner on top of s.
func NewRunner(s *Scheduler, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		scheduler:      s,
		logger:         logger,
		concurrencyCap: DefaultConcurrencyCap,
		criteria:       DefaultBreakCriteria(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConcurrencyCap returns the worker cap applied to every phase.
func (r *Runner) ConcurrencyCap() int {
	return r.concurrencyCap
}

// Preflight runs the health check once. Any failure is returned wrapped in
// ErrPreflight and no scenario should be started.
func (r *Runner) Preflight(ctx context.Context, hc HealthChecker) error {
	r.logger.Info("checking target health")
	if err := hc.CheckHealth(ctx); err != nil {
		r.logger.Error("target health check failed", zap.Error(err))
		if errors.Is(err, ErrPreflight) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	r.logger.Info("target is healthy")
	return nil
}

func (r *Runner) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	if r.concurrencyCap <= 0 {
		return invalidf("concurrency cap must be positive, got %d", r.concurrencyCap)
	}
	r.running = true
	return nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}
