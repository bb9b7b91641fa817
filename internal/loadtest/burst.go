package loadtest

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BurstStage is a closed-loop stage: Requests probes pushed through
// Concurrency workers, each sending its next probe as soon as the previous
// one returns.
type BurstStage struct {
	Name        string
	Requests    int
	Concurrency int
}

// BurstConfig lists the stages run in order.
type BurstConfig struct {
	Stages []BurstStage
	Pause  time.Duration // Idle time between stages
}

// DefaultBurstConfig returns the light, medium and heavy stages.
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		Stages: []BurstStage{
			{Name: "Light", Requests: 5, Concurrency: 1},
			{Name: "Medium", Requests: 10, Concurrency: 2},
			{Name: "Heavy", Requests: 15, Concurrency: 3},
		},
		Pause: 10 * time.Second,
	}
}

// Validate rejects empty or non-positive stages.
func (c BurstConfig) Validate() error {
	if len(c.Stages) == 0 {
		return invalidf("burst needs at least one stage")
	}
	for _, st := range c.Stages {
		if st.Requests <= 0 || st.Concurrency <= 0 {
			return invalidf("stage %q needs positive requests and concurrency", st.Name)
		}
	}
	if c.Pause < 0 {
		return invalidf("pause must not be negative, got %s", c.Pause)
	}
	return nil
}

// BurstResult holds one PhaseResult per stage that ran.
type BurstResult struct {
	Config      BurstConfig
	Stages      []PhaseResult
	Interrupted bool
}

// RunClosedLoop sends requests probes through concurrency workers. Queued
// probes are skipped once ctx is cancelled; probes already running finish.
func (s *Scheduler) RunClosedLoop(ctx context.Context, name string, requests, concurrency int) (PhaseResult, error) {
	if requests <= 0 || concurrency <= 0 {
		return PhaseResult{}, invalidf("closed-loop stage needs positive requests and concurrency")
	}

	result := PhaseResult{
		Name:     name,
		Planned:  requests,
		PoolSize: concurrency,
	}
	log := s.logger.With(zap.String("phase", name))
	log.Info("stage starting", zap.Int("requests", requests), zap.Int("concurrency", concurrency))

	if s.recorder != nil {
		s.recorder.PhaseStarted(name, 0)
	}

	probeCtx := WithPhase(context.WithoutCancel(ctx), PhaseInfo{Name: name})
	pool := startPool(concurrency, func(j job) (Outcome, bool) {
		if ctx.Err() != nil {
			return Outcome{}, false
		}
		j.dispatchedAt = s.clock.Now()
		return s.probe(probeCtx, name, j), true
	})

	result.StartTime = s.clock.Now()
	for i := 0; i < requests; i++ {
		pool.submit(job{index: i})
	}
	result.Outcomes = pool.wait()
	result.EndTime = s.clock.Now()
	result.Dispatched = len(result.Outcomes)
	result.Interrupted = result.Dispatched < requests

	summary := result.Summary()
	log.Info("stage complete",
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Float64("throughput_rps", result.Throughput()),
		zap.Bool("interrupted", result.Interrupted))
	return result, nil
}

// Burst runs each stage in order, pausing between stages.
func (r *Runner) Burst(ctx context.Context, cfg BurstConfig) (*BurstResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	result := &BurstResult{Config: cfg}
	clock := r.scheduler.clock

	for i, stage := range cfg.Stages {
		if i > 0 && cfg.Pause > 0 {
			select {
			case <-ctx.Done():
			case <-clock.After(cfg.Pause):
			}
		}
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		phase, err := r.scheduler.RunClosedLoop(ctx, stage.Name, stage.Requests, stage.Concurrency)
		if err != nil {
			return nil, err
		}
		result.Stages = append(result.Stages, phase)
		if phase.Interrupted {
			result.Interrupted = true
			break
		}
	}

	r.logger.Info("burst test complete",
		zap.Int("stages", len(result.Stages)),
		zap.Bool("interrupted", result.Interrupted))
	return result, nil
}
