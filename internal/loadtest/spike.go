package loadtest

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Spike phase names.
const (
	PhaseBaseline = "Baseline"
	PhaseSpike    = "Spike"
	PhaseRecovery = "Recovery"
)

// SpikeConfig defines parameters for spike testing.
type SpikeConfig struct {
	BaselineRPS    float64       // Normal traffic level, also used for recovery
	SpikeRPS       float64       // Traffic during the spike
	SpikeDuration  time.Duration // How long the spike lasts
	BaselinePeriod time.Duration // Duration at baseline before the spike
	RecoveryPeriod time.Duration // Duration to monitor after the spike
}

// DefaultSpikeConfig returns the defaults for spike testing.
func DefaultSpikeConfig() SpikeConfig {
	return SpikeConfig{
		BaselineRPS:    2,
		SpikeRPS:       20,
		SpikeDuration:  30 * time.Second,
		BaselinePeriod: 30 * time.Second,
		RecoveryPeriod: 30 * time.Second,
	}
}

// Validate rejects configurations that cannot produce load.
func (c SpikeConfig) Validate() error {
	if c.BaselineRPS <= 0 {
		return invalidf("baseline rate must be positive, got %g", c.BaselineRPS)
	}
	if c.SpikeRPS <= 0 {
		return invalidf("spike rate must be positive, got %g", c.SpikeRPS)
	}
	if c.SpikeDuration <= 0 || c.BaselinePeriod <= 0 || c.RecoveryPeriod <= 0 {
		return invalidf("spike durations must be positive")
	}
	for _, p := range []struct {
		name     string
		rate     float64
		duration time.Duration
	}{
		{PhaseBaseline, c.BaselineRPS, c.BaselinePeriod},
		{PhaseSpike, c.SpikeRPS, c.SpikeDuration},
		{PhaseRecovery, c.BaselineRPS, c.RecoveryPeriod},
	} {
		if math.Floor(p.rate*p.duration.Seconds()) < 1 {
			return invalidf("%s phase of %s too short to send a request at %g RPS", p.name, p.duration, p.rate)
		}
	}
	return nil
}

// SpikeResult holds the three phases of a spike run. Phases that never ran
// because of cancellation are left zero.
type SpikeResult struct {
	Config      SpikeConfig
	Baseline    PhaseResult
	Spike       PhaseResult
	Recovery    PhaseResult
	Comparison  SpikeComparison
	Interrupted bool
	StartTime   time.Time
	EndTime     time.Time
}

// Phases returns the phases that ran, in order.
func (r *SpikeResult) Phases() []PhaseResult {
	var phases []PhaseResult
	for _, p := range []PhaseResult{r.Baseline, r.Spike, r.Recovery} {
		if p.Name != "" {
			phases = append(phases, p)
		}
	}
	return phases
}

// Spike runs Baseline, Spike and Recovery back to back. Each phase owns its
// own worker pool and finishes before the next begins.
func (r *Runner) Spike(ctx context.Context, cfg SpikeConfig) (*SpikeResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	r.logger.Info("spike test starting",
		zap.Float64("baseline_rps", cfg.BaselineRPS),
		zap.Float64("spike_rps", cfg.SpikeRPS),
		zap.Duration("spike_duration", cfg.SpikeDuration))

	result := &SpikeResult{Config: cfg, StartTime: r.scheduler.clock.Now()}
	plan := []struct {
		name     string
		rate     float64
		duration time.Duration
		into     *PhaseResult
	}{
		{PhaseBaseline, cfg.BaselineRPS, cfg.BaselinePeriod, &result.Baseline},
		{PhaseSpike, cfg.SpikeRPS, cfg.SpikeDuration, &result.Spike},
		{PhaseRecovery, cfg.BaselineRPS, cfg.RecoveryPeriod, &result.Recovery},
	}

	for _, step := range plan {
		phase, err := r.scheduler.RunSustained(ctx, step.name, step.rate, step.duration, r.concurrencyCap)
		if err != nil {
			return nil, err
		}
		*step.into = phase
		if phase.Interrupted {
			result.Interrupted = true
			break
		}
	}

	result.EndTime = r.scheduler.clock.Now()
	result.Comparison = CompareSpike(result.Baseline.Summary(), result.Spike.Summary(), result.Recovery.Summary())

	r.logger.Info("spike test complete",
		zap.Bool("interrupted", result.Interrupted),
		zap.Bool("recovered", result.Comparison.Recovered))
	return result, nil
}
