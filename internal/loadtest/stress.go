package loadtest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// StressConfig defines parameters for stress testing.
type StressConfig struct {
	StartRPS     float64       // First rate tested
	MaxRPS       float64       // Highest rate that may be tested
	Step         float64       // RPS increase per step
	StepDuration time.Duration // How long each rate is held
}

// DefaultStressConfig returns the defaults for stress testing.
func DefaultStressConfig() StressConfig {
	return StressConfig{
		StartRPS:     1,
		MaxRPS:       50,
		Step:         5,
		StepDuration: 60 * time.Second,
	}
}

// Validate rejects ramps that cannot run.
func (c StressConfig) Validate() error {
	if c.StartRPS <= 0 {
		return invalidf("start rate must be positive, got %g", c.StartRPS)
	}
	if c.Step <= 0 {
		return invalidf("step must be positive, got %g", c.Step)
	}
	if c.MaxRPS < c.StartRPS {
		return invalidf("max rate %g below start rate %g", c.MaxRPS, c.StartRPS)
	}
	if c.StepDuration <= 0 {
		return invalidf("step duration must be positive, got %s", c.StepDuration)
	}
	if math.Floor(c.StartRPS*c.StepDuration.Seconds()) < 1 {
		return invalidf("step duration %s too short to send a request at %g RPS", c.StepDuration, c.StartRPS)
	}
	return nil
}

// StressStatus is the state of a stress ramp.
type StressStatus string

const (
	StressRamping     StressStatus = "ramping"
	StressBroken      StressStatus = "broken"      // A step violated the break criteria
	StressExhausted   StressStatus = "exhausted"   // MaxRPS passed without breaking
	StressInterrupted StressStatus = "interrupted" // Operator cancelled
)

// StressStep is one tested rate.
type StressStep struct {
	Phase   PhaseResult
	Summary Summary
	Broken  bool
	Reason  string
}

// StressResult captures a full ramp.
type StressResult struct {
	Config        StressConfig
	Criteria      BreakCriteria
	Status        StressStatus
	BreakingPoint *float64 // nil unless Status is StressBroken
	MaxTested     float64  // Last rate actually tested
	Steps         []StressStep
	StartTime     time.Time
	EndTime       time.Time
}

// Phases returns the phase of every tested step.
func (r *StressResult) Phases() []PhaseResult {
	phases := make([]PhaseResult, 0, len(r.Steps))
	for _, s := range r.Steps {
		phases = append(phases, s.Phase)
	}
	return phases
}

// stressPhaseName renders a rate the way phases are labelled, e.g. "25RPS".
func stressPhaseName(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64) + "RPS"
}

// Stress ramps from StartRPS by Step, holding each rate for StepDuration,
// until a step breaks or the next rate would exceed MaxRPS. Every rate is
// tested exactly once.
func (r *Runner) Stress(ctx context.Context, cfg StressConfig) (*StressResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.criteria.Validate(); err != nil {
		return nil, err
	}
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	r.logger.Info("stress test starting",
		zap.Float64("start_rps", cfg.StartRPS),
		zap.Float64("max_rps", cfg.MaxRPS),
		zap.Float64("step", cfg.Step),
		zap.Duration("step_duration", cfg.StepDuration))

	result := &StressResult{
		Config:    cfg,
		Criteria:  r.criteria,
		Status:    StressRamping,
		StartTime: r.scheduler.clock.Now(),
	}

	// Rates are derived from the step index so repeated addition cannot drift,
	// then rounded to a micro-RPS so phase names stay readable.
	const epsilon = 1e-9
	for k := 0; result.Status == StressRamping; k++ {
		rate := math.Round((cfg.StartRPS+float64(k)*cfg.Step)*1e6) / 1e6
		if rate > cfg.MaxRPS+epsilon {
			result.Status = StressExhausted
			break
		}
		if ctx.Err() != nil {
			result.Status = StressInterrupted
			break
		}

		phase, err := r.scheduler.RunSustained(ctx, stressPhaseName(rate), rate, cfg.StepDuration, r.concurrencyCap)
		if err != nil {
			return nil, fmt.Errorf("stress step at %g RPS: %w", rate, err)
		}

		step := StressStep{Phase: phase, Summary: phase.Summary()}
		result.MaxTested = rate

		if phase.Interrupted {
			result.Steps = append(result.Steps, step)
			result.Status = StressInterrupted
			break
		}

		step.Broken, step.Reason = r.criteria.Evaluate(step.Summary)
		result.Steps = append(result.Steps, step)

		if step.Broken {
			bp := rate
			result.BreakingPoint = &bp
			result.Status = StressBroken
			r.logger.Warn("breaking point reached",
				zap.Float64("rps", rate),
				zap.String("reason", step.Reason))
		}
	}

	result.EndTime = r.scheduler.clock.Now()
	r.logger.Info("stress test complete",
		zap.String("status", string(result.Status)),
		zap.Float64("max_tested", result.MaxTested))
	return result, nil
}
