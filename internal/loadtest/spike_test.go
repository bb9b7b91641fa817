package loadtest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func isInvalid(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

func TestDefaultSpikeConfig(t *testing.T) {
	cfg := DefaultSpikeConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.SpikeRPS <= cfg.BaselineRPS {
		t.Error("expected SpikeRPS > BaselineRPS")
	}
	if cfg.BaselinePeriod != 30*time.Second || cfg.RecoveryPeriod != 30*time.Second {
		t.Error("expected 30s baseline and recovery periods")
	}
}

func TestSpike_ThreeSequentialPhases(t *testing.T) {
	prober := &stubProber{answer: func(info PhaseInfo) Outcome {
		if info.Name == PhaseSpike {
			return okOutcome(900 * time.Millisecond)
		}
		return okOutcome(100 * time.Millisecond)
	}}
	runner := newTestRunner(prober, newFakeClock())

	cfg := SpikeConfig{
		BaselineRPS:    2,
		SpikeRPS:       20,
		SpikeDuration:  5 * time.Second,
		BaselinePeriod: 10 * time.Second,
		RecoveryPeriod: 10 * time.Second,
	}
	result, err := runner.Spike(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	phases := result.Phases()
	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}
	want := []struct {
		name  string
		count int
	}{
		{PhaseBaseline, 20},
		{PhaseSpike, 100},
		{PhaseRecovery, 20},
	}
	for i, w := range want {
		if phases[i].Name != w.name {
			t.Errorf("phase %d: expected %s, got %s", i, w.name, phases[i].Name)
		}
		if len(phases[i].Outcomes) != w.count {
			t.Errorf("phase %s: expected %d outcomes, got %d", w.name, w.count, len(phases[i].Outcomes))
		}
	}

	// Phases never overlap.
	if phases[1].StartTime.Before(phases[0].EndTime) || phases[2].StartTime.Before(phases[1].EndTime) {
		t.Error("phases overlap")
	}

	if !result.Comparison.Recovered {
		t.Error("expected recovery back to baseline")
	}
	if len(result.Comparison.DuringSpike) == 0 || result.Comparison.DuringSpike[0].DeltaPct <= 0 {
		t.Error("expected spike latency above baseline")
	}
	if result.Interrupted {
		t.Error("unexpected interruption")
	}
}

func TestSpike_NotRecovered(t *testing.T) {
	prober := &stubProber{answer: func(info PhaseInfo) Outcome {
		if info.Name == PhaseBaseline {
			return okOutcome(100 * time.Millisecond)
		}
		return failedOutcome("HTTP 500")
	}}
	runner := newTestRunner(prober, newFakeClock())

	result, err := runner.Spike(context.Background(), SpikeConfig{
		BaselineRPS: 2, SpikeRPS: 10, SpikeDuration: time.Second,
		BaselinePeriod: 5 * time.Second, RecoveryPeriod: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Comparison.Recovered {
		t.Error("expected no recovery when recovery phase fails")
	}
	if s := result.Recovery.Summary(); s.SuccessRate != 0 {
		t.Errorf("expected 0%% recovery success, got %g", s.SuccessRate)
	}
}

func TestSpike_InterruptedSkipsLaterPhases(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onAdvance = func(now time.Time) {
		if now.Sub(start) >= 12*time.Second {
			cancel()
		}
	}
	runner := newTestRunner(&stubProber{}, clock)

	result, err := runner.Spike(ctx, SpikeConfig{
		BaselineRPS: 2, SpikeRPS: 10, SpikeDuration: 10 * time.Second,
		BaselinePeriod: 10 * time.Second, RecoveryPeriod: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Interrupted {
		t.Fatal("expected interrupted result")
	}
	if len(result.Phases()) != 2 {
		t.Errorf("expected baseline and partial spike, got %d phases", len(result.Phases()))
	}
	if result.Recovery.Name != "" {
		t.Error("recovery must not run after an interruption")
	}
}

func TestSpike_InvalidConfig(t *testing.T) {
	valid := SpikeConfig{
		BaselineRPS: 2, SpikeRPS: 10, SpikeDuration: time.Second,
		BaselinePeriod: 5 * time.Second, RecoveryPeriod: 5 * time.Second,
	}
	tests := []struct {
		name   string
		mutate func(*SpikeConfig)
	}{
		{"zero baseline rate", func(c *SpikeConfig) { c.BaselineRPS = 0 }},
		{"zero spike duration", func(c *SpikeConfig) { c.SpikeDuration = 0 }},
		{"baseline plans no requests", func(c *SpikeConfig) { c.BaselinePeriod = 100 * time.Millisecond }},
		{"spike plans no requests", func(c *SpikeConfig) { c.SpikeRPS = 0.5 }},
		{"recovery plans no requests", func(c *SpikeConfig) { c.RecoveryPeriod = 400 * time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			prober := &stubProber{}
			runner := newTestRunner(prober, newFakeClock())

			_, err := runner.Spike(context.Background(), cfg)
			if !isInvalid(err) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
			if prober.calls.Load() != 0 {
				t.Error("no load should be generated")
			}
		})
	}
}
