package loadtest

import (
	"context"
	"testing"
	"time"
)

func TestDefaultSoakConfig(t *testing.T) {
	cfg := DefaultSoakConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.ChunkInterval != time.Minute {
		t.Errorf("expected 60s chunks, got %s", cfg.ChunkInterval)
	}
	if cfg.ChunkSize() != 300 {
		t.Errorf("expected chunk size 300 at 5 RPS, got %d", cfg.ChunkSize())
	}
}

func TestSoak_TwoChunks(t *testing.T) {
	runner := newTestRunner(&stubProber{}, newFakeClock())

	result, err := runner.Soak(context.Background(), SoakConfig{
		TargetRPS:     2,
		Duration:      120 * time.Second,
		ChunkInterval: 60 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(result.Chunks); n < 1 || n > 3 {
		t.Fatalf("expected 2 (+/-1) chunks, got %d", n)
	}
	if len(result.Chunks) != 2 {
		t.Errorf("expected exactly 2 chunks for 240 outcomes, got %d", len(result.Chunks))
	}
	for i, row := range result.Chunks {
		if row.Index != i {
			t.Errorf("chunk %d has index %d", i, row.Index)
		}
		if row.Summary.Successful+row.Summary.Failed != row.Summary.Total {
			t.Errorf("chunk %d summary does not add up", i)
		}
		if row.Summary.Total != 120 {
			t.Errorf("chunk %d: expected 120 outcomes, got %d", i, row.Summary.Total)
		}
	}
	if result.Chunks[1].Offset != time.Minute {
		t.Errorf("expected second chunk at 1m, got %s", result.Chunks[1].Offset)
	}
	if result.Summary.Total != 240 {
		t.Errorf("expected 240 outcomes overall, got %d", result.Summary.Total)
	}
}

func TestSoak_CancelledHalfway(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onAdvance = func(now time.Time) {
		if now.Sub(start) >= 60*time.Second {
			cancel()
		}
	}
	runner := newTestRunner(&stubProber{}, clock)

	cfg := SoakConfig{TargetRPS: 2, Duration: 120 * time.Second, ChunkInterval: 30 * time.Second}
	result, err := runner.Soak(ctx, cfg)
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}

	if !result.Interrupted {
		t.Error("expected interrupted result")
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected a non-empty degradation table")
	}
	// At most everything scheduled up to and including the 60s slot.
	maxPossible := int(60*cfg.TargetRPS) + 1
	if result.Summary.Total > maxPossible {
		t.Errorf("collected %d outcomes, more than the %d dispatchable by then", result.Summary.Total, maxPossible)
	}
	for _, row := range result.Chunks {
		if row.Summary.Total == 0 {
			t.Error("empty chunk in table")
		}
		if row.Offset >= 60*time.Second {
			t.Errorf("chunk at %s covers time after the interruption", row.Offset)
		}
	}
}

func TestChunkOutcomes_OrdersByDispatch(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(sec int, lat time.Duration) Outcome {
		o := okOutcome(lat)
		o.DispatchedAt = base.Add(time.Duration(sec) * time.Second)
		return o
	}
	// Completion order differs from dispatch order.
	outcomes := []Outcome{mk(2, 3), mk(0, 1), mk(3, 4), mk(1, 2), mk(4, 5)}

	chunks := ChunkOutcomes(outcomes, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0][0].Latency != 1 || chunks[0][1].Latency != 2 {
		t.Error("first chunk should hold the two earliest dispatches")
	}
	if len(chunks[2]) != 1 || chunks[2][0].Latency != 5 {
		t.Error("last chunk should hold the final dispatch alone")
	}
	if outcomes[0].Latency != 3 {
		t.Error("input slice must not be reordered")
	}
}

func TestChunkOutcomes_Empty(t *testing.T) {
	if ChunkOutcomes(nil, 10) != nil {
		t.Error("expected nil for no outcomes")
	}
	if ChunkOutcomes([]Outcome{okOutcome(1)}, 0) != nil {
		t.Error("expected nil for non-positive size")
	}
}

func TestSoak_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  SoakConfig
	}{
		{"missing chunk interval", SoakConfig{TargetRPS: 2, Duration: time.Minute}},
		{"zero rate", SoakConfig{Duration: time.Minute, ChunkInterval: time.Second}},
		{"plans no requests", SoakConfig{TargetRPS: 0.001, Duration: 10 * time.Minute, ChunkInterval: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &stubProber{}
			runner := newTestRunner(prober, newFakeClock())

			_, err := runner.Soak(context.Background(), tt.cfg)
			if !isInvalid(err) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
			if prober.calls.Load() != 0 {
				t.Error("no load should be generated")
			}
		})
	}
}
