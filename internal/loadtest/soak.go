package loadtest

import (
	"context"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"
)

// PhaseSoak names the single soak phase.
const PhaseSoak = "Soak"

// SoakConfig defines parameters for soak testing.
type SoakConfig struct {
	TargetRPS     float64
	Duration      time.Duration
	ChunkInterval time.Duration // Traffic covered by each degradation row
}

// DefaultSoakConfig returns the defaults for soak testing.
func DefaultSoakConfig() SoakConfig {
	return SoakConfig{
		TargetRPS:     5,
		Duration:      10 * time.Minute,
		ChunkInterval: time.Minute,
	}
}

// Validate rejects soak runs that cannot produce load.
func (c SoakConfig) Validate() error {
	if c.TargetRPS <= 0 {
		return invalidf("target rate must be positive, got %g", c.TargetRPS)
	}
	if c.Duration <= 0 {
		return invalidf("duration must be positive, got %s", c.Duration)
	}
	if c.ChunkInterval <= 0 {
		return invalidf("chunk interval must be positive, got %s", c.ChunkInterval)
	}
	if math.Floor(c.TargetRPS*c.Duration.Seconds()) < 1 {
		return invalidf("duration %s too short to send a request at %g RPS", c.Duration, c.TargetRPS)
	}
	return nil
}

// ChunkSize is the number of outcomes per degradation row.
func (c SoakConfig) ChunkSize() int {
	size := int(math.Ceil(c.ChunkInterval.Seconds() * c.TargetRPS))
	if size < 1 {
		size = 1
	}
	return size
}

// DegradationRow summarises one chunk of a soak run.
type DegradationRow struct {
	Index   int
	Offset  time.Duration // Nominal start of the chunk relative to the run
	Summary Summary
}

// SoakResult captures a soak run and its degradation table.
type SoakResult struct {
	Config      SoakConfig
	Phase       PhaseResult
	Summary     Summary
	Chunks      []DegradationRow
	Interrupted bool
}

// ChunkOutcomes orders outcomes by dispatch time and splits them into
// consecutive chunks of size outcomes. The last chunk may be shorter.
func ChunkOutcomes(outcomes []Outcome, size int) [][]Outcome {
	if size <= 0 || len(outcomes) == 0 {
		return nil
	}
	ordered := slices.Clone(outcomes)
	slices.SortStableFunc(ordered, func(a, b Outcome) int {
		return a.DispatchedAt.Compare(b.DispatchedAt)
	})

	chunks := make([][]Outcome, 0, (len(ordered)+size-1)/size)
	for start := 0; start < len(ordered); start += size {
		end := min(start+size, len(ordered))
		chunks = append(chunks, ordered[start:end])
	}
	return chunks
}

// DegradationTable summarises each chunk of outcomes.
func DegradationTable(outcomes []Outcome, cfg SoakConfig) []DegradationRow {
	chunks := ChunkOutcomes(outcomes, cfg.ChunkSize())
	rows := make([]DegradationRow, 0, len(chunks))
	for i, chunk := range chunks {
		rows = append(rows, DegradationRow{
			Index:   i,
			Offset:  time.Duration(i) * cfg.ChunkInterval,
			Summary: Summarize(chunk),
		})
	}
	return rows
}

// Soak holds TargetRPS for Duration and then builds the degradation table.
// Cancelling ctx ends the run early; the table then covers only what was
// collected and no error is returned.
func (r *Runner) Soak(ctx context.Context, cfg SoakConfig) (*SoakResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	r.logger.Info("soak test starting",
		zap.Float64("target_rps", cfg.TargetRPS),
		zap.Duration("duration", cfg.Duration),
		zap.Duration("chunk_interval", cfg.ChunkInterval))

	phase, err := r.scheduler.withProgressInterval(30*time.Second).
		RunSustained(ctx, PhaseSoak, cfg.TargetRPS, cfg.Duration, r.concurrencyCap)
	if err != nil {
		return nil, err
	}

	result := &SoakResult{
		Config:      cfg,
		Phase:       phase,
		Summary:     phase.Summary(),
		Chunks:      DegradationTable(phase.Outcomes, cfg),
		Interrupted: phase.Interrupted,
	}

	r.logger.Info("soak test complete",
		zap.Bool("interrupted", result.Interrupted),
		zap.Int("chunks", len(result.Chunks)),
		zap.Float64("success_rate", result.Summary.SuccessRate))
	return result, nil
}
