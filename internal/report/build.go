package report

import (
	"time"

	"github.com/FairForge/inferload/internal/loadtest"
)

// FromSummary converts a loadtest.Summary, rendering latencies in seconds.
func FromSummary(s loadtest.Summary) Summary {
	return Summary{
		Total:          s.Total,
		Successful:     s.Successful,
		Failed:         s.Failed,
		SuccessRate:    s.SuccessRate,
		AvgLatency:     s.AvgLatency.Seconds(),
		MedianLatency:  s.MedianLatency.Seconds(),
		P95Latency:     s.P95Latency.Seconds(),
		P99Latency:     s.P99Latency.Seconds(),
		MinLatency:     s.MinLatency.Seconds(),
		MaxLatency:     s.MaxLatency.Seconds(),
		TotalTokens:    s.TotalTokens,
		P95Approximate: s.P95Approximate,
		P99Approximate: s.P99Approximate,
	}
}

// FromPhase converts a phase and all of its outcomes.
func FromPhase(p loadtest.PhaseResult) PhaseReport {
	pr := PhaseReport{
		Name:            p.Name,
		TargetRPS:       p.TargetRPS,
		DurationSeconds: p.Duration.Seconds(),
		Planned:         p.Planned,
		Dispatched:      p.Dispatched,
		Interrupted:     p.Interrupted,
		PoolSize:        p.PoolSize,
		ThroughputRPS:   p.Throughput(),
		TokensPerSecond: p.TokensPerSecond(),
		Summary:         FromSummary(p.Summary()),
	}
	if len(p.Outcomes) > 0 {
		pr.Outcomes = make([]OutcomeRecord, len(p.Outcomes))
		for i, o := range p.Outcomes {
			pr.Outcomes[i] = fromOutcome(p.Name, o)
		}
	}
	return pr
}

func fromOutcome(phase string, o loadtest.Outcome) OutcomeRecord {
	return OutcomeRecord{
		Phase:                phase,
		Success:              o.Success,
		Latency:              o.Latency.Seconds(),
		Tokens:               o.Tokens,
		Error:                o.Error,
		StatusCode:           o.StatusCode,
		ServerLatencySeconds: o.ServerLatency.Seconds(),
		Timestamp:            o.Timestamp.UTC(),
		DispatchedAt:         o.DispatchedAt.UTC(),
		RequestID:            o.RequestID,
	}
}

func fromPhases(phases []loadtest.PhaseResult) []PhaseReport {
	out := make([]PhaseReport, 0, len(phases))
	for _, p := range phases {
		out = append(out, FromPhase(p))
	}
	return out
}

func fromCaveats(caveats []loadtest.Caveat) []CaveatReport {
	out := make([]CaveatReport, 0, len(caveats))
	for _, c := range caveats {
		out = append(out, CaveatReport{
			Kind:     string(c.Kind),
			Severity: string(c.Severity),
			Phase:    c.Phase,
			Message:  c.Message,
		})
	}
	return out
}

func fromDifferences(diffs []loadtest.Difference) []Difference {
	out := make([]Difference, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, Difference(d))
	}
	return out
}

func overall(phases []loadtest.PhaseResult) *Summary {
	var all []loadtest.Outcome
	for _, p := range phases {
		all = append(all, p.Outcomes...)
	}
	if len(all) == 0 {
		return nil
	}
	s := FromSummary(loadtest.Summarize(all))
	return &s
}

func status(interrupted bool) string {
	if interrupted {
		return "interrupted"
	}
	return "completed"
}

// FromSpike builds the spike scenario section.
func FromSpike(r *loadtest.SpikeResult, concurrencyCap int) *ScenarioReport {
	phases := r.Phases()
	sr := &ScenarioReport{
		TestType: string(loadtest.TestTypeSpike),
		Status:   status(r.Interrupted),
		Parameters: map[string]any{
			"baseline_rps":           r.Config.BaselineRPS,
			"spike_rps":              r.Config.SpikeRPS,
			"spike_duration_seconds": r.Config.SpikeDuration.Seconds(),
			"baseline_period":        r.Config.BaselinePeriod.Seconds(),
			"recovery_period":        r.Config.RecoveryPeriod.Seconds(),
		},
		Overall: overall(phases),
		Phases:  fromPhases(phases),
		Chunks:  []ChunkReport{},
		Caveats: fromCaveats(loadtest.Caveats(phases, concurrencyCap)),
	}
	if len(phases) == 3 {
		sr.Comparison = &Comparison{
			DuringSpike: fromDifferences(r.Comparison.DuringSpike),
			AfterSpike:  fromDifferences(r.Comparison.AfterSpike),
			Recovered:   r.Comparison.Recovered,
		}
	}
	return sr
}

// FromStress builds the stress scenario section.
func FromStress(r *loadtest.StressResult, concurrencyCap int) *ScenarioReport {
	phases := r.Phases()
	sr := &ScenarioReport{
		TestType:      string(loadtest.TestTypeStress),
		Status:        string(r.Status),
		BreakingPoint: r.BreakingPoint,
		Parameters: map[string]any{
			"start_rps":             r.Config.StartRPS,
			"max_rps":               r.Config.MaxRPS,
			"step":                  r.Config.Step,
			"step_duration_seconds": r.Config.StepDuration.Seconds(),
			"min_success_rate":      r.Criteria.MinSuccessRate,
			"max_avg_latency":       r.Criteria.MaxAvgLatency.Seconds(),
		},
		Overall: overall(phases),
		Phases:  fromPhases(phases),
		Chunks:  []ChunkReport{},
		Caveats: fromCaveats(loadtest.Caveats(phases, concurrencyCap)),
	}
	if len(r.Steps) > 0 {
		maxTested := r.MaxTested
		sr.MaxTested = &maxTested
	}
	return sr
}

// FromSoak builds the soak scenario section including its degradation table.
func FromSoak(r *loadtest.SoakResult, concurrencyCap int) *ScenarioReport {
	phases := []loadtest.PhaseResult{r.Phase}
	sr := &ScenarioReport{
		TestType: string(loadtest.TestTypeSoak),
		Status:   status(r.Interrupted),
		Parameters: map[string]any{
			"target_rps":             r.Config.TargetRPS,
			"duration_seconds":       r.Config.Duration.Seconds(),
			"chunk_interval_seconds": r.Config.ChunkInterval.Seconds(),
			"chunk_size":             r.Config.ChunkSize(),
		},
		Overall: overall(phases),
		Phases:  fromPhases(phases),
		Chunks:  make([]ChunkReport, 0, len(r.Chunks)),
		Caveats: fromCaveats(loadtest.Caveats(phases, concurrencyCap)),
	}
	for _, row := range r.Chunks {
		sr.Chunks = append(sr.Chunks, ChunkReport{
			Index:         row.Index,
			OffsetSeconds: row.Offset.Seconds(),
			Summary:       FromSummary(row.Summary),
		})
	}
	return sr
}

// FromBurst builds the burst scenario section.
func FromBurst(r *loadtest.BurstResult, concurrencyCap int) *ScenarioReport {
	stages := make([]map[string]any, 0, len(r.Config.Stages))
	for _, st := range r.Config.Stages {
		stages = append(stages, map[string]any{
			"name":        st.Name,
			"requests":    st.Requests,
			"concurrency": st.Concurrency,
		})
	}
	return &ScenarioReport{
		TestType: string(loadtest.TestTypeBurst),
		Status:   status(r.Interrupted),
		Parameters: map[string]any{
			"stages":        stages,
			"pause_seconds": r.Config.Pause.Seconds(),
		},
		Overall: overall(r.Stages),
		Phases:  fromPhases(r.Stages),
		Chunks:  []ChunkReport{},
		Caveats: fromCaveats(loadtest.Caveats(r.Stages, concurrencyCap)),
	}
}

// seconds converts a float second count back into a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
