package loadtest

import (
	"fmt"
	"strings"
)

// Recovery tolerances relative to the baseline phase.
const (
	recoverySuccessTolerance = 5.0  // Percentage points
	recoveryLatencyTolerance = 25.0 // Percent of baseline average latency
)

// Difference captures the delta between a baseline value and another phase.
type Difference struct {
	Metric   string
	Baseline float64
	Current  float64
	DeltaAbs float64
	DeltaPct float64 // 0 when the baseline value is 0
}

// SpikeComparison describes how the target behaved during and after a spike
// relative to its baseline.
type SpikeComparison struct {
	DuringSpike []Difference
	AfterSpike  []Difference
	Recovered   bool
}

func newDifference(metric string, baseline, current float64) Difference {
	d := Difference{
		Metric:   metric,
		Baseline: baseline,
		Current:  current,
		DeltaAbs: current - baseline,
	}
	if baseline != 0 {
		d.DeltaPct = (current - baseline) / baseline * 100
	}
	return d
}

func compareSummaries(baseline, current Summary) []Difference {
	return []Difference{
		newDifference("avg_latency_seconds", baseline.AvgLatency.Seconds(), current.AvgLatency.Seconds()),
		newDifference("p95_latency_seconds", baseline.P95Latency.Seconds(), current.P95Latency.Seconds()),
		newDifference("success_rate", baseline.SuccessRate, current.SuccessRate),
	}
}

// CompareSpike compares the spike and recovery phases against the baseline.
// Recovered requires a recovery phase with traffic whose success rate is
// within 5 points of the baseline and whose average latency is within 25% of
// it.
func CompareSpike(baseline, spike, recovery Summary) SpikeComparison {
	c := SpikeComparison{
		DuringSpike: compareSummaries(baseline, spike),
		AfterSpike:  compareSummaries(baseline, recovery),
	}
	if baseline.Total == 0 || recovery.Total == 0 {
		return c
	}

	successOK := baseline.SuccessRate-recovery.SuccessRate <= recoverySuccessTolerance
	latencyOK := true
	if baseline.Successful > 0 && recovery.Successful > 0 {
		limit := baseline.AvgLatency.Seconds() * (1 + recoveryLatencyTolerance/100)
		latencyOK = recovery.AvgLatency.Seconds() <= limit
	} else if recovery.Successful == 0 {
		latencyOK = false
	}
	c.Recovered = successOK && latencyOK
	return c
}

// String renders the comparison as a short table.
func (c SpikeComparison) String() string {
	var sb strings.Builder
	write := func(title string, diffs []Difference) {
		sb.WriteString(title + "\n")
		for _, d := range diffs {
			sb.WriteString(fmt.Sprintf("  %-22s %10.3f -> %10.3f (%+.1f%%)\n", d.Metric, d.Baseline, d.Current, d.DeltaPct))
		}
	}
	write("Spike vs baseline:", c.DuringSpike)
	write("Recovery vs baseline:", c.AfterSpike)
	if c.Recovered {
		sb.WriteString("Target recovered to baseline\n")
	} else {
		sb.WriteString("Target did not recover to baseline\n")
	}
	return sb.String()
}
