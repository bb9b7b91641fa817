package loadtest

import (
	"math"
	"slices"
	"time"
)

// Small-sample limits below which floor(n*p) collapses onto the maximum.
const (
	p95MinSamples = 20
	p99MinSamples = 100
)

// Summary aggregates a set of outcomes. It is a pure function of its input
// and can be recomputed at any time.
type Summary struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate float64 // Percent, 0-100

	// Latency figures cover successful outcomes only.
	AvgLatency    time.Duration
	MedianLatency time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration

	TotalTokens int

	// Set when there were too few samples for the percentile to be more
	// than an underestimate.
	P95Approximate bool
	P99Approximate bool
}

// Summarize computes a Summary. An empty input yields the zero Summary;
// callers should check Total before reading latency fields.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	s.Total = len(outcomes)
	if s.Total == 0 {
		return s
	}

	latencies := make([]time.Duration, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Success {
			s.Failed++
			continue
		}
		s.Successful++
		s.TotalTokens += o.Tokens
		latencies = append(latencies, o.Latency)
	}
	s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100

	n := len(latencies)
	if n == 0 {
		return s
	}
	slices.Sort(latencies)

	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	s.AvgLatency = total / time.Duration(n)
	s.MedianLatency = median(latencies)
	s.P95Latency = percentile(latencies, 0.95)
	s.P99Latency = percentile(latencies, 0.99)
	s.MinLatency = latencies[0]
	s.MaxLatency = latencies[n-1]
	s.P95Approximate = n < p95MinSamples
	s.P99Approximate = n < p99MinSamples

	return s
}

// percentile indexes sorted at floor(n*p), clamped to the last element.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func median(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
