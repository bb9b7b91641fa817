package loadtest

import (
	"time"
)

// TestType names a scenario.
type TestType string

const (
	TestTypeSpike  TestType = "spike"  // Baseline, spike, recovery
	TestTypeStress TestType = "stress" // Ramp until the target breaks
	TestTypeSoak   TestType = "soak"   // Extended duration
	TestTypeBurst  TestType = "burst"  // Constant-concurrency stages
)

// Outcome captures a single probe against the target.
type Outcome struct {
	Success       bool
	Latency       time.Duration // Client-observed round trip
	Tokens        int           // tokens_generated reported by the target
	Error         string        // Empty on success
	Timestamp     time.Time     // Completion instant
	StatusCode    int           // 0 when the request never got a response
	ServerLatency time.Duration // latency_seconds reported by the target, if any
	DispatchedAt  time.Time     // Set by the scheduler
	RequestID     string
}

// PhaseResult holds every outcome of one contiguous run at a fixed target
// rate. Outcomes are in completion order.
type PhaseResult struct {
	Name        string
	TargetRPS   float64 // 0 for closed-loop burst stages
	Duration    time.Duration
	Planned     int
	Dispatched  int
	PoolSize    int
	Interrupted bool
	StartTime   time.Time
	EndTime     time.Time
	Outcomes    []Outcome
}

// Summary reduces the phase outcomes.
func (p PhaseResult) Summary() Summary {
	return Summarize(p.Outcomes)
}

// Elapsed is the wall time between the first dispatch slot and the final join.
func (p PhaseResult) Elapsed() time.Duration {
	if p.EndTime.Before(p.StartTime) {
		return 0
	}
	return p.EndTime.Sub(p.StartTime)
}

// Throughput returns successful requests per second of elapsed time.
func (p PhaseResult) Throughput() float64 {
	elapsed := p.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	var ok int
	for _, o := range p.Outcomes {
		if o.Success {
			ok++
		}
	}
	return float64(ok) / elapsed
}

// TokensPerSecond returns generated tokens per second of elapsed time.
func (p PhaseResult) TokensPerSecond() float64 {
	elapsed := p.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	var tokens int
	for _, o := range p.Outcomes {
		if o.Success {
			tokens += o.Tokens
		}
	}
	return float64(tokens) / elapsed
}
