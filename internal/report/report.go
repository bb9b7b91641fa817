// Package report turns scenario results into a persisted, stable document.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/FairForge/inferload/internal/loadtest"
)

// Report is the terminal artifact of a run. Field names and nesting are the
// same for every scenario type so one consumer can read any of them.
type Report struct {
	RunID      string                     `json:"run_id"`
	Target     string                     `json:"target"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Scenarios  map[string]*ScenarioReport `json:"scenarios"`
}

// ScenarioReport holds one scenario's phases, summaries and metadata.
type ScenarioReport struct {
	TestType      string         `json:"test_type"`
	Status        string         `json:"status"`
	BreakingPoint *float64       `json:"breaking_point"`
	MaxTested     *float64       `json:"max_tested"`
	Parameters    map[string]any `json:"parameters"`
	Overall       *Summary       `json:"overall"`
	Phases        []PhaseReport  `json:"phases"`
	Chunks        []ChunkReport  `json:"chunks"`
	Comparison    *Comparison    `json:"comparison"`
	Caveats       []CaveatReport `json:"caveats"`
}

// Summary is the JSON form of loadtest.Summary. Latencies are in seconds.
type Summary struct {
	Total          int     `json:"total"`
	Successful     int     `json:"successful"`
	Failed         int     `json:"failed"`
	SuccessRate    float64 `json:"success_rate"`
	AvgLatency     float64 `json:"avg_latency"`
	MedianLatency  float64 `json:"median_latency"`
	P95Latency     float64 `json:"p95_latency"`
	P99Latency     float64 `json:"p99_latency"`
	MinLatency     float64 `json:"min_latency"`
	MaxLatency     float64 `json:"max_latency"`
	TotalTokens    int     `json:"total_tokens"`
	P95Approximate bool    `json:"p95_approximate"`
	P99Approximate bool    `json:"p99_approximate"`
}

// PhaseReport describes one phase. Outcomes is only filled while the report
// is in memory; sinks persist a copy without it.
type PhaseReport struct {
	Name            string          `json:"name"`
	TargetRPS       float64         `json:"target_rps"`
	DurationSeconds float64         `json:"duration_seconds"`
	Planned         int             `json:"planned"`
	Dispatched      int             `json:"dispatched"`
	Interrupted     bool            `json:"interrupted"`
	PoolSize        int             `json:"pool_size"`
	ThroughputRPS   float64         `json:"throughput_rps"`
	TokensPerSecond float64         `json:"tokens_per_second"`
	Summary         Summary         `json:"summary"`
	Outcomes        []OutcomeRecord `json:"outcomes,omitempty"`
}

// OutcomeRecord is the JSON form of a single probe.
type OutcomeRecord struct {
	Phase                string    `json:"phase"`
	Success              bool      `json:"success"`
	Latency              float64   `json:"latency"`
	Tokens               int       `json:"tokens"`
	Error                string    `json:"error,omitempty"`
	StatusCode           int       `json:"status_code,omitempty"`
	ServerLatencySeconds float64   `json:"server_latency,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	DispatchedAt         time.Time `json:"dispatched_at"`
	RequestID            string    `json:"request_id,omitempty"`
}

// ChunkReport is one row of a soak degradation table.
type ChunkReport struct {
	Index         int     `json:"index"`
	OffsetSeconds float64 `json:"offset_seconds"`
	Summary       Summary `json:"summary"`
}

// Difference is the JSON form of loadtest.Difference.
type Difference struct {
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
	DeltaAbs float64 `json:"delta_abs"`
	DeltaPct float64 `json:"delta_pct"`
}

// Comparison is the JSON form of loadtest.SpikeComparison.
type Comparison struct {
	DuringSpike []Difference `json:"during_spike"`
	AfterSpike  []Difference `json:"after_spike"`
	Recovered   bool         `json:"recovered"`
}

// CaveatReport is the JSON form of loadtest.Caveat.
type CaveatReport struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Phase    string `json:"phase"`
	Message  string `json:"message"`
}

// New starts a report for target with a fresh run ID.
func New(target string, startedAt time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Target:    target,
		StartedAt: startedAt.UTC(),
		Scenarios: make(map[string]*ScenarioReport),
	}
}

// Add stores sr under its test type, replacing any earlier entry.
func (r *Report) Add(sr *ScenarioReport) {
	if r.Scenarios == nil {
		r.Scenarios = make(map[string]*ScenarioReport)
	}
	r.Scenarios[sr.TestType] = sr
}

// Finish stamps the end of the run.
func (r *Report) Finish(at time.Time) {
	r.FinishedAt = at.UTC()
}

// WithoutTraces returns a copy whose phases carry no per-outcome records.
func (r *Report) WithoutTraces() *Report {
	cp := *r
	cp.Scenarios = make(map[string]*ScenarioReport, len(r.Scenarios))
	for k, sr := range r.Scenarios {
		s := *sr
		s.Phases = make([]PhaseReport, len(sr.Phases))
		for i, p := range sr.Phases {
			p.Outcomes = nil
			s.Phases[i] = p
		}
		cp.Scenarios[k] = &s
	}
	return &cp
}

// Traces returns every outcome record in the report.
func (r *Report) Traces() []OutcomeRecord {
	var all []OutcomeRecord
	for _, key := range r.ScenarioKeys() {
		for _, p := range r.Scenarios[key].Phases {
			all = append(all, p.Outcomes...)
		}
	}
	return all
}

// scenarioOrder lists scenarios in the order an "all" run executes them,
// with burst last.
var scenarioOrder = []string{
	string(loadtest.TestTypeSpike),
	string(loadtest.TestTypeStress),
	string(loadtest.TestTypeSoak),
	string(loadtest.TestTypeBurst),
}

// ScenarioKeys returns the scenario keys in run order, unknown keys last.
func (r *Report) ScenarioKeys() []string {
	keys := make([]string, 0, len(r.Scenarios))
	seen := make(map[string]bool)
	for _, k := range scenarioOrder {
		if _, ok := r.Scenarios[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for k := range r.Scenarios {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
