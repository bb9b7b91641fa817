package loadtest

import "fmt"

// CaveatKind identifies a measurement caveat.
type CaveatKind string

const (
	CaveatSmallSampleP95 CaveatKind = "small_sample_p95"
	CaveatSmallSampleP99 CaveatKind = "small_sample_p99"
	CaveatConcurrencyCap CaveatKind = "concurrency_cap"
	CaveatInterrupted    CaveatKind = "interrupted"
	CaveatNoSuccesses    CaveatKind = "no_successes"
)

// Severity indicates how much a caveat affects the figures.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Caveat qualifies the numbers reported for a phase.
type Caveat struct {
	Kind     CaveatKind
	Severity Severity
	Phase    string
	Message  string
}

// Pool saturation above this share of the cap is reported.
const capWarnRatio = 0.8

// PhaseCaveats lists what a reader should know before trusting p's summary.
func PhaseCaveats(p PhaseResult, concurrencyCap int) []Caveat {
	var caveats []Caveat
	add := func(kind CaveatKind, sev Severity, format string, args ...any) {
		caveats = append(caveats, Caveat{
			Kind:     kind,
			Severity: sev,
			Phase:    p.Name,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if p.Interrupted {
		add(CaveatInterrupted, SeverityWarning,
			"run interrupted after %d of %d planned requests", p.Dispatched, p.Planned)
	}

	s := p.Summary()
	switch {
	case s.Total > 0 && s.Successful == 0:
		add(CaveatNoSuccesses, SeverityWarning,
			"no successful requests, latency figures are empty")
	case s.Successful > 0:
		if s.P95Approximate {
			add(CaveatSmallSampleP95, SeverityInfo,
				"small-sample percentile underestimate: p95 from %d samples (< %d)", s.Successful, p95MinSamples)
		}
		if s.P99Approximate {
			add(CaveatSmallSampleP99, SeverityInfo,
				"small-sample percentile underestimate: p99 from %d samples (< %d)", s.Successful, p99MinSamples)
		}
	}

	if p.TargetRPS > 0 && concurrencyCap > 0 && 2*p.TargetRPS > capWarnRatio*float64(concurrencyCap) {
		add(CaveatConcurrencyCap, SeverityWarning,
			"target rate %g RPS approaches the concurrency cap of %d workers; queueing for a worker may inflate latency",
			p.TargetRPS, concurrencyCap)
	}

	return caveats
}

// Caveats collects PhaseCaveats for every phase in order.
func Caveats(phases []PhaseResult, concurrencyCap int) []Caveat {
	var all []Caveat
	for _, p := range phases {
		all = append(all, PhaseCaveats(p, concurrencyCap)...)
	}
	return all
}
