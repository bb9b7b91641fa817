package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

const rule = "======================================================================"

// WriteText renders r for a terminal: one block per phase, the spike
// comparison, the soak degradation table and any caveats.
func WriteText(w io.Writer, r *Report) error {
	tw := &errWriter{w: w}

	tw.printf("%s\n", rule)
	tw.printf("Run %s against %s\n", r.RunID, r.Target)
	if !r.FinishedAt.IsZero() {
		tw.printf("Elapsed: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	tw.printf("%s\n", rule)

	for _, key := range r.ScenarioKeys() {
		writeScenario(tw, r.Scenarios[key])
	}
	return tw.err
}

func writeScenario(tw *errWriter, sr *ScenarioReport) {
	tw.printf("\n%s TEST (%s)\n", strings.ToUpper(sr.TestType), sr.Status)

	for _, ph := range sr.Phases {
		writePhase(tw, ph)
	}

	switch {
	case sr.BreakingPoint != nil:
		tw.printf("\nBreaking point: %g req/s\n", *sr.BreakingPoint)
	case sr.MaxTested != nil:
		tw.printf("\nNo breaking point found up to %g req/s\n", *sr.MaxTested)
	}

	if c := sr.Comparison; c != nil {
		tw.printf("\nSpike impact vs baseline:\n")
		for _, d := range c.DuringSpike {
			tw.printf("  %-14s %10.3f -> %10.3f (%+.1f%%)\n", d.Metric, d.Baseline, d.Current, d.DeltaPct)
		}
		tw.printf("Recovery vs baseline:\n")
		for _, d := range c.AfterSpike {
			tw.printf("  %-14s %10.3f -> %10.3f (%+.1f%%)\n", d.Metric, d.Baseline, d.Current, d.DeltaPct)
		}
		if c.Recovered {
			tw.printf("Target recovered after the spike\n")
		} else {
			tw.printf("Target did NOT recover after the spike\n")
		}
	}

	if len(sr.Chunks) > 0 {
		writeChunks(tw, sr.Chunks)
	}

	if sr.Overall != nil && len(sr.Phases) > 1 {
		tw.printf("\nOverall: %d requests, %.1f%% success, avg %.3fs, p95 %.3fs\n",
			sr.Overall.Total, sr.Overall.SuccessRate, sr.Overall.AvgLatency, sr.Overall.P95Latency)
	}

	for _, c := range sr.Caveats {
		tw.printf("  [%s] %s: %s\n", c.Severity, c.Phase, c.Message)
	}
}

func writePhase(tw *errWriter, ph PhaseReport) {
	s := ph.Summary
	tw.printf("\n%s Phase Summary:\n", ph.Name)
	if ph.TargetRPS > 0 {
		tw.printf("  Target Rate: %g req/s for %s\n", ph.TargetRPS, seconds(ph.DurationSeconds))
	}
	tw.printf("  Total Requests: %d\n", s.Total)
	tw.printf("  Successful: %d (%.1f%%)\n", s.Successful, s.SuccessRate)
	tw.printf("  Failed: %d\n", s.Failed)
	if s.Successful > 0 {
		tw.printf("  Avg Latency: %.3fs\n", s.AvgLatency)
		tw.printf("  P95 Latency: %.3fs%s\n", s.P95Latency, approx(s.P95Approximate))
		tw.printf("  P99 Latency: %.3fs%s\n", s.P99Latency, approx(s.P99Approximate))
		tw.printf("  Throughput: %.2f req/s, %.1f tokens/s\n", ph.ThroughputRPS, ph.TokensPerSecond)
	}

	if errs := errorCounts(ph.Outcomes); len(errs) > 0 {
		tw.printf("  Errors:\n")
		for _, e := range errs {
			tw.printf("    %5d  %s\n", e.count, e.message)
		}
	}
}

const maxErrorLen = 80

type errorCount struct {
	message string
	count   int
}

// errorCounts groups failed outcomes by message, most frequent first.
func errorCounts(outcomes []OutcomeRecord) []errorCount {
	counts := make(map[string]int)
	for _, o := range outcomes {
		if o.Success {
			continue
		}
		msg := strings.Join(strings.Fields(o.Error), " ")
		if r := []rune(msg); len(r) > maxErrorLen {
			msg = string(r[:maxErrorLen]) + "..."
		}
		counts[msg]++
	}

	out := make([]errorCount, 0, len(counts))
	for m, c := range counts {
		out = append(out, errorCount{message: m, count: c})
	}
	slices.SortFunc(out, func(a, b errorCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return strings.Compare(a.message, b.message)
	})
	return out
}

func writeChunks(tw *errWriter, chunks []ChunkReport) {
	tw.printf("\nDegradation Analysis:\n")
	t := tabwriter.NewWriter(tw, 0, 0, 2, ' ', 0)
	fmt.Fprintln(t, "Chunk\tOffset\tAvg Latency\tP95 Latency\tSuccess Rate")
	for _, c := range chunks {
		fmt.Fprintf(t, "%d\t%s\t%.3f\t%.3f\t%.1f%%\n",
			c.Index+1, seconds(c.OffsetSeconds), c.Summary.AvgLatency, c.Summary.P95Latency, c.Summary.SuccessRate)
	}
	_ = t.Flush()
}

func approx(b bool) string {
	if b {
		return " (approx.)"
	}
	return ""
}

// errWriter remembers the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e, format, args...)
}
