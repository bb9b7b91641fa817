// Package loadtest drives an inference service at controlled request rates
// and reduces what it observes into latency, throughput and success
// statistics.
//
// # Overview
//
// The package is organised bottom-up:
//
//   - Summarize reduces a slice of Outcome values into a Summary.
//   - Scheduler.RunSustained fires probes at a fixed rate for a fixed
//     duration, open-loop, on a worker pool scoped to the call.
//   - Runner composes sustained runs into scenarios: spike, stress, soak,
//     and constant-concurrency burst stages.
//
// # Quick Start
//
//	client := probe.NewClient(probe.DefaultConfig("http://localhost:8080"), logger)
//	sched := loadtest.NewScheduler(client, loadtest.WithLogger(logger))
//	runner := loadtest.NewRunner(sched, logger, loadtest.WithConcurrencyCap(50))
//
//	if err := runner.Preflight(ctx, client); err != nil {
//	    return err
//	}
//	result, err := runner.Stress(ctx, loadtest.DefaultStressConfig())
//	if result.BreakingPoint != nil {
//	    fmt.Printf("Breaking point: %g RPS\n", *result.BreakingPoint)
//	}
//
// # Scenarios
//
// ## Spike
//
// Baseline, Spike and Recovery phases run back to back. The result carries
// all three phases and a SpikeComparison of the before/during/after figures.
//
// ## Stress
//
// The rate starts at StartRPS and grows by Step after every StepDuration.
// A step whose success rate drops below 95% or whose average latency exceeds
// 10s is the breaking point and the ramp stops there. When MaxRPS is passed
// without a break, BreakingPoint stays nil.
//
// ## Soak
//
// One long sustained run. The outcomes are split into fixed-size chunks, one
// per ChunkInterval of traffic, and each chunk is summarised on its own to
// show drift over time. Cancelling the context ends the run early and still
// yields a table for the portion that ran.
//
// ## Burst
//
// Closed-loop stages: a fixed number of requests pushed through a fixed
// number of concurrent workers, each worker sending its next request as soon
// as the previous one returns.
//
// # Percentiles
//
// Percentiles index the ascending list of successful latencies at
// floor(n*p). For small n this lands on the maximum, so p95 below 20 samples
// and p99 below 100 samples are flagged as approximate.
//
// # Timing
//
// Dispatch times are computed from the start instant and the request index,
// not from the previous dispatch, so pacing does not drift. A late slot is
// sent immediately and later slots are not accelerated. The Clock interface
// lets tests replace real waiting.
package loadtest
