// Package metrics exposes harness activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FairForge/inferload/internal/loadtest"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Latency buckets sized for generation requests, 50ms to 2m.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120}

// Metrics holds the Prometheus collectors for one harness process. It
// implements loadtest.Recorder.
type Metrics struct {
	ProbeCounter     *prometheus.CounterVec
	LatencyHistogram *prometheus.HistogramVec
	InFlight         prometheus.Gauge
	TargetRPS        *prometheus.GaugeVec
	registry         *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		ProbeCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inferload_probes_total",
				Help: "Total number of probes sent to the target",
			},
			[]string{"phase", "result"},
		),
		LatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inferload_probe_latency_seconds",
				Help:    "Client-observed latency of successful probes in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"phase"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inferload_probes_in_flight",
				Help: "Probes currently waiting on the target",
			},
		),
		TargetRPS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inferload_target_rps",
				Help: "Configured request rate of each phase",
			},
			[]string{"phase"},
		),
		registry: registry,
	}

	registry.MustRegister(m.ProbeCounter)
	registry.MustRegister(m.LatencyHistogram)
	registry.MustRegister(m.InFlight)
	registry.MustRegister(m.TargetRPS)

	return m
}

// PhaseStarted records the configured rate of a phase.
func (m *Metrics) PhaseStarted(phase string, targetRPS float64) {
	m.TargetRPS.WithLabelValues(phase).Set(targetRPS)
}

// ProbeStarted increments the in-flight gauge.
func (m *Metrics) ProbeStarted(string) {
	m.InFlight.Inc()
}

// ProbeFinished counts the probe and observes its latency when it succeeded.
func (m *Metrics) ProbeFinished(phase string, o loadtest.Outcome) {
	m.InFlight.Dec()
	if o.Success {
		m.ProbeCounter.WithLabelValues(phase, ResultSuccess).Inc()
		m.LatencyHistogram.WithLabelValues(phase).Observe(o.Latency.Seconds())
		return
	}
	m.ProbeCounter.WithLabelValues(phase, ResultFailure).Inc()
}

// Handler returns the Prometheus metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
