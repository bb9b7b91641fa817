package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/inferload/internal/config"
	"github.com/FairForge/inferload/internal/loadtest"
	"github.com/FairForge/inferload/internal/logger"
	"github.com/FairForge/inferload/internal/metrics"
	"github.com/FairForge/inferload/internal/probe"
	"github.com/FairForge/inferload/internal/report"
)

const persistTimeout = 30 * time.Second

// scenario runs one test type and reports whether it was interrupted.
type scenario struct {
	testType loadtest.TestType
	run      func(ctx context.Context, a *app) (*report.ScenarioReport, bool, error)
}

var (
	spikeScenario  = scenario{loadtest.TestTypeSpike, runSpike}
	stressScenario = scenario{loadtest.TestTypeStress, runStress}
	soakScenario   = scenario{loadtest.TestTypeSoak, runSoak}
	burstScenario  = scenario{loadtest.TestTypeBurst, runBurst}
)

// app wires the components of one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *probe.Client
	runner  *loadtest.Runner
	metrics *metrics.Metrics
	sinks   *report.MultiSink
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, types ...loadtest.TestType) (*app, error) {
	if err := cfg.Validate(types...); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loadtest.ErrInvalidConfiguration, err)
	}

	a := &app{cfg: cfg, logger: log, metrics: metrics.New()}

	a.client = probe.NewClient(probe.Config{
		BaseURL:   cfg.Target.URL,
		Timeout:   cfg.Target.Timeout,
		Prompt:    cfg.Target.Prompt,
		MaxTokens: cfg.Target.MaxTokens,
	}, log)

	sched := loadtest.NewScheduler(a.client,
		loadtest.WithLogger(log),
		loadtest.WithRecorder(a.metrics))
	a.runner = loadtest.NewRunner(sched, log,
		loadtest.WithConcurrencyCap(cfg.ConcurrencyCap),
		loadtest.WithBreakCriteria(cfg.BreakCriteria()))

	if err := a.openSinks(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.serveMetrics()
	return a, nil
}

func (a *app) openSinks(ctx context.Context) error {
	sinks := []report.Sink{report.NewFileSink(a.cfg.Report.Dir, a.cfg.Report.KeepTraces, a.logger)}

	if s3cfg := a.cfg.Report.S3; s3cfg.Bucket != "" {
		s, err := report.NewS3Sink(ctx, report.S3Options(s3cfg), a.logger)
		if err != nil {
			return fmt.Errorf("%w: %w", loadtest.ErrInvalidConfiguration, err)
		}
		sinks = append(sinks, s)
	}

	if dsn := a.cfg.Report.PostgresDSN; dsn != "" {
		pg, err := report.NewPostgresSink(ctx, dsn, a.logger)
		if err != nil {
			return fmt.Errorf("%w: %w", loadtest.ErrInvalidConfiguration, err)
		}
		a.closers = append(a.closers, func() { _ = pg.Close() })
		sinks = append(sinks, pg)
	}

	a.sinks = report.NewMultiSink(a.logger, sinks...)
	return nil
}

func (a *app) serveMetrics() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("serving metrics", zap.String("addr", a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// execute runs the scenarios in order, stopping after the first one that is
// interrupted, then prints and persists the report.
func (o *rootOptions) execute(cmd *cobra.Command, cfg *config.Config, scenarios ...scenario) error {
	ctx := cmd.Context()

	types := make([]loadtest.TestType, 0, len(scenarios))
	for _, sc := range scenarios {
		types = append(types, sc.testType)
	}
	a, err := newApp(ctx, cfg, types...)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.runner.Preflight(ctx, a.client); err != nil {
		return err
	}

	rep := report.New(cfg.Target.URL, time.Now())
	for _, sc := range scenarios {
		sr, interrupted, err := sc.run(ctx, a)
		if err != nil {
			return err
		}
		rep.Add(sr)
		if interrupted {
			a.logger.Warn("run interrupted, skipping remaining scenarios",
				zap.String("scenario", sr.TestType))
			break
		}
	}
	rep.Finish(time.Now())

	if err := report.WriteText(o.out, rep); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	// Persist even when the run was cancelled.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	locations, perr := a.sinks.PersistAll(pctx, rep)
	for _, loc := range locations {
		fmt.Fprintf(o.out, "\nResults saved to: %s\n", loc)
	}
	if perr != nil {
		return fmt.Errorf("persist report: %w", perr)
	}
	return nil
}

func runSpike(ctx context.Context, a *app) (*report.ScenarioReport, bool, error) {
	res, err := a.runner.Spike(ctx, a.cfg.SpikeScenario())
	if err != nil {
		return nil, false, err
	}
	return report.FromSpike(res, a.runner.ConcurrencyCap()), res.Interrupted, nil
}

func runStress(ctx context.Context, a *app) (*report.ScenarioReport, bool, error) {
	res, err := a.runner.Stress(ctx, a.cfg.StressScenario())
	if err != nil {
		return nil, false, err
	}
	return report.FromStress(res, a.runner.ConcurrencyCap()), res.Status == loadtest.StressInterrupted, nil
}

func runSoak(ctx context.Context, a *app) (*report.ScenarioReport, bool, error) {
	res, err := a.runner.Soak(ctx, a.cfg.SoakScenario())
	if err != nil {
		return nil, false, err
	}
	return report.FromSoak(res, a.runner.ConcurrencyCap()), res.Interrupted, nil
}

func runBurst(ctx context.Context, a *app) (*report.ScenarioReport, bool, error) {
	res, err := a.runner.Burst(ctx, a.cfg.BurstScenario())
	if err != nil {
		return nil, false, err
	}
	return report.FromBurst(res, a.runner.ConcurrencyCap()), res.Interrupted, nil
}
