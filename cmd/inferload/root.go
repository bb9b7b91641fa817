package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/FairForge/inferload/internal/config"
)

type rootOptions struct {
	out        io.Writer
	configPath string

	url            string
	concurrencyCap int
	timeout        time.Duration
	reportDir      string
	keepTraces     bool
	s3Bucket       string
	postgresDSN    string
	logLevel       string
	logFormat      string
	metricsAddr    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	defaults := config.Default()
	opts := &rootOptions{out: out}

	cmd := &cobra.Command{
		Use:   "inferload",
		Short: "Load test an LLM inference service",
		Long: `Drive an inference service exposing POST /chat and GET /health with
controlled request patterns and report latency, success rate and throughput.

Scenarios:
  spike   baseline, sudden spike, recovery
  stress  ramp the rate until the service breaks
  soak    hold a rate for a long time and watch for degradation
  burst   fixed request counts at increasing concurrency

Every parameter has a default, so "inferload spike" runs against
http://localhost:8080 without further setup.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.StringVar(&opts.url, "url", defaults.Target.URL, "Base URL of the inference service")
	f.IntVar(&opts.concurrencyCap, "concurrency-cap", defaults.ConcurrencyCap, "Maximum concurrent probes per phase")
	f.DurationVar(&opts.timeout, "timeout", defaults.Target.Timeout, "Per-request timeout")
	f.StringVar(&opts.reportDir, "report-dir", defaults.Report.Dir, "Directory for JSON reports")
	f.BoolVar(&opts.keepTraces, "keep-traces", false, "Also write every probe outcome to a compressed sidecar")
	f.StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload reports to this S3 bucket")
	f.StringVar(&opts.postgresDSN, "postgres-dsn", "", "Store phase summaries in this PostgreSQL database")
	f.StringVar(&opts.logLevel, "log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", defaults.Log.Format, "Log format: json or console")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	cmd.AddCommand(
		newSpikeCmd(opts),
		newStressCmd(opts),
		newSoakCmd(opts),
		newBurstCmd(opts),
		newAllCmd(opts),
		newAnalyzeCmd(opts),
	)
	return cmd
}

// loadConfig layers defaults, the config file, the environment and finally
// any flags set on the command line.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Target.URL = o.url
	}
	if flags.Changed("concurrency-cap") {
		cfg.ConcurrencyCap = o.concurrencyCap
	}
	if flags.Changed("timeout") {
		cfg.Target.Timeout = o.timeout
	}
	if flags.Changed("report-dir") {
		cfg.Report.Dir = o.reportDir
	}
	if flags.Changed("keep-traces") {
		cfg.Report.KeepTraces = o.keepTraces
	}
	if flags.Changed("s3-bucket") {
		cfg.Report.S3.Bucket = o.s3Bucket
	}
	if flags.Changed("postgres-dsn") {
		cfg.Report.PostgresDSN = o.postgresDSN
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	return cfg, nil
}
