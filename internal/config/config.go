package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FairForge/inferload/internal/loadtest"
	"github.com/FairForge/inferload/internal/logger"
)

type Config struct {
	Target         TargetConfig  `yaml:"target"`
	ConcurrencyCap int           `yaml:"concurrency_cap"`
	Spike          SpikeConfig   `yaml:"spike"`
	Stress         StressConfig  `yaml:"stress"`
	Soak           SoakConfig    `yaml:"soak"`
	Burst          BurstConfig   `yaml:"burst"`
	Report         ReportConfig  `yaml:"report"`
	Log            logger.Config `yaml:"log"`
	MetricsAddr    string        `yaml:"metrics_addr"` // Empty disables the /metrics listener
}

type TargetConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	Prompt    string        `yaml:"prompt"`
	MaxTokens int           `yaml:"max_tokens"`
}

type SpikeConfig struct {
	BaselineRPS    float64       `yaml:"baseline_rps"`
	SpikeRPS       float64       `yaml:"spike_rps"`
	SpikeDuration  time.Duration `yaml:"spike_duration"`
	BaselinePeriod time.Duration `yaml:"baseline_period"`
	RecoveryPeriod time.Duration `yaml:"recovery_period"`
}

type StressConfig struct {
	StartRPS       float64       `yaml:"start_rps"`
	MaxRPS         float64       `yaml:"max_rps"`
	Step           float64       `yaml:"step"`
	StepDuration   time.Duration `yaml:"step_duration"`
	MinSuccessRate float64       `yaml:"min_success_rate"`
	MaxAvgLatency  time.Duration `yaml:"max_avg_latency"`
}

type SoakConfig struct {
	TargetRPS     float64       `yaml:"target_rps"`
	Duration      time.Duration `yaml:"duration"`
	ChunkInterval time.Duration `yaml:"chunk_interval"`
}

type BurstStage struct {
	Name        string `yaml:"name"`
	Requests    int    `yaml:"requests"`
	Concurrency int    `yaml:"concurrency"`
}

type BurstConfig struct {
	Stages []BurstStage  `yaml:"stages"`
	Pause  time.Duration `yaml:"pause"`
}

type ReportConfig struct {
	Dir         string   `yaml:"dir"`
	KeepTraces  bool     `yaml:"keep_traces"`
	S3          S3Config `yaml:"s3"`
	PostgresDSN string   `yaml:"postgres_dsn"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible stores; enables path-style addressing
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Default returns a configuration that runs against a local target with no
// further input.
func Default() *Config {
	spike := loadtest.DefaultSpikeConfig()
	stress := loadtest.DefaultStressConfig()
	soak := loadtest.DefaultSoakConfig()
	burst := loadtest.DefaultBurstConfig()
	criteria := loadtest.DefaultBreakCriteria()

	cfg := &Config{
		Target: TargetConfig{
			URL:       "http://localhost:8080",
			Timeout:   60 * time.Second,
			Prompt:    "Explain cloud computing",
			MaxTokens: 100,
		},
		ConcurrencyCap: loadtest.DefaultConcurrencyCap,
		Spike: SpikeConfig{
			BaselineRPS:    spike.BaselineRPS,
			SpikeRPS:       spike.SpikeRPS,
			SpikeDuration:  spike.SpikeDuration,
			BaselinePeriod: spike.BaselinePeriod,
			RecoveryPeriod: spike.RecoveryPeriod,
		},
		Stress: StressConfig{
			StartRPS:       stress.StartRPS,
			MaxRPS:         stress.MaxRPS,
			Step:           stress.Step,
			StepDuration:   stress.StepDuration,
			MinSuccessRate: criteria.MinSuccessRate,
			MaxAvgLatency:  criteria.MaxAvgLatency,
		},
		Soak: SoakConfig{
			TargetRPS:     soak.TargetRPS,
			Duration:      soak.Duration,
			ChunkInterval: soak.ChunkInterval,
		},
		Burst: BurstConfig{Pause: burst.Pause},
		Report: ReportConfig{
			Dir: ".",
			S3:  S3Config{Prefix: "inferload", Region: "us-east-1"},
		},
		Log: logger.Config{Level: "info", Format: logger.FormatConsole},
	}
	for _, st := range burst.Stages {
		cfg.Burst.Stages = append(cfg.Burst.Stages, BurstStage(st))
	}
	return cfg
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the shared sections and the sections of the given scenarios,
// joining the problems found. With no scenarios every section is checked.
func (c *Config) Validate(scenarios ...loadtest.TestType) error {
	var errs []error

	u, err := url.Parse(c.Target.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: target url %q is not absolute", loadtest.ErrInvalidConfiguration, c.Target.URL))
	}
	if c.Target.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: target timeout must be positive", loadtest.ErrInvalidConfiguration))
	}
	if c.Target.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_tokens must be positive", loadtest.ErrInvalidConfiguration))
	}
	if c.ConcurrencyCap <= 0 {
		errs = append(errs, fmt.Errorf("%w: concurrency cap must be positive", loadtest.ErrInvalidConfiguration))
	}

	if len(scenarios) == 0 {
		scenarios = []loadtest.TestType{
			loadtest.TestTypeSpike,
			loadtest.TestTypeStress,
			loadtest.TestTypeSoak,
			loadtest.TestTypeBurst,
		}
	}
	for _, tt := range scenarios {
		switch tt {
		case loadtest.TestTypeSpike:
			errs = append(errs, c.SpikeScenario().Validate())
		case loadtest.TestTypeStress:
			errs = append(errs, c.StressScenario().Validate(), c.BreakCriteria().Validate())
		case loadtest.TestTypeSoak:
			errs = append(errs, c.SoakScenario().Validate())
		case loadtest.TestTypeBurst:
			errs = append(errs, c.BurstScenario().Validate())
		default:
			errs = append(errs, fmt.Errorf("%w: unknown scenario %q", loadtest.ErrInvalidConfiguration, tt))
		}
	}

	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", loadtest.ErrInvalidConfiguration, err))
	}

	return errors.Join(errs...)
}

// SpikeScenario converts the spike section.
func (c *Config) SpikeScenario() loadtest.SpikeConfig {
	return loadtest.SpikeConfig(c.Spike)
}

// StressScenario converts the stress section.
func (c *Config) StressScenario() loadtest.StressConfig {
	return loadtest.StressConfig{
		StartRPS:     c.Stress.StartRPS,
		MaxRPS:       c.Stress.MaxRPS,
		Step:         c.Stress.Step,
		StepDuration: c.Stress.StepDuration,
	}
}

// BreakCriteria converts the stress thresholds.
func (c *Config) BreakCriteria() loadtest.BreakCriteria {
	return loadtest.BreakCriteria{
		MinSuccessRate: c.Stress.MinSuccessRate,
		MaxAvgLatency:  c.Stress.MaxAvgLatency,
	}
}

// SoakScenario converts the soak section.
func (c *Config) SoakScenario() loadtest.SoakConfig {
	return loadtest.SoakConfig(c.Soak)
}

// BurstScenario converts the burst section.
func (c *Config) BurstScenario() loadtest.BurstConfig {
	bc := loadtest.BurstConfig{Pause: c.Burst.Pause}
	for _, st := range c.Burst.Stages {
		bc.Stages = append(bc.Stages, loadtest.BurstStage(st))
	}
	return bc
}
