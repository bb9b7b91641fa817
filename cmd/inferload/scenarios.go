package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/FairForge/inferload/internal/config"
)

func newSpikeCmd(root *rootOptions) *cobra.Command {
	d := config.Default().Spike
	var baselineRPS, spikeRPS float64
	var spikeDuration, baselinePeriod, recoveryPeriod time.Duration

	cmd := &cobra.Command{
		Use:   "spike",
		Short: "Baseline traffic, a sudden spike, then recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("baseline-rps") {
				cfg.Spike.BaselineRPS = baselineRPS
			}
			if flags.Changed("spike-rps") {
				cfg.Spike.SpikeRPS = spikeRPS
			}
			if flags.Changed("spike-duration") {
				cfg.Spike.SpikeDuration = spikeDuration
			}
			if flags.Changed("baseline-period") {
				cfg.Spike.BaselinePeriod = baselinePeriod
			}
			if flags.Changed("recovery-period") {
				cfg.Spike.RecoveryPeriod = recoveryPeriod
			}
			return root.execute(cmd, cfg, spikeScenario)
		},
	}

	cmd.Flags().Float64Var(&baselineRPS, "baseline-rps", d.BaselineRPS, "Baseline and recovery rate in req/s")
	cmd.Flags().Float64Var(&spikeRPS, "spike-rps", d.SpikeRPS, "Peak rate during the spike in req/s")
	cmd.Flags().DurationVar(&spikeDuration, "spike-duration", d.SpikeDuration, "How long the spike lasts")
	cmd.Flags().DurationVar(&baselinePeriod, "baseline-period", d.BaselinePeriod, "Baseline phase duration")
	cmd.Flags().DurationVar(&recoveryPeriod, "recovery-period", d.RecoveryPeriod, "Recovery phase duration")
	return cmd
}

func newStressCmd(root *rootOptions) *cobra.Command {
	d := config.Default().Stress
	var startRPS, maxRPS, stepRPS, minSuccess float64
	var stepDuration, maxAvgLatency time.Duration

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Ramp the request rate until the service breaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("start") {
				cfg.Stress.StartRPS = startRPS
			}
			if flags.Changed("max") {
				cfg.Stress.MaxRPS = maxRPS
			}
			if flags.Changed("step") {
				cfg.Stress.Step = stepRPS
			}
			if flags.Changed("step-duration") {
				cfg.Stress.StepDuration = stepDuration
			}
			if flags.Changed("min-success-rate") {
				cfg.Stress.MinSuccessRate = minSuccess
			}
			if flags.Changed("max-avg-latency") {
				cfg.Stress.MaxAvgLatency = maxAvgLatency
			}
			return root.execute(cmd, cfg, stressScenario)
		},
	}

	cmd.Flags().Float64Var(&startRPS, "start", d.StartRPS, "First rate tested in req/s")
	cmd.Flags().Float64Var(&maxRPS, "max", d.MaxRPS, "Highest rate tested in req/s")
	cmd.Flags().Float64Var(&stepRPS, "step", d.Step, "Rate increase per step in req/s")
	cmd.Flags().DurationVar(&stepDuration, "step-duration", d.StepDuration, "How long each rate is held")
	cmd.Flags().Float64Var(&minSuccess, "min-success-rate", d.MinSuccessRate, "Success rate percentage below which a step breaks")
	cmd.Flags().DurationVar(&maxAvgLatency, "max-avg-latency", d.MaxAvgLatency, "Average latency above which a step breaks")
	return cmd
}

func newSoakCmd(root *rootOptions) *cobra.Command {
	d := config.Default().Soak
	var rps float64
	var duration, chunk time.Duration

	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Hold a steady rate and track degradation over time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("rps") {
				cfg.Soak.TargetRPS = rps
			}
			if flags.Changed("duration") {
				cfg.Soak.Duration = duration
			}
			if flags.Changed("chunk") {
				cfg.Soak.ChunkInterval = chunk
			}
			return root.execute(cmd, cfg, soakScenario)
		},
	}

	cmd.Flags().Float64Var(&rps, "rps", d.TargetRPS, "Sustained rate in req/s")
	cmd.Flags().DurationVar(&duration, "duration", d.Duration, "Total soak duration")
	cmd.Flags().DurationVar(&chunk, "chunk", d.ChunkInterval, "Traffic covered by each degradation row")
	return cmd
}

func newBurstCmd(root *rootOptions) *cobra.Command {
	var pause time.Duration

	cmd := &cobra.Command{
		Use:   "burst",
		Short: "Send fixed request counts at increasing concurrency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("pause") {
				cfg.Burst.Pause = pause
			}
			return root.execute(cmd, cfg, burstScenario)
		},
	}

	cmd.Flags().DurationVar(&pause, "pause", config.Default().Burst.Pause, "Idle time between stages")
	return cmd
}

func newAllCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run spike, stress and soak back to back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			return root.execute(cmd, cfg, spikeScenario, stressScenario, soakScenario)
		},
	}
}
