package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FairForge/inferload/internal/report"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var withTraces bool

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Print a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			rep, err := report.Load(path)
			if err != nil {
				return err
			}

			if withTraces {
				traces, err := report.LoadTraces(report.TracesPath(path))
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
				rep.AttachTraces(traces)
				fmt.Fprintf(root.out, "Loaded %d probe traces\n", len(traces))
			}

			return report.WriteText(root.out, rep)
		},
	}

	cmd.Flags().BoolVar(&withTraces, "traces", false, "Also load the trace sidecar written with --keep-traces")
	return cmd
}
