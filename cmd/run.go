package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/causalml-fall25/project-cbsobral/internal/config"
	"github.com/causalml-fall25/project-cbsobral/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the grid and the weekly panel in one pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, config.SectionPanel)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, res)
		return nil
	},
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Generate and classify the hexagonal grid",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, config.SectionGrid)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Grid(ctx)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, res)
		return nil
	},
}

// formatSummary prints the run id, grid composition, panel gaps and
// artifact paths of a result.
func formatSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "run\t%s\n", res.RunID)
	_, _ = fmt.Fprintf(w, "cells\t%d\n", len(res.Cells))
	_, _ = fmt.Fprintf(w, "treated cell\t%d\n", res.Summary.TreatedID)
	_, _ = fmt.Fprintf(w, "excluded\t%d\n", res.Summary.Excluded)
	_, _ = fmt.Fprintf(w, "donor\t%d\n", res.Summary.Donor)

	if res.Mapping != nil {
		_, _ = fmt.Fprintf(w, "edges\t%d (%d unmapped)\n", len(res.Mapping.Assignments), res.Mapping.Unmapped)
	}
	if res.Counts != nil {
		_, _ = fmt.Fprintf(w, "observations\t%d (%d outside window)\n", len(res.Counts.Observations), res.Counts.OutOfWindow)
	}
	if res.Panel != nil {
		_, _ = fmt.Fprintf(w, "panel rows\t%d (%d zero-filled, %d observations dropped)\n",
			len(res.Panel.Rows), res.Panel.Filled, res.Panel.Dropped)
		_, _ = fmt.Fprintf(w, "periods\t%d..%d\n", res.Panel.MinPeriod, res.Panel.MaxPeriod)
	}

	if res.Manifest != nil {
		names := make([]string, 0, len(res.Manifest.Artifacts))
		for name := range res.Manifest.Artifacts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", name, res.Manifest.Artifacts[name])
		}
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gridCmd)
}
