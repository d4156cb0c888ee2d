package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/causalml-fall25/project-cbsobral/internal/config"
)

var panelRunID string

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Build the weekly panel for an existing grid",
	Long:  "Maps network edges onto a grid built earlier, by run id from the store or from the grid artifact in the output directory, and bins trip counts into the panel.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, config.SectionPanel)
		if err != nil {
			return err
		}
		defer env.Close()

		runID, cells, err := env.Pipeline.LoadGrid(ctx, panelRunID)
		if err != nil {
			return err
		}
		res, err := env.Pipeline.Panel(ctx, runID, cells)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	panelCmd.Flags().StringVar(&panelRunID, "run", "", "run id of a persisted grid (default: grid artifact in output.dir)")
	rootCmd.AddCommand(panelCmd)
}
