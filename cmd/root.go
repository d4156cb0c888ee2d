package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hexpanel",
	Short: "Hexagonal unit grid and weekly activity panel builder",
	Long:  "Covers a road network with a hexagonal grid, labels treated, excluded and donor cells, and bins edge trip counts into a gap-filled cell-by-week panel.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
