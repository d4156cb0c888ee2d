package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/artifact"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
	"github.com/causalml-fall25/project-cbsobral/internal/projection"
)

var (
	exportRunID string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export grid data for downstream collaborators",
}

var exportBPolysCmd = &cobra.Command{
	Use:   "bpolys",
	Short: "Write cell boundary polygons in the feature statistics request format",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		runID, cells, err := env.Pipeline.LoadGrid(ctx, exportRunID)
		if err != nil {
			return err
		}

		if exportOut == "" || exportOut == "-" {
			return writeBPolys(os.Stdout, env.Pipeline.Projector(), cells)
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck
		if err := writeBPolys(f, env.Pipeline.Projector(), cells); err != nil {
			return err
		}
		zap.L().Info("bpolys exported",
			zap.String("run_id", runID),
			zap.Int("cells", len(cells)),
			zap.String("path", exportOut),
		)
		return nil
	},
}

// writeBPolys writes grid CRS cells as lon/lat bpolys.
func writeBPolys(w io.Writer, pr *projection.Projector, cells []model.HexCell) error {
	geographic, err := pr.InverseCells(cells)
	if err != nil {
		return eris.Wrap(err, "export: grid to lon/lat")
	}
	return artifact.WriteBPolys(w, geographic)
}

func init() {
	exportBPolysCmd.Flags().StringVar(&exportRunID, "run", "", "run id of a persisted grid (default: grid artifact in output.dir)")
	exportBPolysCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.AddCommand(exportBPolysCmd)
	rootCmd.AddCommand(exportCmd)
}
