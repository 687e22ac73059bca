package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civicworks/boundary-audit/internal/boundary"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Manage boundary polygons",
}

var (
	boundariesLayerMap string
	boundariesDir      string
)

var boundariesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load boundary shapefiles into PostGIS",
	Long: `Reads the YAML layer map, parses each shapefile layer, and upserts the
polygons into geo.boundaries as SRID 4326 geometries. Shapefile paths in the
layer map resolve relative to --dir (default: the layer map's directory).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		lm, err := boundary.LoadLayerMap(boundariesLayerMap)
		if err != nil {
			return err
		}

		baseDir := boundariesDir
		if baseDir == "" {
			baseDir = filepath.Dir(boundariesLayerMap)
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		total, err := boundary.NewLoader(pool).LoadAll(ctx, baseDir, lm)
		if err != nil {
			return eris.Wrap(err, "boundaries load")
		}

		fmt.Printf("loaded %d boundaries from %d layers\n", total, len(lm.Layers))
		return nil
	},
}

func init() {
	boundariesLoadCmd.Flags().StringVar(&boundariesLayerMap, "layers", "layers.yaml", "YAML layer map path")
	boundariesLoadCmd.Flags().StringVar(&boundariesDir, "dir", "", "base directory for shapefile paths")

	boundariesCmd.AddCommand(boundariesLoadCmd)
	rootCmd.AddCommand(boundariesCmd)
}
