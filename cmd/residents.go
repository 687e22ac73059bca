package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/boundary-audit/internal/resident"
)

var residentsCmd = &cobra.Command{
	Use:   "residents",
	Short: "Manage resident records",
}

var residentsImportFile string

var residentsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import residents from a CSV export",
	Long: `Reads a voter roll CSV and bulk-inserts the rows via the COPY protocol.
The address column is required; city, state, zip, and county map directly.
Any remaining column whose header names a district type becomes a registered
assignment. Coordinates are left unset for a later geocoding run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		residents, err := resident.ParseCSV(residentsImportFile)
		if err != nil {
			return err
		}
		zap.L().Info("parsed csv", zap.Int("residents", len(residents)))

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := resident.Import(ctx, pool, residents)
		if err != nil {
			return err
		}

		zap.L().Info("residents imported", zap.Int64("rows", n))
		return nil
	},
}

func init() {
	residentsImportCmd.Flags().StringVar(&residentsImportFile, "file", "", "path to the resident CSV (required)")
	_ = residentsImportCmd.MarkFlagRequired("file")

	residentsCmd.AddCommand(residentsImportCmd)
	rootCmd.AddCommand(residentsCmd)
}
