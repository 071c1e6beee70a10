package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epiwatch/leishdash/internal/geo"
)

var geoShapefilePath string

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Municipality centroid management",
}

var geoLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load municipality centroids from an IBGE boundary shapefile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := geo.ImportCentroids(ctx, st, geoShapefilePath)
		if err != nil {
			return err
		}

		zap.L().Info("centroid import complete",
			zap.Int("municipalities", n),
			zap.String("shapefile", geoShapefilePath),
		)
		return nil
	},
}

func init() {
	geoLoadCmd.Flags().StringVar(&geoShapefilePath, "shapefile", "", "path to the .shp file (required)")
	_ = geoLoadCmd.MarkFlagRequired("shapefile")
	geoCmd.AddCommand(geoLoadCmd)
	rootCmd.AddCommand(geoCmd)
}
