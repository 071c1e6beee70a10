package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epiwatch/leishdash/internal/dataset"
)

var (
	importFilePath     string
	importSnapshotName string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a notification export into the snapshot store",
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

		source := &dataset.FileSource{Path: importFilePath, CSV: csvOptions()}
		records, err := source.Read(ctx)
		if err != nil {
			return eris.Wrap(err, "read dataset")
		}

		snap, err := st.SaveSnapshot(ctx, importSnapshotName, records)
		if err != nil {
			return eris.Wrap(err, "save snapshot")
		}

		zap.L().Info("import complete",
			zap.String("snapshot", snap.Name),
			zap.String("id", snap.ID),
			zap.Int("rows", snap.Rows),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX export (required)")
	importCmd.Flags().StringVar(&importSnapshotName, "name", "default", "snapshot name")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
