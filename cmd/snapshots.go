package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored dataset snapshots",
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

		snapshots, err := st.ListSnapshots(ctx)
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no snapshots stored")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tROWS\tCREATED\tID")
		for _, s := range snapshots {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Name, s.Rows, s.CreatedAt.Format(time.RFC3339), s.ID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}
