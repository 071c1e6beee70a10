package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/epiwatch/leishdash/internal/report"
)

var (
	reportYear     int
	reportStates   []string
	reportVariable string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print case-count aggregates for one filter selection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		variable, err := report.ParseVariable(reportVariable)
		if err != nil {
			return err
		}

		e, err := initLoader(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		table, err := e.Loader.Load(ctx)
		if err != nil {
			return err
		}

		states := make([]string, 0, len(reportStates))
		for _, s := range reportStates {
			states = append(states, strings.ToUpper(strings.TrimSpace(s)))
		}

		filtered := table.Filter(reportYear, states)
		out := cmd.OutOrStdout()

		summary := report.Summarize(filtered)
		fmt.Fprintf(out, "Year %d", reportYear)
		if len(states) > 0 {
			fmt.Fprintf(out, ", states %s", strings.Join(states, ","))
		}
		fmt.Fprintf(out, ": %d cases in %d municipalities across %d states\n\n",
			summary.TotalCases, summary.Municipalities, summary.States)

		if filtered.Len() == 0 {
			fmt.Fprintln(out, "No notifications match the selected filter.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

		fmt.Fprintln(out, "Cases by state")
		fmt.Fprintln(w, "UF\tCASES")
		for _, c := range report.StateTotals(filtered) {
			fmt.Fprintf(w, "%s\t%d\n", c.State, c.Cases)
		}
		w.Flush()

		fmt.Fprintln(out, "\nTop municipalities")
		munis := report.TopMunicipalities(filtered)
		if len(munis) == 0 {
			fmt.Fprintln(out, "  no rows with a known municipality name")
		} else {
			fmt.Fprintln(w, "MUNICIPALITY\tUF\tCASES")
			for _, c := range munis {
				fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.State, c.Cases)
			}
			w.Flush()
		}

		fmt.Fprintln(out, "\nMap")
		geo := report.GeoTotals(filtered)
		if len(geo.Points) == 0 {
			fmt.Fprintln(out, "  no municipalities with coordinates")
		} else {
			fmt.Fprintf(out, "  %d located municipalities, sizeref %.4f\n", len(geo.Points), geo.SizeRef)
			if geo.Bounds != nil {
				fmt.Fprintf(out, "  centered at (%.4f, %.4f)\n", geo.Bounds.CenterLat, geo.Bounds.CenterLon)
			}
		}

		fmt.Fprintf(out, "\nCases vs %s\n", variable)
		structural := report.StructuralTotals(filtered, variable)
		if len(structural.Points) == 0 {
			fmt.Fprintln(out, "  no municipalities with a value for this variable")
		} else {
			fmt.Fprintf(out, "  %d municipalities\n", len(structural.Points))
			if structural.Trend != nil {
				fmt.Fprintf(out, "  trend: cases = %.4f + %.4f*x (R2 %.4f)\n",
					structural.Trend.Alpha, structural.Trend.Beta, structural.Trend.R2)
			}
		}

		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportYear, "year", 0, "notification year (required)")
	reportCmd.Flags().StringSliceVar(&reportStates, "states", nil, "state codes to include (default all)")
	reportCmd.Flags().StringVar(&reportVariable, "variable", string(report.VarPrecipitation), "structural variable for the correlation section")
	_ = reportCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(reportCmd)
}
