package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"escrutinio/internal/bootstrap"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect ingestion run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingestion runs, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		sourceID, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := svc.Runs.ListRuns(cmd.Context(), ports.RunFilter{SourceID: sourceID, Limit: limit})
		if err != nil {
			return errs.Wrap(err, "list runs")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSOURCE\tSTATUS\tSEEN\tLOADED\tSTARTED\tMESSAGE")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n", r.RunID, r.SourceID, r.Status, r.RecordsSeen, r.RecordsLoaded, r.StartedAt, truncate(r.Message, 80))
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write runs output")
		}
		return nil
	}),
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)

	runsListCmd.Flags().String("source", "", "Only runs of this source id")
	runsListCmd.Flags().Int("limit", 20, "Max runs listed")
}
