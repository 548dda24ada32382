package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"escrutinio/internal/bootstrap"
	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/errs"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the mandate roster used by resolve-members",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert mandates from a YAML roster file",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		file, _ := cmd.Flags().GetString("file")
		report, err := svc.Roster.Import(ctx, file)
		if err != nil {
			logging.Error(ctx, "roster import failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import roster")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "mandates read=%d inserted=%d updated=%d\n", report.Read, report.Inserted, report.Updated); err != nil {
			return errs.Wrap(err, "write roster output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterImportCmd)

	rosterImportCmd.Flags().String("file", "", "Roster YAML file")
	_ = rosterImportCmd.MarkFlagRequired("file")
}
