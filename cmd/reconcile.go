package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"escrutinio/internal/bootstrap"
	"escrutinio/internal/bootstrap/logging"
	domainingest "escrutinio/internal/domain/ingest"
	"escrutinio/internal/errs"
	"escrutinio/internal/usecase/reconcile"
)

var resolveMembersCmd = &cobra.Command{
	Use:   "resolve-members",
	Short: "Attach office-holder references to unresolved member votes",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		sourceIDs, _ := cmd.Flags().GetStringSlice("source")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		sampleLimit, _ := cmd.Flags().GetInt("sample-limit")
		if len(sourceIDs) == 0 {
			sourceIDs = app.Catalog.IDsByKind(domainingest.KindVoteEvent)
		}

		report, err := svc.Reconcile.ResolveMembers(ctx, reconcile.ResolveInput{
			SourceIDs:   sourceIDs,
			DryRun:      dryRun,
			SampleLimit: sampleLimit,
		})
		if err != nil {
			logging.Error(ctx, "resolve members failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "resolve members")
		}
		return writeJSON(cmd, report)
	}),
}

var linkInitiativesCmd = &cobra.Command{
	Use:   "link-initiatives",
	Short: "Link vote events to the initiatives they decide",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		chambers, _ := cmd.Flags().GetStringSlice("chamber")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		report, err := svc.Reconcile.LinkInitiatives(ctx, reconcile.LinkInput{Chambers: chambers, DryRun: dryRun})
		if err != nil {
			logging.Error(ctx, "link initiatives failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "link initiatives")
		}
		return writeJSON(cmd, report)
	}),
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errs.Wrap(err, "write report")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(resolveMembersCmd)
	rootCmd.AddCommand(linkInitiativesCmd)

	resolveMembersCmd.Flags().StringSlice("source", nil, "Vote source ids to resolve (default: every vote source)")
	resolveMembersCmd.Flags().Bool("dry-run", false, "Compute the report without writing")
	resolveMembersCmd.Flags().Int("sample-limit", 20, "Max unmatched rows listed in the report")

	linkInitiativesCmd.Flags().StringSlice("chamber", nil, "Chambers to link (congreso|senado, default: both)")
	linkInitiativesCmd.Flags().Bool("dry-run", false, "Compute the report without writing")
}
