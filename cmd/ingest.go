package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"escrutinio/internal/bootstrap"
	"escrutinio/internal/bootstrap/logging"
	domainingest "escrutinio/internal/domain/ingest"
	"escrutinio/internal/errs"
	"escrutinio/internal/rawstore"
	"escrutinio/internal/usecase/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract one source (or all) and load it into the canonical tables",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		sourceID, _ := cmd.Flags().GetString("source")
		rawDir, _ := cmd.Flags().GetString("raw-dir")
		timeoutSecs, _ := cmd.Flags().GetInt("timeout")
		snapshot, _ := cmd.Flags().GetString("snapshot-date")
		strict, _ := cmd.Flags().GetBool("strict-network")
		fromFile, _ := cmd.Flags().GetString("from-file")
		urlOverride, _ := cmd.Flags().GetString("url-override")

		connectors, err := app.Sources.Select(sourceID)
		if err != nil {
			return err
		}
		if len(connectors) > 1 && (fromFile != "" || urlOverride != "") {
			return fmt.Errorf("--from-file and --url-override need a single --source, got %q", sourceID)
		}

		opts, err := domainingest.OptionsFromBag(optionsBag(cmd))
		if err != nil {
			return errs.Wrap(err, "parse ingest options")
		}

		in := ingest.Input{
			Timeout:       app.Config.Ingest.Timeout,
			LocalPath:     fromFile,
			URLOverride:   urlOverride,
			SnapshotDate:  app.Config.Ingest.SnapshotDate,
			StrictNetwork: app.Config.Ingest.StrictNetwork || strict,
			Options:       opts,
		}
		if timeoutSecs > 0 {
			in.Timeout = time.Duration(timeoutSecs) * time.Second
		}
		if snapshot != "" {
			if _, err := time.Parse(time.DateOnly, snapshot); err != nil {
				return errs.Wrap(err, "--snapshot-date must be YYYY-MM-DD")
			}
			in.SnapshotDate = snapshot
		}

		ingestSvc := svc.Ingest
		if strings.TrimSpace(rawDir) != "" {
			ingestSvc = ingestSvc.WithStore(rawstore.New(rawDir))
		}

		results, err := ingestSvc.IngestAll(ctx, connectors, in)
		for _, res := range results {
			if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "source=%s run=%d seen=%d loaded=%d skipped=%d unchanged=%t\n",
				res.SourceID, res.RunID, res.RecordsSeen, res.RecordsLoaded, res.Summary.RecordsSkipped, res.Summary.Unchanged); werr != nil {
				return errs.Wrap(werr, "write ingest output")
			}
		}
		if err != nil {
			logging.Error(ctx, "ingest failed", slog.Any("err", errs.Loggable(err)))
			return err
		}
		return nil
	}),
}

func optionsBag(cmd *cobra.Command) map[string]any {
	bag := make(map[string]any)
	for flag, key := range map[string]string{"max-votes": "max_votes", "max-records": "max_records"} {
		if cmd.Flags().Changed(flag) {
			n, _ := cmd.Flags().GetInt(flag)
			bag[key] = n
		}
	}
	for flag, key := range map[string]string{"since-date": "since_date", "until-date": "until_date", "variant": "variant"} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			bag[key] = v
		}
	}
	return bag
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("source", "all", "Source id, or all")
	ingestCmd.Flags().String("raw-dir", "", "Raw artifact directory (default: ingest.raw_dir)")
	ingestCmd.Flags().Int("timeout", 0, "Per-request timeout in seconds (default: ingest.timeout)")
	ingestCmd.Flags().String("snapshot-date", "", "Snapshot date YYYY-MM-DD (default: today)")
	ingestCmd.Flags().Bool("strict-network", false, "Fail the run on empty or below-minimum yields")
	ingestCmd.Flags().String("from-file", "", "Read a local file or directory instead of fetching")
	ingestCmd.Flags().String("url-override", "", "Fetch this URL instead of the catalog default")
	ingestCmd.Flags().Int("max-votes", 0, "Cap processed records (alias of --max-records)")
	ingestCmd.Flags().Int("max-records", 0, "Cap processed records")
	ingestCmd.Flags().String("since-date", "", "Only fetch records on or after YYYY-MM-DD (network mode)")
	ingestCmd.Flags().String("until-date", "", "Only fetch records on or before YYYY-MM-DD (network mode)")
	ingestCmd.Flags().String("variant", "", "Export variant of the source catalog")
}
