package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"escrutinio/internal/bootstrap/logging"
	domainingest "escrutinio/internal/domain/ingest"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
	"escrutinio/internal/sources"
)

// Ingest runs one connector end to end. The run always reaches a terminal
// state; failures are recorded on the run and returned to the caller.
func (s *Service) Ingest(ctx context.Context, in Input) (Result, error) {
	if in.Connector == nil {
		return Result{}, errConnectorRequired
	}
	if err := in.Options.Validate(); err != nil {
		return Result{}, errs.Wrap(err, "validate options")
	}

	sourceID := in.Connector.SourceID()
	origin := in.Connector.Resolve(in.URLOverride)
	if p := strings.TrimSpace(in.LocalPath); p != "" {
		origin = p
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "ingest.pipeline"),
		slog.String("source", sourceID),
	)

	runID, err := s.repo.OpenRun(ctx, ports.RunOpen{SourceID: sourceID, SourceURL: origin, StartedAt: s.timestamp()})
	if err != nil {
		return Result{}, errs.Wrap(err, "open ingestion run")
	}
	ctx = logging.WithAttrs(ctx, slog.Uint64("run_id", runID))
	logging.Info(ctx, "ingestion started", slog.String("origin", origin), slog.Bool("strict", in.StrictNetwork))

	res := Result{RunID: runID, SourceID: sourceID}
	var rawFetchID *uint64
	runErr := s.run(ctx, in, &res, &rawFetchID)

	finish := ports.RunFinish{
		RunID:         runID,
		RecordsSeen:   res.RecordsSeen,
		RecordsLoaded: res.RecordsLoaded,
		RawFetchID:    rawFetchID,
		FinishedAt:    s.timestamp(),
	}
	if runErr != nil {
		finish.Status = ports.RunStatusError
		finish.Message = domainingest.Describe(runErr)
	} else {
		finish.Status = ports.RunStatusOK
		body, err := json.Marshal(res.Summary)
		if err != nil {
			return res, errs.Wrap(err, "marshal run summary")
		}
		finish.Message = string(body)
	}

	// Finalization must not depend on a caller context that may already be
	// cancelled.
	if err := s.repo.FinishRun(context.WithoutCancel(ctx), finish); err != nil {
		logging.Error(ctx, "finalize ingestion run failed", slog.Any("err", errs.Loggable(err)))
		return res, errors.Join(runErr, errs.Wrap(err, "finalize ingestion run"))
	}
	s.metrics.Run(sourceID, finish.Status)

	if runErr != nil {
		logging.Error(ctx, "ingestion failed",
			slog.Int("records_seen", res.RecordsSeen),
			slog.Int("records_loaded", res.RecordsLoaded),
			slog.Any("err", errs.Loggable(runErr)),
		)
		return res, runErr
	}
	logging.Info(ctx, "ingestion finished",
		slog.Int("records_seen", res.RecordsSeen),
		slog.Int("records_loaded", res.RecordsLoaded),
		slog.Bool("unchanged", res.Summary.Unchanged),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, in Input, res *Result, rawFetchID **uint64) error {
	sourceID := in.Connector.SourceID()

	extracted, err := in.Connector.Extract(ctx, sources.ExtractRequest{
		Store:     s.store,
		Timeout:   in.Timeout,
		URL:       in.URLOverride,
		LocalPath: in.LocalPath,
		Strict:    in.StrictNetwork,
		Options:   in.Options,
	})
	if err != nil {
		return errs.Wrap(err, "extract")
	}
	res.RecordsSeen = len(extracted.Records)
	res.Summary.Note = extracted.Note
	res.Summary.ContentHash = extracted.ContentHash
	res.Summary.ExtractionFailures = len(extracted.Failures)

	// The raw fetch is recorded outside the entity transaction: content dedup
	// holds even when the load below is rolled back.
	id, inserted, err := s.repo.UpsertRawFetch(ctx, ports.RawFetchUpsert{
		SourceID:    sourceID,
		SourceURL:   extracted.SourceURL,
		ResolvedURL: extracted.ResolvedURL,
		ContentType: extracted.ContentType,
		ByteLen:     extracted.ByteLen,
		ContentHash: extracted.ContentHash,
		StoragePath: extracted.RawPath,
		FetchedAt:   extracted.FetchedAt.Format(timeLayout),
	})
	if err != nil {
		return errs.Wrap(err, "record raw fetch")
	}
	*rawFetchID = &id
	res.Summary.RawFetchInserted = inserted

	if s.cache != nil {
		last, found, err := s.cache.Get(ctx, lastHashKeyPrefix+sourceID)
		if err != nil {
			return errs.Wrap(err, "read last content hash")
		}
		res.Summary.Unchanged = found && last == extracted.ContentHash
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		loader := &loader{svc: s, sourceID: sourceID, strict: in.StrictNetwork, snapshot: s.snapshotDate(in), summary: &res.Summary}
		for _, rec := range extracted.Records {
			ok, err := loader.load(txCtx, rec)
			if err != nil {
				return err
			}
			if ok {
				res.RecordsLoaded++
			}
		}
		s.metrics.Records(sourceID, "loaded", res.RecordsLoaded)
		s.metrics.Records(sourceID, "skipped", res.Summary.RecordsSkipped)

		if err := checkStrict(in, extracted, res); err != nil {
			return err
		}

		if s.cache != nil {
			if err := s.cache.Set(txCtx, lastHashKeyPrefix+sourceID, extracted.ContentHash, 0); err != nil {
				return errs.Wrap(err, "store last content hash")
			}
		}
		return nil
	})
}

// checkStrict applies the strict-mode guards: something was seen but nothing
// loaded, or a live network fetch loaded fewer records than the source minimum.
func checkStrict(in Input, extracted domainingest.Extracted, res *Result) error {
	if !in.StrictNetwork {
		return nil
	}
	sourceID := in.Connector.SourceID()
	minimum := in.Connector.Spec().MinLoaded

	if res.RecordsSeen > 0 && res.RecordsLoaded == 0 {
		return &domainingest.StrictModeAbort{
			SourceID: sourceID,
			Reason:   "records seen but none loaded",
			Seen:     res.RecordsSeen,
			Loaded:   res.RecordsLoaded,
			Minimum:  minimum,
		}
	}
	if extracted.Note == domainingest.NoteNetwork && res.RecordsLoaded < minimum {
		return &domainingest.StrictModeAbort{
			SourceID: sourceID,
			Reason:   "loaded below the source minimum on a network fetch",
			Seen:     res.RecordsSeen,
			Loaded:   res.RecordsLoaded,
			Minimum:  minimum,
		}
	}
	return nil
}

// IngestAll ingests each connector in order and stops at the first failure.
func (s *Service) IngestAll(ctx context.Context, connectors []sources.Connector, in Input) ([]Result, error) {
	results := make([]Result, 0, len(connectors))
	for _, c := range connectors {
		step := in
		step.Connector = c
		res, err := s.Ingest(ctx, step)
		results = append(results, res)
		if err != nil {
			return results, errs.Wrapf(err, "ingest %s", c.SourceID())
		}
	}
	return results, nil
}
