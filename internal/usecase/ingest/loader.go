package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"escrutinio/internal/bootstrap/logging"
	domainingest "escrutinio/internal/domain/ingest"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
)

// loader maps extracted records to canonical rows inside the ingestion
// transaction.
type loader struct {
	svc      *Service
	sourceID string
	strict   bool
	snapshot string
	summary  *Summary
}

// load upserts one record. It reports false for records skipped because no
// identity could be derived; outside strict mode that is not an error.
func (l *loader) load(ctx context.Context, rec domainingest.Record) (bool, error) {
	var err error
	switch d := rec.Draft.(type) {
	case domainingest.VoteEventDraft:
		err = l.loadVoteEvent(ctx, rec, d)
	case domainingest.InitiativeDraft:
		err = l.loadInitiative(ctx, rec, d)
	case domainingest.InterventionDraft:
		err = l.loadIntervention(ctx, rec, d)
	case domainingest.PartyProgramDraft:
		err = l.loadPartyProgram(ctx, rec, d)
	default:
		err = &domainingest.ExtractionError{SourceID: l.sourceID, Location: rec.RecordID, Err: fmt.Errorf("record has no entity draft (%T)", rec.Draft)}
	}
	if err == nil {
		return true, nil
	}

	var identity *domainingest.IdentityError
	if errors.As(err, &identity) && !l.strict {
		l.summary.RecordsSkipped++
		logging.Warn(ctx, "record skipped", slog.String("record_id", rec.RecordID), slog.Any("err", errs.Loggable(err)))
		return false, nil
	}
	return false, errs.WithStack(err)
}

func (l *loader) sourceRecord(ctx context.Context, rec domainingest.Record) (ports.Provenance, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return ports.Provenance{}, errs.Wrapf(err, "marshal payload of %s", rec.RecordID)
	}
	sum := sha256.Sum256(payload)

	pk, err := l.svc.repo.UpsertSourceRecord(ctx, ports.SourceRecordUpsert{
		SourceID:       l.sourceID,
		SourceRecordID: rec.RecordID,
		SnapshotDate:   l.snapshot,
		RawPayload:     string(payload),
		ContentHash:    hex.EncodeToString(sum[:]),
		SeenAt:         l.svc.timestamp(),
	})
	if err != nil {
		return ports.Provenance{}, errs.Wrapf(err, "upsert source record %s", rec.RecordID)
	}
	return ports.Provenance{
		SourceID:       l.sourceID,
		SourceURL:      rec.DetailURL,
		SourceRecordPK: pk,
		SnapshotDate:   l.snapshot,
	}, nil
}

func (l *loader) loadVoteEvent(ctx context.Context, rec domainingest.Record, d domainingest.VoteEventDraft) error {
	id, err := domainingest.VoteEventID(l.sourceID, rec, d)
	if err != nil {
		return err
	}
	prov, err := l.sourceRecord(ctx, rec)
	if err != nil {
		return err
	}

	expediente := d.Expediente
	if expediente == "" {
		expediente = textnorm.Expediente(d.ExpedienteText)
	}
	if err := l.svc.repo.UpsertVoteEvent(ctx, ports.VoteEventRow{
		VoteEventID:    id,
		Chamber:        d.Chamber,
		Legislature:    d.Legislature,
		SessionNumber:  d.SessionNumber,
		VoteNumber:     d.VoteNumber,
		VoteDate:       d.VoteDate,
		Title:          d.Title,
		ExpedienteText: d.ExpedienteText,
		SubgroupTitle:  d.SubgroupTitle,
		SubgroupText:   d.SubgroupText,
		Expediente:     expediente,
		TotalPresent:   d.TotalPresent,
		TotalYes:       d.TotalYes,
		TotalNo:        d.TotalNo,
		TotalAbstain:   d.TotalAbstain,
		TotalNoVote:    d.TotalNoVote,
		Provenance:     prov,
		UpdatedAt:      l.svc.timestamp(),
	}); err != nil {
		return err
	}

	// Children are fully replaced; already resolved references are carried
	// over to the new rows.
	resolved, err := l.svc.repo.ResolvedOfficeholders(ctx, id)
	if err != nil {
		return err
	}
	keys := domainingest.SeatKeys(d.Members)
	rows := make([]ports.MemberVoteRow, 0, len(d.Members))
	for i, m := range d.Members {
		rows = append(rows, ports.MemberVoteRow{
			VoteEventID:          id,
			SeatKey:              keys[i],
			MemberName:           m.MemberName,
			MemberNameNormalized: textnorm.Name(m.MemberName),
			GroupCode:            m.GroupCode,
			VoteChoice:           m.Choice,
			Provenance:           prov,
		})
	}
	carryOver(resolved, rows)
	n, err := l.svc.repo.ReplaceMemberVotes(ctx, id, rows)
	if err != nil {
		return err
	}
	l.summary.EventsLoaded++
	l.summary.MemberVotesLoaded += n
	return nil
}

func (l *loader) loadInitiative(ctx context.Context, rec domainingest.Record, d domainingest.InitiativeDraft) error {
	id, err := domainingest.InitiativeID(l.sourceID, rec, d)
	if err != nil {
		return err
	}
	prov, err := l.sourceRecord(ctx, rec)
	if err != nil {
		return err
	}
	if err := l.svc.repo.UpsertInitiative(ctx, ports.InitiativeRow{
		InitiativeID:   id,
		Chamber:        d.Chamber,
		Legislature:    d.Legislature,
		Expediente:     textnorm.Expediente(d.Expediente),
		Title:          d.Title,
		InitiativeType: d.InitiativeType,
		Provenance:     prov,
		UpdatedAt:      l.svc.timestamp(),
	}); err != nil {
		return err
	}
	l.summary.InitiativesLoaded++
	return nil
}

func (l *loader) loadIntervention(ctx context.Context, rec domainingest.Record, d domainingest.InterventionDraft) error {
	id, err := domainingest.InterventionID(l.sourceID, rec, d)
	if err != nil {
		return err
	}
	prov, err := l.sourceRecord(ctx, rec)
	if err != nil {
		return err
	}
	if err := l.svc.repo.UpsertIntervention(ctx, ports.InterventionRow{
		InterventionID:    id,
		Chamber:           d.Chamber,
		Legislature:       d.Legislature,
		SessionDate:       d.SessionDate,
		Speaker:           d.Speaker,
		SpeakerNormalized: textnorm.Name(d.Speaker),
		Title:             d.Title,
		Body:              d.Body,
		DetailURL:         rec.DetailURL,
		Provenance:        prov,
		UpdatedAt:         l.svc.timestamp(),
	}); err != nil {
		return err
	}
	l.summary.InterventionsLoaded++
	return nil
}

func (l *loader) loadPartyProgram(ctx context.Context, rec domainingest.Record, d domainingest.PartyProgramDraft) error {
	id, err := domainingest.PartyProgramID(l.sourceID, rec, d)
	if err != nil {
		return err
	}
	prov, err := l.sourceRecord(ctx, rec)
	if err != nil {
		return err
	}
	if err := l.svc.repo.UpsertPartyProgram(ctx, ports.PartyProgramRow{
		ProgramID:   id,
		Party:       d.Party,
		Election:    d.Election,
		Title:       d.Title,
		DocumentURL: d.DocumentURL,
		Format:      d.Format,
		Provenance:  prov,
		UpdatedAt:   l.svc.timestamp(),
	}); err != nil {
		return err
	}
	l.summary.ProgramsLoaded++
	return nil
}

// carryOver copies resolved office-holder references onto replacement rows.
// A row keeps the reference of its seat when the seat still holds the same
// person; otherwise it takes the reference stored under its normalized name,
// provided that name is unique among both the old and the new rows.
func carryOver(resolved map[string]ports.ResolvedOfficeholder, rows []ports.MemberVoteRow) {
	if len(resolved) == 0 {
		return
	}

	oldByName := make(map[string]string, len(resolved))
	oldCount := make(map[string]int, len(resolved))
	for _, prev := range resolved {
		oldByName[prev.MemberNameNormalized] = prev.OfficeholderID
		oldCount[prev.MemberNameNormalized]++
	}
	newCount := make(map[string]int, len(rows))
	for _, row := range rows {
		newCount[row.MemberNameNormalized]++
	}

	taken := make(map[string]struct{}, len(resolved))
	for i := range rows {
		row := &rows[i]
		if prev, ok := resolved[row.SeatKey]; ok && prev.MemberNameNormalized == row.MemberNameNormalized {
			officeholder := prev.OfficeholderID
			row.OfficeholderID = &officeholder
			taken[officeholder] = struct{}{}
		}
	}
	for i := range rows {
		row := &rows[i]
		name := row.MemberNameNormalized
		if row.OfficeholderID != nil || name == "" || oldCount[name] != 1 || newCount[name] != 1 {
			continue
		}
		officeholder, ok := oldByName[name]
		if !ok {
			continue
		}
		if _, dup := taken[officeholder]; dup {
			continue
		}
		row.OfficeholderID = &officeholder
		taken[officeholder] = struct{}{}
	}
}
