package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"escrutinio/internal/errs"
	"escrutinio/internal/infrastructure/persistence/sqlite/model"
	"escrutinio/internal/ports"
)

const memberVoteBatchSize = 200

type IngestRepository struct {
	db *gorm.DB
}

var _ ports.IngestRepository = (*IngestRepository)(nil)

func NewIngestRepository(db *gorm.DB) *IngestRepository {
	return &IngestRepository{db: db}
}

func (r *IngestRepository) OpenRun(ctx context.Context, input ports.RunOpen) (uint64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	row := model.IngestionRun{
		SourceID:  input.SourceID,
		SourceURL: input.SourceURL,
		Status:    ports.RunStatusRunning,
		StartedAt: input.StartedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, errs.Wrap(err, "insert ingestion run")
	}
	return row.RunID, nil
}

// FinishRun moves a running run to its terminal state. A run that already
// reached a terminal state is left untouched.
func (r *IngestRepository) FinishRun(ctx context.Context, input ports.RunFinish) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.IngestionRun{}).
		Where("run_id = ? AND status = ?", input.RunID, ports.RunStatusRunning).
		Updates(map[string]any{
			"status":         input.Status,
			"message":        input.Message,
			"records_seen":   input.RecordsSeen,
			"records_loaded": input.RecordsLoaded,
			"raw_fetch_id":   input.RawFetchID,
			"finished_at":    input.FinishedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "finalize ingestion run")
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetRun(ctx, input.RunID); err != nil {
			return err
		}
	}
	return nil
}

func (r *IngestRepository) GetRun(ctx context.Context, runID uint64) (ports.Run, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Run{}, err
	}

	var row model.IngestionRun
	if err := db.Where("run_id = ?", runID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Run{}, ports.ErrRunNotFound
		}
		return ports.Run{}, errs.Wrap(err, "query ingestion run")
	}
	return mapRun(row), nil
}

func (r *IngestRepository) ListRuns(ctx context.Context, filter ports.RunFilter) ([]ports.Run, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.IngestionRun{}).Order("run_id desc")
	if source := strings.TrimSpace(filter.SourceID); source != "" {
		query = query.Where("source_id = ?", source)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.IngestionRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query ingestion runs")
	}

	items := make([]ports.Run, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRun(row))
	}
	return items, nil
}

func (r *IngestRepository) UpsertRawFetch(ctx context.Context, input ports.RawFetchUpsert) (uint64, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, false, err
	}

	row := model.RawFetch{
		SourceID:    input.SourceID,
		ContentHash: input.ContentHash,
		SourceURL:   input.SourceURL,
		ResolvedURL: input.ResolvedURL,
		ContentType: input.ContentType,
		ByteLen:     input.ByteLen,
		StoragePath: input.StoragePath,
		FetchedAt:   input.FetchedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "content_hash"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return 0, false, errs.Wrap(result.Error, "insert raw fetch")
	}
	if result.RowsAffected > 0 {
		return row.RawFetchID, true, nil
	}

	var existing model.RawFetch
	if err := db.Where("source_id = ? AND content_hash = ?", input.SourceID, input.ContentHash).
		Take(&existing).Error; err != nil {
		return 0, false, errs.Wrap(err, "query existing raw fetch")
	}
	return existing.RawFetchID, false, nil
}

func (r *IngestRepository) UpsertSourceRecord(ctx context.Context, input ports.SourceRecordUpsert) (uint64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	row := model.SourceRecord{
		SourceID:       input.SourceID,
		SourceRecordID: input.SourceRecordID,
		SnapshotDate:   input.SnapshotDate,
		RawPayload:     input.RawPayload,
		ContentHash:    input.ContentHash,
		CreatedAt:      input.SeenAt,
		UpdatedAt:      input.SeenAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "source_record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot_date", "raw_payload", "content_hash", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return 0, errs.Wrap(err, "upsert source record")
	}

	// The conflict path does not reliably report the surviving key.
	var pk uint64
	if err := db.Model(&model.SourceRecord{}).
		Where("source_id = ? AND source_record_id = ?", input.SourceID, input.SourceRecordID).
		Pluck("source_record_pk", &pk).Error; err != nil {
		return 0, errs.Wrap(err, "query source record key")
	}
	return pk, nil
}

func (r *IngestRepository) UpsertVoteEvent(ctx context.Context, in ports.VoteEventRow) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.VoteEvent{
		VoteEventID:    in.VoteEventID,
		Chamber:        in.Chamber,
		Legislature:    in.Legislature,
		SessionNumber:  in.SessionNumber,
		VoteNumber:     in.VoteNumber,
		VoteDate:       in.VoteDate,
		Title:          in.Title,
		ExpedienteText: in.ExpedienteText,
		SubgroupTitle:  in.SubgroupTitle,
		SubgroupText:   in.SubgroupText,
		Expediente:     in.Expediente,
		TotalPresent:   in.TotalPresent,
		TotalYes:       in.TotalYes,
		TotalNo:        in.TotalNo,
		TotalAbstain:   in.TotalAbstain,
		TotalNoVote:    in.TotalNoVote,
		SourceID:       in.Provenance.SourceID,
		SourceURL:      in.Provenance.SourceURL,
		SourceRecordPK: in.Provenance.SourceRecordPK,
		SnapshotDate:   in.Provenance.SnapshotDate,
		CreatedAt:      in.UpdatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vote_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chamber", "legislature", "session_number", "vote_number", "vote_date",
			"title", "expediente_text", "subgroup_title", "subgroup_text", "expediente",
			"total_present", "total_yes", "total_no", "total_abstain", "total_no_vote",
			"source_id", "source_url", "source_record_pk", "snapshot_date", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert vote event")
	}
	return nil
}

func (r *IngestRepository) ResolvedOfficeholders(ctx context.Context, voteEventID string) (map[string]ports.ResolvedOfficeholder, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.MemberVote
	if err := db.Where("vote_event_id = ? AND officeholder_id IS NOT NULL", voteEventID).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query resolved member votes")
	}

	out := make(map[string]ports.ResolvedOfficeholder, len(rows))
	for _, row := range rows {
		out[row.SeatKey] = ports.ResolvedOfficeholder{
			MemberNameNormalized: row.MemberNameNormalized,
			OfficeholderID:       derefString(row.OfficeholderID),
		}
	}
	return out, nil
}

func (r *IngestRepository) ReplaceMemberVotes(ctx context.Context, voteEventID string, rows []ports.MemberVoteRow) (int, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	if err := db.Where("vote_event_id = ?", voteEventID).Delete(&model.MemberVote{}).Error; err != nil {
		return 0, errs.Wrap(err, "delete member votes")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	items := make([]model.MemberVote, 0, len(rows))
	for _, in := range rows {
		items = append(items, model.MemberVote{
			VoteEventID:          voteEventID,
			SeatKey:              in.SeatKey,
			MemberName:           in.MemberName,
			MemberNameNormalized: in.MemberNameNormalized,
			OfficeholderID:       in.OfficeholderID,
			GroupCode:            in.GroupCode,
			VoteChoice:           in.VoteChoice,
			SourceID:             in.Provenance.SourceID,
			SourceURL:            in.Provenance.SourceURL,
			SourceRecordPK:       in.Provenance.SourceRecordPK,
			SnapshotDate:         in.Provenance.SnapshotDate,
		})
	}
	if err := db.CreateInBatches(&items, memberVoteBatchSize).Error; err != nil {
		return 0, errs.Wrap(err, "insert member votes")
	}
	return len(items), nil
}

func (r *IngestRepository) UpsertInitiative(ctx context.Context, in ports.InitiativeRow) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Initiative{
		InitiativeID:   in.InitiativeID,
		Chamber:        in.Chamber,
		Legislature:    in.Legislature,
		Expediente:     in.Expediente,
		Title:          in.Title,
		InitiativeType: in.InitiativeType,
		SourceID:       in.Provenance.SourceID,
		SourceURL:      in.Provenance.SourceURL,
		SourceRecordPK: in.Provenance.SourceRecordPK,
		SnapshotDate:   in.Provenance.SnapshotDate,
		CreatedAt:      in.UpdatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "initiative_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chamber", "legislature", "expediente", "title", "initiative_type",
			"source_id", "source_url", "source_record_pk", "snapshot_date", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert initiative")
	}
	return nil
}

func (r *IngestRepository) UpsertIntervention(ctx context.Context, in ports.InterventionRow) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Intervention{
		InterventionID:    in.InterventionID,
		Chamber:           in.Chamber,
		Legislature:       in.Legislature,
		SessionDate:       in.SessionDate,
		Speaker:           in.Speaker,
		SpeakerNormalized: in.SpeakerNormalized,
		Title:             in.Title,
		Body:              in.Body,
		DetailURL:         in.DetailURL,
		SourceID:          in.Provenance.SourceID,
		SourceURL:         in.Provenance.SourceURL,
		SourceRecordPK:    in.Provenance.SourceRecordPK,
		SnapshotDate:      in.Provenance.SnapshotDate,
		CreatedAt:         in.UpdatedAt,
		UpdatedAt:         in.UpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "intervention_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chamber", "legislature", "session_date", "speaker", "speaker_normalized",
			"title", "body", "detail_url", "source_id", "source_url", "source_record_pk",
			"snapshot_date", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert intervention")
	}
	return nil
}

func (r *IngestRepository) UpsertPartyProgram(ctx context.Context, in ports.PartyProgramRow) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.PartyProgram{
		ProgramID:      in.ProgramID,
		Party:          in.Party,
		Election:       in.Election,
		Title:          in.Title,
		DocumentURL:    in.DocumentURL,
		Format:         in.Format,
		SourceID:       in.Provenance.SourceID,
		SourceURL:      in.Provenance.SourceURL,
		SourceRecordPK: in.Provenance.SourceRecordPK,
		SnapshotDate:   in.Provenance.SnapshotDate,
		CreatedAt:      in.UpdatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "program_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"party", "election", "title", "document_url", "format",
			"source_id", "source_url", "source_record_pk", "snapshot_date", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert party program")
	}
	return nil
}

func (r *IngestRepository) CountEntities(ctx context.Context) (ports.EntityCounts, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.EntityCounts{}, err
	}

	var out ports.EntityCounts
	targets := []struct {
		model any
		dst   *int64
		name  string
	}{
		{&model.RawFetch{}, &out.RawFetches, "raw fetches"},
		{&model.SourceRecord{}, &out.SourceRecords, "source records"},
		{&model.VoteEvent{}, &out.VoteEvents, "vote events"},
		{&model.MemberVote{}, &out.MemberVotes, "member votes"},
		{&model.Initiative{}, &out.Initiatives, "initiatives"},
		{&model.Intervention{}, &out.Interventions, "interventions"},
		{&model.PartyProgram{}, &out.PartyPrograms, "party programs"},
	}
	for _, target := range targets {
		if err := db.Model(target.model).Count(target.dst).Error; err != nil {
			return ports.EntityCounts{}, errs.Wrapf(err, "count %s", target.name)
		}
	}
	return out, nil
}

func mapRun(row model.IngestionRun) ports.Run {
	return ports.Run{
		RunID:         row.RunID,
		SourceID:      row.SourceID,
		SourceURL:     row.SourceURL,
		Status:        row.Status,
		Message:       row.Message,
		RecordsSeen:   row.RecordsSeen,
		RecordsLoaded: row.RecordsLoaded,
		RawFetchID:    row.RawFetchID,
		StartedAt:     row.StartedAt,
		FinishedAt:    row.FinishedAt,
	}
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
