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

type ReconcileRepository struct {
	db *gorm.DB
}

var (
	_ ports.MemberVoteRepository = (*ReconcileRepository)(nil)
	_ ports.MandateRepository    = (*ReconcileRepository)(nil)
	_ ports.LinkRepository       = (*ReconcileRepository)(nil)
)

func NewReconcileRepository(db *gorm.DB) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

type unresolvedRow struct {
	VoteEventID          string
	SeatKey              string
	SourceID             string
	Chamber              string
	VoteDate             string
	MemberName           string
	MemberNameNormalized string
}

func (r *ReconcileRepository) ListUnresolvedMemberVotes(ctx context.Context, sourceIDs []string) ([]ports.UnresolvedMemberVote, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	var rows []unresolvedRow
	if err := db.Table("member_votes AS mv").
		Select("mv.vote_event_id, mv.seat_key, ve.source_id, ve.chamber, ve.vote_date, mv.member_name, mv.member_name_normalized").
		Joins("JOIN vote_events AS ve ON ve.vote_event_id = mv.vote_event_id").
		Where("mv.officeholder_id IS NULL AND ve.source_id IN ?", sourceIDs).
		Order("ve.vote_date asc, mv.vote_event_id asc, mv.seat_key asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query unresolved member votes")
	}

	items := make([]ports.UnresolvedMemberVote, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.UnresolvedMemberVote(row))
	}
	return items, nil
}

func (r *ReconcileRepository) AssignOfficeholder(ctx context.Context, voteEventID string, seatKey string, officeholderID string) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(officeholderID) == "" {
		return false, errors.New("officeholder id is required")
	}

	result := db.Model(&model.MemberVote{}).
		Where("vote_event_id = ? AND seat_key = ? AND officeholder_id IS NULL", voteEventID, seatKey).
		Update("officeholder_id", officeholderID)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "assign officeholder")
	}
	return result.RowsAffected > 0, nil
}

func (r *ReconcileRepository) ListMandates(ctx context.Context, sources []string) ([]ports.Mandate, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Mandate{}).Order("mandate_id asc")
	if len(sources) > 0 {
		query = query.Where("source IN ?", sources)
	}

	var rows []model.Mandate
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query mandates")
	}

	items := make([]ports.Mandate, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Mandate{
			MandateID:      row.MandateID,
			OfficeholderID: row.OfficeholderID,
			Source:         row.Source,
			Active:         row.Active,
			StartDate:      row.StartDate,
			EndDate:        row.EndDate,
			FullName:       row.FullName,
			NameNormalized: row.NameNormalized,
			Legislature:    row.Legislature,
		})
	}
	return items, nil
}

func (r *ReconcileRepository) UpsertMandate(ctx context.Context, input ports.MandateUpsert) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	var existing int64
	if err := db.Model(&model.Mandate{}).
		Where("officeholder_id = ? AND source = ? AND start_date = ?", input.OfficeholderID, input.Source, input.StartDate).
		Count(&existing).Error; err != nil {
		return false, errs.Wrap(err, "count mandate")
	}

	row := model.Mandate{
		OfficeholderID: input.OfficeholderID,
		Source:         input.Source,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		Active:         input.Active,
		FullName:       input.FullName,
		NameNormalized: input.NameNormalized,
		Legislature:    input.Legislature,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "officeholder_id"}, {Name: "source"}, {Name: "start_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"end_date", "active", "full_name", "name_normalized", "legislature"}),
	}).Create(&row).Error; err != nil {
		return false, errs.Wrap(err, "upsert mandate")
	}
	return existing == 0, nil
}

func (r *ReconcileRepository) ListVoteEventsForLinking(ctx context.Context, chamber string) ([]ports.VoteEventForLinking, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.VoteEvent
	if err := db.Where("chamber = ?", chamber).Order("vote_date asc, vote_event_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query vote events for linking")
	}

	items := make([]ports.VoteEventForLinking, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.VoteEventForLinking{
			VoteEventID:    row.VoteEventID,
			Chamber:        row.Chamber,
			Legislature:    row.Legislature,
			Title:          row.Title,
			ExpedienteText: row.ExpedienteText,
			SubgroupTitle:  row.SubgroupTitle,
			SubgroupText:   row.SubgroupText,
			Expediente:     row.Expediente,
		})
	}
	return items, nil
}

type initiativeLinkRow struct {
	InitiativeID string
	Chamber      string
	Legislature  string
	Expediente   string
	Title        string
	RawPayload   string
}

func (r *ReconcileRepository) ListInitiativesForLinking(ctx context.Context, chamber string) ([]ports.InitiativeForLinking, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []initiativeLinkRow
	if err := db.Table("initiatives AS i").
		Select("i.initiative_id, i.chamber, i.legislature, i.expediente, i.title, COALESCE(sr.raw_payload, '') AS raw_payload").
		Joins("LEFT JOIN source_records AS sr ON sr.source_record_pk = i.source_record_pk").
		Where("i.chamber = ?", chamber).
		Order("i.initiative_id asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query initiatives for linking")
	}

	items := make([]ports.InitiativeForLinking, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.InitiativeForLinking(row))
	}
	return items, nil
}

func (r *ReconcileRepository) UpsertLink(ctx context.Context, input ports.LinkUpsert) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.VoteEventLink{
		VoteEventID:  input.VoteEventID,
		InitiativeID: input.InitiativeID,
		Method:       input.Method,
		Confidence:   input.Confidence,
		EvidenceJSON: input.EvidenceJSON,
		CreatedAt:    input.At,
		UpdatedAt:    input.At,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vote_event_id"}, {Name: "initiative_id"}, {Name: "method"}},
		DoUpdates: clause.AssignmentColumns([]string{"confidence", "evidence_json", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert vote event link")
	}
	return nil
}

func (r *ReconcileRepository) ListLinks(ctx context.Context, voteEventID string) ([]ports.Link, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.VoteEventLink{}).Order("vote_event_id asc, initiative_id asc, method asc")
	if id := strings.TrimSpace(voteEventID); id != "" {
		query = query.Where("vote_event_id = ?", id)
	}

	var rows []model.VoteEventLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query vote event links")
	}

	items := make([]ports.Link, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Link{
			VoteEventID:  row.VoteEventID,
			InitiativeID: row.InitiativeID,
			Method:       row.Method,
			Confidence:   row.Confidence,
			EvidenceJSON: row.EvidenceJSON,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return items, nil
}
