package ports

import (
	"context"
	"errors"
)

var ErrRunNotFound = errors.New("ingestion run not found")

const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusError   = "error"
)

type RunOpen struct {
	SourceID  string
	SourceURL string
	StartedAt string
}

type RunFinish struct {
	RunID         uint64
	Status        string
	Message       string
	RecordsSeen   int
	RecordsLoaded int
	RawFetchID    *uint64
	FinishedAt    string
}

type Run struct {
	RunID         uint64
	SourceID      string
	SourceURL     string
	Status        string
	Message       string
	RecordsSeen   int
	RecordsLoaded int
	RawFetchID    *uint64
	StartedAt     string
	FinishedAt    *string
}

type RunFilter struct {
	SourceID string
	Limit    int
}

type RawFetchUpsert struct {
	SourceID    string
	SourceURL   string
	ResolvedURL string
	ContentType string
	ByteLen     int64
	ContentHash string
	StoragePath string
	FetchedAt   string
}

type SourceRecordUpsert struct {
	SourceID       string
	SourceRecordID string
	SnapshotDate   string
	RawPayload     string
	ContentHash    string
	SeenAt         string
}

// Provenance is attached to every canonical row.
type Provenance struct {
	SourceID       string
	SourceURL      string
	SourceRecordPK uint64
	SnapshotDate   string
}

type VoteEventRow struct {
	VoteEventID    string
	Chamber        string
	Legislature    string
	SessionNumber  *int64
	VoteNumber     *int64
	VoteDate       string
	Title          string
	ExpedienteText string
	SubgroupTitle  string
	SubgroupText   string
	Expediente     string
	TotalPresent   *int64
	TotalYes       *int64
	TotalNo        *int64
	TotalAbstain   *int64
	TotalNoVote    *int64
	Provenance     Provenance
	UpdatedAt      string
}

type MemberVoteRow struct {
	VoteEventID          string
	SeatKey              string
	MemberName           string
	MemberNameNormalized string
	OfficeholderID       *string
	GroupCode            string
	VoteChoice           string
	Provenance           Provenance
}

type InitiativeRow struct {
	InitiativeID   string
	Chamber        string
	Legislature    string
	Expediente     string
	Title          string
	InitiativeType string
	Provenance     Provenance
	UpdatedAt      string
}

type InterventionRow struct {
	InterventionID    string
	Chamber           string
	Legislature       string
	SessionDate       string
	Speaker           string
	SpeakerNormalized string
	Title             string
	Body              string
	DetailURL         string
	Provenance        Provenance
	UpdatedAt         string
}

type PartyProgramRow struct {
	ProgramID   string
	Party       string
	Election    string
	Title       string
	DocumentURL string
	Format      string
	Provenance  Provenance
	UpdatedAt   string
}

// ResolvedOfficeholder is an office-holder reference already stored for a seat.
type ResolvedOfficeholder struct {
	MemberNameNormalized string
	OfficeholderID       string
}

// EntityCounts is a snapshot of canonical table sizes, used by idempotency checks.
type EntityCounts struct {
	RawFetches    int64
	SourceRecords int64
	VoteEvents    int64
	MemberVotes   int64
	Initiatives   int64
	Interventions int64
	PartyPrograms int64
}

type RunRepository interface {
	OpenRun(ctx context.Context, input RunOpen) (uint64, error)
	FinishRun(ctx context.Context, input RunFinish) error
	GetRun(ctx context.Context, runID uint64) (Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}

type IngestRepository interface {
	RunRepository
	// UpsertRawFetch inserts once per (source, content hash); a duplicate returns
	// the existing id with inserted=false.
	UpsertRawFetch(ctx context.Context, input RawFetchUpsert) (id uint64, inserted bool, err error)
	// UpsertSourceRecord keeps the internal primary key stable across re-ingestion.
	UpsertSourceRecord(ctx context.Context, input SourceRecordUpsert) (uint64, error)
	UpsertVoteEvent(ctx context.Context, row VoteEventRow) error
	// ResolvedOfficeholders maps seat key to the stored reference of the event's
	// already resolved member votes.
	ResolvedOfficeholders(ctx context.Context, voteEventID string) (map[string]ResolvedOfficeholder, error)
	// ReplaceMemberVotes deletes every member vote of the event and inserts rows.
	ReplaceMemberVotes(ctx context.Context, voteEventID string, rows []MemberVoteRow) (int, error)
	UpsertInitiative(ctx context.Context, row InitiativeRow) error
	UpsertIntervention(ctx context.Context, row InterventionRow) error
	UpsertPartyProgram(ctx context.Context, row PartyProgramRow) error
	CountEntities(ctx context.Context) (EntityCounts, error)
}
