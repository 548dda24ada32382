// Package ingest holds the uniform extraction envelope produced by source
// connectors and consumed by the ingestion pipeline.
package ingest

import "time"

const (
	KindVoteEvent    = "vote_event"
	KindInitiative   = "initiative"
	KindIntervention = "intervention"
	KindPartyProgram = "party_program"
)

// Extraction notes describe how the payload was obtained. Only NoteNetwork
// counts as a live fetch for the minimum-loaded guard.
const (
	NoteNetwork   = "network"
	NoteLocalFile = "local_file"
	NoteLocalDir  = "local_dir"
)

// Extracted is what every connector returns, whatever the source format.
type Extracted struct {
	SourceID    string
	SourceURL   string
	ResolvedURL string
	FetchedAt   time.Time
	RawPath     string
	MetaPath    string
	ContentHash string
	ContentType string
	ByteLen     int64
	Note        string
	RawPayload  []byte
	Records     []Record
	Failures    []Failure
}

// Record is one raw per-entity payload plus the provenance needed to derive
// its identity. Payload is kept verbatim for the source_records table; Draft
// carries the fields mapped for the canonical entity.
type Record struct {
	RecordID    string
	DetailURL   string
	Legislature string
	Date        string
	Payload     map[string]any
	Draft       Draft
}

// Failure is a per-document problem that did not abort the extraction.
type Failure struct {
	Location string `json:"location"`
	Error    string `json:"error"`
}

// Draft is the closed set of canonical entity shapes a record may map to.
type Draft interface {
	Kind() string
}

type VoteEventDraft struct {
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
	Members        []MemberVoteDraft
}

func (VoteEventDraft) Kind() string { return KindVoteEvent }

type MemberVoteDraft struct {
	Seat       string
	MemberName string
	GroupCode  string
	Choice     string
}

type InitiativeDraft struct {
	Chamber        string
	Legislature    string
	Expediente     string
	Title          string
	InitiativeType string
}

func (InitiativeDraft) Kind() string { return KindInitiative }

type InterventionDraft struct {
	Chamber     string
	Legislature string
	SessionDate string
	Speaker     string
	Title       string
	Body        string
}

func (InterventionDraft) Kind() string { return KindIntervention }

type PartyProgramDraft struct {
	Party       string
	Election    string
	Title       string
	DocumentURL string
	Format      string
}

func (PartyProgramDraft) Kind() string { return KindPartyProgram }
