package ports

import "context"

type UnresolvedMemberVote struct {
	VoteEventID          string
	SeatKey              string
	SourceID             string
	Chamber              string
	VoteDate             string
	MemberName           string
	MemberNameNormalized string
}

type Mandate struct {
	MandateID      uint64
	OfficeholderID string
	Source         string
	Active         bool
	StartDate      string
	EndDate        *string
	FullName       string
	NameNormalized string
	Legislature    string
}

type MandateUpsert struct {
	OfficeholderID string
	Source         string
	Active         bool
	StartDate      string
	EndDate        *string
	FullName       string
	NameNormalized string
	Legislature    string
}

type VoteEventForLinking struct {
	VoteEventID    string
	Chamber        string
	Legislature    string
	Title          string
	ExpedienteText string
	SubgroupTitle  string
	SubgroupText   string
	Expediente     string
}

type InitiativeForLinking struct {
	InitiativeID string
	Chamber      string
	Legislature  string
	Expediente   string
	Title        string
	RawPayload   string
}

type LinkUpsert struct {
	VoteEventID  string
	InitiativeID string
	Method       string
	Confidence   float64
	EvidenceJSON string
	At           string
}

type Link struct {
	VoteEventID  string
	InitiativeID string
	Method       string
	Confidence   float64
	EvidenceJSON string
	CreatedAt    string
	UpdatedAt    string
}

type MemberVoteRepository interface {
	// ListUnresolvedMemberVotes returns member votes without an office-holder
	// reference whose parent event came from one of sourceIDs.
	ListUnresolvedMemberVotes(ctx context.Context, sourceIDs []string) ([]UnresolvedMemberVote, error)
	// AssignOfficeholder writes the reference only while it is still NULL.
	AssignOfficeholder(ctx context.Context, voteEventID string, seatKey string, officeholderID string) (bool, error)
}

type MandateRepository interface {
	ListMandates(ctx context.Context, sources []string) ([]Mandate, error)
	UpsertMandate(ctx context.Context, input MandateUpsert) (bool, error)
}

type LinkRepository interface {
	ListVoteEventsForLinking(ctx context.Context, chamber string) ([]VoteEventForLinking, error)
	ListInitiativesForLinking(ctx context.Context, chamber string) ([]InitiativeForLinking, error)
	UpsertLink(ctx context.Context, input LinkUpsert) error
	ListLinks(ctx context.Context, voteEventID string) ([]Link, error)
}
