package model

type VoteEvent struct {
	VoteEventID    string `gorm:"column:vote_event_id;type:text;primaryKey"`
	Chamber        string `gorm:"column:chamber;type:text;not null;index"`
	Legislature    string `gorm:"column:legislature;type:text;not null;index:idx_vote_events_leg_exp,priority:1"`
	SessionNumber  *int64 `gorm:"column:session_number"`
	VoteNumber     *int64 `gorm:"column:vote_number"`
	VoteDate       string `gorm:"column:vote_date;type:text;not null;index"`
	Title          string `gorm:"column:title;type:text;not null;default:''"`
	ExpedienteText string `gorm:"column:expediente_text;type:text;not null;default:''"`
	SubgroupTitle  string `gorm:"column:subgroup_title;type:text;not null;default:''"`
	SubgroupText   string `gorm:"column:subgroup_text;type:text;not null;default:''"`
	Expediente     string `gorm:"column:expediente;type:text;not null;default:'';index:idx_vote_events_leg_exp,priority:2"`
	TotalPresent   *int64 `gorm:"column:total_present"`
	TotalYes       *int64 `gorm:"column:total_yes"`
	TotalNo        *int64 `gorm:"column:total_no"`
	TotalAbstain   *int64 `gorm:"column:total_abstain"`
	TotalNoVote    *int64 `gorm:"column:total_no_vote"`
	SourceID       string `gorm:"column:source_id;type:text;not null;index"`
	SourceURL      string `gorm:"column:source_url;type:text;not null"`
	SourceRecordPK uint64 `gorm:"column:source_record_pk;not null;index"`
	SnapshotDate   string `gorm:"column:snapshot_date;type:text;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (VoteEvent) TableName() string {
	return "vote_events"
}

type MemberVote struct {
	VoteEventID          string  `gorm:"column:vote_event_id;type:text;primaryKey"`
	SeatKey              string  `gorm:"column:seat_key;type:text;primaryKey"`
	MemberName           string  `gorm:"column:member_name;type:text;not null"`
	MemberNameNormalized string  `gorm:"column:member_name_normalized;type:text;not null;index"`
	OfficeholderID       *string `gorm:"column:officeholder_id;type:text;index"`
	GroupCode            string  `gorm:"column:group_code;type:text;not null;default:''"`
	VoteChoice           string  `gorm:"column:vote_choice;type:text;not null"`
	SourceID             string  `gorm:"column:source_id;type:text;not null"`
	SourceURL            string  `gorm:"column:source_url;type:text;not null"`
	SourceRecordPK       uint64  `gorm:"column:source_record_pk;not null"`
	SnapshotDate         string  `gorm:"column:snapshot_date;type:text;not null"`
}

func (MemberVote) TableName() string {
	return "member_votes"
}
