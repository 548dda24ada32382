package model

type Initiative struct {
	InitiativeID   string `gorm:"column:initiative_id;type:text;primaryKey"`
	Chamber        string `gorm:"column:chamber;type:text;not null;index:idx_initiatives_key,priority:1"`
	Legislature    string `gorm:"column:legislature;type:text;not null;index:idx_initiatives_key,priority:2"`
	Expediente     string `gorm:"column:expediente;type:text;not null;default:'';index:idx_initiatives_key,priority:3"`
	Title          string `gorm:"column:title;type:text;not null;default:''"`
	InitiativeType string `gorm:"column:initiative_type;type:text;not null;default:''"`
	SourceID       string `gorm:"column:source_id;type:text;not null;index"`
	SourceURL      string `gorm:"column:source_url;type:text;not null"`
	SourceRecordPK uint64 `gorm:"column:source_record_pk;not null;index"`
	SnapshotDate   string `gorm:"column:snapshot_date;type:text;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (Initiative) TableName() string {
	return "initiatives"
}

type VoteEventLink struct {
	VoteEventID  string  `gorm:"column:vote_event_id;type:text;primaryKey"`
	InitiativeID string  `gorm:"column:initiative_id;type:text;primaryKey;index"`
	Method       string  `gorm:"column:method;type:text;primaryKey"`
	Confidence   float64 `gorm:"column:confidence;not null"`
	EvidenceJSON string  `gorm:"column:evidence_json;type:text;not null"`
	CreatedAt    string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string  `gorm:"column:updated_at;type:text;not null"`
}

func (VoteEventLink) TableName() string {
	return "vote_event_links"
}
