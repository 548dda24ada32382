package model

type Intervention struct {
	InterventionID    string `gorm:"column:intervention_id;type:text;primaryKey"`
	Chamber           string `gorm:"column:chamber;type:text;not null"`
	Legislature       string `gorm:"column:legislature;type:text;not null;index"`
	SessionDate       string `gorm:"column:session_date;type:text;not null;index"`
	Speaker           string `gorm:"column:speaker;type:text;not null"`
	SpeakerNormalized string `gorm:"column:speaker_normalized;type:text;not null;index"`
	Title             string `gorm:"column:title;type:text;not null;default:''"`
	Body              string `gorm:"column:body;type:text;not null;default:''"`
	DetailURL         string `gorm:"column:detail_url;type:text;not null;default:''"`
	SourceID          string `gorm:"column:source_id;type:text;not null;index"`
	SourceURL         string `gorm:"column:source_url;type:text;not null"`
	SourceRecordPK    uint64 `gorm:"column:source_record_pk;not null"`
	SnapshotDate      string `gorm:"column:snapshot_date;type:text;not null"`
	CreatedAt         string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt         string `gorm:"column:updated_at;type:text;not null"`
}

func (Intervention) TableName() string {
	return "interventions"
}

type PartyProgram struct {
	ProgramID      string `gorm:"column:program_id;type:text;primaryKey"`
	Party          string `gorm:"column:party;type:text;not null;index"`
	Election       string `gorm:"column:election;type:text;not null;index"`
	Title          string `gorm:"column:title;type:text;not null;default:''"`
	DocumentURL    string `gorm:"column:document_url;type:text;not null;default:''"`
	Format         string `gorm:"column:format;type:text;not null;default:''"`
	SourceID       string `gorm:"column:source_id;type:text;not null"`
	SourceURL      string `gorm:"column:source_url;type:text;not null"`
	SourceRecordPK uint64 `gorm:"column:source_record_pk;not null"`
	SnapshotDate   string `gorm:"column:snapshot_date;type:text;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (PartyProgram) TableName() string {
	return "party_programs"
}
