package model

type IngestionRun struct {
	RunID         uint64  `gorm:"column:run_id;primaryKey;autoIncrement"`
	SourceID      string  `gorm:"column:source_id;type:text;not null;index"`
	SourceURL     string  `gorm:"column:source_url;type:text;not null"`
	Status        string  `gorm:"column:status;type:text;not null;index"`
	Message       string  `gorm:"column:message;type:text;not null;default:''"`
	RecordsSeen   int     `gorm:"column:records_seen;not null;default:0"`
	RecordsLoaded int     `gorm:"column:records_loaded;not null;default:0"`
	RawFetchID    *uint64 `gorm:"column:raw_fetch_id"`
	StartedAt     string  `gorm:"column:started_at;type:text;not null"`
	FinishedAt    *string `gorm:"column:finished_at;type:text"`
}

func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

type RawFetch struct {
	RawFetchID  uint64 `gorm:"column:raw_fetch_id;primaryKey;autoIncrement"`
	SourceID    string `gorm:"column:source_id;type:text;not null;uniqueIndex:uq_raw_fetch_source_hash,priority:1"`
	ContentHash string `gorm:"column:content_hash;type:text;not null;uniqueIndex:uq_raw_fetch_source_hash,priority:2"`
	SourceURL   string `gorm:"column:source_url;type:text;not null"`
	ResolvedURL string `gorm:"column:resolved_url;type:text;not null"`
	ContentType string `gorm:"column:content_type;type:text;not null"`
	ByteLen     int64  `gorm:"column:byte_len;not null"`
	StoragePath string `gorm:"column:storage_path;type:text;not null"`
	FetchedAt   string `gorm:"column:fetched_at;type:text;not null"`
}

func (RawFetch) TableName() string {
	return "raw_fetches"
}

type SourceRecord struct {
	SourceRecordPK uint64 `gorm:"column:source_record_pk;primaryKey;autoIncrement"`
	SourceID       string `gorm:"column:source_id;type:text;not null;uniqueIndex:uq_source_record,priority:1"`
	SourceRecordID string `gorm:"column:source_record_id;type:text;not null;uniqueIndex:uq_source_record,priority:2"`
	SnapshotDate   string `gorm:"column:snapshot_date;type:text;not null"`
	RawPayload     string `gorm:"column:raw_payload;type:text;not null"`
	ContentHash    string `gorm:"column:content_hash;type:text;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (SourceRecord) TableName() string {
	return "source_records"
}
