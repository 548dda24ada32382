package model

// Mandate is reference data maintained outside the ingestion path.
type Mandate struct {
	MandateID      uint64  `gorm:"column:mandate_id;primaryKey;autoIncrement"`
	OfficeholderID string  `gorm:"column:officeholder_id;type:text;not null;uniqueIndex:uq_mandate,priority:1"`
	Source         string  `gorm:"column:source;type:text;not null;uniqueIndex:uq_mandate,priority:2;index:idx_mandates_lookup,priority:1"`
	StartDate      string  `gorm:"column:start_date;type:text;not null;uniqueIndex:uq_mandate,priority:3"`
	EndDate        *string `gorm:"column:end_date;type:text"`
	Active         bool    `gorm:"column:active;not null;default:0"`
	FullName       string  `gorm:"column:full_name;type:text;not null"`
	NameNormalized string  `gorm:"column:name_normalized;type:text;not null;index:idx_mandates_lookup,priority:2"`
	Legislature    string  `gorm:"column:legislature;type:text;not null;default:''"`
}

func (Mandate) TableName() string {
	return "mandates"
}
