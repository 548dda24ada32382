package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&IngestionRun{},
		&RawFetch{},
		&SourceRecord{},
		&VoteEvent{},
		&MemberVote{},
		&Initiative{},
		&VoteEventLink{},
		&Mandate{},
		&Intervention{},
		&PartyProgram{},
		&IngestKV{},
	}
}
