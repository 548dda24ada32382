package ingest

import (
	"errors"
	"strings"
	"time"

	domainingest "escrutinio/internal/domain/ingest"
	"escrutinio/internal/metrics"
	"escrutinio/internal/ports"
	"escrutinio/internal/rawstore"
	"escrutinio/internal/sources"
)

var errConnectorRequired = errors.New("connector is required")

const (
	lastHashKeyPrefix = "last_hash:"
	timeLayout        = time.RFC3339
)

// Service is the ingestion pipeline: one connector extraction loaded into the
// canonical tables under one transaction, with run bookkeeping around it.
type Service struct {
	repo    ports.IngestRepository
	uow     ports.UnitOfWork
	cache   ports.Cache
	store   *rawstore.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo ports.IngestRepository, uow ports.UnitOfWork, cache ports.Cache, store *rawstore.Store, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		uow:     uow,
		cache:   cache,
		store:   store,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type Input struct {
	Connector     sources.Connector
	Timeout       time.Duration
	LocalPath     string
	URLOverride   string
	SnapshotDate  string
	StrictNetwork bool
	Options       domainingest.Options
}

type Result struct {
	RunID         uint64
	SourceID      string
	RecordsSeen   int
	RecordsLoaded int
	Summary       Summary
}

// Summary is stored as the run's terminal message.
type Summary struct {
	Note                string `json:"note"`
	EventsLoaded        int    `json:"events_loaded"`
	MemberVotesLoaded   int    `json:"member_votes_loaded"`
	InitiativesLoaded   int    `json:"initiatives_loaded"`
	InterventionsLoaded int    `json:"interventions_loaded"`
	ProgramsLoaded      int    `json:"programs_loaded"`
	RecordsSkipped      int    `json:"records_skipped"`
	ExtractionFailures  int    `json:"extraction_failures"`
	RawFetchInserted    bool   `json:"raw_fetch_inserted"`
	Unchanged           bool   `json:"unchanged"`
	ContentHash         string `json:"content_hash"`
}

func (s *Service) timestamp() string {
	return s.now().Format(timeLayout)
}

func (s *Service) snapshotDate(in Input) string {
	if d := strings.TrimSpace(in.SnapshotDate); d != "" {
		return d
	}
	return s.now().Format(time.DateOnly)
}

// WithStore returns a copy of the service persisting raw artifacts to store.
func (s *Service) WithStore(store *rawstore.Store) *Service {
	clone := *s
	clone.store = store
	return &clone
}
