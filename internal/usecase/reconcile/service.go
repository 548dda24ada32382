package reconcile

import (
	"time"

	"escrutinio/internal/metrics"
	"escrutinio/internal/ports"
)

const (
	ChamberCongreso = "congreso"
	ChamberSenado   = "senado"
)

// Link methods, in priority order.
const (
	MethodExpedienteRegex    = "expediente_regex"
	MethodTitleExactUnique   = "title_norm_exact_unique"
	MethodTitlePrefixUnique  = "title_norm_prefix_unique"
	MethodPayloadExpediente  = "leg_expediente_payload_exact"
	minPrefixLen             = 24
	defaultUnmatchedSample   = 20
	engineResolver           = "resolver"
	engineLinker             = "linker"
	resolverWriteMethod      = "roster_name"
	unmatchedEmptyName       = "empty_name"
	unmatchedNoRoster        = "no_roster_for_source"
	unmatchedNameNotFound    = "name_not_found"
	timeLayout               = time.RFC3339
	voteReferencesExpression = "votaciones[].{leg: legislatura, exp: expediente}"
)

var confidence = map[string]float64{
	MethodExpedienteRegex:   1.0,
	MethodTitleExactUnique:  0.9,
	MethodTitlePrefixUnique: 0.75,
	MethodPayloadExpediente: 1.0,
}

type Repository interface {
	ports.MemberVoteRepository
	ports.MandateRepository
	ports.LinkRepository
}

// Service hosts the post-ingestion engines: member resolution against the
// mandate roster and vote-to-initiative linking.
type Service struct {
	repo    Repository
	uow     ports.UnitOfWork
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, uow ports.UnitOfWork, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		uow:     uow,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}
