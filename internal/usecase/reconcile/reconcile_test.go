package reconcile

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/infrastructure/persistence/sqlite/model"
	"escrutinio/internal/infrastructure/persistence/sqlite/repository"
	"escrutinio/internal/infrastructure/persistence/sqlite/uow"
	"escrutinio/internal/metrics"
	"escrutinio/internal/ports"
)

const (
	testNow        = "2026-10-18T10:00:00Z"
	congresoSource = "congreso_votaciones"
	senadoSource   = "senado_votaciones"
)

type fixture struct {
	db        *gorm.DB
	ingest    *repository.IngestRepository
	reconcile *repository.ReconcileRepository
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "escrutinio.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	rec := repository.NewReconcileRepository(db)
	return &fixture{
		db:        db,
		ingest:    repository.NewIngestRepository(db),
		reconcile: rec,
		svc:       NewService(rec, uow.NewUnitOfWork(db), metrics.New()),
	}
}

func strPtr(v string) *string { return &v }

func (f *fixture) voteEvent(t *testing.T, row ports.VoteEventRow, members ...string) {
	t.Helper()
	ctx := context.Background()
	if row.Legislature == "" {
		row.Legislature = "15"
	}
	row.Provenance = ports.Provenance{SourceID: row.Provenance.SourceID, SourceURL: "u", SourceRecordPK: 1, SnapshotDate: row.VoteDate}
	row.UpdatedAt = testNow
	if err := f.ingest.UpsertVoteEvent(ctx, row); err != nil {
		t.Fatalf("UpsertVoteEvent(%s) error = %v", row.VoteEventID, err)
	}
	if len(members) == 0 {
		return
	}
	rows := make([]ports.MemberVoteRow, 0, len(members)/2)
	for i := 0; i+1 < len(members); i += 2 {
		rows = append(rows, ports.MemberVoteRow{
			SeatKey:              members[i],
			MemberName:           members[i+1],
			MemberNameNormalized: textnorm.Name(members[i+1]),
			VoteChoice:           "yes",
			Provenance:           row.Provenance,
		})
	}
	if _, err := f.ingest.ReplaceMemberVotes(ctx, row.VoteEventID, rows); err != nil {
		t.Fatalf("ReplaceMemberVotes(%s) error = %v", row.VoteEventID, err)
	}
}

func (f *fixture) mandate(t *testing.T, holder string, source string, name string, start string, end *string, active bool) {
	t.Helper()
	if _, err := f.reconcile.UpsertMandate(context.Background(), ports.MandateUpsert{
		OfficeholderID: holder,
		Source:         source,
		Active:         active,
		StartDate:      start,
		EndDate:        end,
		FullName:       name,
		NameNormalized: textnorm.Name(name),
		Legislature:    "15",
	}); err != nil {
		t.Fatalf("UpsertMandate(%s) error = %v", holder, err)
	}
}

func (f *fixture) officeholder(t *testing.T, voteEventID string, seat string) string {
	t.Helper()
	var mv model.MemberVote
	if err := f.db.Where("vote_event_id = ? AND seat_key = ?", voteEventID, seat).Take(&mv).Error; err != nil {
		t.Fatalf("query member vote %s/%s: %v", voteEventID, seat, err)
	}
	if mv.OfficeholderID == nil {
		return ""
	}
	return *mv.OfficeholderID
}

func TestResolveMembersLeavesAmbiguousNamesUnresolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-1", Chamber: "congreso", VoteDate: "2024-02-15", Provenance: ports.Provenance{SourceID: congresoSource}},
		"12", "García López, Ana",
		"47", "Ruiz, Javier",
	)
	f.mandate(t, "oh-ana", "congreso", "Ana García López", "2023-08-17", nil, true)
	f.mandate(t, "oh-ruiz-a", "congreso", "Javier Ruiz", "2023-08-17", nil, true)
	f.mandate(t, "oh-ruiz-b", "congreso", "Javier Ruiz", "2023-08-17", nil, true)

	report, err := f.svc.ResolveMembers(ctx, ResolveInput{SourceIDs: []string{congresoSource}})
	if err != nil {
		t.Fatalf("ResolveMembers() error = %v", err)
	}
	if report.Checked != 2 || report.Matched != 1 || report.Updated != 1 || report.Ambiguous != 1 || report.Unmatched != 0 {
		t.Fatalf("report = %+v", report)
	}
	if got := f.officeholder(t, "ve-1", "12"); got != "oh-ana" {
		t.Fatalf("seat 12 officeholder = %q, want oh-ana", got)
	}
	if got := f.officeholder(t, "ve-1", "47"); got != "" {
		t.Fatalf("seat 47 officeholder = %q, want unresolved", got)
	}
}

func TestResolveMembersIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-1", Chamber: "congreso", VoteDate: "2024-02-15", Provenance: ports.Provenance{SourceID: congresoSource}},
		"12", "García López, Ana",
	)
	f.mandate(t, "oh-ana", "congreso", "Ana García López", "2023-08-17", nil, true)

	if _, err := f.svc.ResolveMembers(ctx, ResolveInput{SourceIDs: []string{congresoSource}}); err != nil {
		t.Fatalf("ResolveMembers(first) error = %v", err)
	}

	// A later roster with a better-looking candidate must not move the reference.
	f.mandate(t, "oh-other", "congreso", "Ana García López", "2024-01-01", strPtr("2024-12-31"), true)
	report, err := f.svc.ResolveMembers(ctx, ResolveInput{SourceIDs: []string{congresoSource}})
	if err != nil {
		t.Fatalf("ResolveMembers(second) error = %v", err)
	}
	if report.Checked != 0 || report.Updated != 0 {
		t.Fatalf("second report = %+v, want nothing to check", report)
	}
	if got := f.officeholder(t, "ve-1", "12"); got != "oh-ana" {
		t.Fatalf("officeholder = %q, want oh-ana", got)
	}
}

func TestResolveMembersDryRunAndUnmatchedReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-c", Chamber: "congreso", VoteDate: "2024-02-15", Provenance: ports.Provenance{SourceID: congresoSource}},
		"12", "García López, Ana",
		"13", "Desconocido, Pedro",
		"n:0", "",
	)
	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-s", Chamber: "senado", VoteDate: "2024-02-20", Provenance: ports.Provenance{SourceID: senadoSource}},
		"3", "Sanz, Elena",
	)
	f.mandate(t, "oh-ana", "congreso", "Ana García López", "2023-08-17", nil, true)

	report, err := f.svc.ResolveMembers(ctx, ResolveInput{SourceIDs: []string{congresoSource, senadoSource}, DryRun: true, SampleLimit: 2})
	if err != nil {
		t.Fatalf("ResolveMembers() error = %v", err)
	}
	if report.Checked != 4 || report.Matched != 1 || report.Updated != 0 || report.Unmatched != 3 {
		t.Fatalf("report = %+v", report)
	}
	want := map[string]int{unmatchedEmptyName: 1, unmatchedNameNotFound: 1, unmatchedNoRoster: 1}
	for reason, n := range want {
		if report.UnmatchedByReason[reason] != n {
			t.Fatalf("unmatched_by_reason = %v, want %v", report.UnmatchedByReason, want)
		}
	}
	if len(report.UnmatchedSample) != 2 {
		t.Fatalf("unmatched sample = %d, want 2", len(report.UnmatchedSample))
	}
	if got := f.officeholder(t, "ve-c", "12"); got != "" {
		t.Fatalf("dry run wrote officeholder %q", got)
	}
}

func TestRosterCandidatesPreferTemporalWindow(t *testing.T) {
	roster := NewRoster([]ports.Mandate{
		{MandateID: 1, OfficeholderID: "oh-old", Source: "congreso", StartDate: "2016-01-13", EndDate: strPtr("2019-05-20"), NameNormalized: "javier ruiz"},
		{MandateID: 2, OfficeholderID: "oh-new", Source: "congreso", StartDate: "2023-08-17", Active: true, NameNormalized: "javier ruiz"},
	})

	tests := []struct {
		date string
		want string
	}{
		{date: "2018-03-01", want: "oh-old"},
		{date: "2024-02-15", want: "oh-new"},
		{date: "2021-01-01", want: "oh-new"},
		{date: "", want: "oh-new"},
	}
	for _, tt := range tests {
		got := roster.Candidates("javier ruiz", tt.date, "congreso")
		if len(got) != 1 || got[0] != tt.want {
			t.Fatalf("Candidates(%q) = %v, want [%s]", tt.date, got, tt.want)
		}
	}
	if got := roster.Candidates("javier ruiz", "2024-02-15", "senado"); len(got) != 0 {
		t.Fatalf("Candidates(senado) = %v, want none", got)
	}
}

func (f *fixture) initiative(t *testing.T, id string, chamber string, exp string, title string, payload map[string]any) {
	t.Helper()
	ctx := context.Background()
	var pk uint64 = 1
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		pk, err = f.ingest.UpsertSourceRecord(ctx, ports.SourceRecordUpsert{
			SourceID:       chamber + "_iniciativas",
			SourceRecordID: id,
			SnapshotDate:   "2024-03-10",
			RawPayload:     string(body),
			ContentHash:    id,
			SeenAt:         testNow,
		})
		if err != nil {
			t.Fatalf("UpsertSourceRecord(%s) error = %v", id, err)
		}
	}
	if err := f.ingest.UpsertInitiative(ctx, ports.InitiativeRow{
		InitiativeID: id,
		Chamber:      chamber,
		Legislature:  "15",
		Expediente:   exp,
		Title:        title,
		Provenance:   ports.Provenance{SourceID: chamber + "_iniciativas", SourceURL: "u", SourceRecordPK: pk, SnapshotDate: "2024-03-10"},
		UpdatedAt:    testNow,
	}); err != nil {
		t.Fatalf("UpsertInitiative(%s) error = %v", id, err)
	}
}

func TestLinkInitiativesByExpedienteRegex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.initiative(t, "in-1", "congreso", "121/000001/0000", "Proyecto de Ley de presupuestos", nil)
	f.voteEvent(t, ports.VoteEventRow{
		VoteEventID:    "ve-1",
		Chamber:        "congreso",
		VoteDate:       "2024-02-15",
		Title:          "Votación de conjunto",
		ExpedienteText: "Expediente 121/000001/0000 (synthetic)",
		Provenance:     ports.Provenance{SourceID: congresoSource},
	})

	for i := 0; i < 2; i++ {
		report, err := f.svc.LinkInitiatives(ctx, LinkInput{Chambers: []string{ChamberCongreso}})
		if err != nil {
			t.Fatalf("LinkInitiatives() error = %v", err)
		}
		if report.EventsScanned != 1 || report.Written[MethodExpedienteRegex] != 1 {
			t.Fatalf("report = %+v", report)
		}
	}

	links, err := f.reconcile.ListLinks(ctx, "ve-1")
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	if len(links) != 1 || links[0].InitiativeID != "in-1" || links[0].Method != MethodExpedienteRegex || links[0].Confidence != 1.0 {
		t.Fatalf("links = %+v", links)
	}
	var evidence map[string]any
	if err := json.Unmarshal([]byte(links[0].EvidenceJSON), &evidence); err != nil {
		t.Fatalf("evidence is not JSON: %v", err)
	}
	if evidence["field"] != "expediente_text" || evidence["expediente"] != "121/000001/0000" {
		t.Fatalf("evidence = %v", evidence)
	}
}

func TestLinkInitiativesWritesOnlyUniqueTitleMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.initiative(t, "in-pnl", "congreso", "162/000345/0000", "Proposición no de ley sobre la mejora de la financiación autonómica", nil)
	f.initiative(t, "in-dup-1", "congreso", "162/000400/0000", "Moción consecuencia de interpelación urgente", nil)
	f.initiative(t, "in-dup-2", "congreso", "173/000020/0000", "Moción consecuencia de interpelación urgente", nil)
	f.initiative(t, "in-long", "congreso", "121/000030/0000", "Proyecto de Ley de medidas urgentes para el acceso a la vivienda y el alquiler", nil)

	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-exact", Chamber: "congreso", VoteDate: "2024-03-01",
		Title:      "Proposición no de ley presentada por el Grupo Parlamentario Socialista, sobre la mejora de la financiación autonómica",
		Provenance: ports.Provenance{SourceID: congresoSource}})
	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-dup", Chamber: "congreso", VoteDate: "2024-03-02",
		Title:      "Moción consecuencia de interpelación urgente",
		Provenance: ports.Provenance{SourceID: congresoSource}})
	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-prefix", Chamber: "congreso", VoteDate: "2024-03-03",
		Title:      "Proyecto de Ley de medidas urgentes para el acceso a la vivienda...",
		Provenance: ports.Provenance{SourceID: congresoSource}})
	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-short", Chamber: "congreso", VoteDate: "2024-03-04",
		Title:      "Proyecto de Ley...",
		Provenance: ports.Provenance{SourceID: congresoSource}})

	report, err := f.svc.LinkInitiatives(ctx, LinkInput{Chambers: []string{ChamberCongreso}})
	if err != nil {
		t.Fatalf("LinkInitiatives() error = %v", err)
	}
	if report.Written[MethodTitleExactUnique] != 1 || report.Written[MethodTitlePrefixUnique] != 1 || report.Ambiguous[MethodTitleExactUnique] != 1 {
		t.Fatalf("report = %+v", report)
	}

	links, err := f.reconcile.ListLinks(ctx, "")
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	got := make(map[string]string, len(links))
	for _, l := range links {
		got[l.VoteEventID] = l.InitiativeID + "/" + l.Method
	}
	want := map[string]string{
		"ve-exact":  "in-pnl/" + MethodTitleExactUnique,
		"ve-prefix": "in-long/" + MethodTitlePrefixUnique,
	}
	if len(got) != len(want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("links = %v, want %v", got, want)
		}
	}
}

func TestLinkInitiativesRegexAmbiguityWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.initiative(t, "in-a", "congreso", "121/000001/0000", "Primera", nil)
	f.initiative(t, "in-b", "congreso", "121/000002/0000", "Segunda", nil)
	f.voteEvent(t, ports.VoteEventRow{
		VoteEventID:    "ve-1",
		Chamber:        "congreso",
		VoteDate:       "2024-02-15",
		Title:          "Votación acumulada",
		ExpedienteText: "121/000001 y 121/000002; 121/000999",
		Provenance:     ports.Provenance{SourceID: congresoSource},
	})

	report, err := f.svc.LinkInitiatives(ctx, LinkInput{Chambers: []string{ChamberCongreso}})
	if err != nil {
		t.Fatalf("LinkInitiatives() error = %v", err)
	}
	if report.Ambiguous[MethodExpedienteRegex] != 1 || report.UnresolvedIdentifiers != 1 || len(report.Written) != 0 {
		t.Fatalf("report = %+v", report)
	}
	links, _ := f.reconcile.ListLinks(ctx, "ve-1")
	if len(links) != 0 {
		t.Fatalf("links = %+v, want none", links)
	}
}

func TestLinkInitiativesFromPayloadVoteReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-s1", Chamber: "senado", VoteDate: "2024-02-20", Expediente: "622/000012/0000", Provenance: ports.Provenance{SourceID: senadoSource}})
	f.voteEvent(t, ports.VoteEventRow{VoteEventID: "ve-s2", Chamber: "senado", VoteDate: "2024-02-21", Expediente: "662/000040/0000", Provenance: ports.Provenance{SourceID: senadoSource}})
	f.initiative(t, "in-s1", "senado", "622/000012/0000", "Proposición de ley orgánica de amnistía", map[string]any{
		"expediente": "622/000012",
		"votaciones": []any{map[string]any{"legislatura": "15", "expediente": "622/000012"}},
	})
	f.initiative(t, "in-s2", "senado", "662/000040/0000", "Moción sobre infraestructuras ferroviarias", map[string]any{
		"expediente": "662/000040",
		"votaciones": []any{},
	})

	report, err := f.svc.LinkInitiatives(ctx, LinkInput{Chambers: []string{ChamberSenado}, DryRun: true})
	if err != nil {
		t.Fatalf("LinkInitiatives(dry run) error = %v", err)
	}
	if report.Written[MethodPayloadExpediente] != 1 {
		t.Fatalf("dry run report = %+v", report)
	}
	if links, _ := f.reconcile.ListLinks(ctx, ""); len(links) != 0 {
		t.Fatalf("dry run wrote links: %+v", links)
	}

	if _, err := f.svc.LinkInitiatives(ctx, LinkInput{Chambers: []string{ChamberSenado}}); err != nil {
		t.Fatalf("LinkInitiatives() error = %v", err)
	}
	links, err := f.reconcile.ListLinks(ctx, "")
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	if len(links) != 1 || links[0].VoteEventID != "ve-s1" || links[0].InitiativeID != "in-s1" || links[0].Method != MethodPayloadExpediente {
		t.Fatalf("links = %+v", links)
	}
}

func TestResolveMembersHandlesLargeBacklog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const events, seats = 50, 350
	members := make([]string, 0, 2*seats)
	for s := 1; s <= seats; s++ {
		members = append(members, strconv.Itoa(s), "Diputado "+strconv.Itoa(s))
	}
	for e := 1; e <= events; e++ {
		f.voteEvent(t, ports.VoteEventRow{
			VoteEventID: "ve-" + strconv.Itoa(e),
			Chamber:     "congreso",
			VoteDate:    "2024-02-15",
			Provenance:  ports.Provenance{SourceID: congresoSource},
		}, members...)
	}
	f.mandate(t, "oh-1", "congreso", "Diputado 1", "2023-08-17", nil, true)

	report, err := f.svc.ResolveMembers(ctx, ResolveInput{SourceIDs: []string{congresoSource}})
	if err != nil {
		t.Fatalf("ResolveMembers() error = %v", err)
	}
	if report.Checked != events*seats || report.Updated != events {
		t.Fatalf("checked = %d updated = %d, want %d and %d", report.Checked, report.Updated, events*seats, events)
	}
}

func TestRosterKeysAreDistinct(t *testing.T) {
	votes := []ports.UnresolvedMemberVote{
		{Chamber: "congreso", SourceID: congresoSource},
		{Chamber: "congreso", SourceID: congresoSource},
		{Chamber: "senado", SourceID: senadoSource},
	}
	got := rosterKeys(votes)
	want := []string{"congreso", congresoSource, "senado", senadoSource}
	if len(got) != len(want) {
		t.Fatalf("rosterKeys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rosterKeys() = %v, want %v", got, want)
		}
	}
}
