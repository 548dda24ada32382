package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func int64Ptr(v int64) *int64 { return &v }

func TestVoteEventIDPrefersStableURL(t *testing.T) {
	draft := VoteEventDraft{Legislature: "15", VoteDate: "2024-02-15", Title: "Una votación"}
	a, err := VoteEventID("congreso_votaciones", Record{DetailURL: "https://Example.org/v/1.json#top"}, draft)
	if err != nil {
		t.Fatalf("VoteEventID() error = %v", err)
	}
	b, err := VoteEventID("congreso_votaciones", Record{DetailURL: "https://example.org/v/1.json"}, VoteEventDraft{})
	if err != nil {
		t.Fatalf("VoteEventID() error = %v", err)
	}
	if a != b {
		t.Fatalf("url identities differ: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "ve-") {
		t.Fatalf("identity %q has no ve- prefix", a)
	}
}

func TestVoteEventIDFingerprintIgnoresFetchTime(t *testing.T) {
	draft := VoteEventDraft{
		Legislature:   "15",
		SessionNumber: int64Ptr(12),
		VoteNumber:    int64Ptr(3),
		VoteDate:      "2024-02-15",
		Title:         "Proposición no de ley sobre vivienda",
	}
	first, err := VoteEventID("s", Record{RecordID: "a", DetailURL: "/tmp/a.json"}, draft)
	if err != nil {
		t.Fatalf("VoteEventID() error = %v", err)
	}
	// Same logical vote, different local file and spacing in the title.
	draft.Title = "  PROPOSICIÓN no de ley  sobre vivienda "
	second, err := VoteEventID("s", Record{RecordID: "b", DetailURL: "testdata/b.json"}, draft)
	if err != nil {
		t.Fatalf("VoteEventID() error = %v", err)
	}
	if first != second {
		t.Fatalf("fingerprint identities differ: %s vs %s", first, second)
	}

	draft.VoteNumber = int64Ptr(4)
	third, _ := VoteEventID("s", Record{}, draft)
	if third == first {
		t.Fatalf("different vote number produced the same identity")
	}
}

func TestVoteEventIDMissingFields(t *testing.T) {
	_, err := VoteEventID("senado_votaciones", Record{RecordID: "x"}, VoteEventDraft{Legislature: "15"})
	var identity *IdentityError
	if !errors.As(err, &identity) {
		t.Fatalf("VoteEventID() error = %v, want IdentityError", err)
	}
	if identity.RecordID != "x" {
		t.Fatalf("RecordID = %q", identity.RecordID)
	}
}

func TestInitiativeIDUsesExpediente(t *testing.T) {
	a, err := InitiativeID("s", Record{}, InitiativeDraft{Chamber: "congreso", Legislature: "15", Expediente: "121/000001"})
	if err != nil {
		t.Fatalf("InitiativeID() error = %v", err)
	}
	b, err := InitiativeID("s", Record{DetailURL: "https://example.org/i/1"}, InitiativeDraft{Chamber: "congreso", Legislature: "15", Expediente: "121/000001/0000"})
	if err != nil {
		t.Fatalf("InitiativeID() error = %v", err)
	}
	if a != b {
		t.Fatalf("initiative identities differ: %s vs %s", a, b)
	}
	if _, err := InitiativeID("s", Record{}, InitiativeDraft{Legislature: "15"}); err == nil {
		t.Fatalf("InitiativeID() without expediente or url succeeded")
	}
}

func TestSeatKeys(t *testing.T) {
	members := []MemberVoteDraft{
		{Seat: "12", MemberName: "García López, Ana"},
		{Seat: "-1", MemberName: "Pérez, Luis"},
		{Seat: "", MemberName: "Martín, Eva"},
		{Seat: "7", MemberName: "Ruiz, Javier"},
		{Seat: "7", MemberName: "Sánchez, Marta"},
	}
	keys := SeatKeys(members)
	if keys[0] != "12" {
		t.Fatalf("keys[0] = %q, want 12", keys[0])
	}
	if keys[1] != NameSeatKey("Luis Pérez") {
		t.Fatalf("sentinel seat key = %q, want name hash", keys[1])
	}
	if !strings.HasPrefix(keys[2], "n:") || len(keys[2]) != 18 {
		t.Fatalf("keys[2] = %q, want n:<16 hex>", keys[2])
	}
	if keys[3] == keys[4] || !strings.HasPrefix(keys[3], "n:") {
		t.Fatalf("duplicate seats not disambiguated: %q %q", keys[3], keys[4])
	}

	again := SeatKeys(members)
	for i := range keys {
		if keys[i] != again[i] {
			t.Fatalf("SeatKeys() not deterministic at %d", i)
		}
	}
}

func TestNormalizeChoice(t *testing.T) {
	cases := map[string]string{
		"Sí":         "yes",
		"NO":         "no",
		"Abstención": "abstain",
		"No vota":    "no-vote",
		"Presente":   "presente",
	}
	for in, want := range cases {
		if got := NormalizeChoice(in); got != want {
			t.Fatalf("NormalizeChoice(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOptionsFromBag(t *testing.T) {
	opts, err := OptionsFromBag(map[string]any{"max_votes": 5, "since_date": "2024-01-01", "until_date": "2024-01-31", "variant": "json"})
	if err != nil {
		t.Fatalf("OptionsFromBag() error = %v", err)
	}
	if opts.MaxRecords != 5 || opts.Variant != "json" {
		t.Fatalf("opts = %+v", opts)
	}
	if !opts.InDateRange(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("until date should be inclusive")
	}
	if opts.InDateRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("2024-02-01 should be outside the range")
	}
	if !opts.Reached(5) || opts.Reached(4) {
		t.Fatalf("Reached() cap mismatch")
	}

	if _, err := OptionsFromBag(map[string]any{"since_date": "2024-02-01", "until_date": "2024-01-01"}); err == nil {
		t.Fatalf("OptionsFromBag() accepted an inverted range")
	}
}

func TestDescribe(t *testing.T) {
	err := &StrictModeAbort{SourceID: "s", Reason: "zero records loaded", Seen: 3}
	if got := Describe(err); !strings.HasPrefix(got, "StrictModeAbort: ") {
		t.Fatalf("Describe() = %q", got)
	}
	wrapped := NewExtractionError("s", "catalog", "expected array, got %s", "object")
	if got := Describe(wrapped); !strings.HasPrefix(got, "ExtractionError: s: catalog: expected array") {
		t.Fatalf("Describe() = %q", got)
	}
	if got := Describe(errors.New("boom")); got != "Error: boom" {
		t.Fatalf("Describe() = %q", got)
	}
}
