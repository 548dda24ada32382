package senadovotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/fetch"
	"escrutinio/internal/rawstore"
	"escrutinio/internal/sources"
)

func newConnector(t *testing.T, url string) *Connector {
	t.Helper()
	spec := sources.Spec{ID: SourceID, Chamber: "senado", Kind: ingest.KindVoteEvent, Legislature: "15", URL: url}
	return New(spec, fetch.New(fetch.Options{MaxAttempts: 1}, nil))
}

func TestExtractLocalInlineFeed(t *testing.T) {
	c := newConnector(t, "")
	env, err := c.Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "votaciones.xml"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if env.Note != ingest.NoteLocalFile || env.ContentType != "application/xml" {
		t.Fatalf("note = %q content type = %q", env.Note, env.ContentType)
	}
	if len(env.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(env.Records))
	}

	first := env.Records[0].Draft.(ingest.VoteEventDraft)
	if first.Title != "Proposición de ley orgánica de amnistía" {
		t.Fatalf("latin-1 title decoded as %q", first.Title)
	}
	if first.Legislature != "15" || first.VoteDate != "2024-02-20" || first.Expediente != "622/000012/0000" {
		t.Fatalf("unexpected draft %+v", first)
	}
	if first.Members[2].Seat != "0" || first.Members[2].Choice != "abstain" {
		t.Fatalf("member = %+v", first.Members[2])
	}
	if !strings.HasPrefix(env.Records[0].RecordID, "15|5|2|2024-02-20|") {
		t.Fatalf("fingerprint record id = %q", env.Records[0].RecordID)
	}
	if env.Records[1].RecordID != "https://www.senado.es/legis15/votaciones/ses_6/vot_1.xml" {
		t.Fatalf("url record id = %q", env.Records[1].RecordID)
	}
}

func TestExtractNetworkIndex(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir("testdata")))
	defer srv.Close()
	c := newConnector(t, srv.URL+"/indice.xml")

	env, err := c.Extract(context.Background(), sources.ExtractRequest{Store: rawstore.New(t.TempDir())})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if env.Note != ingest.NoteNetwork || len(env.Records) != 2 {
		t.Fatalf("note = %q records = %d", env.Note, len(env.Records))
	}
	if env.ContentType != "application/json" {
		t.Fatalf("index extraction should store a bundle, got %q", env.ContentType)
	}
	if env.Records[0].DetailURL != srv.URL+"/detalle/20240220_ses5_vot2.xml" {
		t.Fatalf("detail url = %q", env.Records[0].DetailURL)
	}

	until := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	env, err = c.Extract(context.Background(), sources.ExtractRequest{
		Store:   rawstore.New(t.TempDir()),
		Options: ingest.Options{UntilDate: &until},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(env.Records) != 1 || env.Records[0].Date != "2024-02-20" {
		t.Fatalf("date filter kept %d records", len(env.Records))
	}
}

func TestExtractLocalDirectory(t *testing.T) {
	c := newConnector(t, "")
	env, err := c.Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "detalle"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if env.Note != ingest.NoteLocalDir || len(env.Records) != 2 {
		t.Fatalf("note = %q records = %d", env.Note, len(env.Records))
	}
}

func TestExtractRejectsUnexpectedRoot(t *testing.T) {
	c := newConnector(t, "")
	_, err := c.Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "not_votes.xml"),
	})
	var extraction *ingest.ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("Extract() error = %v, want ExtractionError", err)
	}
}
