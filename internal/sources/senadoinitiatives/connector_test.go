package senadoinitiatives

import (
	"context"
	"path/filepath"
	"testing"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/rawstore"
	"escrutinio/internal/sources"
)

func newConnector() *Connector {
	return New(sources.Spec{ID: SourceID, Chamber: "senado", Kind: ingest.KindInitiative, Legislature: "15"}, nil)
}

func TestExtractWrappedFeedKeepsVoteRefs(t *testing.T) {
	env, err := newConnector().Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "iniciativas.json"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(env.Records) != 2 || len(env.Failures) != 1 {
		t.Fatalf("records = %d failures = %v, want 2 and 1", len(env.Records), env.Failures)
	}
	rec := env.Records[0]
	if rec.RecordID != "15:622/000012/0000" {
		t.Fatalf("RecordID = %q", rec.RecordID)
	}
	refs, ok := rec.Payload["votaciones"].([]any)
	if !ok || len(refs) != 1 {
		t.Fatalf("embedded vote refs lost: %#v", rec.Payload["votaciones"])
	}
	if d := rec.Draft.(ingest.InitiativeDraft); d.Chamber != "senado" || d.Title == "" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestExtractBareArray(t *testing.T) {
	env, err := newConnector().Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "bare.json"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(env.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(env.Records))
	}
}

func TestExtractDirectoryBundles(t *testing.T) {
	env, err := newConnector().Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: "testdata",
		Options:   ingest.Options{MaxRecords: 2},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if env.Note != ingest.NoteLocalDir || len(env.Records) != 2 {
		t.Fatalf("note = %q records = %d", env.Note, len(env.Records))
	}
}
