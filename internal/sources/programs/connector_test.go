package programs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/rawstore"
	"escrutinio/internal/sources"
)

func TestExtractManifest(t *testing.T) {
	c := New(sources.Spec{ID: SourceID, Kind: ingest.KindPartyProgram}, nil)
	env, err := c.Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "manifest.yaml"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(env.Records) != 3 || len(env.Failures) != 1 {
		t.Fatalf("records = %d failures = %v, want 3 and 1", len(env.Records), env.Failures)
	}
	first := env.Records[0].Draft.(ingest.PartyProgramDraft)
	if first.Election != "generales-2023" || first.Format != "pdf" {
		t.Fatalf("draft = %+v", first)
	}
	if env.Records[1].RecordID != "partido popular|generales-2023" {
		t.Fatalf("RecordID = %q", env.Records[1].RecordID)
	}
	if env.Records[1].Draft.(ingest.PartyProgramDraft).Format != "pdf" {
		t.Fatalf("explicit format not normalized")
	}
	if env.ContentType != "application/yaml" {
		t.Fatalf("content type = %q", env.ContentType)
	}
}

func TestExtractManifestStrict(t *testing.T) {
	c := New(sources.Spec{ID: SourceID, Kind: ingest.KindPartyProgram}, nil)
	_, err := c.Extract(context.Background(), sources.ExtractRequest{
		Store:     rawstore.New(t.TempDir()),
		LocalPath: filepath.Join("testdata", "manifest.yaml"),
		Strict:    true,
	})
	var extraction *ingest.ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("strict Extract() error = %v, want ExtractionError", err)
	}
}
