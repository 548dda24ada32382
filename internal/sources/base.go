package sources

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/errs"
	"escrutinio/internal/fetch"
)

// Fetcher is the slice of the fetch client connectors need.
type Fetcher interface {
	Get(ctx context.Context, req fetch.Request) (fetch.Response, error)
}

// Base implements the parts of Connector shared by every variant. Variants
// embed it and add Extract.
type Base struct {
	spec    Spec
	fetcher Fetcher
	now     func() time.Time
}

func NewBase(spec Spec, fetcher Fetcher) Base {
	return Base{spec: spec, fetcher: fetcher, now: func() time.Time { return time.Now().UTC() }}
}

func (b Base) SourceID() string { return b.spec.ID }

func (b Base) Spec() Spec { return b.spec }

func (b Base) Resolve(override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return b.spec.URL
}

// Now is the extraction timestamp.
func (b Base) Now() time.Time { return b.now() }

// WithClock replaces the clock that stamps FetchedAt.
func (b *Base) WithClock(now func() time.Time) { b.now = now }

// Logger context for one extraction.
func (b Base) Context(ctx context.Context) context.Context {
	return logging.WithAttrs(ctx, slog.String("component", "connector."+b.spec.ID), slog.String("source", b.spec.ID))
}

// Document is one retrieved payload, from the network or from disk.
type Document struct {
	Ref         string
	FinalRef    string
	ContentType string
	Body        []byte
	Local       bool
}

// Open reads ref: http(s) references go through the fetcher, anything else is
// read from the filesystem.
func (b Base) Open(ctx context.Context, req ExtractRequest, ref string) (Document, error) {
	if isNetworkRef(ref) {
		if b.fetcher == nil {
			return Document{}, errs.Wrapf(errNoFetcher, "open %s", ref)
		}
		resp, err := b.fetcher.Get(ctx, fetch.Request{URL: ref, Timeout: req.Timeout})
		if err != nil {
			return Document{}, err
		}
		final := resp.FinalURL
		if final == "" {
			final = ref
		}
		return Document{Ref: ref, FinalRef: final, ContentType: resp.ContentType, Body: resp.Body}, nil
	}

	body, err := os.ReadFile(ref)
	if err != nil {
		return Document{}, errs.Wrapf(err, "read %s", ref)
	}
	return Document{Ref: ref, FinalRef: ref, ContentType: ContentTypeForPath(ref), Body: body, Local: true}, nil
}

var errNoFetcher = errors.New("no fetcher configured")

// ResolveRef resolves a link found in a document against the document's own
// location (URL or file path).
func ResolveRef(base string, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || isNetworkRef(ref) {
		return ref
	}
	if isNetworkRef(base) {
		bu, err := url.Parse(base)
		if err != nil {
			return ref
		}
		ru, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return bu.ResolveReference(ru).String()
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref))
}

func isNetworkRef(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LocalFiles expands a reproducible-mode path. A directory is searched with
// the doublestar patterns and yields NoteLocalDir; a file yields itself.
func LocalFiles(localPath string, patterns ...string) ([]string, string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, "", errs.Wrapf(err, "stat %s", localPath)
	}
	if !info.IsDir() {
		return []string{localPath}, ingest.NoteLocalFile, nil
	}

	fsys := os.DirFS(localPath)
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, "", errs.Wrapf(err, "glob %s in %s", pattern, localPath)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, filepath.Join(localPath, filepath.FromSlash(m)))
		}
	}
	sort.Strings(files)
	return files, ingest.NoteLocalDir, nil
}

// ContentTypeForPath infers a content type from a file extension.
func ContentTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(filepath.ToSlash(p))) {
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".html", ".htm":
		return "text/html"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// ExpectFormat rejects documents whose declared content type clearly belongs
// to another format. Generic types (empty, text/plain, octet-stream) pass.
func ExpectFormat(sourceID string, doc Document, format string) error {
	ct := strings.ToLower(doc.ContentType)
	if ct == "" || strings.Contains(ct, format) || strings.Contains(ct, "text/plain") || strings.Contains(ct, "octet-stream") {
		return nil
	}
	return ingest.NewExtractionError(sourceID, doc.Ref, "expected %s content, got %q", format, doc.ContentType)
}

// Collector accumulates records and per-document failures of one extraction.
type Collector struct {
	SourceID string
	Strict   bool
	Options  ingest.Options

	Records  []ingest.Record
	Failures []ingest.Failure
	Resolved []string
}

func NewCollector(sourceID string, req ExtractRequest) *Collector {
	return &Collector{SourceID: sourceID, Strict: req.Strict, Options: req.Options}
}

func (c *Collector) Add(rec ingest.Record) {
	c.Records = append(c.Records, rec)
}

// Full reports whether the record cap has been reached.
func (c *Collector) Full() bool {
	return c.Options.Reached(len(c.Records))
}

// Fail records a per-document failure. In strict mode it returns the error
// the connector must propagate.
func (c *Collector) Fail(location string, err error) error {
	if c.Strict {
		var extraction *ingest.ExtractionError
		var fetchErr *fetch.FetchError
		if errors.As(err, &extraction) || errors.As(err, &fetchErr) {
			return err
		}
		return &ingest.ExtractionError{SourceID: c.SourceID, Location: location, Err: err}
	}
	c.Failures = append(c.Failures, ingest.Failure{Location: location, Error: err.Error()})
	return nil
}

// bundleEntry is the per-record shape of a multi-document raw payload.
type bundleEntry struct {
	RecordID  string         `json:"record_id"`
	DetailURL string         `json:"detail_url,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// Bundle serializes the collected records as one JSON document; used as the
// raw payload when an extraction spans several documents.
func (c *Collector) Bundle() ([]byte, error) {
	entries := make([]bundleEntry, 0, len(c.Records))
	for _, r := range c.Records {
		entries = append(entries, bundleEntry{RecordID: r.RecordID, DetailURL: r.DetailURL, Payload: r.Payload})
	}
	return json.Marshal(entries)
}

type metadataSummary struct {
	SourceID     string           `json:"source_id"`
	SourceURL    string           `json:"source_url"`
	ResolvedURL  string           `json:"resolved_url"`
	FetchedAt    string           `json:"fetched_at"`
	Note         string           `json:"note"`
	ContentHash  string           `json:"content_hash"`
	Records      int              `json:"records"`
	Failures     []ingest.Failure `json:"failures"`
	ResolvedURLs []string         `json:"resolved_urls"`
}

// Finish stores the raw payload and the metadata summary, and fills the
// envelope's storage fields.
func (b Base) Finish(ctx context.Context, req ExtractRequest, env *ingest.Extracted, c *Collector) error {
	env.SourceID = b.spec.ID
	env.Records = c.Records
	env.Failures = c.Failures
	if env.FetchedAt.IsZero() {
		env.FetchedAt = b.now()
	}
	if req.Store == nil {
		return errors.New("raw store is required")
	}

	art, err := req.Store.Put(b.spec.ID, env.ContentType, env.RawPayload)
	if err != nil {
		return errs.Wrap(err, "store raw payload")
	}
	env.RawPath = art.Path
	env.ContentHash = art.ContentHash
	env.ByteLen = art.ByteLen

	failures := c.Failures
	if failures == nil {
		failures = []ingest.Failure{}
	}
	resolved := c.Resolved
	if resolved == nil {
		resolved = []string{}
	}
	meta, err := req.Store.PutJSON(b.spec.ID, metadataSummary{
		SourceID:     b.spec.ID,
		SourceURL:    env.SourceURL,
		ResolvedURL:  env.ResolvedURL,
		FetchedAt:    env.FetchedAt.Format(time.RFC3339),
		Note:         env.Note,
		ContentHash:  env.ContentHash,
		Records:      len(c.Records),
		Failures:     failures,
		ResolvedURLs: resolved,
	})
	if err != nil {
		return errs.Wrap(err, "store extraction metadata")
	}
	env.MetaPath = meta.Path

	logging.Info(ctx, "extraction finished",
		slog.String("note", env.Note),
		slog.Int("records", len(env.Records)),
		slog.Int("failures", len(env.Failures)),
		slog.String("content_hash", env.ContentHash),
	)
	return nil
}
