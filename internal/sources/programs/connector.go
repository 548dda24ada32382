// Package programs extracts party electoral programs from a YAML manifest.
package programs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/sources"
)

const SourceID = "programas_partidos"

type manifest struct {
	Election string    `yaml:"election"`
	Date     string    `yaml:"date"`
	Programs []program `yaml:"programs"`
}

type program struct {
	Party    string `yaml:"party" json:"party"`
	Election string `yaml:"election" json:"election"`
	Title    string `yaml:"title" json:"title"`
	URL      string `yaml:"url" json:"url"`
	Format   string `yaml:"format" json:"format"`
}

type Connector struct {
	sources.Base
}

func New(spec sources.Spec, fetcher sources.Fetcher) *Connector {
	return &Connector{Base: sources.NewBase(spec, fetcher)}
}

func (c *Connector) Extract(ctx context.Context, req sources.ExtractRequest) (ingest.Extracted, error) {
	ctx = c.Context(ctx)
	col := sources.NewCollector(c.SourceID(), req)
	env := ingest.Extracted{SourceURL: c.Resolve(req.URL), FetchedAt: c.Now(), Note: ingest.NoteNetwork}

	refs := []string{env.SourceURL}
	if strings.TrimSpace(req.LocalPath) != "" {
		var err error
		refs, env.Note, err = sources.LocalFiles(req.LocalPath, "**/*.yaml", "**/*.yml")
		if err != nil {
			return ingest.Extracted{}, err
		}
		env.ResolvedURL = req.LocalPath
	}

	for _, ref := range refs {
		if col.Full() {
			break
		}
		doc, err := c.Open(ctx, req, ref)
		if err != nil {
			return ingest.Extracted{}, errs.Wrapf(err, "read program manifest %s", ref)
		}
		if env.Note == ingest.NoteNetwork {
			env.ResolvedURL = doc.FinalRef
		}
		if err := sources.ExpectFormat(c.SourceID(), doc, "yaml"); err != nil {
			return ingest.Extracted{}, err
		}
		if err := c.readManifest(doc, col); err != nil {
			return ingest.Extracted{}, err
		}
		if len(refs) == 1 {
			env.RawPayload = doc.Body
			env.ContentType = "application/yaml"
		}
	}

	if env.RawPayload == nil {
		body, err := col.Bundle()
		if err != nil {
			return ingest.Extracted{}, errs.Wrap(err, "bundle programs")
		}
		env.RawPayload = body
		env.ContentType = "application/json"
	}

	if err := c.Finish(ctx, req, &env, col); err != nil {
		return ingest.Extracted{}, err
	}
	return env, nil
}

func (c *Connector) readManifest(doc sources.Document, col *sources.Collector) error {
	var m manifest
	if err := yaml.Unmarshal(doc.Body, &m); err != nil {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "decode manifest: %v", err)
	}

	for i, p := range m.Programs {
		if col.Full() {
			return nil
		}
		if strings.TrimSpace(p.Election) == "" {
			p.Election = m.Election
		}
		location := doc.Ref + "#" + strconv.Itoa(i)
		if strings.TrimSpace(p.Party) == "" || strings.TrimSpace(p.Election) == "" {
			if err := col.Fail(location, fmt.Errorf("program without party or election")); err != nil {
				return err
			}
			continue
		}
		payload, err := sources.ToPayload(p)
		if err != nil {
			if err := col.Fail(location, err); err != nil {
				return err
			}
			continue
		}
		format := strings.ToLower(strings.TrimSpace(p.Format))
		if format == "" {
			format = formatFromURL(p.URL)
		}
		col.Add(ingest.Record{
			RecordID:  textnorm.Fold(p.Party) + "|" + textnorm.Fold(p.Election),
			DetailURL: p.URL,
			Date:      m.Date,
			Payload:   payload,
			Draft: ingest.PartyProgramDraft{
				Party:       strings.TrimSpace(p.Party),
				Election:    strings.TrimSpace(p.Election),
				Title:       strings.TrimSpace(p.Title),
				DocumentURL: strings.TrimSpace(p.URL),
				Format:      format,
			},
		})
	}
	return nil
}

func formatFromURL(u string) string {
	u = strings.ToLower(u)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexByte(u, '.'); i >= 0 && i > strings.LastIndexByte(u, '/') {
		return u[i+1:]
	}
	return ""
}
