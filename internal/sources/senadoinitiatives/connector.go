// Package senadoinitiatives extracts initiatives from the Senado JSON feed.
// Each initiative embeds the votes that decided it (legislature and
// expediente), which the payload linker matches later.
package senadoinitiatives

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/sources"
)

const SourceID = "senado_iniciativas"

// The feed wraps the list in "iniciativas"; older exports are a bare array.
var itemsExpr = jmespath.MustCompile("iniciativas || @")

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
		refs, env.Note, err = sources.LocalFiles(req.LocalPath, "**/*.json")
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
			return ingest.Extracted{}, errs.Wrapf(err, "read senate initiatives %s", ref)
		}
		if env.Note == ingest.NoteNetwork {
			env.ResolvedURL = doc.FinalRef
		}
		if err := sources.ExpectFormat(c.SourceID(), doc, "json"); err != nil {
			return ingest.Extracted{}, err
		}
		if err := c.readFeed(doc, col); err != nil {
			return ingest.Extracted{}, err
		}
		if len(refs) == 1 {
			env.RawPayload = doc.Body
			env.ContentType = "application/json"
		}
	}

	if env.RawPayload == nil {
		body, err := col.Bundle()
		if err != nil {
			return ingest.Extracted{}, errs.Wrap(err, "bundle senate initiatives")
		}
		env.RawPayload = body
		env.ContentType = "application/json"
	}

	if err := c.Finish(ctx, req, &env, col); err != nil {
		return ingest.Extracted{}, err
	}
	return env, nil
}

func (c *Connector) readFeed(doc sources.Document, col *sources.Collector) error {
	var root any
	if err := json.Unmarshal(doc.Body, &root); err != nil {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "decode json: %v", err)
	}
	found, err := itemsExpr.Search(root)
	if err != nil {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "select initiatives: %v", err)
	}
	items, ok := found.([]any)
	if !ok {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "expected an initiatives array")
	}

	for i, raw := range items {
		if col.Full() {
			return nil
		}
		location := doc.Ref + "#" + strconv.Itoa(i)
		item, ok := raw.(map[string]any)
		if !ok {
			if err := col.Fail(location, fmt.Errorf("initiative entry is not an object")); err != nil {
				return err
			}
			continue
		}
		rec, err := c.toRecord(item)
		if err != nil {
			if err := col.Fail(location, err); err != nil {
				return err
			}
			continue
		}
		col.Add(rec)
	}
	return nil
}

func (c *Connector) toRecord(item map[string]any) (ingest.Record, error) {
	exp := textnorm.Expediente(sources.First(item, "expediente", "numExpediente"))
	if exp == "" {
		return ingest.Record{}, fmt.Errorf("initiative without expediente")
	}
	leg := sources.First(item, "legislatura")
	if leg == "" {
		leg = c.Spec().Legislature
	}
	date, err := sources.ParseDate(sources.First(item, "fechaPresentacion", "fecha"))
	if err != nil {
		date = ""
	}

	return ingest.Record{
		RecordID:    leg + ":" + exp,
		DetailURL:   sources.First(item, "url", "enlace"),
		Legislature: leg,
		Date:        date,
		Payload:     item,
		Draft: ingest.InitiativeDraft{
			Chamber:        "senado",
			Legislature:    leg,
			Expediente:     exp,
			Title:          sources.First(item, "titulo", "objeto"),
			InitiativeType: sources.First(item, "tipo", "tipoIniciativa"),
		},
	}, nil
}
