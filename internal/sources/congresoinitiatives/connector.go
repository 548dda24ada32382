// Package congresoinitiatives extracts initiatives from the Congreso JSON
// exports, one array per initiative family (variant).
package congresoinitiatives

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/sources"
)

const SourceID = "congreso_iniciativas"

type Connector struct {
	sources.Base
}

func New(spec sources.Spec, fetcher sources.Fetcher) *Connector {
	return &Connector{Base: sources.NewBase(spec, fetcher)}
}

// originFor picks the export to read: explicit override, then the requested
// variant, then the catalog default.
func (c *Connector) originFor(req sources.ExtractRequest) (string, error) {
	if o := strings.TrimSpace(req.URL); o != "" {
		return o, nil
	}
	if v := strings.TrimSpace(req.Options.Variant); v != "" {
		u, ok := c.Spec().VariantURL(v)
		if !ok {
			return "", fmt.Errorf("%s: unknown variant %q (known: %s)", c.SourceID(), v, strings.Join(c.Spec().VariantNames(), ", "))
		}
		return u, nil
	}
	return c.Spec().URL, nil
}

func (c *Connector) Extract(ctx context.Context, req sources.ExtractRequest) (ingest.Extracted, error) {
	ctx = c.Context(ctx)
	col := sources.NewCollector(c.SourceID(), req)

	origin, err := c.originFor(req)
	if err != nil {
		return ingest.Extracted{}, err
	}
	env := ingest.Extracted{SourceURL: origin, FetchedAt: c.Now(), Note: ingest.NoteNetwork}

	refs := []string{origin}
	if strings.TrimSpace(req.LocalPath) != "" {
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
			return ingest.Extracted{}, errs.Wrapf(err, "read initiatives export %s", ref)
		}
		if env.Note == ingest.NoteNetwork {
			env.ResolvedURL = doc.FinalRef
		}
		if err := sources.ExpectFormat(c.SourceID(), doc, "json"); err != nil {
			return ingest.Extracted{}, err
		}
		if err := c.readExport(doc, col); err != nil {
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
			return ingest.Extracted{}, errs.Wrap(err, "bundle initiatives")
		}
		env.RawPayload = body
		env.ContentType = "application/json"
	}

	if err := c.Finish(ctx, req, &env, col); err != nil {
		return ingest.Extracted{}, err
	}
	return env, nil
}

func (c *Connector) readExport(doc sources.Document, col *sources.Collector) error {
	var root any
	if err := json.Unmarshal(doc.Body, &root); err != nil {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "decode json: %v", err)
	}
	items, ok := root.([]any)
	if !ok {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "expected a JSON array, got %s", jsonKind(root))
	}

	for i, raw := range items {
		if col.Full() {
			return nil
		}
		location := doc.Ref + "#" + strconv.Itoa(i)
		item, ok := raw.(map[string]any)
		if !ok {
			if err := col.Fail(location, fmt.Errorf("expected an object, got %s", jsonKind(raw))); err != nil {
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
	exp := textnorm.Expediente(sources.First(item, "NUMEXPEDIENTE", "EXPEDIENTE", "numExpediente"))
	if exp == "" {
		return ingest.Record{}, fmt.Errorf("initiative without expediente")
	}
	leg := sources.First(item, "LEGISLATURA", "legislatura")
	if leg == "" {
		leg = c.Spec().Legislature
	}
	date, err := sources.ParseDate(sources.First(item, "FECHAPRESENTACION", "FECHA_PRESENTACION"))
	if err != nil {
		date = ""
	}

	return ingest.Record{
		RecordID:    leg + ":" + exp,
		DetailURL:   sources.First(item, "ENLACE", "URL", "enlace"),
		Legislature: leg,
		Date:        date,
		Payload:     item,
		Draft: ingest.InitiativeDraft{
			Chamber:        "congreso",
			Legislature:    leg,
			Expediente:     exp,
			Title:          sources.First(item, "OBJETO", "TITULO", "objeto"),
			InitiativeType: sources.First(item, "TIPO", "tipo"),
		},
	}, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
