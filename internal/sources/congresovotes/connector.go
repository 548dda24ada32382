// Package congresovotes extracts roll-call votes from the Congreso open data
// catalog: an HTML page linking one JSON document per vote.
package congresovotes

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/sources"
)

const SourceID = "congreso_votaciones"

type Connector struct {
	sources.Base
}

func New(spec sources.Spec, fetcher sources.Fetcher) *Connector {
	return &Connector{Base: sources.NewBase(spec, fetcher)}
}

func (c *Connector) Extract(ctx context.Context, req sources.ExtractRequest) (ingest.Extracted, error) {
	ctx = c.Context(ctx)
	col := sources.NewCollector(c.SourceID(), req)
	env := ingest.Extracted{SourceURL: c.Resolve(req.URL), FetchedAt: c.Now()}

	var err error
	if strings.TrimSpace(req.LocalPath) != "" {
		err = c.extractLocal(ctx, req, &env, col)
	} else {
		err = c.extractNetwork(ctx, req, &env, col)
	}
	if err != nil {
		return ingest.Extracted{}, err
	}
	if err := c.Finish(ctx, req, &env, col); err != nil {
		return ingest.Extracted{}, err
	}
	return env, nil
}

func (c *Connector) extractNetwork(ctx context.Context, req sources.ExtractRequest, env *ingest.Extracted, col *sources.Collector) error {
	catalog, err := c.Open(ctx, req, env.SourceURL)
	if err != nil {
		return errs.Wrap(err, "fetch vote catalog")
	}
	if err := sources.ExpectFormat(c.SourceID(), catalog, "html"); err != nil {
		return err
	}
	env.Note = ingest.NoteNetwork
	env.ResolvedURL = catalog.FinalRef

	if err := c.walkCatalog(ctx, req, catalog, col, true); err != nil {
		return err
	}
	return bundle(env, col)
}

func (c *Connector) extractLocal(ctx context.Context, req sources.ExtractRequest, env *ingest.Extracted, col *sources.Collector) error {
	files, note, err := sources.LocalFiles(req.LocalPath, "**/*.json", "**/*.html")
	if err != nil {
		return err
	}
	env.Note = note
	env.ResolvedURL = req.LocalPath

	for _, file := range files {
		if col.Full() {
			break
		}
		doc, err := c.Open(ctx, req, file)
		if err != nil {
			if ferr := col.Fail(file, err); ferr != nil {
				return ferr
			}
			continue
		}
		if strings.EqualFold(filepath.Ext(file), ".html") {
			if err := c.walkCatalog(ctx, req, doc, col, false); err != nil {
				return err
			}
			continue
		}
		if note == ingest.NoteLocalFile {
			// A single detail file is stored verbatim.
			env.RawPayload = doc.Body
			env.ContentType = "application/json"
		}
		if err := c.addDetail(doc, col); err != nil {
			return err
		}
	}

	if env.RawPayload != nil {
		return nil
	}
	return bundle(env, col)
}

// walkCatalog follows every JSON detail link of an HTML catalog. The date
// filter only applies to live fetches, on the date embedded in the link.
func (c *Connector) walkCatalog(ctx context.Context, req sources.ExtractRequest, catalog sources.Document, col *sources.Collector, network bool) error {
	links, err := sources.HTMLLinks(catalog.Body)
	if err != nil {
		return ingest.NewExtractionError(c.SourceID(), catalog.Ref, "parse catalog html: %v", err)
	}

	seen := make(map[string]struct{})
	skipped := 0
	for _, link := range links {
		if col.Full() {
			break
		}
		if !isDetailLink(link.Href) {
			continue
		}
		ref := sources.ResolveRef(catalog.FinalRef, link.Href)
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}

		if network && req.Options.HasDateRange() {
			if d, ok := sources.URLDate(ref); ok && !req.Options.InDateRange(d) {
				skipped++
				continue
			}
		}

		doc, err := c.Open(ctx, req, ref)
		if err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		col.Resolved = append(col.Resolved, doc.FinalRef)
		if err := c.addDetail(doc, col); err != nil {
			return err
		}
	}

	logging.Debug(ctx, "vote catalog walked",
		slog.String("catalog", catalog.Ref),
		slog.Int("detail_links", len(seen)),
		slog.Int("skipped_by_date", skipped),
	)
	return nil
}

func (c *Connector) addDetail(doc sources.Document, col *sources.Collector) error {
	if err := sources.ExpectFormat(c.SourceID(), doc, "json"); err != nil {
		return col.Fail(doc.Ref, err)
	}
	rec, err := parseDetail(doc, c.Spec().Legislature)
	if err != nil {
		return col.Fail(doc.Ref, err)
	}
	col.Add(rec)
	return nil
}

func parseDetail(doc sources.Document, defaultLegislature string) (ingest.Record, error) {
	obj, err := sources.DecodeObject(doc.Body)
	if err != nil {
		return ingest.Record{}, fmt.Errorf("decode vote detail: %w", err)
	}
	info := sources.Object(obj, "informacion")
	if info == nil {
		return ingest.Record{}, fmt.Errorf("vote detail has no informacion block")
	}
	totals := sources.Object(obj, "totales")
	if totals == nil {
		totals = map[string]any{}
	}

	date, err := sources.ParseDate(sources.First(info, "fecha"))
	if err != nil {
		return ingest.Record{}, err
	}
	leg := sources.First(info, "legislatura")
	if leg == "" {
		leg = sources.URLLegislature(doc.Ref)
	}
	if leg == "" {
		leg = defaultLegislature
	}

	draft := ingest.VoteEventDraft{
		Chamber:        "congreso",
		Legislature:    leg,
		SessionNumber:  sources.FirstInt(info, "sesion"),
		VoteNumber:     sources.FirstInt(info, "numeroVotacion"),
		VoteDate:       date,
		Title:          sources.First(info, "titulo"),
		ExpedienteText: sources.First(info, "textoExpediente"),
		SubgroupTitle:  sources.First(info, "tituloSubGrupo"),
		SubgroupText:   sources.First(info, "textoSubGrupo"),
		TotalPresent:   sources.FirstInt(totals, "presentes"),
		TotalYes:       sources.FirstInt(totals, "afavor"),
		TotalNo:        sources.FirstInt(totals, "enContra"),
		TotalAbstain:   sources.FirstInt(totals, "abstenciones"),
		TotalNoVote:    sources.FirstInt(totals, "noVotan"),
	}
	draft.Expediente = textnorm.Expediente(draft.ExpedienteText)

	ballots, _ := obj["votaciones"].([]any)
	for _, raw := range ballots {
		b, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		draft.Members = append(draft.Members, ingest.MemberVoteDraft{
			Seat:       sources.First(b, "asiento"),
			MemberName: sources.First(b, "diputado"),
			GroupCode:  sources.First(b, "grupo"),
			Choice:     ingest.NormalizeChoice(sources.First(b, "voto")),
		})
	}

	return ingest.Record{
		RecordID:    recordID(doc, draft),
		DetailURL:   doc.FinalRef,
		Legislature: leg,
		Date:        date,
		Payload:     obj,
		Draft:       draft,
	}, nil
}

// recordID prefers the network location; local files fall back to the vote
// fingerprint so renamed fixtures keep their source record.
func recordID(doc sources.Document, draft ingest.VoteEventDraft) string {
	if u := ingest.StableURL(doc.FinalRef); u != "" {
		return u
	}
	if fp, err := ingest.VoteFingerprint(draft); err == nil {
		return fp
	}
	return filepath.Base(doc.Ref)
}

func isDetailLink(href string) bool {
	h := strings.ToLower(href)
	if i := strings.IndexAny(h, "?#"); i >= 0 {
		h = h[:i]
	}
	return strings.HasSuffix(h, ".json")
}

func bundle(env *ingest.Extracted, col *sources.Collector) error {
	body, err := col.Bundle()
	if err != nil {
		return errs.Wrap(err, "bundle vote records")
	}
	env.RawPayload = body
	env.ContentType = "application/json"
	return nil
}
