// Package interventions extracts floor speeches from the Congreso
// intervention index. Index entries carry speaker and date metadata as data-*
// attributes; each links an HTML transcript converted to markdown.
package interventions

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/errs"
	"escrutinio/internal/sources"
)

const SourceID = "congreso_intervenciones"

type Connector struct {
	sources.Base
	converter *md.Converter
}

func New(spec sources.Spec, fetcher sources.Fetcher) *Connector {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Connector{Base: sources.NewBase(spec, fetcher), converter: converter}
}

type entry struct {
	Href        string `json:"href"`
	Fecha       string `json:"fecha"`
	Orador      string `json:"orador"`
	Legislatura string `json:"legislatura"`
	Titulo      string `json:"titulo"`
	Texto       string `json:"texto"`
}

func (c *Connector) Extract(ctx context.Context, req sources.ExtractRequest) (ingest.Extracted, error) {
	ctx = c.Context(ctx)
	col := sources.NewCollector(c.SourceID(), req)
	env := ingest.Extracted{SourceURL: c.Resolve(req.URL), FetchedAt: c.Now(), Note: ingest.NoteNetwork}

	refs := []string{env.SourceURL}
	network := true
	if strings.TrimSpace(req.LocalPath) != "" {
		var err error
		refs, env.Note, err = sources.LocalFiles(req.LocalPath, "**/index*.html")
		if err != nil {
			return ingest.Extracted{}, err
		}
		env.ResolvedURL = req.LocalPath
		network = false
	}

	for _, ref := range refs {
		if col.Full() {
			break
		}
		index, err := c.Open(ctx, req, ref)
		if err != nil {
			return ingest.Extracted{}, errs.Wrapf(err, "read intervention index %s", ref)
		}
		if network {
			env.ResolvedURL = index.FinalRef
		}
		if err := sources.ExpectFormat(c.SourceID(), index, "html"); err != nil {
			return ingest.Extracted{}, err
		}
		if err := c.walkIndex(ctx, req, index, col, network); err != nil {
			return ingest.Extracted{}, err
		}
	}

	body, err := col.Bundle()
	if err != nil {
		return ingest.Extracted{}, errs.Wrap(err, "bundle interventions")
	}
	env.RawPayload = body
	env.ContentType = "application/json"

	if err := c.Finish(ctx, req, &env, col); err != nil {
		return ingest.Extracted{}, err
	}
	return env, nil
}

func (c *Connector) walkIndex(ctx context.Context, req sources.ExtractRequest, index sources.Document, col *sources.Collector, network bool) error {
	links, err := sources.HTMLLinks(index.Body)
	if err != nil {
		return ingest.NewExtractionError(c.SourceID(), index.Ref, "parse index html: %v", err)
	}

	for _, link := range links {
		if col.Full() {
			return nil
		}
		if !link.HasClass("intervencion") {
			continue
		}
		ref := sources.ResolveRef(index.FinalRef, link.Href)
		if network && req.Options.HasDateRange() {
			if d, ok := sources.URLDate(ref); ok && !req.Options.InDateRange(d) {
				continue
			}
		}

		e := entry{
			Href:        ref,
			Orador:      strings.TrimSpace(link.Attrs["data-orador"]),
			Legislatura: strings.TrimSpace(link.Attrs["data-legislatura"]),
			Titulo:      link.Text,
		}
		if e.Legislatura == "" {
			e.Legislatura = c.Spec().Legislature
		}
		date, err := sources.ParseDate(link.Attrs["data-fecha"])
		if err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		e.Fecha = date

		doc, err := c.Open(ctx, req, ref)
		if err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		col.Resolved = append(col.Resolved, doc.FinalRef)
		e.Href = doc.FinalRef
		text, err := c.transcript(doc.Body)
		if err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		e.Texto = text

		rec, err := c.toRecord(e)
		if err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		col.Add(rec)
	}
	return nil
}

// transcript converts the main content of a transcript page to markdown.
func (c *Connector) transcript(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}
	node := find(doc, "main")
	if node == nil {
		node = find(doc, "article")
	}
	if node == nil {
		node = find(doc, "body")
	}
	if node == nil {
		return "", fmt.Errorf("transcript has no body")
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	text, err := c.converter.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("convert transcript: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Connector) toRecord(e entry) (ingest.Record, error) {
	if e.Orador == "" {
		return ingest.Record{}, fmt.Errorf("intervention without speaker")
	}
	payload, err := sources.ToPayload(e)
	if err != nil {
		return ingest.Record{}, err
	}

	recordID := ingest.StableURL(e.Href)
	if recordID == "" {
		recordID = strings.Join([]string{e.Legislatura, e.Fecha, e.Orador, e.Titulo}, "|")
	}
	return ingest.Record{
		RecordID:    recordID,
		DetailURL:   e.Href,
		Legislature: e.Legislatura,
		Date:        e.Fecha,
		Payload:     payload,
		Draft: ingest.InterventionDraft{
			Chamber:     "congreso",
			Legislature: e.Legislatura,
			SessionDate: e.Fecha,
			Speaker:     e.Orador,
			Title:       e.Titulo,
			Body:        e.Texto,
		},
	}, nil
}

func find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, tag); found != nil {
			return found
		}
	}
	return nil
}
