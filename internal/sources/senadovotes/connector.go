// Package senadovotes extracts roll-call votes from the Senado XML feed. The
// feed is either a list of inline <votacion> elements or an index whose
// entries point at one XML document per vote.
package senadovotes

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/sources"
)

const SourceID = "senado_votaciones"

type feed struct {
	XMLName     xml.Name  `xml:"votaciones"`
	Legislatura string    `xml:"legislatura,attr"`
	Votes       []xmlVote `xml:"votacion"`
}

type xmlVote struct {
	Href        string      `xml:"href,attr" json:"href,omitempty"`
	FechaAttr   string      `xml:"fecha,attr" json:"-"`
	Legislatura string      `xml:"legislatura" json:"legislatura"`
	Sesion      string      `xml:"sesion" json:"sesion"`
	Numero      string      `xml:"numero" json:"numero"`
	Fecha       string      `xml:"fecha" json:"fecha"`
	Titulo      string      `xml:"titulo" json:"titulo"`
	Expediente  string      `xml:"expediente" json:"expediente"`
	URL         string      `xml:"url" json:"url,omitempty"`
	Totales     xmlTotals   `xml:"totales" json:"totales"`
	Votos       []xmlBallot `xml:"votos>voto" json:"votos"`
}

type xmlTotals struct {
	Presentes    string `xml:"presentes,attr" json:"presentes"`
	AFavor       string `xml:"afavor,attr" json:"afavor"`
	EnContra     string `xml:"encontra,attr" json:"encontra"`
	Abstenciones string `xml:"abstenciones,attr" json:"abstenciones"`
	NoVotan      string `xml:"novotan,attr" json:"novotan"`
}

type xmlBallot struct {
	Escano  string `xml:"escano,attr" json:"escano"`
	Nombre  string `xml:"nombre,attr" json:"nombre"`
	Grupo   string `xml:"grupo,attr" json:"grupo"`
	Sentido string `xml:"sentido,attr" json:"sentido"`
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
	env := ingest.Extracted{SourceURL: c.Resolve(req.URL), FetchedAt: c.Now()}

	refs := []string{env.SourceURL}
	env.Note = ingest.NoteNetwork
	network := true
	if strings.TrimSpace(req.LocalPath) != "" {
		files, note, err := sources.LocalFiles(req.LocalPath, "**/*.xml")
		if err != nil {
			return ingest.Extracted{}, err
		}
		refs, env.Note, network = files, note, false
		env.ResolvedURL = req.LocalPath
	}

	for _, ref := range refs {
		if col.Full() {
			break
		}
		doc, err := c.Open(ctx, req, ref)
		if err != nil {
			if network {
				return ingest.Extracted{}, errs.Wrap(err, "fetch senate vote feed")
			}
			if ferr := col.Fail(ref, err); ferr != nil {
				return ingest.Extracted{}, ferr
			}
			continue
		}
		if network {
			env.ResolvedURL = doc.FinalRef
		}
		if err := sources.ExpectFormat(c.SourceID(), doc, "xml"); err != nil {
			return ingest.Extracted{}, err
		}
		if len(refs) == 1 {
			env.RawPayload = doc.Body
			env.ContentType = "application/xml"
		}
		if err := c.readFeed(ctx, req, doc, col, network); err != nil {
			return ingest.Extracted{}, err
		}
	}

	// Index feeds span several documents; store what was extracted instead.
	if env.RawPayload == nil || len(col.Resolved) > 0 {
		body, err := col.Bundle()
		if err != nil {
			return ingest.Extracted{}, errs.Wrap(err, "bundle senate votes")
		}
		env.RawPayload = body
		env.ContentType = "application/json"
	}

	if err := c.Finish(ctx, req, &env, col); err != nil {
		return ingest.Extracted{}, err
	}
	return env, nil
}

func (c *Connector) readFeed(ctx context.Context, req sources.ExtractRequest, doc sources.Document, col *sources.Collector, network bool) error {
	root, err := rootElement(doc.Body)
	if err != nil {
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "parse xml: %v", err)
	}

	var votes []xmlVote
	legislature := c.Spec().Legislature
	switch root {
	case "votaciones":
		var f feed
		if err := decodeXML(doc.Body, &f); err != nil {
			return ingest.NewExtractionError(c.SourceID(), doc.Ref, "decode vote feed: %v", err)
		}
		if f.Legislatura != "" {
			legislature = f.Legislatura
		}
		votes = f.Votes
	case "votacion":
		var v xmlVote
		if err := decodeXML(doc.Body, &v); err != nil {
			return col.Fail(doc.Ref, err)
		}
		votes = []xmlVote{v}
	default:
		return ingest.NewExtractionError(c.SourceID(), doc.Ref, "unexpected root element <%s>", root)
	}

	for _, v := range votes {
		if col.Full() {
			return nil
		}
		if v.Href == "" {
			if err := c.add(doc.FinalRef, v, legislature, col); err != nil {
				return err
			}
			continue
		}

		ref := sources.ResolveRef(doc.FinalRef, v.Href)
		if network && req.Options.HasDateRange() && !c.inRange(req, ref, v.FechaAttr) {
			continue
		}
		detail, err := c.Open(ctx, req, ref)
		if err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		col.Resolved = append(col.Resolved, detail.FinalRef)
		var dv xmlVote
		if err := decodeXML(detail.Body, &dv); err != nil {
			if ferr := col.Fail(ref, err); ferr != nil {
				return ferr
			}
			continue
		}
		if dv.URL == "" && ingest.StableURL(detail.FinalRef) != "" {
			dv.URL = detail.FinalRef
		}
		if err := c.add(detail.FinalRef, dv, legislature, col); err != nil {
			return err
		}
	}
	return nil
}

// inRange applies the date filter on the URL date segment, falling back to
// the index entry's fecha attribute.
func (c *Connector) inRange(req sources.ExtractRequest, ref string, fecha string) bool {
	if d, ok := sources.URLDate(ref); ok {
		return req.Options.InDateRange(d)
	}
	if iso, err := sources.ParseDate(fecha); err == nil && iso != "" {
		if d, err := time.Parse(time.DateOnly, iso); err == nil {
			return req.Options.InDateRange(d)
		}
	}
	return true
}

func (c *Connector) add(location string, v xmlVote, legislature string, col *sources.Collector) error {
	rec, err := toRecord(location, v, legislature)
	if err != nil {
		return col.Fail(location, err)
	}
	col.Add(rec)
	return nil
}

func toRecord(location string, v xmlVote, legislature string) (ingest.Record, error) {
	date, err := sources.ParseDate(v.Fecha)
	if err != nil {
		return ingest.Record{}, err
	}
	if leg := strings.TrimSpace(v.Legislatura); leg != "" {
		legislature = leg
	}
	v.Legislatura = legislature

	draft := ingest.VoteEventDraft{
		Chamber:        "senado",
		Legislature:    legislature,
		SessionNumber:  sources.Int(v.Sesion),
		VoteNumber:     sources.Int(v.Numero),
		VoteDate:       date,
		Title:          strings.TrimSpace(v.Titulo),
		ExpedienteText: strings.TrimSpace(v.Expediente),
		Expediente:     textnorm.Expediente(v.Expediente),
		TotalPresent:   sources.Int(v.Totales.Presentes),
		TotalYes:       sources.Int(v.Totales.AFavor),
		TotalNo:        sources.Int(v.Totales.EnContra),
		TotalAbstain:   sources.Int(v.Totales.Abstenciones),
		TotalNoVote:    sources.Int(v.Totales.NoVotan),
	}
	for _, b := range v.Votos {
		draft.Members = append(draft.Members, ingest.MemberVoteDraft{
			Seat:       strings.TrimSpace(b.Escano),
			MemberName: strings.TrimSpace(b.Nombre),
			GroupCode:  strings.TrimSpace(b.Grupo),
			Choice:     ingest.NormalizeChoice(b.Sentido),
		})
	}

	payload, err := sources.ToPayload(v)
	if err != nil {
		return ingest.Record{}, fmt.Errorf("encode payload: %w", err)
	}

	detail := strings.TrimSpace(v.URL)
	recordID := ingest.StableURL(detail)
	if recordID == "" {
		fp, err := ingest.VoteFingerprint(draft)
		if err != nil {
			fp = filepath.Base(location) + "#" + v.Numero
		}
		recordID = fp
	}

	return ingest.Record{
		RecordID:    recordID,
		DetailURL:   detail,
		Legislature: legislature,
		Date:        date,
		Payload:     payload,
		Draft:       draft,
	}, nil
}

// decodeXML honors the encoding declared in the prolog; the feed is
// published in ISO-8859-1.
func decodeXML(body []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
