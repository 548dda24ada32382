// Package sources declares every ingestable source and the connector
// capability each one implements.
package sources

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"escrutinio/internal/bootstrap/config"
	"escrutinio/internal/domain/ingest"
)

//go:embed sources.toml
var embeddedCatalog []byte

var ErrUnknownSource = errors.New("unknown source")

// Spec is one source as declared in sources.toml.
type Spec struct {
	ID          string            `toml:"id"`
	Chamber     string            `toml:"chamber"`
	Kind        string            `toml:"kind"`
	Format      string            `toml:"format"`
	Legislature string            `toml:"legislature"`
	URL         string            `toml:"url"`
	MinLoaded   int               `toml:"min_loaded"`
	Variants    map[string]string `toml:"variants"`
}

// VariantURL returns the URL of a named export shape.
func (s Spec) VariantURL(variant string) (string, bool) {
	u, ok := s.Variants[strings.TrimSpace(variant)]
	return u, ok
}

// VariantNames lists the declared export shapes in stable order.
func (s Spec) VariantNames() []string {
	names := make([]string, 0, len(s.Variants))
	for name := range s.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type catalogFile struct {
	Version int    `toml:"version"`
	Sources []Spec `toml:"sources"`
}

// Catalog keeps the declaration order, which is also the "all" ingestion order.
type Catalog struct {
	order []string
	byID  map[string]Spec
}

// LoadCatalog parses the embedded catalog and applies per-source overrides.
func LoadCatalog(overrides map[string]config.SourceOverride) (Catalog, error) {
	return ParseCatalog(embeddedCatalog, overrides)
}

func ParseCatalog(raw []byte, overrides map[string]config.SourceOverride) (Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse source catalog: %w", err)
	}
	if file.Version != 1 {
		return Catalog{}, fmt.Errorf("unsupported source catalog version %d", file.Version)
	}

	c := Catalog{byID: make(map[string]Spec, len(file.Sources))}
	for _, spec := range file.Sources {
		spec.ID = strings.TrimSpace(spec.ID)
		if spec.ID == "" {
			return Catalog{}, errors.New("source catalog: id is required")
		}
		if _, dup := c.byID[spec.ID]; dup {
			return Catalog{}, fmt.Errorf("source catalog: duplicate id %s", spec.ID)
		}
		switch spec.Kind {
		case ingest.KindVoteEvent, ingest.KindInitiative, ingest.KindIntervention, ingest.KindPartyProgram:
		default:
			return Catalog{}, fmt.Errorf("source catalog: %s has unknown kind %q", spec.ID, spec.Kind)
		}
		if o, ok := overrides[spec.ID]; ok {
			if u := strings.TrimSpace(o.URL); u != "" {
				spec.URL = u
			}
			if o.MinLoaded != nil {
				spec.MinLoaded = *o.MinLoaded
			}
		}
		c.order = append(c.order, spec.ID)
		c.byID[spec.ID] = spec
	}
	return c, nil
}

func (c Catalog) Get(id string) (Spec, error) {
	spec, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return spec, nil
}

func (c Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// IDsByKind returns the source ids of one entity kind in catalog order.
func (c Catalog) IDsByKind(kind string) []string {
	var out []string
	for _, id := range c.order {
		if c.byID[id].Kind == kind {
			out = append(out, id)
		}
	}
	return out
}
