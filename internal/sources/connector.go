package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"escrutinio/internal/domain/ingest"
	"escrutinio/internal/rawstore"
)

// ExtractRequest carries the per-invocation inputs of Connector.Extract.
// LocalPath switches the connector to reproducible mode (a file or a
// directory); Strict makes the first per-document failure fatal.
type ExtractRequest struct {
	Store     *rawstore.Store
	Timeout   time.Duration
	URL       string
	LocalPath string
	Strict    bool
	Options   ingest.Options
}

// Connector turns one origin into the uniform extraction envelope.
type Connector interface {
	SourceID() string
	Spec() Spec
	// Resolve returns the origin URL, preferring a non-empty override.
	Resolve(override string) string
	Extract(ctx context.Context, req ExtractRequest) (ingest.Extracted, error)
}

// Registry maps source id to its connector; built once at startup.
type Registry struct {
	order []string
	byID  map[string]Connector
}

func NewRegistry(connectors ...Connector) (*Registry, error) {
	r := &Registry{byID: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		id := c.SourceID()
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("connector %s registered twice", id)
		}
		r.order = append(r.order, id)
		r.byID[id] = c
	}
	return r, nil
}

func (r *Registry) Get(id string) (Connector, error) {
	c, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return c, nil
}

// IDs returns registered source ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Select expands "all" (or an empty id) to every registered source.
func (r *Registry) Select(id string) ([]Connector, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "all" {
		out := make([]Connector, 0, len(r.order))
		for _, sid := range r.order {
			out = append(out, r.byID[sid])
		}
		return out, nil
	}
	c, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return []Connector{c}, nil
}
