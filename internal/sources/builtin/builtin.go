// Package builtin wires every connector variant to its catalog entry.
package builtin

import (
	"fmt"

	"escrutinio/internal/sources"
	"escrutinio/internal/sources/congresoinitiatives"
	"escrutinio/internal/sources/congresovotes"
	"escrutinio/internal/sources/interventions"
	"escrutinio/internal/sources/programs"
	"escrutinio/internal/sources/senadoinitiatives"
	"escrutinio/internal/sources/senadovotes"
)

type constructor func(spec sources.Spec, fetcher sources.Fetcher) sources.Connector

var variants = map[string]constructor{
	congresovotes.SourceID: func(s sources.Spec, f sources.Fetcher) sources.Connector {
		return congresovotes.New(s, f)
	},
	senadovotes.SourceID: func(s sources.Spec, f sources.Fetcher) sources.Connector {
		return senadovotes.New(s, f)
	},
	congresoinitiatives.SourceID: func(s sources.Spec, f sources.Fetcher) sources.Connector {
		return congresoinitiatives.New(s, f)
	},
	senadoinitiatives.SourceID: func(s sources.Spec, f sources.Fetcher) sources.Connector {
		return senadoinitiatives.New(s, f)
	},
	interventions.SourceID: func(s sources.Spec, f sources.Fetcher) sources.Connector {
		return interventions.New(s, f)
	},
	programs.SourceID: func(s sources.Spec, f sources.Fetcher) sources.Connector {
		return programs.New(s, f)
	},
}

// NewRegistry builds one connector per catalog entry, in catalog order.
func NewRegistry(catalog sources.Catalog, fetcher sources.Fetcher) (*sources.Registry, error) {
	connectors := make([]sources.Connector, 0, len(variants))
	for _, id := range catalog.IDs() {
		build, ok := variants[id]
		if !ok {
			return nil, fmt.Errorf("no connector implements catalog source %s", id)
		}
		spec, err := catalog.Get(id)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, build(spec, fetcher))
	}
	return sources.NewRegistry(connectors...)
}
