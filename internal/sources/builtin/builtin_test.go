package builtin

import (
	"reflect"
	"testing"

	"escrutinio/internal/sources"
)

func TestNewRegistryCoversCatalog(t *testing.T) {
	catalog, err := sources.LoadCatalog(nil)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	reg, err := NewRegistry(catalog, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if !reflect.DeepEqual(reg.IDs(), catalog.IDs()) {
		t.Fatalf("registry ids = %v, catalog ids = %v", reg.IDs(), catalog.IDs())
	}

	all, err := reg.Select("all")
	if err != nil || len(all) != len(catalog.IDs()) {
		t.Fatalf("Select(all) = %d connectors, err %v", len(all), err)
	}
	one, err := reg.Select("senado_votaciones")
	if err != nil || len(one) != 1 || one[0].SourceID() != "senado_votaciones" {
		t.Fatalf("Select(senado_votaciones) = %v, %v", one, err)
	}
	if got := one[0].Resolve(""); got != one[0].Spec().URL {
		t.Fatalf("Resolve(\"\") = %q", got)
	}
	if got := one[0].Resolve("http://override"); got != "http://override" {
		t.Fatalf("Resolve(override) = %q", got)
	}
}
