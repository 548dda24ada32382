package rawstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPutIsContentAddressed(t *testing.T) {
	store := New(t.TempDir())
	body := []byte(`{"a":1}`)

	first, err := store.Put("congreso_votaciones", "application/json; charset=utf-8", body)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	want := filepath.Join(store.Dir(), "congreso_votaciones", Hash(body)+".json")
	if first.Path != want {
		t.Fatalf("Path = %q, want %q", first.Path, want)
	}
	if first.Existed {
		t.Fatalf("first Put() reported Existed")
	}

	second, err := store.Put("congreso_votaciones", "application/json", body)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !second.Existed || second.Path != first.Path {
		t.Fatalf("second Put() = %+v, want existing %q", second, first.Path)
	}

	got, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != string(body) || first.ByteLen != int64(len(body)) {
		t.Fatalf("stored %q (len %d)", got, first.ByteLen)
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"text/html; charset=iso-8859-1": "html",
		"application/xml":               "xml",
		"text/xml":                      "xml",
		"application/x-yaml":            "yaml",
		"text/plain":                    "txt",
		"":                              "bin",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Fatalf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPutRequiresSource(t *testing.T) {
	if _, err := New(t.TempDir()).Put(" ", "text/plain", nil); err == nil {
		t.Fatalf("Put() without source id succeeded")
	}
}
