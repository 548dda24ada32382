// Package rawstore persists raw fetched bytes content-addressed by SHA-256
// under a per-source directory.
package rawstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"escrutinio/internal/errs"
)

type Store struct {
	dir string
}

// Artifact describes one persisted file.
type Artifact struct {
	Path        string
	ContentHash string
	ByteLen     int64
	Existed     bool
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Hash returns the hex SHA-256 of body.
func Hash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Put writes body to <dir>/<sourceID>/<sha256>.<ext>. Identical content is
// written once.
func (s *Store) Put(sourceID string, contentType string, body []byte) (Artifact, error) {
	if strings.TrimSpace(sourceID) == "" {
		return Artifact{}, fmt.Errorf("rawstore: source id is required")
	}
	if strings.TrimSpace(s.dir) == "" {
		return Artifact{}, fmt.Errorf("rawstore: directory is required")
	}

	hash := Hash(body)
	dir := filepath.Join(s.dir, sourceID)
	path := filepath.Join(dir, hash+"."+Extension(contentType))
	art := Artifact{Path: path, ContentHash: hash, ByteLen: int64(len(body))}

	if _, err := os.Stat(path); err == nil {
		art.Existed = true
		return art, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, errs.Wrapf(err, "create raw dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return Artifact{}, errs.Wrap(err, "create temp raw file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Artifact{}, errs.Wrap(err, "write raw file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Artifact{}, errs.Wrap(err, "close raw file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Artifact{}, errs.Wrapf(err, "rename raw file to %s", path)
	}
	return art, nil
}

// PutJSON marshals v with stable indentation and stores it as JSON.
func (s *Store) PutJSON(sourceID string, v any) (Artifact, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Artifact{}, errs.Wrap(err, "marshal json artifact")
	}
	return s.Put(sourceID, "application/json", body)
}

// Extension maps a content type to the file extension used on disk.
func Extension(contentType string) string {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	switch {
	case strings.Contains(ct, "json"):
		return "json"
	case strings.Contains(ct, "xml"):
		return "xml"
	case strings.Contains(ct, "html"):
		return "html"
	case strings.Contains(ct, "yaml"):
		return "yaml"
	case ct == "text/csv":
		return "csv"
	case strings.HasPrefix(ct, "text/"):
		return "txt"
	default:
		return "bin"
	}
}
