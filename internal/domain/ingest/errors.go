package ingest

import (
	"errors"
	"fmt"
)

// ExtractionError reports a payload whose shape does not match what the
// connector expects (wrong content type, array expected but object received...).
type ExtractionError struct {
	SourceID string
	Location string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %v", e.SourceID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.SourceID, e.Location, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError builds an ExtractionError from a message.
func NewExtractionError(sourceID string, location string, format string, args ...any) error {
	return &ExtractionError{SourceID: sourceID, Location: location, Err: fmt.Errorf(format, args...)}
}

// StrictModeAbort is raised by the pipeline guards when a strict run yields
// suspiciously little.
type StrictModeAbort struct {
	SourceID string
	Reason   string
	Seen     int
	Loaded   int
	Minimum  int
}

func (e *StrictModeAbort) Error() string {
	return fmt.Sprintf("strict mode abort for %s: %s (seen=%d loaded=%d minimum=%d)", e.SourceID, e.Reason, e.Seen, e.Loaded, e.Minimum)
}

// IdentityError means no stable identity could be derived for a record.
type IdentityError struct {
	SourceID string
	RecordID string
	Reason   string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("cannot derive identity for %s record %q: %s", e.SourceID, e.RecordID, e.Reason)
}

// errorKind is implemented by taxonomy errors defined outside this package
// (the fetch client's FetchError).
type errorKind interface {
	Kind() string
}

// Describe renders err as "<Kind>: <message>" for run history.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		extraction *ExtractionError
		strict     *StrictModeAbort
		identity   *IdentityError
		kinded     errorKind
	)
	kind := "Error"
	switch {
	case errors.As(err, &strict):
		kind = "StrictModeAbort"
	case errors.As(err, &identity):
		kind = "IdentityError"
	case errors.As(err, &extraction):
		kind = "ExtractionError"
	case errors.As(err, &kinded):
		kind = kinded.Kind()
	}
	return kind + ": " + err.Error()
}
