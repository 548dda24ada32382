package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options are the debug knobs accepted by connectors and the pipeline.
type Options struct {
	MaxRecords int
	SinceDate  *time.Time
	UntilDate  *time.Time
	Variant    string
}

// OptionsFromBag reads the recognized keys of a loosely typed options bag:
// max_votes / max_records, since_date / until_date (YYYY-MM-DD) and variant.
// Unknown keys are ignored.
func OptionsFromBag(bag map[string]any) (Options, error) {
	var out Options
	for _, key := range []string{"max_records", "max_votes"} {
		raw, ok := bag[key]
		if !ok || raw == nil {
			continue
		}
		n, err := toInt(raw)
		if err != nil {
			return Options{}, fmt.Errorf("option %s: %w", key, err)
		}
		out.MaxRecords = n
	}
	for key, dst := range map[string]**time.Time{"since_date": &out.SinceDate, "until_date": &out.UntilDate} {
		raw, ok := bag[key]
		if !ok || raw == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(raw))
		if s == "" {
			continue
		}
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return Options{}, fmt.Errorf("option %s: %w", key, err)
		}
		*dst = &d
	}
	if raw, ok := bag["variant"]; ok && raw != nil {
		out.Variant = strings.TrimSpace(fmt.Sprint(raw))
	}
	return out, out.Validate()
}

func (o Options) Validate() error {
	if o.MaxRecords < 0 {
		return fmt.Errorf("max records must be >= 0, got %d", o.MaxRecords)
	}
	if o.SinceDate != nil && o.UntilDate != nil && o.UntilDate.Before(*o.SinceDate) {
		return fmt.Errorf("until date %s is before since date %s", o.UntilDate.Format(time.DateOnly), o.SinceDate.Format(time.DateOnly))
	}
	return nil
}

// HasDateRange reports whether a since/until filter is set.
func (o Options) HasDateRange() bool {
	return o.SinceDate != nil || o.UntilDate != nil
}

// InDateRange reports whether d falls inside the inclusive since/until window.
func (o Options) InDateRange(d time.Time) bool {
	if o.SinceDate != nil && d.Before(*o.SinceDate) {
		return false
	}
	if o.UntilDate != nil && d.After(*o.UntilDate) {
		return false
	}
	return true
}

// Reached reports whether n processed records hit the record cap.
func (o Options) Reached(n int) bool {
	return o.MaxRecords > 0 && n >= o.MaxRecords
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
