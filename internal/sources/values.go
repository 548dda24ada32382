package sources

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	urlDateRe     = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})-?(0[1-9]|1[0-2])-?(0[1-9]|[12]\d|3[01])(?:[^0-9]|$)`)
	dateLayouts   = []string{time.DateOnly, "02/01/2006", "2/1/2006", "02-01-2006", "20060102", time.RFC3339}
	legislatureRe = regexp.MustCompile(`(?i)(?:legislatura|legis|leg|/l)[=_/-]?(\d{1,2})(?:[^0-9]|$)`)
)

// URLDate finds a YYYYMMDD or YYYY-MM-DD segment in a detail reference.
func URLDate(ref string) (time.Time, bool) {
	m := urlDateRe.FindStringSubmatch(ref)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// URLLegislature finds a legislature number embedded in a reference.
func URLLegislature(ref string) string {
	if m := legislatureRe.FindStringSubmatch(ref); m != nil {
		return strings.TrimLeft(m[1], "0")
	}
	return ""
}

// ParseDate normalizes the date spellings used by the chambers to YYYY-MM-DD.
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(time.DateOnly), nil
		}
	}
	if len(s) > 10 {
		if d, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return d.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

// Str renders a scalar payload value as trimmed text.
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Int reads an optional integer payload value.
func Int(v any) *int64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		n := int64(x)
		return &n
	case int:
		n := int64(x)
		return &n
	case int64:
		return &x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return &n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

// First returns the first non-empty Str among the keys of m.
func First(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := Str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// FirstInt returns the first parseable integer among the keys of m.
func FirstInt(m map[string]any, keys ...string) *int64 {
	for _, k := range keys {
		if n := Int(m[k]); n != nil {
			return n
		}
	}
	return nil
}

// Object returns m[key] as a map, or nil.
func Object(m map[string]any, key string) map[string]any {
	obj, _ := m[key].(map[string]any)
	return obj
}

// DecodeObject decodes a JSON object into a generic map.
func DecodeObject(body []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return out, nil
}

// ToPayload converts a tagged struct to the generic map stored verbatim in
// source records.
func ToPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeObject(raw)
}
