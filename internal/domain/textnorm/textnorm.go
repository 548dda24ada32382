// Package textnorm folds names, titles and case identifiers into comparable keys.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRe       = regexp.MustCompile(`\s+`)
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9 ]+`)
	ellipsisRe    = regexp.MustCompile(`(\.{3,}|…)\s*$`)
	expedienteRe  = regexp.MustCompile(`\b(\d{3})\s*/\s*(\d{6})(?:\s*/\s*(\d{4}))?\b`)
	groupPreamble = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(presentad[ao]\s+)?(por|del)\s+(el\s+)?grupo parlamentario\s+[^,]+,\s*`),
		regexp.MustCompile(`\s+(presentad[ao]\s+)?(por|del)\s+(el\s+)?grupo parlamentario\s+[^,]+,\s*`),
		regexp.MustCompile(`\s*\((numero de expediente|n\.?º? expediente|expediente)[^)]*\)\s*`),
	}
)

// Fold lowercases s, strips diacritics and collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(folded), " "))
}

// Name builds the lookup key for a person name. "Surname, Given" is reordered
// to "given surname"; hyphens and punctuation become spaces.
func Name(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if surname, given, ok := strings.Cut(s, ","); ok && strings.TrimSpace(given) != "" {
		s = strings.TrimSpace(given) + " " + strings.TrimSpace(surname)
	}
	return collapse(nonAlnumRe.ReplaceAllString(Fold(s), " "))
}

// Title builds the comparison key for an initiative or vote title: folded,
// without group preamble boilerplate, trailing ellipsis or punctuation.
func Title(raw string) string {
	s := Fold(raw)
	if s == "" {
		return ""
	}
	for _, re := range groupPreamble {
		s = re.ReplaceAllString(s, " ")
	}
	s = ellipsisRe.ReplaceAllString(strings.TrimSpace(s), "")
	return collapse(nonAlnumRe.ReplaceAllString(s, " "))
}

// HasEllipsis reports whether raw ends with a truncation marker.
func HasEllipsis(raw string) bool {
	return ellipsisRe.MatchString(strings.TrimSpace(raw))
}

// Expediente canonicalizes a case identifier to NNN/NNNNNN/NNNN. It returns
// "" when raw does not contain one.
func Expediente(raw string) string {
	m := expedienteRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return canonicalExpediente(m)
}

// FindExpedientes returns every case identifier found in text, canonicalized
// and deduplicated in order of appearance.
func FindExpedientes(text string) []string {
	matches := expedienteRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := canonicalExpediente(m)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func canonicalExpediente(m []string) string {
	suffix := m[3]
	if suffix == "" {
		suffix = "0000"
	}
	return m[1] + "/" + m[2] + "/" + suffix
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
