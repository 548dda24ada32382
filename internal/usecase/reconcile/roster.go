package reconcile

import (
	"sort"

	"escrutinio/internal/ports"
)

// Roster indexes mandates by roster source and normalized name. It is built
// once per resolver call and never mutated afterwards.
type Roster struct {
	bySource map[string]map[string][]ports.Mandate
}

func NewRoster(mandates []ports.Mandate) Roster {
	r := Roster{bySource: make(map[string]map[string][]ports.Mandate)}
	for _, m := range mandates {
		names, ok := r.bySource[m.Source]
		if !ok {
			names = make(map[string][]ports.Mandate)
			r.bySource[m.Source] = names
		}
		names[m.NameNormalized] = append(names[m.NameNormalized], m)
	}
	for _, names := range r.bySource {
		for key := range names {
			sortTenures(names[key])
		}
	}
	return r
}

// HasSource reports whether any mandate is held for one of the keys.
func (r Roster) HasSource(keys ...string) bool {
	for _, k := range keys {
		if len(r.bySource[k]) > 0 {
			return true
		}
	}
	return false
}

func (r Roster) lookup(name string, keys ...string) []ports.Mandate {
	var out []ports.Mandate
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup || k == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r.bySource[k][name]...)
	}
	if len(keys) > 1 {
		sortTenures(out)
	}
	return out
}

// Candidates returns the distinct office-holders a vote by name on date may
// belong to. Mandates whose window contains the date win; without one, the
// most recent tenure group (active first, latest start) is used.
func (r Roster) Candidates(name string, date string, keys ...string) []string {
	mandates := r.lookup(name, keys...)
	if len(mandates) == 0 {
		return nil
	}

	var window []ports.Mandate
	if date != "" {
		for _, m := range mandates {
			if covers(m, date) {
				window = append(window, m)
			}
		}
	}
	if len(window) > 0 {
		return distinctHolders(window)
	}

	top := mandates[0]
	group := []ports.Mandate{top}
	for _, m := range mandates[1:] {
		if m.Active != top.Active || m.StartDate != top.StartDate {
			break
		}
		group = append(group, m)
	}
	return distinctHolders(group)
}

func covers(m ports.Mandate, date string) bool {
	if m.StartDate != "" && date < m.StartDate {
		return false
	}
	if m.EndDate != nil && *m.EndDate != "" && date > *m.EndDate {
		return false
	}
	return true
}

func distinctHolders(mandates []ports.Mandate) []string {
	seen := make(map[string]struct{}, len(mandates))
	out := make([]string, 0, len(mandates))
	for _, m := range mandates {
		if _, ok := seen[m.OfficeholderID]; ok {
			continue
		}
		seen[m.OfficeholderID] = struct{}{}
		out = append(out, m.OfficeholderID)
	}
	return out
}

func sortTenures(ms []ports.Mandate) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Active != ms[j].Active {
			return ms[i].Active
		}
		if ms[i].StartDate != ms[j].StartDate {
			return ms[i].StartDate > ms[j].StartDate
		}
		return ms[i].MandateID < ms[j].MandateID
	})
}
