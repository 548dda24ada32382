package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmespath/go-jmespath"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
)

var voteReferences = jmespath.MustCompile(voteReferencesExpression)

type LinkInput struct {
	// Chambers limits the run; empty means every chamber with a strategy.
	Chambers []string
	DryRun   bool
}

type LinkReport struct {
	DryRun                bool           `json:"dry_run"`
	EventsScanned         int            `json:"events_scanned"`
	Written               map[string]int `json:"written"`
	Ambiguous             map[string]int `json:"ambiguous"`
	UnresolvedIdentifiers int            `json:"unresolved_identifiers"`
}

type plannedLink struct {
	voteEventID  string
	initiativeID string
	method       string
	evidence     map[string]any
}

// LinkInitiatives attaches initiatives to vote events. The congreso strategy
// reads case identifiers from the vote texts, falling back to normalized
// titles; the senado strategy follows vote references embedded in the
// initiative payloads. An (event, method) pair with more than one candidate
// initiative is never written.
func (s *Service) LinkInitiatives(ctx context.Context, in LinkInput) (LinkReport, error) {
	ctx = logging.WithAttrs(ctx, slog.String("component", "reconcile.linker"))
	report := LinkReport{DryRun: in.DryRun, Written: map[string]int{}, Ambiguous: map[string]int{}}

	chambers := in.Chambers
	if len(chambers) == 0 {
		chambers = []string{ChamberCongreso, ChamberSenado}
	}

	var plan []plannedLink
	for _, chamber := range chambers {
		events, err := s.repo.ListVoteEventsForLinking(ctx, chamber)
		if err != nil {
			return report, err
		}
		initiatives, err := s.repo.ListInitiativesForLinking(ctx, chamber)
		if err != nil {
			return report, err
		}
		report.EventsScanned += len(events)

		switch chamber {
		case ChamberCongreso:
			plan = append(plan, planTextLinks(events, NewInitiativeIndex(initiatives), &report)...)
		case ChamberSenado:
			links, err := planPayloadLinks(events, initiatives, &report)
			if err != nil {
				return report, err
			}
			plan = append(plan, links...)
		default:
			return report, fmt.Errorf("no linking strategy for chamber %q", chamber)
		}
	}

	for _, p := range plan {
		report.Written[p.method]++
	}
	if !in.DryRun && len(plan) > 0 {
		at := s.now().Format(timeLayout)
		err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			for _, p := range plan {
				evidence, err := json.Marshal(p.evidence)
				if err != nil {
					return errs.Wrap(err, "marshal link evidence")
				}
				if err := s.repo.UpsertLink(txCtx, ports.LinkUpsert{
					VoteEventID:  p.voteEventID,
					InitiativeID: p.initiativeID,
					Method:       p.method,
					Confidence:   confidence[p.method],
					EvidenceJSON: string(evidence),
					At:           at,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		for method, n := range report.Written {
			s.metrics.Write(engineLinker, method, n)
		}
	}

	logging.Info(ctx, "initiative linking finished",
		slog.Bool("dry_run", in.DryRun),
		slog.Int("events_scanned", report.EventsScanned),
		slog.Int("links", len(plan)),
		slog.Int("unresolved_identifiers", report.UnresolvedIdentifiers),
	)
	return report, nil
}

type titleEntry struct {
	norm         string
	initiativeID string
}

// InitiativeIndex is the read-only lookup a linker run works against.
type InitiativeIndex struct {
	byExpediente map[string][]string
	byTitle      map[string]map[string][]string
	titles       map[string][]titleEntry
}

func NewInitiativeIndex(initiatives []ports.InitiativeForLinking) InitiativeIndex {
	idx := InitiativeIndex{
		byExpediente: make(map[string][]string),
		byTitle:      make(map[string]map[string][]string),
		titles:       make(map[string][]titleEntry),
	}
	for _, in := range initiatives {
		if exp := textnorm.Expediente(in.Expediente); exp != "" {
			key := legKey(in.Legislature, exp)
			idx.byExpediente[key] = appendUnique(idx.byExpediente[key], in.InitiativeID)
		}
		norm := textnorm.Title(in.Title)
		if norm == "" {
			continue
		}
		titles, ok := idx.byTitle[in.Legislature]
		if !ok {
			titles = make(map[string][]string)
			idx.byTitle[in.Legislature] = titles
		}
		titles[norm] = appendUnique(titles[norm], in.InitiativeID)
		idx.titles[in.Legislature] = append(idx.titles[in.Legislature], titleEntry{norm: norm, initiativeID: in.InitiativeID})
	}
	return idx
}

// Expediente returns the initiatives filed under exp in the legislature.
func (idx InitiativeIndex) Expediente(legislature string, exp string) []string {
	return idx.byExpediente[legKey(legislature, exp)]
}

// ExactTitle returns the initiatives whose normalized title equals norm.
func (idx InitiativeIndex) ExactTitle(legislature string, norm string) []string {
	return idx.byTitle[legislature][norm]
}

// PrefixTitle returns the initiatives whose normalized title strictly extends
// norm.
func (idx InitiativeIndex) PrefixTitle(legislature string, norm string) []string {
	var out []string
	for _, t := range idx.titles[legislature] {
		if len(t.norm) > len(norm) && strings.HasPrefix(t.norm, norm) {
			out = appendUnique(out, t.initiativeID)
		}
	}
	return out
}

type textField struct {
	name  string
	value string
}

func planTextLinks(events []ports.VoteEventForLinking, idx InitiativeIndex, report *LinkReport) []plannedLink {
	var plan []plannedLink
	for _, ev := range events {
		if link, ok := regexLink(ev, idx, report); ok {
			plan = append(plan, link)
			continue
		}
		if link, ok := titleLink(ev, idx, report); ok {
			plan = append(plan, link)
		}
	}
	return plan
}

func regexLink(ev ports.VoteEventForLinking, idx InitiativeIndex, report *LinkReport) (plannedLink, bool) {
	fields := []textField{
		{name: "expediente_text", value: ev.ExpedienteText},
		{name: "subgroup_title", value: ev.SubgroupTitle},
		{name: "subgroup_text", value: ev.SubgroupText},
		{name: "title", value: ev.Title},
	}

	seen := make(map[string]struct{})
	var candidates []string
	evidence := make(map[string]map[string]any)
	for _, f := range fields {
		for _, exp := range textnorm.FindExpedientes(f.value) {
			if _, dup := seen[exp]; dup {
				continue
			}
			seen[exp] = struct{}{}

			found := idx.Expediente(ev.Legislature, exp)
			if len(found) == 0 {
				report.UnresolvedIdentifiers++
				continue
			}
			for _, id := range found {
				if _, ok := evidence[id]; !ok {
					evidence[id] = map[string]any{"field": f.name, "expediente": exp, "legislature": ev.Legislature}
				}
				candidates = appendUnique(candidates, id)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return plannedLink{}, false
	case 1:
		return plannedLink{voteEventID: ev.VoteEventID, initiativeID: candidates[0], method: MethodExpedienteRegex, evidence: evidence[candidates[0]]}, true
	default:
		report.Ambiguous[MethodExpedienteRegex]++
		return plannedLink{}, false
	}
}

func titleLink(ev ports.VoteEventForLinking, idx InitiativeIndex, report *LinkReport) (plannedLink, bool) {
	text := ev.Title
	if strings.TrimSpace(text) == "" {
		text = ev.SubgroupTitle
	}
	norm := textnorm.Title(text)
	if norm == "" {
		return plannedLink{}, false
	}

	evidence := map[string]any{"vote_title_norm": norm, "legislature": ev.Legislature}
	exact := idx.ExactTitle(ev.Legislature, norm)
	switch {
	case len(exact) == 1:
		return plannedLink{voteEventID: ev.VoteEventID, initiativeID: exact[0], method: MethodTitleExactUnique, evidence: evidence}, true
	case len(exact) > 1:
		report.Ambiguous[MethodTitleExactUnique]++
		return plannedLink{}, false
	}

	if len(norm) < minPrefixLen {
		return plannedLink{}, false
	}
	prefix := idx.PrefixTitle(ev.Legislature, norm)
	switch {
	case len(prefix) == 1:
		evidence["truncated"] = textnorm.HasEllipsis(text)
		return plannedLink{voteEventID: ev.VoteEventID, initiativeID: prefix[0], method: MethodTitlePrefixUnique, evidence: evidence}, true
	case len(prefix) > 1:
		report.Ambiguous[MethodTitlePrefixUnique]++
	}
	return plannedLink{}, false
}

// planPayloadLinks matches the vote references embedded in initiative
// payloads against stored vote events by legislature and case identifier.
func planPayloadLinks(events []ports.VoteEventForLinking, initiatives []ports.InitiativeForLinking, report *LinkReport) ([]plannedLink, error) {
	eventsByKey := make(map[string][]string)
	for _, ev := range events {
		if ev.Expediente == "" {
			continue
		}
		key := legKey(ev.Legislature, ev.Expediente)
		eventsByKey[key] = append(eventsByKey[key], ev.VoteEventID)
	}

	candidates := make(map[string][]string)
	evidence := make(map[string]map[string]any)
	for _, in := range initiatives {
		refs, err := payloadVoteRefs(in)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			leg := ref.legislature
			if leg == "" {
				leg = in.Legislature
			}
			matched := eventsByKey[legKey(leg, ref.expediente)]
			if len(matched) == 0 {
				report.UnresolvedIdentifiers++
				continue
			}
			for _, eventID := range matched {
				candidates[eventID] = appendUnique(candidates[eventID], in.InitiativeID)
				key := eventID + "|" + in.InitiativeID
				if _, ok := evidence[key]; !ok {
					evidence[key] = map[string]any{"legislature": leg, "expediente": ref.expediente, "source": "initiative_payload"}
				}
			}
		}
	}

	eventIDs := make([]string, 0, len(candidates))
	for id := range candidates {
		eventIDs = append(eventIDs, id)
	}
	sort.Strings(eventIDs)

	var plan []plannedLink
	for _, eventID := range eventIDs {
		found := candidates[eventID]
		if len(found) > 1 {
			report.Ambiguous[MethodPayloadExpediente]++
			continue
		}
		plan = append(plan, plannedLink{
			voteEventID:  eventID,
			initiativeID: found[0],
			method:       MethodPayloadExpediente,
			evidence:     evidence[eventID+"|"+found[0]],
		})
	}
	return plan, nil
}

type voteRef struct {
	legislature string
	expediente  string
}

func payloadVoteRefs(in ports.InitiativeForLinking) ([]voteRef, error) {
	if strings.TrimSpace(in.RawPayload) == "" {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal([]byte(in.RawPayload), &payload); err != nil {
		return nil, errs.Wrapf(err, "decode payload of initiative %s", in.InitiativeID)
	}
	result, err := voteReferences.Search(payload)
	if err != nil {
		return nil, errs.Wrapf(err, "search vote references of initiative %s", in.InitiativeID)
	}
	items, _ := result.([]any)

	refs := make([]voteRef, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		exp := textnorm.Expediente(scalar(m["exp"]))
		if exp == "" {
			continue
		}
		refs = append(refs, voteRef{legislature: scalar(m["leg"]), expediente: exp})
	}
	return refs, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func legKey(legislature string, exp string) string {
	return legislature + "|" + exp
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
