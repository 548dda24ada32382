package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
)

type ResolveInput struct {
	// SourceIDs scopes the member votes by the source of their vote event.
	SourceIDs   []string
	DryRun      bool
	SampleLimit int
}

type UnmatchedSample struct {
	VoteEventID string `json:"vote_event_id"`
	SeatKey     string `json:"seat_key"`
	SourceID    string `json:"source_id"`
	MemberName  string `json:"member_name"`
	Reason      string `json:"reason"`
}

type ResolveReport struct {
	DryRun            bool              `json:"dry_run"`
	Checked           int               `json:"checked"`
	Matched           int               `json:"matched"`
	Updated           int               `json:"updated"`
	Ambiguous         int               `json:"ambiguous"`
	Unmatched         int               `json:"unmatched"`
	UnmatchedByReason map[string]int    `json:"unmatched_by_reason"`
	UnmatchedSample   []UnmatchedSample `json:"unmatched_sample"`
}

type assignment struct {
	voteEventID    string
	seatKey        string
	officeholderID string
}

// ResolveMembers attaches office-holder references to member votes that have
// none. Only a single distinct candidate is written; existing references are
// never touched.
func (s *Service) ResolveMembers(ctx context.Context, in ResolveInput) (ResolveReport, error) {
	ctx = logging.WithAttrs(ctx, slog.String("component", "reconcile.resolver"))
	report := ResolveReport{DryRun: in.DryRun, UnmatchedByReason: map[string]int{}, UnmatchedSample: []UnmatchedSample{}}
	if len(in.SourceIDs) == 0 {
		return report, nil
	}
	limit := in.SampleLimit
	if limit <= 0 {
		limit = defaultUnmatchedSample
	}

	votes, err := s.repo.ListUnresolvedMemberVotes(ctx, in.SourceIDs)
	if err != nil {
		return report, err
	}
	keys := rosterKeys(votes)
	mandates, err := s.repo.ListMandates(ctx, keys)
	if err != nil {
		return report, err
	}
	roster := NewRoster(mandates)

	var writes []assignment
	for _, v := range votes {
		report.Checked++

		name := v.MemberNameNormalized
		if name == "" {
			name = textnorm.Name(v.MemberName)
		}
		reason := ""
		switch {
		case strings.TrimSpace(name) == "":
			reason = unmatchedEmptyName
		case !roster.HasSource(v.Chamber, v.SourceID):
			reason = unmatchedNoRoster
		}
		var holders []string
		if reason == "" {
			holders = roster.Candidates(name, v.VoteDate, v.Chamber, v.SourceID)
			if len(holders) == 0 {
				reason = unmatchedNameNotFound
			}
		}

		switch {
		case reason != "":
			report.Unmatched++
			report.UnmatchedByReason[reason]++
			if len(report.UnmatchedSample) < limit {
				report.UnmatchedSample = append(report.UnmatchedSample, UnmatchedSample{
					VoteEventID: v.VoteEventID,
					SeatKey:     v.SeatKey,
					SourceID:    v.SourceID,
					MemberName:  v.MemberName,
					Reason:      reason,
				})
			}
		case len(holders) > 1:
			report.Ambiguous++
			logging.Debug(ctx, "ambiguous member name",
				slog.String("vote_event_id", v.VoteEventID),
				slog.String("seat_key", v.SeatKey),
				slog.Int("candidates", len(holders)),
			)
		default:
			report.Matched++
			writes = append(writes, assignment{voteEventID: v.VoteEventID, seatKey: v.SeatKey, officeholderID: holders[0]})
		}
	}

	if !in.DryRun && len(writes) > 0 {
		err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			for _, w := range writes {
				ok, err := s.repo.AssignOfficeholder(txCtx, w.voteEventID, w.seatKey, w.officeholderID)
				if err != nil {
					return errs.Wrapf(err, "assign officeholder to %s/%s", w.voteEventID, w.seatKey)
				}
				if ok {
					report.Updated++
				}
			}
			return nil
		})
		if err != nil {
			report.Updated = 0
			return report, err
		}
		s.metrics.Write(engineResolver, resolverWriteMethod, report.Updated)
	}

	logging.Info(ctx, "member resolution finished",
		slog.Bool("dry_run", in.DryRun),
		slog.Int("checked", report.Checked),
		slog.Int("matched", report.Matched),
		slog.Int("updated", report.Updated),
		slog.Int("ambiguous", report.Ambiguous),
		slog.Int("unmatched", report.Unmatched),
	)
	return report, nil
}

// rosterKeys lists the distinct chamber and source values of votes; a
// backlog holds thousands of rows but only a handful of roster keys.
func rosterKeys(votes []ports.UnresolvedMemberVote) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0, 4)
	for _, v := range votes {
		for _, k := range []string{v.Chamber, v.SourceID} {
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
