package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"escrutinio/internal/domain/textnorm"
)

// entityNamespace scopes fingerprint based identities so they never collide
// with URL based ones (which use uuid.NameSpaceURL).
var entityNamespace = uuid.MustParse("6f1f6a52-2c0e-5d8e-9a57-5b7e3b1d4c21")

// SeatSentinels are seat keys some sources publish for members that share one
// nominal seat.
var SeatSentinels = map[string]struct{}{"": {}, "0": {}, "-1": {}, "-": {}}

// VoteEventID derives the stable identity of a vote event: from the detail URL
// when the record came from the network, otherwise from a fingerprint of its
// defining fields.
func VoteEventID(sourceID string, rec Record, draft VoteEventDraft) (string, error) {
	if u := StableURL(rec.DetailURL); u != "" {
		return "ve-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(u)).String(), nil
	}
	fp, err := VoteFingerprint(draft)
	if err != nil {
		return "", &IdentityError{SourceID: sourceID, RecordID: rec.RecordID, Reason: err.Error()}
	}
	return "ve-" + uuid.NewSHA1(entityNamespace, []byte("vote|"+fp)).String(), nil
}

// VoteFingerprint joins legislature, session, number, date and the normalized
// title. Fetch timestamps never take part in it.
func VoteFingerprint(d VoteEventDraft) (string, error) {
	leg := strings.TrimSpace(d.Legislature)
	date := strings.TrimSpace(d.VoteDate)
	title := textnorm.Title(d.Title)
	switch {
	case leg == "":
		return "", errMissing("legislature")
	case date == "":
		return "", errMissing("vote date")
	case d.VoteNumber == nil && title == "":
		return "", errMissing("vote number and title")
	}
	return strings.Join([]string{leg, optInt(d.SessionNumber), optInt(d.VoteNumber), date, title}, "|"), nil
}

// InitiativeID keys initiatives by chamber, legislature and expediente, so the
// same case published by several feeds of one chamber maps to one row.
func InitiativeID(sourceID string, rec Record, draft InitiativeDraft) (string, error) {
	leg := strings.TrimSpace(draft.Legislature)
	exp := textnorm.Expediente(draft.Expediente)
	if leg != "" && exp != "" {
		key := strings.Join([]string{"initiative", draft.Chamber, leg, exp}, "|")
		return "in-" + uuid.NewSHA1(entityNamespace, []byte(key)).String(), nil
	}
	if u := StableURL(rec.DetailURL); u != "" {
		return "in-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(u)).String(), nil
	}
	return "", &IdentityError{SourceID: sourceID, RecordID: rec.RecordID, Reason: "missing legislature/expediente and detail url"}
}

func InterventionID(sourceID string, rec Record, draft InterventionDraft) (string, error) {
	if u := StableURL(rec.DetailURL); u != "" {
		return "iv-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(u)).String(), nil
	}
	speaker := textnorm.Name(draft.Speaker)
	if draft.Legislature == "" || draft.SessionDate == "" || speaker == "" {
		return "", &IdentityError{SourceID: sourceID, RecordID: rec.RecordID, Reason: "missing legislature, session date or speaker"}
	}
	key := strings.Join([]string{"intervention", draft.Legislature, draft.SessionDate, speaker, textnorm.Title(draft.Title)}, "|")
	return "iv-" + uuid.NewSHA1(entityNamespace, []byte(key)).String(), nil
}

func PartyProgramID(sourceID string, rec Record, draft PartyProgramDraft) (string, error) {
	party := textnorm.Fold(draft.Party)
	election := textnorm.Fold(draft.Election)
	if party == "" || election == "" {
		return "", &IdentityError{SourceID: sourceID, RecordID: rec.RecordID, Reason: "missing party or election"}
	}
	return "pp-" + uuid.NewSHA1(entityNamespace, []byte("program|"+party+"|"+election)).String(), nil
}

// StableURL returns the canonical form of an http(s) URL, or "" for anything
// that is not a network location (local paths, empty values).
func StableURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		// Encode sorts by key.
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}

// SeatKeys returns one unique, deterministic key per member, in input order.
// Sentinel or repeated seats fall back to a hash of the normalized name.
func SeatKeys(members []MemberVoteDraft) []string {
	counts := make(map[string]int, len(members))
	for _, m := range members {
		counts[strings.TrimSpace(m.Seat)]++
	}

	keys := make([]string, len(members))
	used := make(map[string]int, len(members))
	for i, m := range members {
		seat := strings.TrimSpace(m.Seat)
		key := seat
		if _, sentinel := SeatSentinels[seat]; sentinel || counts[seat] > 1 {
			key = NameSeatKey(m.MemberName)
		}
		used[key]++
		if n := used[key]; n > 1 {
			key = key + "#" + strconv.Itoa(n)
		}
		keys[i] = key
	}
	return keys
}

// NameSeatKey is "n:" plus the first 16 hex chars of sha256(normalized name).
func NameSeatKey(name string) string {
	sum := sha256.Sum256([]byte(textnorm.Name(name)))
	return "n:" + hex.EncodeToString(sum[:])[:16]
}

// NormalizeChoice maps the chamber spellings to yes, no, abstain and no-vote.
// Anything else is returned folded.
func NormalizeChoice(raw string) string {
	v := textnorm.Fold(raw)
	switch v {
	case "si", "s", "yes", "a favor", "favor":
		return "yes"
	case "no", "n", "en contra", "contra":
		return "no"
	case "abstencion", "abstenciones", "abs", "abstain", "a":
		return "abstain"
	case "no vota", "novota", "no voto", "no-vote", "no vote", "nv", "ausente":
		return "no-vote"
	}
	return v
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing " + string(e) }

func errMissing(field string) error { return missingFieldError(field) }
