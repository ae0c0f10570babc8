// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package trust

import (
	"strings"
	"time"
)

// Values of the matched_via metadata key.
const (
	MatchExact     = "exact"
	MatchAlias     = "alias_lookup"
	MatchSubstring = "substring"
)

// TeamValidator checks team names against the source, honouring aliases.
type TeamValidator struct {
	aliases *AliasRegistry
	now     func() time.Time
}

// NewTeamValidator returns a TeamValidator backed by the given registry.
// A nil registry uses the default aliases.
func NewTeamValidator(aliases *AliasRegistry) *TeamValidator {
	if aliases == nil {
		aliases = DefaultAliasRegistry()
	}
	return &TeamValidator{aliases: aliases, now: time.Now}
}

// Aliases returns the registry used for alias lookups.
func (v *TeamValidator) Aliases() *AliasRegistry { return v.aliases }

// VerifyTeam compares a claimed team name with the source name.
//
// Matching is tried in order: normalized equality, alias resolution, then
// substring containment. A substring match is only StatusPartial.
func (v *TeamValidator) VerifyTeam(claimed, source string) Result {
	r := newResult(v.now(), ClaimTeam, "Team: "+claimed)
	r.SourceValue = source
	r.AIValue = claimed

	cn, sn := NormalizeName(claimed), NormalizeName(source)
	if cn == "" || sn == "" {
		r.Status = StatusFailed
		r.Discrepancy = "Team name mismatch"
		return r
	}

	if cn == sn {
		r.Status = StatusVerified
		r.Metadata = map[string]string{MetaMatchedVia: MatchExact}
		return r
	}

	cc, okc := v.aliases.Canonical(claimed)
	sc, oks := v.aliases.Canonical(source)
	if okc && oks && cc == sc {
		r.Status = StatusVerified
		r.Metadata = map[string]string{MetaMatchedVia: MatchAlias, MetaCanonical: cc}
		return r
	}

	if strings.Contains(sn, cn) || strings.Contains(cn, sn) {
		r.Status = StatusPartial
		r.Discrepancy = "Partial match - may be abbreviation"
		r.Metadata = map[string]string{MetaMatchedVia: MatchSubstring}
		return r
	}

	r.Status = StatusFailed
	r.Discrepancy = "Team name mismatch"
	return r
}

// Resolve returns the canonical name for a team, or the name unchanged.
func (v *TeamValidator) Resolve(name string) string {
	if c, ok := v.aliases.Canonical(name); ok {
		return c
	}
	return strings.TrimSpace(name)
}
