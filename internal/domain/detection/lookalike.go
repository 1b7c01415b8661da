package detection

import (
	"fmt"
	"strings"
)

// MatchRule names the rule that decided a lookalike match
type MatchRule string

const (
	RuleNone         MatchRule = "none"
	RuleExact        MatchRule = "exact"
	RuleTyposquat    MatchRule = "typosquatting"
	RuleContains     MatchRule = "contains"
	RuleSubstitution MatchRule = "substitution"
)

// typosquatSimilarity is the exclusive lower bound for the edit-distance rule
const typosquatSimilarity = 0.8

// leetSubstitutions maps look-alike characters back to the letters they imitate
var leetSubstitutions = map[rune]rune{
	'0': 'o',
	'1': 'l',
	'3': 'e',
	'5': 's',
	'@': 'a',
	'!': 'i',
}

// LookalikeMatch is the outcome of comparing one domain against the trusted set
type LookalikeMatch struct {
	IsLookalike   bool      `json:"is_lookalike"`
	MatchedDomain string    `json:"matched_domain,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Similarity    float64   `json:"similarity,omitempty"`
	Rule          MatchRule `json:"rule"`
}

// MatchLookalike compares a candidate domain against trusted domains
//
// Rules, first match wins for a given trusted domain:
//  1. exact (case-insensitive) match: legitimate, never a lookalike
//  2. edit-distance similarity strictly between 0.8 and 1.0: typosquatting
//  3. candidate contains the trusted domain without being it
//  4. candidate equals the trusted domain after undoing leetspeak substitutions
//
// Exact matches are checked against the whole set first, so a legitimate domain is
// never reported as imitating a different trusted domain. Trusted domains are then
// visited in order and the first detected lookalike is returned.
func MatchLookalike(candidate string, trusted []string) LookalikeMatch {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return LookalikeMatch{Rule: RuleNone}
	}

	for _, t := range trusted {
		if strings.EqualFold(candidate, strings.TrimSpace(t)) {
			return LookalikeMatch{MatchedDomain: strings.ToLower(strings.TrimSpace(t)), Rule: RuleExact}
		}
	}

	for _, t := range trusted {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}

		if sim := similarity(candidate, t); sim > typosquatSimilarity && sim < 1.0 {
			return LookalikeMatch{
				IsLookalike:   true,
				MatchedDomain: t,
				Reason:        "typosquatting",
				Similarity:    sim,
				Rule:          RuleTyposquat,
			}
		}

		if strings.Contains(candidate, t) {
			return LookalikeMatch{
				IsLookalike:   true,
				MatchedDomain: t,
				Reason:        "contains legitimate domain name",
				Rule:          RuleContains,
			}
		}

		if normalized, count := undoSubstitutions(candidate); count > 0 && normalized == t {
			return LookalikeMatch{
				IsLookalike:   true,
				MatchedDomain: t,
				Reason:        fmt.Sprintf("character substitution (%d characters replaced)", count),
				Rule:          RuleSubstitution,
			}
		}
	}

	return LookalikeMatch{Rule: RuleNone}
}

// undoSubstitutions applies the leetspeak map and reports how many characters changed
func undoSubstitutions(s string) (string, int) {
	var b strings.Builder
	b.Grow(len(s))
	count := 0
	for _, r := range s {
		if repl, ok := leetSubstitutions[r]; ok {
			b.WriteRune(repl)
			count++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), count
}
