// Package ruleset loads and caches per-organization rule collections from
// JSON resources on disk.
package ruleset

import (
	"encoding/json"

	"github.com/mkarvelas/krino/textnorm"
)

// DefaultConfidence is assumed for rules that do not declare one.
const DefaultConfidence = 0.8

// Rule is one entry of a ruleset. MatchAll is an AND-gate over the question,
// MatchAny an OR-set with a fuzzy fallback; a rule with both empty is an
// always-eligible fallback. When is an optional CEL expression over the
// structured request fields.
type Rule struct {
	ID         string   `json:"id"`
	MatchAny   []string `json:"match_any,omitempty"`
	MatchAll   []string `json:"match_all,omitempty"`
	Decision   string   `json:"decision,omitempty"`
	Intent     string   `json:"intent,omitempty"`
	Confidence float64  `json:"confidence"`
	Answer     string   `json:"answer,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	When       string   `json:"when,omitempty"`

	// Normalized term sets, computed once at load time. Empty and
	// whitespace-only terms are dropped.
	AnyTerms []string `json:"-"`
	AllTerms []string `json:"-"`
}

// UnmarshalJSON applies the confidence default before decoding.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type alias Rule
	a := (*alias)(r)
	a.Confidence = DefaultConfidence
	return json.Unmarshal(data, a)
}

// Label returns the decision label for the rule: the decision field, then the
// intent field, then the id, whichever is non-empty first.
func (r *Rule) Label() string {
	if r.Decision != "" {
		return r.Decision
	}
	if r.Intent != "" {
		return r.Intent
	}
	return r.ID
}

// Ruleset is an immutable ordered rule collection for one org_type. Order is
// significant: earlier rules win exact score/confidence ties.
type Ruleset struct {
	Version string `json:"version"`
	OrgType string `json:"org_type"`
	Rules   []Rule `json:"rules"`
}

// Empty returns a valid ruleset with no rules for orgType. Decisions against
// it degrade to the UNKNOWN outcome rather than erroring.
func Empty(orgType string) *Ruleset {
	return &Ruleset{Version: "1.0", OrgType: orgType, Rules: []Rule{}}
}

// NormalizeTerms normalizes a term set, dropping entries that normalize to
// the empty string.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := textnorm.Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// precompute fills the normalized term sets of every rule.
func (rs *Ruleset) precompute() {
	for i := range rs.Rules {
		rs.Rules[i].AnyTerms = NormalizeTerms(rs.Rules[i].MatchAny)
		rs.Rules[i].AllTerms = NormalizeTerms(rs.Rules[i].MatchAll)
	}
}
