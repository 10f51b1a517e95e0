package engine

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/mkarvelas/krino/ruleset"
)

// FuzzyThreshold is the minimum partial similarity ratio (0-100) for a
// match_any term to count as a fuzzy hit. Partial ratio compares the best
// aligned sub-window, so a keyword buried in a longer question still scores
// high, and small typos ("απουσιεσ" vs "απουσιες") are recovered.
const FuzzyThreshold = 78

// MatchResult is the transient outcome of scoring one rule against one
// normalized question. It exists only to pick the winning rule.
type MatchResult struct {
	Eligible   bool
	Score      int
	Confidence float64
	Trace      MatchTrace
}

// MatchTrace records how a rule matched, for diagnostics.
type MatchTrace struct {
	NormalizedQuestion string   `json:"normalized_question"`
	MatchAny           []string `json:"match_any,omitempty"`
	MatchAll           []string `json:"match_all,omitempty"`
	AllOK              bool     `json:"all_ok"`
	AnyStrictOK        bool     `json:"any_strict_ok"`
	AnyFuzzyOK         bool     `json:"any_fuzzy_ok"`
	Score              int      `json:"score"`
}

// Match scores a rule against a pre-normalized question.
//
// match_all is a hard gate: every term must be a substring. match_any passes
// when any term is a substring, or failing that, when any term reaches
// FuzzyThreshold. A rule with neither set is eligible with score 0, the
// always-on fallback pattern. Scoring favors match_all hits (40 base + 10
// each) over match_any hits (30 base + 5 each), with a 10 point bonus when
// only the fuzzy path matched.
func Match(question string, r *ruleset.Rule) MatchResult {
	anyTerms := r.AnyTerms
	if anyTerms == nil {
		anyTerms = ruleset.NormalizeTerms(r.MatchAny)
	}
	allTerms := r.AllTerms
	if allTerms == nil {
		allTerms = ruleset.NormalizeTerms(r.MatchAll)
	}

	allOK := len(allTerms) == 0 || containsAll(question, allTerms)
	anyStrictOK := len(anyTerms) == 0 || containsAny(question, anyTerms)

	anyFuzzyOK := false
	if !anyStrictOK && len(anyTerms) > 0 {
		anyFuzzyOK = fuzzyAny(question, anyTerms)
	}

	eligible := allOK && (anyStrictOK || anyFuzzyOK)

	score := 0
	if eligible {
		if len(allTerms) > 0 {
			score += 40 + 10*countHits(question, allTerms)
		}
		if len(anyTerms) > 0 {
			score += 30 + 5*countHits(question, anyTerms)
			if anyFuzzyOK {
				score += 10
			}
		}
	}

	return MatchResult{
		Eligible:   eligible,
		Score:      score,
		Confidence: r.Confidence,
		Trace: MatchTrace{
			NormalizedQuestion: question,
			MatchAny:           anyTerms,
			MatchAll:           allTerms,
			AllOK:              allOK,
			AnyStrictOK:        anyStrictOK,
			AnyFuzzyOK:         anyFuzzyOK,
			Score:              score,
		},
	}
}

func containsAll(q string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(q, t) {
			return false
		}
	}
	return true
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

func countHits(q string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(q, t) {
			n++
		}
	}
	return n
}

func fuzzyAny(q string, terms []string) bool {
	for _, t := range terms {
		if t == "" {
			continue
		}
		if fuzzy.PartialRatio(q, t) >= FuzzyThreshold {
			return true
		}
	}
	return false
}
