package engine

import (
	"testing"

	"github.com/mkarvelas/krino/ruleset"
	"github.com/mkarvelas/krino/textnorm"
)

// TestMatchAllGate verifies match_all is a hard AND gate: one missing term
// makes the rule ineligible even when the others hit.
func TestMatchAllGate(t *testing.T) {
	rule := &ruleset.Rule{ID: "r1", MatchAll: []string{"αλλαγη", "τμηματος"}}

	res := Match(textnorm.Normalize("θέλω αλλαγή τμήματος"), rule)
	if !res.Eligible {
		t.Error("rule should be eligible when every match_all term is present")
	}

	res = Match(textnorm.Normalize("θέλω αλλαγή αίθουσας"), rule)
	if res.Eligible {
		t.Error("rule should be ineligible when a match_all term is missing")
	}
}

// TestMatchAnyStrict verifies one match_any hit is enough.
func TestMatchAnyStrict(t *testing.T) {
	rule := &ruleset.Rule{ID: "r1", MatchAny: []string{"απουσιες", "βεβαιωση"}}

	res := Match("ποσες απουσιες εχω", rule)
	if !res.Eligible {
		t.Fatal("rule should be eligible via strict match_any")
	}
	if res.Trace.AnyFuzzyOK {
		t.Error("strict hit should not report a fuzzy match")
	}
	// base 30 + one hit.
	if res.Score != 35 {
		t.Errorf("Score = %d, want 35", res.Score)
	}
}

// TestMatchFuzzyRecovery verifies the typo "απουσιεσ" still matches the term
// "απουσιες" through the fuzzy path at threshold 78.
func TestMatchFuzzyRecovery(t *testing.T) {
	rule := &ruleset.Rule{ID: "r1", MatchAny: []string{"απουσιες"}}

	res := Match("απουσιεσ", rule)
	if !res.Eligible {
		t.Fatal("rule should be eligible via fuzzy match")
	}
	if !res.Trace.AnyFuzzyOK || res.Trace.AnyStrictOK {
		t.Errorf("expected fuzzy-only match, trace = %+v", res.Trace)
	}
	// base 30, no strict hits, +10 fuzzy bonus.
	if res.Score != 40 {
		t.Errorf("Score = %d, want 40", res.Score)
	}
}

func TestMatchFuzzyBelowThreshold(t *testing.T) {
	rule := &ruleset.Rule{ID: "r1", MatchAny: []string{"απουσιες"}}

	res := Match("πληρωμη διδακτρων", rule)
	if res.Eligible {
		t.Errorf("unrelated question should not match, trace = %+v", res.Trace)
	}
}

// TestMatchScoring verifies the scoring ladder for combined match_all and
// match_any rules.
func TestMatchScoring(t *testing.T) {
	question := "θελω βεβαιωση σπουδων για την εφορια"

	tests := []struct {
		name string
		rule ruleset.Rule
		want int
	}{
		{
			"match_all only, both hit",
			ruleset.Rule{MatchAll: []string{"βεβαιωση", "σπουδων"}},
			40 + 10*2,
		},
		{
			"match_any only, one of two hits",
			ruleset.Rule{MatchAny: []string{"βεβαιωση", "πιστοποιητικο"}},
			30 + 5*1,
		},
		{
			"match_all and match_any",
			ruleset.Rule{MatchAll: []string{"βεβαιωση"}, MatchAny: []string{"σπουδων", "εφορια"}},
			40 + 10*1 + 30 + 5*2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Match(question, &tt.rule)
			if !res.Eligible {
				t.Fatal("rule should be eligible")
			}
			if res.Score != tt.want {
				t.Errorf("Score = %d, want %d", res.Score, tt.want)
			}
		})
	}
}

// TestMatchEmptyRule verifies the always-on fallback pattern: no terms at
// all means eligible with score 0.
func TestMatchEmptyRule(t *testing.T) {
	rule := &ruleset.Rule{ID: "fallback"}

	res := Match("οτιδηποτε", rule)
	if !res.Eligible {
		t.Error("rule with no terms should always be eligible")
	}
	if res.Score != 0 {
		t.Errorf("Score = %d, want 0", res.Score)
	}
}

// TestMatchIgnoresEmptyTerms verifies whitespace-only terms never gate or
// score.
func TestMatchIgnoresEmptyTerms(t *testing.T) {
	rule := &ruleset.Rule{
		ID:       "r1",
		MatchAll: []string{"  ", ""},
		MatchAny: []string{"", "απουσιες"},
	}

	res := Match("ποσες απουσιες εχω", rule)
	if !res.Eligible {
		t.Fatal("rule should be eligible")
	}
	// match_all collapses to empty: gate open, no 40 base.
	if res.Score != 35 {
		t.Errorf("Score = %d, want 35", res.Score)
	}
}

// TestMatchUsesPrecomputedTerms verifies rules loaded with normalized term
// sets are matched on those, not the raw terms.
func TestMatchUsesPrecomputedTerms(t *testing.T) {
	rule := &ruleset.Rule{
		ID:       "r1",
		MatchAny: []string{"Απουσίες"},
		AnyTerms: []string{"απουσιες"},
		AllTerms: []string{},
	}

	res := Match("ποσες απουσιες εχω", rule)
	if !res.Eligible {
		t.Error("rule should match via precomputed normalized terms")
	}
}
