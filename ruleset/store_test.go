package ruleset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

const collegeRuleset = `{
  "version": "1.0",
  "org_type": "college",
  "rules": [
    {
      "id": "rule_absences",
      "match_any": ["απουσίες", "απουσιες"],
      "decision": "ABSENCE_REPORT",
      "confidence": 0.9,
      "answer": "Σου στέλνω τις απουσίες σου.",
      "actions": ["get_absences", "check_absence_limits"]
    },
    {
      "id": "rule_fallback",
      "answer": "Γενική απάντηση."
    }
  ]
}`

func writeRuleset(t *testing.T, dir, orgType, content string) {
	t.Helper()
	path := filepath.Join(dir, orgType+"_v1.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write ruleset fixture: %v", err)
	}
}

func newTestStore(t *testing.T, dir string) *FileStore {
	t.Helper()
	store, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	return store
}

func TestFileStoreLoad(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", collegeRuleset)
	store := newTestStore(t, dir)

	rs, err := store.Load("college")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if rs.OrgType != "college" {
		t.Errorf("OrgType = %q, want %q", rs.OrgType, "college")
	}
	if len(rs.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(rs.Rules))
	}
	if rs.Rules[0].Confidence != 0.9 {
		t.Errorf("Rules[0].Confidence = %v, want 0.9", rs.Rules[0].Confidence)
	}
}

// TestFileStoreConfidenceDefault verifies rules without a confidence field
// get the 0.8 default.
func TestFileStoreConfidenceDefault(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", collegeRuleset)
	store := newTestStore(t, dir)

	rs, err := store.Load("college")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if rs.Rules[1].Confidence != DefaultConfidence {
		t.Errorf("Rules[1].Confidence = %v, want %v", rs.Rules[1].Confidence, DefaultConfidence)
	}
}

// TestFileStoreNormalizesOrgType verifies cache keying and file lookup use
// the trimmed, lowercased org_type.
func TestFileStoreNormalizesOrgType(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", collegeRuleset)
	store := newTestStore(t, dir)

	rs, err := store.Load("  College ")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(rs.Rules) != 2 {
		t.Errorf("len(Rules) = %d, want 2", len(rs.Rules))
	}
}

// TestFileStoreAbsentResource verifies a missing file yields an empty
// ruleset, not an error.
func TestFileStoreAbsentResource(t *testing.T) {
	store := newTestStore(t, t.TempDir())

	rs, err := store.Load("clinic")
	if err != nil {
		t.Fatalf("Load() for absent resource should not fail, got: %v", err)
	}
	if len(rs.Rules) != 0 {
		t.Errorf("len(Rules) = %d, want 0", len(rs.Rules))
	}
}

func TestFileStoreLoadStrictAbsent(t *testing.T) {
	store := newTestStore(t, t.TempDir())

	_, err := store.LoadStrict("clinic")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadStrict() error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreMalformedResource(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"version": "1.0",`},
		{"missing org_type", `{"version": "1.0", "rules": []}`},
		{"rule without id", `{"version": "1.0", "org_type": "college", "rules": [{"answer": "x"}]}`},
		{"confidence out of range", `{"version": "1.0", "org_type": "college", "rules": [{"id": "r1", "confidence": 1.5}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeRuleset(t, dir, "college", tt.content)
			store := newTestStore(t, dir)

			_, err := store.Load("college")
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Load() error = %v, want *LoadError", err)
			}
			if loadErr.OrgType != "college" {
				t.Errorf("LoadError.OrgType = %q, want %q", loadErr.OrgType, "college")
			}
		})
	}
}

// TestFileStoreMalformedNotCached verifies a failed load is retried once the
// file is fixed.
func TestFileStoreMalformedNotCached(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", `{"broken`)
	store := newTestStore(t, dir)

	if _, err := store.Load("college"); err == nil {
		t.Fatal("Load() should fail for malformed resource")
	}

	writeRuleset(t, dir, "college", collegeRuleset)
	rs, err := store.Load("college")
	if err != nil {
		t.Fatalf("Load() after fixing the file failed: %v", err)
	}
	if len(rs.Rules) != 2 {
		t.Errorf("len(Rules) = %d, want 2", len(rs.Rules))
	}
}

// TestFileStoreCaching verifies the first successful load is memoized until
// invalidated.
func TestFileStoreCaching(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", collegeRuleset)
	store := newTestStore(t, dir)

	if _, err := store.Load("college"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Remove the backing file; the cached entry must keep serving.
	if err := os.Remove(filepath.Join(dir, "college_v1.json")); err != nil {
		t.Fatalf("failed to remove fixture: %v", err)
	}

	rs, err := store.Load("college")
	if err != nil {
		t.Fatalf("Load() from cache failed: %v", err)
	}
	if len(rs.Rules) != 2 {
		t.Errorf("len(Rules) = %d, want 2 from cache", len(rs.Rules))
	}

	// After invalidation the absent file yields an empty ruleset.
	store.Invalidate("college")
	rs, err = store.Load("college")
	if err != nil {
		t.Fatalf("Load() after Invalidate failed: %v", err)
	}
	if len(rs.Rules) != 0 {
		t.Errorf("len(Rules) = %d, want 0 after invalidation", len(rs.Rules))
	}
}

func TestFileStoreInvalidateAll(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", collegeRuleset)
	store := newTestStore(t, dir)

	if _, err := store.Load("college"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	store.InvalidateAll()

	store.mu.RLock()
	size := len(store.cache)
	store.mu.RUnlock()
	if size != 0 {
		t.Errorf("cache size after InvalidateAll = %d, want 0", size)
	}
}

// TestFileStoreConcurrentLoad verifies concurrent first loads of one
// org_type observe one consistent cached ruleset.
func TestFileStoreConcurrentLoad(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", collegeRuleset)
	store := newTestStore(t, dir)

	const goroutines = 32
	results := make([]*Ruleset, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rs, err := store.Load("college")
			if err != nil {
				t.Errorf("concurrent Load() failed: %v", err)
				return
			}
			results[i] = rs
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent loads produced divergent cached rulesets")
		}
	}
}

// TestRulesetPrecomputedTerms verifies term normalization happens at load and
// drops empty terms.
func TestRulesetPrecomputedTerms(t *testing.T) {
	dir := t.TempDir()
	writeRuleset(t, dir, "college", `{
		"version": "1.0",
		"org_type": "college",
		"rules": [
			{"id": "r1", "match_any": ["Απουσίες!", "  ", ""], "match_all": ["Αλλαγή", "Τμήματος"]}
		]
	}`)
	store := newTestStore(t, dir)

	rs, err := store.Load("college")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	r := rs.Rules[0]
	if want := []string{"απουσιες"}; !reflect.DeepEqual(r.AnyTerms, want) {
		t.Errorf("AnyTerms = %v, want %v", r.AnyTerms, want)
	}
	if want := []string{"αλλαγη", "τμηματος"}; !reflect.DeepEqual(r.AllTerms, want) {
		t.Errorf("AllTerms = %v, want %v", r.AllTerms, want)
	}
}

func TestRuleLabel(t *testing.T) {
	tests := []struct {
		rule Rule
		want string
	}{
		{Rule{ID: "r1", Decision: "APPROVE", Intent: "greet"}, "APPROVE"},
		{Rule{ID: "r1", Intent: "greet"}, "greet"},
		{Rule{ID: "r1"}, "r1"},
	}

	for _, tt := range tests {
		if got := tt.rule.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestOrgTypeFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"college_v1.json", "college", true},
		{"law_firm_v2.json", "law_firm", true},
		{"college.json", "", false},
		{"college_v1.yaml", "", false},
		{"_v1.json", "", false},
	}

	for _, tt := range tests {
		got, ok := orgTypeFromFilename(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("orgTypeFromFilename(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
