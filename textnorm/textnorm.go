// Package textnorm canonicalizes free text for rule matching.
//
// All rule terms and questions are compared in normalized form so that
// cosmetic differences (case, Greek tonos, punctuation, whitespace) never
// cause a match to be missed: "Αλλαγή Τμήματος!!!" and "αλλαγη τμηματος"
// normalize to the same string.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of text: lowercase, diacritics
// stripped, punctuation replaced with spaces, whitespace collapsed and
// trimmed. It is pure and idempotent; Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	t := strings.ToLower(strings.TrimSpace(text))

	// Decompose, drop combining marks, recompose. The transformer chain is
	// built per call; x/text transformers carry state and are not safe for
	// concurrent reuse.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripper, t); err == nil {
		t = stripped
	}

	// Keep letters and digits, turn everything else into a space.
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeKey canonicalizes an identifier such as org_type for lookup and
// cache keying: trimmed and lowercased only, underscores and digits kept.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
