package ingestion

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
)

// CandidateName infers a human-readable candidate name from a resume file
// path. The filename stem is split on underscores, hyphens, and dots, and each
// word is title-cased: "alice_rivera.md" becomes "Alice Rivera".
func CandidateName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	words := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, w := range words {
		words[i] = titleWord(w)
	}
	if len(words) == 0 {
		return stem
	}
	return strings.Join(words, " ")
}

// titleWord upper-cases the first byte of an ASCII word and lower-cases the
// rest. Non-ASCII leading runes are left untouched.
func titleWord(w string) string {
	if w == "" {
		return w
	}
	lower := strings.ToLower(w)
	c := lower[0]
	if c < 'a' || c > 'z' {
		return lower
	}
	return string(c-'a'+'A') + lower[1:]
}

// candidateID derives a stable short identifier from a candidate name so the
// same candidate maps to the same ID across re-ingestions.
func candidateID(name string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return fmt.Sprintf("%x", h[:8])
}
