package password

import (
	"github.com/agnivade/levenshtein"

	"github.com/decode-platform/auth-service/internal/domain"
)

// Similarity returns the normalized similarity of two plaintexts in [0, 1],
// where 1 means identical. Computed as 1 - distance/maxLen on edit distance.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// TooSimilar reports whether a new password is close enough to the old one to
// be rejected on change.
func TooSimilar(oldPlain, newPlain string) bool {
	return Similarity(oldPlain, newPlain) > domain.MaxPasswordSimilarity
}
