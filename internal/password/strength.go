// Package password implements the credential engine: strength evaluation,
// bcrypt hashing, and the old-vs-new similarity guard used on password change.
package password

import (
	"strings"
	"unicode"
)

// Result is the outcome of a strength evaluation. Feedback carries the
// human-readable requirements the candidate still misses.
type Result struct {
	OK       bool
	Score    int
	Feedback []string
}

// commonFragments are substrings that immediately cap the score. Matching is
// case-insensitive.
var commonFragments = []string{
	"password",
	"qwerty",
	"123456",
	"abc123",
	"letmein",
	"welcome",
	"iloveyou",
	"admin",
}

const symbolSet = "!@#$%^&*()-_=+[]{};:'\",.<>/?`~\\|"

// Evaluate scores a candidate password. A password passes when it meets every
// hard requirement and reaches the minimum composite score.
func Evaluate(candidate string) Result {
	var res Result

	if len(candidate) < minLength {
		res.Feedback = append(res.Feedback, "must be at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(symbolSet, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		res.Feedback = append(res.Feedback, "must contain an uppercase letter")
	}
	if !hasLower {
		res.Feedback = append(res.Feedback, "must contain a lowercase letter")
	}
	if !hasDigit {
		res.Feedback = append(res.Feedback, "must contain a digit")
	}
	if !hasSymbol {
		res.Feedback = append(res.Feedback, "must contain a symbol")
	}

	lowered := strings.ToLower(candidate)
	common := false
	for _, frag := range commonFragments {
		if strings.Contains(lowered, frag) {
			common = true
			res.Feedback = append(res.Feedback, "must not contain a common password fragment")
			break
		}
	}

	repeated := hasTripleRun(candidate)
	if repeated {
		res.Feedback = append(res.Feedback, "must not repeat the same character three times in a row")
	}

	res.Score = score(candidate, hasUpper, hasLower, hasDigit, hasSymbol, common, repeated)
	res.OK = len(res.Feedback) == 0 && res.Score >= minScore
	return res
}

// score builds a 0..4 composite from length and character variety, penalized
// for common fragments and repeated runs.
func score(candidate string, upper, lower, digit, symbol, common, repeated bool) int {
	variety := 0
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			variety++
		}
	}

	s := 0
	if len(candidate) >= minLength {
		s++
	}
	if len(candidate) >= 12 {
		s++
	}
	if variety >= 3 {
		s++
	}
	if variety == 4 {
		s++
	}
	if common || repeated {
		s--
	}
	if s < 0 {
		s = 0
	}
	return s
}

// hasTripleRun reports whether any character appears three or more times in a
// row.
func hasTripleRun(s string) bool {
	runes := []rune(s)
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1] && runes[i] == runes[i-2] {
			return true
		}
	}
	return false
}
