// Package similarity scores how closely two titles match.
// Scores are normalized edit-distance ratios in [0, 1], computed on
// lowercased, punctuation-stripped forms so release and catalog spellings
// of the same title compare equal.
package similarity

import (
	"strings"
	"unicode"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Normalize returns the canonical comparison form of a title:
// lowercased, trimmed, punctuation removed, whitespace collapsed.
func Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Score returns the normalized edit-distance similarity of two titles.
// It is reflexive (Score(a, a) == 1) and symmetric.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}

	dist := levenshtein.Distance(na, nb)
	return 1 - float64(dist)/float64(longest)
}

// Contains reports whether the normalized query appears inside the
// normalized candidate title.
func Contains(candidate, query string) bool {
	nq := Normalize(query)
	if nq == "" {
		return false
	}
	return strings.Contains(Normalize(candidate), nq)
}

// ReciprocalContains reports whether either normalized title contains the
// other. Used for short titles where edit distance is too coarse.
func ReciprocalContains(a, b string) bool {
	return Contains(a, b) || Contains(b, a)
}

// FuzzyMatch reports a loose subsequence match between query and candidate,
// ignoring case and diacritics.
func FuzzyMatch(query, candidate string) bool {
	return fuzzy.MatchNormalizedFold(query, candidate)
}
