// Package trigram computes pg_trgm compatible trigram similarity so the
// SQLite and in-memory stores rank sparse queries the same way Postgres does.
package trigram

import (
	"strings"
	"unicode"
)

// DefaultThreshold matches the pg_trgm.similarity_threshold default.
const DefaultThreshold = 0.3

// Set is the distinct trigrams of a string.
type Set map[string]struct{}

// Trigrams extracts the trigram set of s. Words are maximal runs of letters
// and digits, lowercased and padded with two leading spaces and one trailing
// space before being cut into trigrams.
func Trigrams(s string) Set {
	set := make(Set)
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity returns |A∩B| / |A∪B| over the trigram sets of a and b, in [0,1].
// Two strings without any word characters have similarity 0.
func Similarity(a, b string) float64 {
	return SetSimilarity(Trigrams(a), Trigrams(b))
}

// SetSimilarity is Similarity over precomputed sets.
func SetSimilarity(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// ContainsFold reports whether needle occurs in haystack ignoring case, the
// ILIKE '%needle%' check used beside the similarity filter.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Matches is the stage one sparse filter: the combined text and label pass
// the threshold, or the query is a substring of the text or the label.
func Matches(text, label, query string, threshold float64) (float64, bool) {
	score := Similarity(text+" "+label, query)
	if score >= threshold {
		return score, true
	}
	return score, ContainsFold(text, query) || ContainsFold(label, query)
}
