package game

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a word for comparison: accents decomposed and dropped,
// whitespace removed, lowercased. "Crème Brûlée" and "cremebrulee" compare equal.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Levenshtein is the plain dynamic-programming edit distance, cost 1 per
// insert, delete or substitute. No transpositions.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1]
			} else {
				cur[j] = 1 + min(prev[j-1], prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// IsWordClose reports whether a guess is a near miss of the secret word:
// within edit distance 2 after normalization. Empty strings are never close.
func IsWordClose(secret, guess string) bool {
	if secret == "" || guess == "" {
		return false
	}
	return Levenshtein(Normalize(secret), Normalize(guess)) <= 2
}
