package game

import (
	"math/rand/v2"
	"unicode"
)

const placeholder = '_'

// maskWord hides every letter of the secret word behind the placeholder.
// Non-letters (spaces, hyphens) stay visible, so "ice cream" masks to
// "___ _____" and guessers still see the word shape.
func maskWord(secret string) []rune {
	masked := []rune(secret)
	for i, r := range masked {
		if unicode.IsLetter(r) {
			masked[i] = placeholder
		}
	}
	return masked
}

// revealOne uncovers one still-hidden letter at a uniformly random position.
// It reports false when nothing is left to reveal.
func revealOne(masked, secret []rune) bool {
	hidden := make([]int, 0, len(masked))
	for i, r := range masked {
		if r == placeholder {
			hidden = append(hidden, i)
		}
	}
	if len(hidden) == 0 {
		return false
	}
	i := hidden[rand.IntN(len(hidden))]
	masked[i] = secret[i]
	return true
}
