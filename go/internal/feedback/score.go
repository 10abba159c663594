// Package feedback scores guesses against a secret word.
//
// Scoring runs in two passes over the secret's letter multiset:
//   - exact matches are marked first and consume their letter;
//   - the remaining cells become partial matches only while the letter still
//     has count left, otherwise no match.
//
// Running exact matches first is what keeps repeated letters honest: a letter
// guessed twice against a secret containing it once earns one hit, not two.
package feedback

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Score compares guess with secret, case-insensitively. Positions the guess
// does not fill (shorter guess or blank cells) are NoGuess. Letters past the
// secret's length are ignored.
func Score(secret, guess string) Row {
	secretRunes := []rune(Normalize(secret))
	guessRunes := []rune(Normalize(guess))
	n := len(secretRunes)
	res := make(Row, n)

	remaining := make(map[rune]int, n)
	for _, r := range secretRunes {
		remaining[r]++
	}

	// First pass: exact matches consume their letter.
	for i := 0; i < n; i++ {
		if i >= len(guessRunes) || isBlank(guessRunes[i]) {
			continue
		}
		if guessRunes[i] == secretRunes[i] {
			res[i] = ExactMatch
			remaining[secretRunes[i]]--
		}
	}

	// Second pass: partial matches while the letter has count left.
	for i := 0; i < n; i++ {
		if res[i] == ExactMatch || i >= len(guessRunes) || isBlank(guessRunes[i]) {
			continue
		}
		r := guessRunes[i]
		if remaining[r] > 0 {
			res[i] = PartialMatch
			remaining[r]--
		} else {
			res[i] = NoMatch
		}
	}
	return res
}

// Normalize lowercases a word and trims surrounding whitespace.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Len returns the number of letters in a word.
func Len(word string) int {
	return utf8.RuneCountInString(word)
}

// DisplayCase capitalizes the first letter. Display only; scoring never sees it.
func DisplayCase(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}

// Complete reports whether every cell of a row holds a letter.
func Complete(row string) bool {
	for _, r := range row {
		if isBlank(r) {
			return false
		}
	}
	return row != ""
}

func isBlank(r rune) bool {
	return r == 0 || unicode.IsSpace(r) || r == '_'
}
