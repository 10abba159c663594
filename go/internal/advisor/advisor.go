// Package advisor aggregates feedback history into per-column letter hints
// used as placeholder text while a row is typed. Hints are advisory only and
// never feed back into scoring or turn state.
package advisor

import (
	"strings"

	"github.com/mcdev12/wordduel/go/internal/feedback"
)

// Entry is one submitted row and its verdicts.
type Entry struct {
	Guess    string
	Verdicts feedback.Row
}

// Hint lists the letters known to be present at a column, exact matches first.
type Hint struct {
	Exact   []rune
	Partial []rune
}

// Letters returns the exact then partial letters, deduplicated across both.
func (h Hint) Letters() []rune {
	out := make([]rune, 0, len(h.Exact)+len(h.Partial))
	out = append(out, h.Exact...)
	for _, r := range h.Partial {
		if !containsRune(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// Best returns the strongest candidate for the column.
func (h Hint) Best() (rune, bool) {
	if len(h.Exact) > 0 {
		return h.Exact[0], true
	}
	if len(h.Partial) > 0 {
		return h.Partial[0], true
	}
	return 0, false
}

// Suggest merges the local and remote histories into one hint per column.
// Either history may be empty or shorter than width; missing data in one
// never hides evidence found in the other. NoMatch cells never contribute.
func Suggest(width int, local, remote []Entry) []Hint {
	if width <= 0 {
		return nil
	}
	hints := make([]Hint, width)
	for _, history := range [][]Entry{local, remote} {
		for _, e := range history {
			addEntry(hints, e)
		}
	}
	return hints
}

func addEntry(hints []Hint, e Entry) {
	letters := []rune(feedback.Normalize(e.Guess))
	for i, v := range e.Verdicts {
		if i >= len(hints) || i >= len(letters) {
			return
		}
		r := letters[i]
		switch v {
		case feedback.ExactMatch:
			if !containsRune(hints[i].Exact, r) {
				hints[i].Exact = append(hints[i].Exact, r)
			}
		case feedback.PartialMatch:
			if !containsRune(hints[i].Partial, r) {
				hints[i].Partial = append(hints[i].Partial, r)
			}
		}
	}
}

// Placeholder renders the best candidate per column, '_' where nothing is known.
func Placeholder(hints []Hint) string {
	var b strings.Builder
	for _, h := range hints {
		if r, ok := h.Best(); ok {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func containsRune(rs []rune, r rune) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}
