// Package words supplies secret words for rounds.
//
// Every Source returns a lowercase word of the requested length. Sources are
// registered by name so the client can pick one from configuration.
package words

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/mcdev12/wordduel/go/internal/feedback"
)

var (
	ErrNoWords      = errors.New("no words available")
	ErrMissingMatch = errors.New("match id is required")
	ErrInvalidWord  = errors.New("invalid word")
)

// Request describes the word a round needs.
type Request struct {
	Length  int
	Lang    string
	MatchID string
}

// Source returns one secret word per call.
type Source interface {
	Word(ctx context.Context, req Request) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req Request) (string, error)

func (f SourceFunc) Word(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func langOrDefault(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}

// validate normalizes word and checks it fits req.
func validate(word string, req Request) (string, error) {
	w := feedback.Normalize(word)
	if feedback.Len(w) != req.Length {
		return "", fmt.Errorf("%w: %q is not %d letters", ErrInvalidWord, word, req.Length)
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidWord, word)
		}
	}
	return w, nil
}
