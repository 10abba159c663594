package words

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/clients/word_api_client"
)

// HTTPSource fetches random words from a word API.
type HTTPSource struct {
	client *word_api_client.WordApiClient
	batch  int
	lang   string
}

const initTimeout = 5 * time.Second

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPTimeout bounds each API request.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client.SetTimeout(d)
		}
	}
}

// WithLang is the language Init checks the API for.
func WithLang(lang string) HTTPOption { return func(s *HTTPSource) { s.lang = lang } }

// NewHTTPSource creates a source for baseURL; empty uses the public API.
func NewHTTPSource(baseURL, apiKey string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{client: word_api_client.NewWordApiClient(baseURL, apiKey), batch: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init checks that the API answers and serves the configured language.
func (s *HTTPSource) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	langs, err := s.client.GetLanguages(ctx)
	if err != nil {
		return fmt.Errorf("word api %s: %w", s.client.BaseURL(), err)
	}
	lang := langOrDefault(s.lang)
	if !slices.Contains(langs, lang) {
		return fmt.Errorf("word api %s does not serve %q", s.client.BaseURL(), lang)
	}
	log.Info().Str("url", s.client.BaseURL()).Str("lang", lang).Msg("word api ready")
	return nil
}

// Word asks for a small batch and returns the first usable word, since the
// API sometimes answers with hyphenated or mis-sized entries.
func (s *HTTPSource) Word(ctx context.Context, req Request) (string, error) {
	candidates, err := s.client.GetWords(ctx, req.Length, s.batch, req.Lang)
	if err != nil {
		return "", fmt.Errorf("word api: %w", err)
	}
	for _, c := range candidates {
		w, err := validate(c, req)
		if err != nil {
			log.Debug().Str("candidate", c).Msg("skipping unusable word")
			continue
		}
		return w, nil
	}
	return "", fmt.Errorf("%w: word api returned %d unusable candidates", ErrNoWords, len(candidates))
}
