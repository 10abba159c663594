// Package status serves a small local HTTP surface for the terminal client:
// liveness, a snapshot of the current round and dictionary lookups.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/wordduel/go/internal/results"
	"github.com/mcdev12/wordduel/go/internal/turn"
	"github.com/mcdev12/wordduel/go/internal/words"
)

const (
	snapshotTimeout    = time.Second
	defaultResultLimit = 20
	maxResultLimit     = 200
)

// StateSource is satisfied by *turn.Coordinator.
type StateSource interface {
	State(ctx context.Context) (turn.State, error)
}

// History is satisfied by *results.Store.
type History interface {
	Stats(ctx context.Context, playerID string) (results.Stats, error)
	Recent(ctx context.Context, playerID string, limit int) ([]results.Result, error)
}

// Options describes what the handler reports.
type Options struct {
	Version   string
	PlayerID  string
	Transport string
	Rounds    StateSource
	// Connected reports whether the duel connection is up. Nil means offline.
	Connected func() bool
	// History serves /players routes when set.
	History History
}

// Info is the /info response.
type Info struct {
	Version   string      `json:"version"`
	PlayerID  string      `json:"playerId"`
	Transport string      `json:"transport"`
	Connected bool        `json:"connected"`
	Sources   []string    `json:"sources"`
	Round     *turn.State `json:"round,omitempty"`
}

// NewHandler builds the router.
func NewHandler(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		info := Info{
			Version:   opts.Version,
			PlayerID:  opts.PlayerID,
			Transport: opts.Transport,
			Sources:   words.SourceKeys(),
		}
		if opts.Connected != nil {
			info.Connected = opts.Connected()
		}
		if opts.Rounds != nil {
			ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
			defer cancel()
			s, err := opts.Rounds.State(ctx)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err)
				return
			}
			info.Round = &s
		}
		writeJSON(w, http.StatusOK, info)
	})

	r.Get("/words/{lang}/{word}", func(w http.ResponseWriter, r *http.Request) {
		lang, word := chi.URLParam(r, "lang"), chi.URLParam(r, "word")
		writeJSON(w, http.StatusOK, map[string]any{
			"lang":    lang,
			"word":    word,
			"allowed": words.IsAllowed(lang, word),
		})
	})

	if opts.History != nil {
		r.Route("/players/{player}", func(r chi.Router) {
			r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
				st, err := opts.History.Stats(r.Context(), chi.URLParam(r, "player"))
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				writeJSON(w, http.StatusOK, st)
			})
			r.Get("/results", func(w http.ResponseWriter, r *http.Request) {
				limit, err := parseLimit(r.URL.Query().Get("limit"))
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				recent, err := opts.History.Recent(r.Context(), chi.URLParam(r, "player"), limit)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				if recent == nil {
					recent = []results.Result{}
				}
				writeJSON(w, http.StatusOK, recent)
			})
		})
	}

	return r
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultResultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxResultLimit), nil
}

// NewServer wraps the handler with CORS and h2c.
func NewServer(addr string, handler http.Handler) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(c.Handler(handler), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write status response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
