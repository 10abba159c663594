package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/status"
)

const shutdownTimeout = 5 * time.Second

// serveStatus runs the status server until ctx is cancelled. An empty address
// disables it.
func serveStatus(ctx context.Context, addr string, opts status.Options) error {
	if addr == "" {
		return nil
	}
	server := status.NewServer(addr, status.NewHandler(opts))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status server shutdown failed")
		}
		return nil
	}
}
