package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/clients/word_api_client"
	"github.com/mcdev12/wordduel/go/internal/results"
	"github.com/mcdev12/wordduel/go/internal/words"
)

// setupWordSources registers every configured source. The returned cleanup
// closes database handles and unregisters the sources.
func setupWordSources(ctx context.Context, config *Config) (func(), error) {
	var keys []string
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
		for _, k := range keys {
			words.UnregisterSource(k)
		}
	}
	register := func(key string, source words.Source) error {
		if err := words.RegisterSource(key, source); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	}

	apiURL := config.Words.APIURL
	if apiURL == "" {
		apiURL = word_api_client.BaseURL
	}
	httpSource := words.NewHTTPSource(apiURL, config.Words.APIKey,
		words.WithHTTPTimeout(config.Words.APITimeout), words.WithLang(config.Player.Lang))
	builtins := map[string]words.Source{
		"random": words.RandomSource{},
		"match":  words.MatchSource{Salt: config.Words.Salt},
		"daily":  words.DailySource{Salt: config.Words.Salt},
		"http":   httpSource,
	}
	for key, source := range builtins {
		if err := register(key, source); err != nil {
			cleanup()
			return nil, err
		}
	}

	if path := config.Words.SQLitePath; path != "" {
		src, err := words.OpenSQL(ctx, "sqlite3", path)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("sqlite word source: %w", err)
		}
		closers = append(closers, func() { _ = src.Close() })
		if err := register("sqlite", src); err != nil {
			cleanup()
			return nil, err
		}
	}

	switch config.Words.Postgres {
	case "pgx":
		src, err := words.NewPostgresSource(ctx, config.Database.DSN())
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("postgres word source: %w", err)
		}
		closers = append(closers, src.Close)
		if err := register("postgres", src); err != nil {
			cleanup()
			return nil, err
		}
	case "pq":
		src, err := words.OpenSQL(ctx, "postgres", config.Database.DSN())
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("postgres word source: %w", err)
		}
		closers = append(closers, func() { _ = src.Close() })
		if err := register("postgres", src); err != nil {
			cleanup()
			return nil, err
		}
	}

	log.Info().Strs("sources", words.SourceKeys()).Msg("word sources registered")
	return cleanup, nil
}

// selectSource initializes and returns a registered source.
func selectSource(key string) (words.Source, error) {
	if err := words.InitializeSource(key); err != nil {
		return nil, err
	}
	return words.GetSource(key)
}

// setupRecorders opens every configured results backend. store is the one
// the status server reads stats from, if any.
func setupRecorders(ctx context.Context, config *Config) (results.Recorders, *results.Store, func(), error) {
	var recorders results.Recorders
	var store *results.Store
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	openStore := func(driver, dsn string) error {
		s, err := results.OpenStore(ctx, driver, dsn)
		if err != nil {
			return fmt.Errorf("%s results store: %w", driver, err)
		}
		closers = append(closers, func() { _ = s.Close() })
		recorders = append(recorders, s)
		if store == nil {
			store = s
		}
		return nil
	}

	if path := config.Results.SQLitePath; path != "" {
		if err := openStore("sqlite3", path); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
	}
	if config.Results.Postgres {
		if err := openStore("postgres", config.Database.DSN()); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
	}
	if config.Results.JetStream {
		sc := results.DefaultStreamConfig()
		sc.URL = config.Transport.NATS.URL
		pub, err := results.NewPublisher(ctx, sc)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		closers = append(closers, pub.Close)
		recorders = append(recorders, pub)
	}
	return recorders, store, cleanup, nil
}
