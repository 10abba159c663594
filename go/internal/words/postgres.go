package words

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresSource reads words from Postgres through a pgx pool.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects to dsn and makes sure the word table exists.
func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create words table: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

func (s *PostgresSource) Word(ctx context.Context, req Request) (string, error) {
	var word string
	err := s.pool.QueryRow(ctx, selectWordSQL, langOrDefault(req.Lang), req.Length).Scan(&word)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: no %d-letter %q words in database", ErrNoWords, req.Length, langOrDefault(req.Lang))
	}
	if err != nil {
		return "", fmt.Errorf("query word: %w", err)
	}
	return validate(word, req)
}

// Seed upserts words in one batch and reports inserted and skipped counts.
func (s *PostgresSource) Seed(ctx context.Context, lang string, words []string) (inserted, skipped int, err error) {
	batch := &pgx.Batch{}
	for _, w := range words {
		batch.Queue(insertWordSQL, w, langOrDefault(lang), len([]rune(w)))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, w := range words {
		tag, err := results.Exec()
		if err != nil {
			return inserted, skipped, fmt.Errorf("insert %q: %w", w, err)
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	log.Info().Str("lang", langOrDefault(lang)).Int("inserted", inserted).Int("skipped", skipped).Msg("seeded words")
	return inserted, skipped, nil
}

func (s *PostgresSource) Close() {
	s.pool.Close()
}
