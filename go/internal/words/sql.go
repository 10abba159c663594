package words

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/sqlutil"
)

// Schema is the word table shared by the SQL and Postgres sources.
const Schema = `CREATE TABLE IF NOT EXISTS words (
	word   TEXT    NOT NULL,
	lang   TEXT    NOT NULL,
	length INTEGER NOT NULL,
	PRIMARY KEY (lang, word)
)`

const (
	selectWordSQL = `SELECT word FROM words WHERE lang = $1 AND length = $2 ORDER BY random() LIMIT 1`
	insertWordSQL = `INSERT INTO words (word, lang, length) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
)

// SQLSource reads words through database/sql. Drivers "postgres" (lib/pq)
// and "sqlite3" are linked in.
type SQLSource struct {
	db *sql.DB
}

// OpenSQL opens and pings a database and makes sure the word table exists.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLSource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create words table: %w", err)
	}
	log.Info().Str("driver", driver).Msg("connected to word database")
	return &SQLSource{db: db}, nil
}

func (s *SQLSource) Word(ctx context.Context, req Request) (string, error) {
	var word string
	err := s.db.QueryRowContext(ctx, selectWordSQL, langOrDefault(req.Lang), req.Length).Scan(&word)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no %d-letter %q words in database", ErrNoWords, req.Length, langOrDefault(req.Lang))
	}
	if err != nil {
		return "", fmt.Errorf("query word: %w", err)
	}
	return validate(word, req)
}

// Insert adds words in one transaction and returns how many were new.
func (s *SQLSource) Insert(ctx context.Context, lang string, words []string) (int, error) {
	inserted := 0
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertWordSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, w := range words {
			res, err := stmt.ExecContext(ctx, w, langOrDefault(lang), len([]rune(w)))
			if err != nil {
				return fmt.Errorf("insert %q: %w", w, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
