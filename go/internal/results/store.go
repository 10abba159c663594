package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/turn"
)

const Schema = `CREATE TABLE IF NOT EXISTS round_results (
	id          TEXT      PRIMARY KEY,
	match_id    TEXT      NOT NULL DEFAULT '',
	player_id   TEXT      NOT NULL,
	opponent_id TEXT      NOT NULL DEFAULT '',
	policy      TEXT      NOT NULL,
	phase       TEXT      NOT NULL,
	outcome     TEXT      NOT NULL,
	rows_played INTEGER   NOT NULL,
	secret      TEXT      NOT NULL DEFAULT '',
	board       JSONB,
	finished_at TIMESTAMP NOT NULL
)`

const (
	insertResultSQL = `INSERT INTO round_results
	(id, match_id, player_id, opponent_id, policy, phase, outcome, rows_played, secret, board, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING`

	recentResultsSQL = `SELECT id, match_id, player_id, opponent_id, policy, phase, outcome, rows_played, secret, board, finished_at
	FROM round_results
	WHERE player_id = $1
	ORDER BY finished_at DESC
	LIMIT $2`

	statsSQL = `SELECT outcome, phase, COUNT(1)
	FROM round_results
	WHERE player_id = $1
	GROUP BY outcome, phase`
)

// Stats totals a player's rounds.
type Stats struct {
	Played    int `json:"played"`
	Wins      int `json:"wins"`
	Losses    int `json:"losses"`
	Draws     int `json:"draws"`
	Abandoned int `json:"abandoned"`
}

// Store keeps results in a SQL database ("sqlite3" or "postgres").
type Store struct {
	db *sql.DB
}

// OpenStore opens the database and creates the results table.
func OpenStore(ctx context.Context, driver, dsn string) (*Store, error) {
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
		return nil, fmt.Errorf("create round_results table: %w", err)
	}
	log.Info().Str("driver", driver).Msg("connected to results database")
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx, insertResultSQL,
		r.ID.String(), r.MatchID, r.PlayerID, r.OpponentID,
		string(r.Policy), string(r.Phase), string(r.Outcome), r.RowsPlayed, r.Secret,
		pqtype.NullRawMessage{RawMessage: r.Board, Valid: len(r.Board) > 0},
		r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns a player's latest results, newest first.
func (s *Store) Recent(ctx context.Context, playerID string, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, recentResultsSQL, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r                      Result
			id                     string
			policy, phase, outcome string
			boardJSON              pqtype.NullRawMessage
		)
		if err := rows.Scan(&id, &r.MatchID, &r.PlayerID, &r.OpponentID, &policy, &phase, &outcome,
			&r.RowsPlayed, &r.Secret, &boardJSON, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("result id %q: %w", id, err)
		}
		r.Policy, r.Phase, r.Outcome = turn.Policy(policy), turn.Phase(phase), models.Outcome(outcome)
		if boardJSON.Valid {
			r.Board = json.RawMessage(boardJSON.RawMessage)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats totals a player's results. Rounds that ended without an outcome
// count as abandoned.
func (s *Store) Stats(ctx context.Context, playerID string) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, statsSQL, playerID)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var outcome, phase string
		var n int
		if err := rows.Scan(&outcome, &phase, &n); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		st.Played += n
		switch models.Outcome(outcome) {
		case models.OutcomeLocalWin:
			st.Wins += n
		case models.OutcomeRemoteWin, models.OutcomeLoss:
			st.Losses += n
		case models.OutcomeDraw:
			st.Draws += n
		default:
			st.Abandoned += n
		}
	}
	return st, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
