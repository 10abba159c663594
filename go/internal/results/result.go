// Package results records finished rounds.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/turn"
)

var ErrRoundNotOver = errors.New("round is not over")

// Result is one finished round from the local player's point of view.
type Result struct {
	ID         uuid.UUID       `json:"id"`
	MatchID    string          `json:"matchId,omitempty"`
	PlayerID   string          `json:"playerId"`
	OpponentID string          `json:"opponentId,omitempty"`
	Policy     turn.Policy     `json:"policy"`
	Phase      turn.Phase      `json:"phase"`
	Outcome    models.Outcome  `json:"outcome"`
	RowsPlayed int             `json:"rowsPlayed"`
	Secret     string          `json:"secret"`
	Board      json.RawMessage `json:"board,omitempty"`
	FinishedAt time.Time       `json:"finishedAt"`
}

type board struct {
	Local  []turn.Line `json:"local"`
	Remote []turn.Line `json:"remote,omitempty"`
}

// FromState builds a result from a terminal state. Rounds that failed before
// a secret was chosen carry no board.
func FromState(s turn.State, finishedAt time.Time) (Result, error) {
	if !s.Phase.Terminal() {
		return Result{}, fmt.Errorf("%w: phase %s", ErrRoundNotOver, s.Phase)
	}
	r := Result{
		ID:         uuid.New(),
		MatchID:    s.Session.MatchID,
		PlayerID:   s.Session.LocalPlayerID,
		OpponentID: s.Session.RemotePlayerID,
		Policy:     s.Policy,
		Phase:      s.Phase,
		Outcome:    s.Outcome,
		RowsPlayed: len(s.Entries(models.SideLocal)),
		Secret:     s.Secret,
		FinishedAt: finishedAt.UTC(),
	}
	if s.Local != nil {
		b, err := json.Marshal(board{Local: s.Local, Remote: s.Remote})
		if err != nil {
			return Result{}, fmt.Errorf("encode board: %w", err)
		}
		r.Board = b
	}
	return r, nil
}

// Recorder stores or forwards a result.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// Recorders fans a result out to every recorder and joins their errors.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, r Result) error {
	var errs []error
	for _, rec := range rs {
		if err := rec.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
