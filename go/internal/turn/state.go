// Package turn owns whose turn it is in a round, which row is active and how
// the round ends.
//
// Apply is a pure reducer over State. Coordinator runs it on a single
// goroutine and carries out the effects it returns.
package turn

import (
	"github.com/mcdev12/wordduel/go/internal/feedback"
	"github.com/mcdev12/wordduel/go/internal/models"
)

type Phase string

const (
	PhaseIdle            Phase = "IDLE"
	PhaseMatching        Phase = "MATCHING"
	PhaseCoinFlipPending Phase = "COIN_FLIP_PENDING"
	PhaseLocalTurn       Phase = "LOCAL_TURN"
	PhaseRemoteTurn      Phase = "REMOTE_TURN"
	PhaseRoundEnded      Phase = "ROUND_ENDED"
	PhaseOpponentLeft    Phase = "OPPONENT_LEFT"
	PhaseDisconnected    Phase = "DISCONNECTED"
	// PhaseFailed is entered on round-fatal errors such as an undetermined
	// coin flip or an exhausted word source.
	PhaseFailed Phase = "FAILED"
)

// InRound reports whether rows are being played.
func (p Phase) InRound() bool {
	return p == PhaseLocalTurn || p == PhaseRemoteTurn
}

// Terminal reports whether the round is over. Only Reset leaves a terminal phase.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseRoundEnded, PhaseOpponentLeft, PhaseDisconnected, PhaseFailed:
		return true
	}
	return false
}

// Policy decides who advances the turn.
type Policy string

const (
	// PolicyPvP only advances on server turn events.
	PolicyPvP Policy = "PVP"
	// PolicySolo has no opponent; each submitted row advances locally.
	PolicySolo Policy = "SOLO"
)

// Line is one row of a board.
type Line struct {
	Guess    string       `json:"guess"`
	Verdicts feedback.Row `json:"verdicts,omitempty"`
	Done     bool         `json:"done"`
}

// State is the full turn state of one round.
type State struct {
	Phase   Phase               `json:"phase"`
	Policy  Policy              `json:"policy"`
	Session models.MatchSession `json:"session"`
	Secret  string              `json:"-"`
	Rows    int                 `json:"rows"`
	Width   int                 `json:"width"`

	Starter      models.Side    `json:"starter"`
	ActiveSide   models.Side    `json:"activeSide"`
	ActiveRow    int            `json:"activeRow"`
	Outcome      models.Outcome `json:"outcome"`
	InputEnabled bool           `json:"inputEnabled"`

	// AwaitingServer is set after a local row is submitted and cleared by the
	// next turn event.
	AwaitingServer bool `json:"awaitingServer"`
	// Locked is set when the server names a row outside the board.
	Locked bool `json:"locked"`
	// TurnSeq orders turns within the round: row*2, plus one for the side
	// that did not start. Turn events at or below it are ignored.
	TurnSeq int `json:"turnSeq"`

	Local  []Line `json:"local"`
	Remote []Line `json:"remote"`

	// Departed is set once the opponent has left, including after the
	// round ended.
	Departed bool   `json:"departed,omitempty"`
	Reason   string `json:"reason,omitempty"`
	LastErr  error  `json:"-"`
}

// NewState returns an idle state.
func NewState() State {
	return State{Phase: PhaseIdle, Outcome: models.OutcomeNone}
}

// Entries returns the finished rows of one side, for hints.
func (s State) Entries(side models.Side) []Line {
	board := s.Local
	if side == models.SideRemote {
		board = s.Remote
	}
	out := make([]Line, 0, len(board))
	for _, l := range board {
		if l.Done {
			out = append(out, l)
		}
	}
	return out
}

func (s State) clone() State {
	c := s
	c.Local = cloneBoard(s.Local)
	c.Remote = cloneBoard(s.Remote)
	return c
}

func cloneBoard(b []Line) []Line {
	if b == nil {
		return nil
	}
	out := make([]Line, len(b))
	for i, l := range b {
		out[i] = l
		if l.Verdicts != nil {
			out[i].Verdicts = append(feedback.Row(nil), l.Verdicts...)
		}
	}
	return out
}

func (s State) seq(side models.Side, row int) int {
	if side == s.Starter {
		return row * 2
	}
	return row*2 + 1
}

func (s State) lastSeq() int {
	return s.Rows*2 - 1
}
