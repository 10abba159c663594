package turn

import (
	"errors"

	"github.com/mcdev12/wordduel/go/internal/models"
)

var (
	ErrNotYourTurn        = errors.New("not your turn")
	ErrAwaitingServer     = errors.New("row already submitted, waiting for the server")
	ErrRowIncomplete      = errors.New("row is incomplete")
	ErrRoundOver          = errors.New("round is over")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInvalidMatch       = errors.New("invalid match setup")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

type CommandType string

const (
	CmdStart          CommandType = "Start"
	CmdMatchFound     CommandType = "MatchFound"
	CmdCoinFlip       CommandType = "CoinFlip"
	CmdSubmitRow      CommandType = "SubmitRow"
	CmdOpponentRow    CommandType = "OpponentRow"
	CmdTurn           CommandType = "Turn"
	CmdOpponentLeft   CommandType = "OpponentLeft"
	CmdDisconnected   CommandType = "Disconnected"
	CmdTransportError CommandType = "TransportError"
	CmdFail           CommandType = "Fail"
	CmdReset          CommandType = "Reset"
)

// Command is an input to Apply. Which fields are read depends on Type.
type Command struct {
	Type     CommandType
	Policy   Policy
	Session  models.MatchSession
	Secret   string
	Rows     int
	Side     models.Side
	Row      int
	Guess    string
	PlayerID string
	Reason   string
	Err      error
}

func Start(p Policy) Command { return Command{Type: CmdStart, Policy: p} }

func MatchFound(session models.MatchSession, secret string, rows int) Command {
	return Command{Type: CmdMatchFound, Session: session, Secret: secret, Rows: rows}
}

func CoinFlip(starter models.Side) Command { return Command{Type: CmdCoinFlip, Side: starter} }

func SubmitRow(guess string) Command { return Command{Type: CmdSubmitRow, Guess: guess} }

// OpponentRow records the opponent's latest guess text for a row. It is
// scored when the turn passes.
func OpponentRow(row int, guess string) Command {
	return Command{Type: CmdOpponentRow, Row: row, Guess: guess}
}

// Turn is the server's authoritative turn change.
func Turn(nextPlayerID string, nextRow int) Command {
	return Command{Type: CmdTurn, PlayerID: nextPlayerID, Row: nextRow}
}

func OpponentLeft(playerID, reason string) Command {
	return Command{Type: CmdOpponentLeft, PlayerID: playerID, Reason: reason}
}

func Disconnected(err error) Command { return Command{Type: CmdDisconnected, Err: err} }

func TransportError(err error) Command { return Command{Type: CmdTransportError, Err: err} }

func Fail(err error) Command { return Command{Type: CmdFail, Err: err} }

func Reset() Command { return Command{Type: CmdReset} }

type EffectType string

const (
	// EffSendRowDone asks the coordinator to notify the server.
	EffSendRowDone  EffectType = "SendRowDone"
	EffRowScored    EffectType = "RowScored"
	EffTurnChanged  EffectType = "TurnChanged"
	EffInputLocked  EffectType = "InputLocked"
	EffRoundEnded   EffectType = "RoundEnded"
	EffOpponentLeft EffectType = "OpponentLeft"
	EffError        EffectType = "Error"
)

// Effect is an output of Apply.
type Effect struct {
	Type    EffectType
	Side    models.Side
	Row     int
	Line    Line
	Outcome models.Outcome
	Reason  string
	Err     error
}
