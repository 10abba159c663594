package turn

import (
	"fmt"

	"github.com/mcdev12/wordduel/go/internal/feedback"
	"github.com/mcdev12/wordduel/go/internal/models"
)

// Apply computes the next state for cmd. It never mutates s.
//
// Errors are only returned for local commands that are not allowed in the
// current state. Server events that no longer apply (duplicates, late
// results, events after the round ended) are ignored without error.
func Apply(s State, cmd Command) ([]Effect, State, error) {
	switch cmd.Type {
	case CmdStart:
		return applyStart(s, cmd)
	case CmdMatchFound:
		return applyMatchFound(s, cmd)
	case CmdCoinFlip:
		return applyCoinFlip(s, cmd)
	case CmdSubmitRow:
		return applySubmitRow(s, cmd)
	case CmdOpponentRow:
		return applyOpponentRow(s, cmd)
	case CmdTurn:
		return applyTurn(s, cmd)
	case CmdOpponentLeft:
		return applyOpponentLeft(s, cmd)
	case CmdDisconnected:
		if s.Phase == PhaseIdle || s.Phase.Terminal() {
			return nil, s, nil
		}
		ns := s.clone()
		ns.Phase = PhaseDisconnected
		ns.InputEnabled = false
		ns.LastErr = cmd.Err
		return []Effect{{Type: EffError, Err: cmd.Err}}, ns, nil
	case CmdTransportError:
		ns := s.clone()
		ns.LastErr = cmd.Err
		return []Effect{{Type: EffError, Err: cmd.Err}}, ns, nil
	case CmdFail:
		if s.Phase == PhaseIdle || s.Phase.Terminal() {
			return nil, s, nil
		}
		ns := s.clone()
		ns.Phase = PhaseFailed
		ns.InputEnabled = false
		ns.LastErr = cmd.Err
		return []Effect{{Type: EffError, Err: cmd.Err}}, ns, nil
	case CmdReset:
		return nil, NewState(), nil
	default:
		return nil, s, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
	}
}

func applyStart(s State, cmd Command) ([]Effect, State, error) {
	if s.Phase != PhaseIdle {
		return nil, s, fmt.Errorf("start from %s: %w", s.Phase, ErrInvalidTransition)
	}
	ns := NewState()
	ns.Phase = PhaseMatching
	ns.Policy = cmd.Policy
	if ns.Policy == "" {
		ns.Policy = PolicyPvP
	}
	return nil, ns, nil
}

func applyMatchFound(s State, cmd Command) ([]Effect, State, error) {
	if s.Phase != PhaseMatching {
		return nil, s, nil
	}
	secret := feedback.Normalize(cmd.Secret)
	width := feedback.Len(secret)
	if width == 0 || cmd.Rows <= 0 {
		return nil, s, fmt.Errorf("%w: secret of %d letters, %d rows", ErrInvalidMatch, width, cmd.Rows)
	}
	if s.Policy == PolicyPvP && !cmd.Session.Networked() {
		return nil, s, fmt.Errorf("%w: networked round without a match id", ErrInvalidMatch)
	}

	ns := s.clone()
	ns.Phase = PhaseCoinFlipPending
	ns.Session = cmd.Session
	ns.Secret = secret
	ns.Width = width
	ns.Rows = cmd.Rows
	ns.ActiveRow = 0
	ns.ActiveSide = models.SideNone
	ns.Outcome = models.OutcomeNone
	ns.InputEnabled = false
	ns.Local = make([]Line, cmd.Rows)
	ns.Remote = make([]Line, cmd.Rows)
	return nil, ns, nil
}

func applyCoinFlip(s State, cmd Command) ([]Effect, State, error) {
	if s.Phase != PhaseCoinFlipPending {
		return nil, s, nil
	}
	starter := cmd.Side
	if s.Policy == PolicySolo {
		starter = models.SideLocal
	}
	if starter != models.SideLocal && starter != models.SideRemote {
		return nil, s, fmt.Errorf("coin flip with side %q: %w", starter, ErrInvalidTransition)
	}

	ns := s.clone()
	ns.Starter = starter
	ns.TurnSeq = 0
	ns.setTurn(starter, 0)
	return []Effect{{Type: EffTurnChanged, Side: starter, Row: 0}}, ns, nil
}

func applySubmitRow(s State, cmd Command) ([]Effect, State, error) {
	switch {
	case s.Phase.Terminal():
		return nil, s, ErrRoundOver
	case s.Phase != PhaseLocalTurn:
		return nil, s, ErrNotYourTurn
	case s.AwaitingServer:
		return nil, s, ErrAwaitingServer
	case s.Locked:
		return nil, s, ErrNotYourTurn
	}

	guess := feedback.Normalize(cmd.Guess)
	if feedback.Len(guess) != s.Width || !feedback.Complete(guess) {
		return nil, s, fmt.Errorf("%w: %q needs %d letters", ErrRowIncomplete, cmd.Guess, s.Width)
	}

	ns := s.clone()
	row := ns.ActiveRow
	line := Line{Guess: guess, Verdicts: feedback.Score(ns.Secret, guess), Done: true}
	ns.Local[row] = line

	effects := []Effect{{Type: EffRowScored, Side: models.SideLocal, Row: row, Line: line}}
	if ns.Policy == PolicyPvP {
		effects = append(effects, Effect{Type: EffSendRowDone, Side: models.SideLocal, Row: row, Line: line})
	}

	if line.Verdicts.Solved() {
		return append(effects, ns.end(models.OutcomeLocalWin)), ns, nil
	}

	if ns.Policy == PolicySolo {
		if row+1 >= ns.Rows {
			return append(effects, ns.end(models.OutcomeLoss)), ns, nil
		}
		ns.TurnSeq = ns.seq(models.SideLocal, row+1)
		ns.setTurn(models.SideLocal, row+1)
		return append(effects, Effect{Type: EffTurnChanged, Side: models.SideLocal, Row: row + 1}), ns, nil
	}

	// Both boards are exhausted once the second mover finishes the last row.
	if row == ns.Rows-1 && ns.Remote[row].Done {
		return append(effects, ns.end(models.OutcomeDraw)), ns, nil
	}

	ns.AwaitingServer = true
	ns.InputEnabled = false
	return append(effects, Effect{Type: EffInputLocked, Side: models.SideLocal, Row: row}), ns, nil
}

func applyOpponentRow(s State, cmd Command) ([]Effect, State, error) {
	if s.Policy != PolicyPvP || !(s.Phase.InRound() || s.Phase == PhaseCoinFlipPending) {
		return nil, s, nil
	}
	if cmd.Row < 0 || cmd.Row >= s.Rows || s.Remote[cmd.Row].Done {
		return nil, s, nil
	}
	ns := s.clone()
	ns.Remote[cmd.Row].Guess = feedback.Normalize(cmd.Guess)
	return nil, ns, nil
}

func applyTurn(s State, cmd Command) ([]Effect, State, error) {
	if s.Policy != PolicyPvP || !s.Phase.InRound() {
		return nil, s, nil
	}

	next := s.Session.SideOf(cmd.PlayerID)
	inRange := cmd.Row >= 0 && cmd.Row < s.Rows
	if inRange {
		if next == models.SideNone || s.seq(next, cmd.Row) <= s.TurnSeq {
			return nil, s, nil
		}
	} else if s.Locked {
		return nil, s, nil
	}

	ns := s.clone()
	var effects []Effect

	// The opponent's row is only known to be finished once the turn leaves them.
	if ns.ActiveSide == models.SideRemote {
		row := ns.ActiveRow
		if !ns.Remote[row].Done {
			line := ns.Remote[row]
			line.Verdicts = feedback.Score(ns.Secret, line.Guess)
			line.Done = true
			ns.Remote[row] = line
			effects = append(effects, Effect{Type: EffRowScored, Side: models.SideRemote, Row: row, Line: line})
		}
		if ns.Remote[row].Verdicts.Solved() {
			return append(effects, ns.end(models.OutcomeRemoteWin)), ns, nil
		}
	}

	if !inRange {
		if ns.TurnSeq >= ns.lastSeq() {
			return append(effects, ns.end(models.OutcomeDraw)), ns, nil
		}
		ns.Locked = true
		ns.InputEnabled = false
		return append(effects, Effect{Type: EffInputLocked, Side: ns.ActiveSide, Row: ns.ActiveRow}), ns, nil
	}

	ns.TurnSeq = ns.seq(next, cmd.Row)
	ns.setTurn(next, cmd.Row)
	return append(effects, Effect{Type: EffTurnChanged, Side: next, Row: cmd.Row}), ns, nil
}

func applyOpponentLeft(s State, cmd Command) ([]Effect, State, error) {
	switch s.Phase {
	case PhaseIdle, PhaseOpponentLeft, PhaseDisconnected, PhaseFailed:
		return nil, s, nil
	}
	if cmd.PlayerID != "" && s.Session.RemotePlayerID != "" && cmd.PlayerID != s.Session.RemotePlayerID {
		return nil, s, nil
	}
	ns := s.clone()
	if s.Phase == PhaseRoundEnded {
		// The result stands; the departure is only reported.
		if s.Departed {
			return nil, s, nil
		}
		ns.Departed = true
		ns.Reason = cmd.Reason
		return []Effect{{Type: EffOpponentLeft, Side: models.SideRemote, Reason: cmd.Reason}}, ns, nil
	}
	ns.Phase = PhaseOpponentLeft
	ns.InputEnabled = false
	ns.Departed = true
	ns.Reason = cmd.Reason
	return []Effect{{Type: EffOpponentLeft, Side: models.SideRemote, Reason: cmd.Reason}}, ns, nil
}

func (s *State) setTurn(side models.Side, row int) {
	s.ActiveSide = side
	s.ActiveRow = row
	s.AwaitingServer = false
	s.Locked = false
	if side == models.SideLocal {
		s.Phase = PhaseLocalTurn
		s.InputEnabled = true
	} else {
		s.Phase = PhaseRemoteTurn
		s.InputEnabled = false
	}
}

func (s *State) end(outcome models.Outcome) Effect {
	s.Phase = PhaseRoundEnded
	s.Outcome = outcome
	s.InputEnabled = false
	s.AwaitingServer = false
	return Effect{Type: EffRoundEnded, Row: s.ActiveRow, Outcome: outcome}
}
