package turn

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/wordduel/go/internal/feedback"
	"github.com/mcdev12/wordduel/go/internal/models"
)

var duel = models.MatchSession{MatchID: "m1", LocalPlayerID: "me", RemotePlayerID: "them", LanguageCode: "en"}

func step(t *testing.T, s State, cmd Command) ([]Effect, State) {
	t.Helper()
	effects, next, err := Apply(s, cmd)
	require.NoError(t, err, "command %s", cmd.Type)
	return effects, next
}

func containsEffect(effects []Effect, t EffectType) bool {
	for _, e := range effects {
		if e.Type == t {
			return true
		}
	}
	return false
}

func newRound(t *testing.T, starter models.Side, rows int) State {
	t.Helper()
	_, s := step(t, NewState(), Start(PolicyPvP))
	_, s = step(t, s, MatchFound(duel, "zebra", rows))
	require.Equal(t, PhaseCoinFlipPending, s.Phase)
	_, s = step(t, s, CoinFlip(starter))
	return s
}

func TestApply_ZebraScenario(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)
	require.Equal(t, PhaseLocalTurn, s.Phase)
	require.True(t, s.InputEnabled)

	effects, s := step(t, s, SubmitRow("zesty"))
	assert.Equal(t, feedback.Row{feedback.ExactMatch, feedback.ExactMatch, feedback.NoMatch, feedback.NoMatch, feedback.NoMatch}, s.Local[0].Verdicts)
	assert.True(t, containsEffect(effects, EffSendRowDone))
	assert.True(t, containsEffect(effects, EffInputLocked))
	// the turn is not flipped locally
	assert.Equal(t, PhaseLocalTurn, s.Phase)
	assert.True(t, s.AwaitingServer)
	assert.False(t, s.InputEnabled)

	_, s = step(t, s, Turn("them", 0))
	assert.Equal(t, PhaseRemoteTurn, s.Phase)
	assert.Equal(t, models.SideRemote, s.ActiveSide)

	_, s = step(t, s, OpponentRow(0, "crane"))
	effects, s = step(t, s, Turn("me", 1))
	assert.True(t, containsEffect(effects, EffRowScored))
	assert.True(t, s.Remote[0].Done)
	assert.Equal(t, PhaseLocalTurn, s.Phase)
	assert.Equal(t, 1, s.ActiveRow)

	effects, s = step(t, s, SubmitRow("zebra"))
	assert.True(t, s.Local[1].Verdicts.Solved())
	assert.True(t, containsEffect(effects, EffSendRowDone))
	assert.True(t, containsEffect(effects, EffRoundEnded))
	assert.Equal(t, PhaseRoundEnded, s.Phase)
	assert.Equal(t, models.OutcomeLocalWin, s.Outcome)
	assert.Equal(t, "me", Winner(s))

	// no further turn change is processed for the round
	effects, after := step(t, s, Turn("them", 1))
	assert.Empty(t, effects)
	assert.Equal(t, s, after)
}

func TestApply_RowCompletionIsIdempotent(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)
	_, s = step(t, s, SubmitRow("crane"))

	_, again, err := Apply(s, SubmitRow("crane"))
	assert.ErrorIs(t, err, ErrAwaitingServer)
	assert.Equal(t, s, again)

	_, s = step(t, s, Turn("them", 0))
	effects, dup := step(t, s, Turn("them", 0))
	assert.Empty(t, effects)
	assert.Equal(t, s, dup)
	assert.Equal(t, 0, dup.ActiveRow)
}

func TestApply_SubmitRejections(t *testing.T) {
	s := newRound(t, models.SideRemote, 5)
	_, _, err := Apply(s, SubmitRow("crane"))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	s = newRound(t, models.SideLocal, 5)
	_, _, err = Apply(s, SubmitRow("cra"))
	assert.ErrorIs(t, err, ErrRowIncomplete)
	_, _, err = Apply(s, SubmitRow("cr_ne"))
	assert.ErrorIs(t, err, ErrRowIncomplete)

	_, s = step(t, s, OpponentLeft("them", ""))
	_, _, err = Apply(s, SubmitRow("crane"))
	assert.ErrorIs(t, err, ErrRoundOver)
}

func TestApply_RemoteWinPreemptsTurnChange(t *testing.T) {
	s := newRound(t, models.SideRemote, 5)
	_, s = step(t, s, OpponentRow(0, "zeb"))
	_, s = step(t, s, OpponentRow(0, "ZEBRA"))

	effects, s := step(t, s, Turn("me", 0))
	assert.True(t, containsEffect(effects, EffRoundEnded))
	assert.False(t, containsEffect(effects, EffTurnChanged))
	assert.Equal(t, PhaseRoundEnded, s.Phase)
	assert.Equal(t, models.OutcomeRemoteWin, s.Outcome)
	assert.False(t, s.InputEnabled)
	assert.Equal(t, "them", Winner(s))
}

func TestApply_DrawWhenBothBoardsExhausted(t *testing.T) {
	t.Run("remote moves last", func(t *testing.T) {
		s := newRound(t, models.SideLocal, 2)
		_, s = step(t, s, SubmitRow("crane"))
		_, s = step(t, s, Turn("them", 0))
		_, s = step(t, s, OpponentRow(0, "moldy"))
		_, s = step(t, s, Turn("me", 1))
		_, s = step(t, s, SubmitRow("pious"))
		_, s = step(t, s, Turn("them", 1))
		_, s = step(t, s, OpponentRow(1, "crank"))

		effects, s := step(t, s, Turn("me", 2))
		assert.True(t, containsEffect(effects, EffRoundEnded))
		assert.Equal(t, models.OutcomeDraw, s.Outcome)
		assert.True(t, s.Remote[1].Done)
	})

	t.Run("local moves last", func(t *testing.T) {
		s := newRound(t, models.SideRemote, 1)
		_, s = step(t, s, OpponentRow(0, "crane"))
		_, s = step(t, s, Turn("me", 0))

		effects, s := step(t, s, SubmitRow("moldy"))
		assert.True(t, containsEffect(effects, EffSendRowDone))
		assert.Equal(t, PhaseRoundEnded, s.Phase)
		assert.Equal(t, models.OutcomeDraw, s.Outcome)
	})
}

func TestApply_OutOfRangeRowLocksInput(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)

	effects, s := step(t, s, Turn("them", 9))
	assert.True(t, containsEffect(effects, EffInputLocked))
	assert.True(t, s.Locked)
	assert.False(t, s.InputEnabled)
	assert.Equal(t, 0, s.ActiveRow)
	assert.Equal(t, PhaseLocalTurn, s.Phase)

	_, _, err := Apply(s, SubmitRow("crane"))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	// a valid turn event unlocks
	_, s = step(t, s, Turn("them", 0))
	assert.False(t, s.Locked)
	assert.Equal(t, PhaseRemoteTurn, s.Phase)
}

func TestApply_UnknownPlayerTurnIgnored(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)
	effects, next := step(t, s, Turn("stranger", 0))
	assert.Empty(t, effects)
	assert.Equal(t, s, next)
}

func TestApply_OpponentLeft(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)

	effects, same := step(t, s, OpponentLeft("someone-else", ""))
	assert.Empty(t, effects)
	assert.Equal(t, s, same)

	effects, s = step(t, s, OpponentLeft("them", "disconnected"))
	assert.True(t, containsEffect(effects, EffOpponentLeft))
	assert.Equal(t, PhaseOpponentLeft, s.Phase)
	assert.False(t, s.InputEnabled)
	assert.Equal(t, "disconnected", s.Reason)

	// absorbing
	effects, after := step(t, s, Turn("me", 1))
	assert.Empty(t, effects)
	assert.Equal(t, PhaseOpponentLeft, after.Phase)

	_, idle := step(t, NewState(), OpponentLeft("them", ""))
	assert.Equal(t, PhaseIdle, idle.Phase)
}

func TestApply_OpponentLeftAfterRoundEnded(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)
	_, s = step(t, s, SubmitRow("zebra"))
	require.Equal(t, PhaseRoundEnded, s.Phase)
	require.Equal(t, models.OutcomeLocalWin, s.Outcome)

	effects, s := step(t, s, OpponentLeft("them", "rage quit"))
	assert.True(t, containsEffect(effects, EffOpponentLeft))
	assert.Equal(t, PhaseRoundEnded, s.Phase)
	assert.Equal(t, models.OutcomeLocalWin, s.Outcome)
	assert.True(t, s.Departed)
	assert.Equal(t, "rage quit", s.Reason)

	effects, again := step(t, s, OpponentLeft("them", "rage quit"))
	assert.Empty(t, effects)
	assert.Equal(t, s, again)
}

func TestApply_TransportFailures(t *testing.T) {
	boom := errors.New("socket reset")
	s := newRound(t, models.SideRemote, 5)

	effects, s := step(t, s, TransportError(boom))
	assert.True(t, containsEffect(effects, EffError))
	assert.Equal(t, PhaseRemoteTurn, s.Phase)
	assert.ErrorIs(t, s.LastErr, boom)

	_, s = step(t, s, Disconnected(boom))
	assert.Equal(t, PhaseDisconnected, s.Phase)
	_, after := step(t, s, Turn("me", 0))
	assert.Equal(t, PhaseDisconnected, after.Phase)

	_, s = step(t, s, Reset())
	assert.Equal(t, PhaseIdle, s.Phase)
}

func TestApply_Fail(t *testing.T) {
	_, s := step(t, NewState(), Start(PolicyPvP))
	_, s = step(t, s, MatchFound(duel, "zebra", 5))
	_, s = step(t, s, Fail(errors.New("coin flip undetermined")))
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Error(t, s.LastErr)

	_, _, err := Apply(s, Start(PolicyPvP))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_MatchSetup(t *testing.T) {
	_, _, err := Apply(NewState(), Command{Type: "Bogus"})
	assert.ErrorIs(t, err, ErrUnsupportedCommand)

	_, s := step(t, NewState(), Start(PolicyPvP))
	_, _, err = Apply(s, MatchFound(models.MatchSession{}, "zebra", 5))
	assert.ErrorIs(t, err, ErrInvalidMatch)
	_, _, err = Apply(s, MatchFound(duel, "", 5))
	assert.ErrorIs(t, err, ErrInvalidMatch)

	// a late coin flip result is discarded
	s = newRound(t, models.SideLocal, 5)
	effects, again := step(t, s, CoinFlip(models.SideRemote))
	assert.Empty(t, effects)
	assert.Equal(t, s, again)
}

func TestApply_SoloRound(t *testing.T) {
	start := func(t *testing.T) State {
		_, s := step(t, NewState(), Start(PolicySolo))
		_, s = step(t, s, MatchFound(models.MatchSession{}, "Word", 6))
		_, s = step(t, s, CoinFlip(models.SideRemote))
		require.Equal(t, PhaseLocalTurn, s.Phase)
		return s
	}

	t.Run("advances locally and loses when the board runs out", func(t *testing.T) {
		s := start(t)
		for row := 0; row < 6; row++ {
			require.Equal(t, row, s.ActiveRow)
			var effects []Effect
			effects, s = step(t, s, SubmitRow("lamp"))
			assert.False(t, containsEffect(effects, EffSendRowDone))
		}
		assert.Equal(t, PhaseRoundEnded, s.Phase)
		assert.Equal(t, models.OutcomeLoss, s.Outcome)
	})

	t.Run("win", func(t *testing.T) {
		s := start(t)
		_, s = step(t, s, SubmitRow("wore"))
		_, s = step(t, s, SubmitRow("word"))
		assert.Equal(t, models.OutcomeLocalWin, s.Outcome)
		assert.Equal(t, 1, s.ActiveRow)
	})

	t.Run("server events are ignored", func(t *testing.T) {
		s := start(t)
		effects, next := step(t, s, Turn("", 3))
		assert.Empty(t, effects)
		assert.Equal(t, s, next)
	})
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := newRound(t, models.SideLocal, 5)
	before := s.clone()
	_, _, err := Apply(s, SubmitRow("zesty"))
	require.NoError(t, err)
	assert.Equal(t, before, s)
}

// Random event streams with duplicates, stale and out-of-order turn events
// must never break the turn invariants.
func TestApply_InvariantsUnderRandomEventStreams(t *testing.T) {
	words := []string{"zebra", "crane", "moldy", "zesty", "pious", "zeb", ""}
	players := []string{"me", "them", "them", "me", "stranger"}

	for seed := int64(0); seed < 300; seed++ {
		rng := rand.New(rand.NewSource(seed))
		rows := 1 + rng.Intn(5)
		starter := models.SideLocal
		if rng.Intn(2) == 0 {
			starter = models.SideRemote
		}
		s := newRound(t, starter, rows)

		var history []Command
		for i := 0; i < 60; i++ {
			var cmd Command
			switch n := rng.Intn(100); {
			case n < 35:
				cmd = Turn(players[rng.Intn(len(players))], rng.Intn(rows+2)-1)
			case n < 55:
				cmd = OpponentRow(rng.Intn(rows), words[rng.Intn(len(words))])
			case n < 75:
				cmd = SubmitRow(words[rng.Intn(len(words))])
			case n < 95 && len(history) > 0:
				cmd = history[rng.Intn(len(history))]
			case n < 97:
				cmd = TransportError(errors.New("flaky"))
			default:
				cmd = OpponentLeft("them", "")
			}
			history = append(history, cmd)

			_, next, err := Apply(s, cmd)
			if err != nil {
				require.Equal(t, CmdSubmitRow, cmd.Type, "seed %d: unexpected error %v", seed, err)
				continue
			}
			checkInvariants(t, seed, s, next)
			s = next
		}
	}
}

func checkInvariants(t *testing.T, seed int64, prev, s State) {
	t.Helper()
	if s.InputEnabled {
		require.Equal(t, PhaseLocalTurn, s.Phase, "seed %d: input enabled outside local turn", seed)
		require.False(t, s.AwaitingServer, "seed %d", seed)
		require.False(t, s.Locked, "seed %d", seed)
	}
	switch s.Phase {
	case PhaseLocalTurn:
		require.Equal(t, models.SideLocal, s.ActiveSide, "seed %d", seed)
	case PhaseRemoteTurn:
		require.Equal(t, models.SideRemote, s.ActiveSide, "seed %d", seed)
	case PhaseRoundEnded:
		require.NotEqual(t, models.OutcomeNone, s.Outcome, "seed %d", seed)
	}
	require.GreaterOrEqual(t, s.ActiveRow, prev.ActiveRow, "seed %d: active row went backwards", seed)
	require.GreaterOrEqual(t, s.TurnSeq, prev.TurnSeq, "seed %d", seed)
	require.True(t, s.ActiveRow >= 0 && s.ActiveRow < s.Rows, "seed %d: active row %d out of range", seed, s.ActiveRow)
	if prev.Phase.Terminal() {
		require.Equal(t, prev.Phase, s.Phase, "seed %d: left terminal phase %s", seed, prev.Phase)
		require.Equal(t, prev.Outcome, s.Outcome, "seed %d", seed)
	}
	for i := range s.Local {
		if prev.Local[i].Done {
			require.Equal(t, prev.Local[i], s.Local[i], "seed %d: submitted row %d changed", seed, i)
		}
		if prev.Remote[i].Done {
			require.Equal(t, prev.Remote[i], s.Remote[i], "seed %d: scored opponent row %d changed", seed, i)
		}
	}
}
