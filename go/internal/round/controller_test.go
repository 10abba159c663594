package round

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/wordduel/go/internal/coinflip"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/transport"
	"github.com/mcdev12/wordduel/go/internal/transport/transporttest"
	"github.com/mcdev12/wordduel/go/internal/turn"
	"github.com/mcdev12/wordduel/go/internal/typing"
	"github.com/mcdev12/wordduel/go/internal/words"
)

var duel = models.MatchSession{MatchID: "m1", LocalPlayerID: "p1", RemotePlayerID: "p2", LanguageCode: "en"}

func fixedWord(w string) words.Source {
	return words.SourceFunc(func(context.Context, words.Request) (string, error) { return w, nil })
}

type result struct {
	state turn.State
	err   error
}

func playMatch(ctx context.Context, c *Controller, session models.MatchSession) <-chan result {
	out := make(chan result, 1)
	go func() {
		s, err := c.PlayMatch(ctx, session)
		out <- result{s, err}
	}()
	return out
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(transporttest.DefaultWait):
		t.Fatal("round did not finish")
		return result{}
	}
}

func waitPhase(t *testing.T, c *Controller, phase turn.Phase) turn.State {
	t.Helper()
	var last turn.State
	require.Eventually(t, func() bool {
		s, err := c.Coordinator().State(context.Background())
		last = s
		return err == nil && s.Phase == phase
	}, transporttest.DefaultWait, 5*time.Millisecond, "phase never reached %s", phase)
	return last
}

// expectRowDone reads the final typing frame and the rowDone that follows it.
func expectRowDone(t *testing.T, srv *transporttest.Server, guess string) transport.RowDonePayload {
	t.Helper()
	final := transporttest.Expect[transport.TypingPayload](srv, transport.EventTyping)
	assert.Equal(t, guess, final.Guess)
	return transporttest.Expect[transport.RowDonePayload](srv, transport.EventRowDone)
}

func newController(t *testing.T, source words.Source, bus Bus, opts ...Option) *Controller {
	t.Helper()
	c := New(context.Background(), source, bus, opts...)
	t.Cleanup(c.Close)
	return c
}

func TestPlayMatch_LocalWin(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	done := playMatch(context.Background(), c, duel)

	req := transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	assert.Equal(t, "m1", req.MatchID)
	assert.Equal(t, "p1", req.PlayerID)
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: true})

	waitPhase(t, c, turn.PhaseLocalTurn)
	u, err := c.Submit(context.Background(), "ZEBRA")
	require.NoError(t, err)
	assert.True(t, u.Has(turn.EffRoundEnded))

	rowDone := expectRowDone(t, srv, "zebra")
	assert.Equal(t, transport.RowDonePayload{MatchID: "m1", PlayerID: "p1", Row: 0}, rowDone)

	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, turn.PhaseRoundEnded, res.state.Phase)
	assert.Equal(t, models.OutcomeLocalWin, res.state.Outcome)
}

func TestPlayMatch_OpponentRowScoredOnTurnChange(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: false})
	waitPhase(t, c, turn.PhaseRemoteTurn)

	// the final frame and the turn arrive back to back
	srv.Push(transport.EventTyping, transport.TypingPayload{MatchID: "m1", PlayerID: "p2", Row: 0, Guess: "zeb"})
	srv.Push(transport.EventTyping, transport.TypingPayload{MatchID: "m1", PlayerID: "p2", Row: 0, Guess: "zebra"})
	srv.Push(transport.EventTurn, transport.TurnPayload{MatchID: "m1", NextPlayerID: "p1", NextRow: 0})

	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, models.OutcomeRemoteWin, res.state.Outcome)
	assert.True(t, res.state.Remote[0].Done)
}

func TestPlayMatch_TurnsAlternate(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: true})
	waitPhase(t, c, turn.PhaseLocalTurn)

	_, err := c.Submit(context.Background(), "crane")
	require.NoError(t, err)
	expectRowDone(t, srv, "crane")

	_, err = c.Submit(context.Background(), "crane")
	require.ErrorIs(t, err, turn.ErrAwaitingServer)

	srv.Push(transport.EventTurn, transport.TurnPayload{MatchID: "m1", NextPlayerID: "p2", NextRow: 0})
	s := waitPhase(t, c, turn.PhaseRemoteTurn)
	assert.False(t, s.InputEnabled)

	srv.Push(transport.EventPlayerLeft, transport.PlayerLeftPayload{MatchID: "m1", PlayerID: "p2"})
	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, turn.PhaseOpponentLeft, res.state.Phase)
}

func TestPlayMatch_DisconnectEndsRound(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: true})
	waitPhase(t, c, turn.PhaseLocalTurn)

	srv.Close()
	res := await(t, done)
	require.Error(t, res.err)
	assert.Equal(t, turn.PhaseDisconnected, res.state.Phase)
}

func TestPlayMatch_UndeterminedCoinFlipFails(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	clock := clockwork.NewFakeClock()
	arbiter := coinflip.NewArbiter(r, coinflip.WithClock(clock), coinflip.WithTimeout(time.Second))
	c := newController(t, fixedWord("zebra"), r, WithArbiter(arbiter))
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	ctx, cancel := context.WithTimeout(context.Background(), transporttest.DefaultWait)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	res := await(t, done)
	require.ErrorIs(t, res.err, coinflip.ErrUndetermined)
	assert.Equal(t, turn.PhaseFailed, res.state.Phase)
}

func TestPlayMatch_OpponentLeftDuringCoinFlip(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	clock := clockwork.NewFakeClock()
	arbiter := coinflip.NewArbiter(r, coinflip.WithClock(clock))
	c := newController(t, fixedWord("zebra"), r, WithArbiter(arbiter))
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	waitPhase(t, c, turn.PhaseCoinFlipPending)
	srv.Push(transport.EventPlayerLeft, transport.PlayerLeftPayload{MatchID: "m1", PlayerID: "p2", Reason: "left queue"})

	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, turn.PhaseOpponentLeft, res.state.Phase)
	assert.Equal(t, "left queue", res.state.Reason)
	assert.False(t, res.state.InputEnabled)
	assert.Nil(t, res.state.LastErr)
}

func TestPlayMatch_TypingFloodDoesNotBlockCoinFlip(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	clock := clockwork.NewFakeClock()
	arbiter := coinflip.NewArbiter(r, coinflip.WithClock(clock))
	c := newController(t, fixedWord("zebra"), r, WithArbiter(arbiter))
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	for i := 0; i < 100; i++ {
		srv.Push(transport.EventTyping, transport.TypingPayload{MatchID: "m1", PlayerID: "p2", Row: 0, Guess: "zebr"})
	}
	srv.Push(transport.EventTyping, transport.TypingPayload{MatchID: "m1", PlayerID: "p2", Row: 0, Guess: "zebra"})
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: true})

	s := waitPhase(t, c, turn.PhaseLocalTurn)
	assert.True(t, s.InputEnabled)
	require.Eventually(t, func() bool {
		s, err := c.Coordinator().State(context.Background())
		return err == nil && s.Remote[0].Guess == "zebra"
	}, transporttest.DefaultWait, 5*time.Millisecond)

	srv.Push(transport.EventPlayerLeft, transport.PlayerLeftPayload{MatchID: "m1", PlayerID: "p2"})
	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, turn.PhaseOpponentLeft, res.state.Phase)
}

func TestPlayMatch_EventsBeforeCoinFlipApplyInOrder(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	waitPhase(t, c, turn.PhaseCoinFlipPending)
	srv.Push(transport.EventTyping, transport.TypingPayload{MatchID: "m1", PlayerID: "p2", Row: 0, Guess: "zebra"})
	srv.Push(transport.EventTurn, transport.TurnPayload{MatchID: "m1", NextPlayerID: "p1", NextRow: 0})
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: false})

	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, turn.PhaseRoundEnded, res.state.Phase)
	assert.Equal(t, models.OutcomeRemoteWin, res.state.Outcome)
	assert.True(t, res.state.Remote[0].Done)
}

func TestHold_CoalescesTypingPerRow(t *testing.T) {
	var held []turn.Command
	held = hold(held, turn.OpponentRow(0, "z"))
	held = hold(held, turn.OpponentRow(0, "ze"))
	held = hold(held, turn.Turn("p1", 0))
	held = hold(held, turn.OpponentRow(0, "zeb"))
	held = hold(held, turn.OpponentRow(1, "c"))

	require.Len(t, held, 4)
	assert.Equal(t, "ze", held[0].Guess)
	assert.Equal(t, turn.CmdTurn, held[1].Type)
	assert.Equal(t, "zeb", held[2].Guess)
	assert.Equal(t, 1, held[3].Row)
}

func TestPlayMatch_RequiresMatchID(t *testing.T) {
	r, _ := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	_, err := c.PlayMatch(context.Background(), models.MatchSession{LocalPlayerID: "p1"})
	require.ErrorIs(t, err, turn.ErrInvalidMatch)
}

func TestFetchWord_ExhaustedAfterThreeFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	source := words.SourceFunc(func(context.Context, words.Request) (string, error) {
		calls.Add(1)
		return "", errors.New("upstream down")
	})
	c := newController(t, source, nil, WithClock(clock))

	out := make(chan result, 1)
	go func() {
		s, err := c.PlaySolo(context.Background(), models.DifficultyMedium, "en")
		out <- result{s, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), transporttest.DefaultWait)
	defer cancel()
	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(DefaultConfig().RetryBackoff)
	}

	res := await(t, out)
	require.ErrorIs(t, res.err, ErrWordSourceExhausted)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, turn.PhaseFailed, res.state.Phase)
	assert.Equal(t, models.OutcomeNone, res.state.Outcome)
}

func TestFetchWord_RecoversBeforeThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	source := words.SourceFunc(func(_ context.Context, req words.Request) (string, error) {
		if calls.Add(1) < 3 {
			return "abc", nil
		}
		return "lake", nil
	})
	c := newController(t, source, nil, WithClock(clock))

	out := make(chan result, 1)
	go func() {
		s, err := c.PlaySolo(context.Background(), models.DifficultyEasy, "en")
		out <- result{s, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), transporttest.DefaultWait)
	defer cancel()
	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(DefaultConfig().RetryBackoff)
	}

	s := waitPhase(t, c, turn.PhaseLocalTurn)
	assert.Equal(t, 4, s.Width)

	_, err := c.Submit(context.Background(), "lake")
	require.NoError(t, err)
	res := await(t, out)
	require.NoError(t, res.err)
	assert.Equal(t, models.OutcomeLocalWin, res.state.Outcome)
}

func TestPlaySolo_DictionaryAndHints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireDictionary = true
	c := newController(t, fixedWord("crane"), nil, WithConfig(cfg))

	_, err := c.Hints(context.Background())
	require.ErrorIs(t, err, ErrNoRound)

	out := make(chan result, 1)
	go func() {
		s, err := c.PlaySolo(context.Background(), models.DifficultyMedium, "en")
		out <- result{s, err}
	}()
	waitPhase(t, c, turn.PhaseLocalTurn)

	_, err = c.Submit(context.Background(), "qqqqq")
	require.ErrorIs(t, err, ErrNotAWord)

	_, err = c.Submit(context.Background(), "zebra")
	require.NoError(t, err)

	hints, err := c.Hints(context.Background())
	require.NoError(t, err)
	require.Len(t, hints, 5)
	assert.Empty(t, hints[0].Letters())
	assert.Equal(t, []rune{'e'}, hints[1].Partial)
	assert.Equal(t, []rune{'r'}, hints[3].Partial)
	assert.Equal(t, []rune{'a'}, hints[4].Partial)

	_, err = c.Submit(context.Background(), "crane")
	require.NoError(t, err)
	res := await(t, out)
	require.NoError(t, res.err)
	assert.Equal(t, models.OutcomeLocalWin, res.state.Outcome)
}

func TestPlaySolo_ResetsBetweenRounds(t *testing.T) {
	c := newController(t, fixedWord("crane"), nil)
	for range 2 {
		out := make(chan result, 1)
		go func() {
			s, err := c.PlaySolo(context.Background(), models.DifficultyMedium, "en")
			out <- result{s, err}
		}()
		waitPhase(t, c, turn.PhaseLocalTurn)
		_, err := c.Submit(context.Background(), "crane")
		require.NoError(t, err)
		res := await(t, out)
		require.NoError(t, res.err)
		assert.Equal(t, models.OutcomeLocalWin, res.state.Outcome)
	}
}

func TestPlaySolo_ContextCancelled(t *testing.T) {
	c := newController(t, fixedWord("crane"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan result, 1)
	go func() {
		s, err := c.PlaySolo(ctx, models.DifficultyMedium, "en")
		out <- result{s, err}
	}()
	waitPhase(t, c, turn.PhaseLocalTurn)
	cancel()
	res := await(t, out)
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, turn.PhaseLocalTurn, res.state.Phase)
}

func TestPlayMatch_RelaysLocalTyping(t *testing.T) {
	r, srv := transporttest.NewRouter(t)
	c := newController(t, fixedWord("zebra"), r)
	done := playMatch(context.Background(), c, duel)

	transporttest.Expect[transport.CoinFlipPayload](srv, transport.EventCoinFlip)
	srv.Push(transport.EventCoinFlipResult, transport.CoinFlipResultPayload{MatchID: "m1", YouStart: true})
	waitPhase(t, c, turn.PhaseLocalTurn)

	c.Type(0, "ze")
	preview := transporttest.Expect[transport.TypingPayload](srv, transport.EventTyping)
	assert.Equal(t, transport.TypingPayload{MatchID: "m1", PlayerID: "p1", Row: 0, Guess: "ze"}, preview)

	seen := make(chan typing.Preview, 1)
	cancel := c.OnOpponentTyping(func(p typing.Preview) {
		select {
		case seen <- p:
		default:
		}
	})
	defer cancel()
	srv.Push(transport.EventTyping, transport.TypingPayload{MatchID: "m1", PlayerID: "p2", Row: 0, Guess: "cr"})
	select {
	case p := <-seen:
		assert.Equal(t, typing.Preview{Row: 0, Guess: "cr"}, p)
	case <-time.After(transporttest.DefaultWait):
		t.Fatal("no opponent preview")
	}

	srv.Push(transport.EventOpponentLeft, transport.PlayerLeftPayload{MatchID: "m1", Reason: "disconnect"})
	res := await(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, "disconnect", res.state.Reason)

	c.Type(0, "zeb")
	srv.ExpectNothing(50 * time.Millisecond)
}
