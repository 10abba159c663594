package results

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/wordduel/go/internal/feedback"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/turn"
)

var finished = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func endedState(outcome models.Outcome) turn.State {
	s := turn.NewState()
	s.Phase = turn.PhaseRoundEnded
	s.Policy = turn.PolicyPvP
	s.Session = models.MatchSession{MatchID: "m1", LocalPlayerID: "p1", RemotePlayerID: "p2"}
	s.Secret = "zebra"
	s.Outcome = outcome
	s.Local = []turn.Line{
		{Guess: "crane", Verdicts: feedback.Score("zebra", "crane"), Done: true},
		{Guess: "zebra", Verdicts: feedback.Score("zebra", "zebra"), Done: true},
		{},
	}
	s.Remote = make([]turn.Line, 3)
	return s
}

func TestFromState(t *testing.T) {
	r, err := FromState(endedState(models.OutcomeLocalWin), finished)
	require.NoError(t, err)
	assert.Equal(t, "m1", r.MatchID)
	assert.Equal(t, "p2", r.OpponentID)
	assert.Equal(t, 2, r.RowsPlayed)
	assert.Equal(t, models.OutcomeLocalWin, r.Outcome)
	assert.Contains(t, string(r.Board), `"guess":"crane"`)
	assert.NotEqual(t, [16]byte{}, [16]byte(r.ID))
}

func TestFromState_RoundInProgress(t *testing.T) {
	s := endedState(models.OutcomeNone)
	s.Phase = turn.PhaseLocalTurn
	_, err := FromState(s, finished)
	require.ErrorIs(t, err, ErrRoundNotOver)
}

func TestFromState_FailedBeforeBoard(t *testing.T) {
	s := turn.NewState()
	s.Phase = turn.PhaseFailed
	s.Session.LocalPlayerID = "p1"
	r, err := FromState(s, finished)
	require.NoError(t, err)
	assert.Nil(t, r.Board)
	assert.Zero(t, r.RowsPlayed)
}

type recorderFunc func(context.Context, Result) error

func (f recorderFunc) Record(ctx context.Context, r Result) error { return f(ctx, r) }

func TestRecorders_JoinsErrors(t *testing.T) {
	var calls int
	ok := recorderFunc(func(context.Context, Result) error { calls++; return nil })
	boom := errors.New("boom")
	bad := recorderFunc(func(context.Context, Result) error { calls++; return boom })

	err := Recorders{bad, ok, bad}.Record(context.Background(), Result{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.NoError(t, Recorders{ok}.Record(context.Background(), Result{}))
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "results.db"))
	if err != nil && strings.Contains(err.Error(), "cgo") {
		t.Skip("sqlite3 driver needs cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SQLite(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	win, err := FromState(endedState(models.OutcomeLocalWin), finished)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, win))
	require.NoError(t, store.Record(ctx, win), "recording twice is a no-op")

	draw, err := FromState(endedState(models.OutcomeDraw), finished.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, draw))

	failed := turn.NewState()
	failed.Phase = turn.PhaseFailed
	failed.Session.LocalPlayerID = "p1"
	abandoned, err := FromState(failed, finished.Add(2*time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, abandoned))

	stats, err := store.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Stats{Played: 3, Wins: 1, Draws: 1, Abandoned: 1}, stats)

	recent, err := store.Recent(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, abandoned.ID, recent[0].ID)
	assert.Nil(t, recent[0].Board)
	assert.Equal(t, draw.ID, recent[1].ID)
	assert.JSONEq(t, string(draw.Board), string(recent[1].Board))
	assert.True(t, recent[1].FinishedAt.Equal(draw.FinishedAt))

	none, err := store.Stats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestPublisher_JetStream(t *testing.T) {
	url := os.Getenv("WORDDUEL_TEST_NATS_URL")
	if url == "" {
		t.Skip("WORDDUEL_TEST_NATS_URL not set")
	}
	config := DefaultStreamConfig()
	config.URL = url
	config.StreamName = "DUEL_RESULTS_TEST"
	config.SubjectPrefix = "duel.results.test"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pub, err := NewPublisher(ctx, config)
	require.NoError(t, err)
	defer pub.Close()

	r, err := FromState(endedState(models.OutcomeLocalWin), finished)
	require.NoError(t, err)
	r.PlayerID = "player-" + r.ID.String()[:8]
	require.NoError(t, pub.Record(ctx, r))
	require.NoError(t, pub.Record(ctx, r))

	got, err := pub.Replay(ctx, r.PlayerID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
}
