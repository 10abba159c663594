package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/advisor"
	"github.com/mcdev12/wordduel/go/internal/feedback"
	"github.com/mcdev12/wordduel/go/internal/matchmaking"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/results"
	"github.com/mcdev12/wordduel/go/internal/round"
	"github.com/mcdev12/wordduel/go/internal/turn"
)

const (
	ansiReset  = "\x1b[0m"
	ansiExact  = "\x1b[30;42m"
	ansiNear   = "\x1b[30;43m"
	ansiAbsent = "\x1b[97;100m"
)

var errQuit = errors.New("quit")

type roundResult struct {
	state turn.State
	err   error
}

// terminal plays rounds from line input. Each line is a guess or a command
// (":hint", ":quit").
type terminal struct {
	lines    <-chan string
	rounds   *round.Controller
	recorder results.Recorder
	clock    clockwork.Clock

	mu    sync.Mutex
	out   io.Writer
	color bool

	renderOnce sync.Once
}

func newTerminal(in io.Reader, out io.Writer, rounds *round.Controller) *terminal {
	t := &terminal{lines: readLines(in), rounds: rounds, out: out, clock: clockwork.NewRealClock()}
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		t.out = colorable.NewColorable(f)
		t.color = true
	}
	return t
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()
	return lines
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// render prints coordinator updates until ctx ends.
func (t *terminal) render(ctx context.Context) {
	t.renderOnce.Do(func() {
		updates := t.rounds.Coordinator().Updates()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.rounds.Coordinator().Done():
					return
				case u := <-updates:
					for _, e := range u.Effects {
						t.renderEffect(u.State, e)
					}
				}
			}
		}()
	})
}

func (t *terminal) renderEffect(s turn.State, e turn.Effect) {
	switch e.Type {
	case turn.EffRowScored:
		who := "you"
		if e.Side == models.SideRemote {
			who = "them"
		}
		t.printf("%-4s %d  %s\n", who, e.Row+1, t.paint(e.Line))
	case turn.EffTurnChanged:
		if e.Side == models.SideLocal {
			t.printf("your turn, row %d of %d\n", e.Row+1, s.Rows)
		} else {
			t.printf("opponent's turn, row %d of %d\n", e.Row+1, s.Rows)
		}
	case turn.EffInputLocked:
		t.printf("waiting for the server...\n")
	case turn.EffOpponentLeft:
		t.printf("opponent left %s\n", e.Reason)
	case turn.EffError:
		t.printf("error: %v\n", e.Err)
	}
}

func (t *terminal) paint(l turn.Line) string {
	letters := []rune(strings.ToUpper(l.Guess))
	var b strings.Builder
	for i, r := range letters {
		v := feedback.NoMatch
		if i < len(l.Verdicts) {
			v = l.Verdicts[i]
		}
		if !t.color {
			b.WriteString(plainCell(r, v))
			continue
		}
		switch v {
		case feedback.ExactMatch:
			b.WriteString(ansiExact)
		case feedback.PartialMatch:
			b.WriteString(ansiNear)
		default:
			b.WriteString(ansiAbsent)
		}
		b.WriteString(" " + string(r) + " " + ansiReset)
	}
	return b.String()
}

func plainCell(r rune, v feedback.Verdict) string {
	switch v {
	case feedback.ExactMatch:
		return "[" + string(r) + "]"
	case feedback.PartialMatch:
		return "(" + string(r) + ")"
	default:
		return " " + string(r) + " "
	}
}

func (t *terminal) playSolo(ctx context.Context, difficulty models.Difficulty, lang string) error {
	t.render(ctx)
	t.printf("solo round, %d letters\n", difficulty.WordLength())

	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	finished := make(chan roundResult, 1)
	go func() {
		s, err := t.rounds.PlaySolo(roundCtx, difficulty, lang)
		finished <- roundResult{s, err}
	}()

	err := t.interact(ctx, cancel, finished)
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// playDuels queues, plays a match and offers a rematch until the player stops.
func (t *terminal) playDuels(ctx context.Context, queue *matchmaking.Session, playerID, lang string) error {
	t.render(ctx)
	for {
		if err := t.rounds.Queue(ctx, turn.PolicyPvP); err != nil {
			return err
		}
		updates, err := queue.Join(ctx, playerID, lang)
		if err != nil {
			return err
		}
		t.printf("looking for an opponent...\n")

		match, err := t.awaitMatch(ctx, queue, updates)
		if err != nil {
			_ = queue.Leave(context.WithoutCancel(ctx))
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
		t.printf("matched against %s\n", match.RemotePlayerID)

		go drain(updates)
		roundCtx, cancel := context.WithCancel(ctx)
		finished := make(chan roundResult, 1)
		go func() {
			s, err := t.rounds.PlayMatch(roundCtx, match)
			finished <- roundResult{s, err}
		}()
		err = t.interact(ctx, cancel, finished)
		cancel()
		if leaveErr := queue.Leave(context.WithoutCancel(ctx)); leaveErr != nil {
			log.Warn().Err(leaveErr).Msg("leave after round failed")
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		t.printf("play again? [y/N] ")
		select {
		case line, ok := <-t.lines:
			if !ok || !strings.EqualFold(line, "y") {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func drain(updates <-chan matchmaking.Update) {
	for u := range updates {
		log.Debug().Str("kind", string(u.Kind)).Str("match_id", u.MatchID).Msg("queue update during round")
	}
}

func (t *terminal) awaitMatch(ctx context.Context, queue *matchmaking.Session, updates <-chan matchmaking.Update) (models.MatchSession, error) {
	for {
		select {
		case <-ctx.Done():
			return models.MatchSession{}, ctx.Err()
		case line, ok := <-t.lines:
			if !ok || line == ":quit" {
				return models.MatchSession{}, errQuit
			}
		case u, ok := <-updates:
			if !ok {
				return models.MatchSession{}, round.ErrNoRound
			}
			switch u.Kind {
			case matchmaking.UpdateWaiting:
				t.printf("waiting in queue...\n")
			case matchmaking.UpdateError:
				t.printf("server error: %s\n", u.Reason)
			case matchmaking.UpdateMatchFound:
				if m, ok := queue.Match(); ok {
					return m, nil
				}
			}
		}
	}
}

// interact feeds input to the round until it ends. cancel aborts the round.
func (t *terminal) interact(ctx context.Context, cancel context.CancelFunc, finished <-chan roundResult) error {
	lines := t.lines
	for {
		select {
		case r := <-finished:
			t.summarize(r.state)
			t.record(ctx, r.state)
			if r.err != nil && !errors.Is(r.err, context.Canceled) {
				return r.err
			}
			return nil

		case <-ctx.Done():
			cancel()
			<-finished
			return ctx.Err()

		case line, ok := <-lines:
			if !ok || line == ":quit" {
				cancel()
				<-finished
				return errQuit
			}
			t.handle(ctx, line)
		}
	}
}

func (t *terminal) handle(ctx context.Context, line string) {
	switch line {
	case "":
		return
	case ":hint":
		hints, err := t.rounds.Hints(ctx)
		if err != nil {
			t.printf("%v\n", err)
			return
		}
		t.printf("hint: %s\n", strings.ToUpper(advisor.Placeholder(hints)))
		return
	}

	_, err := t.rounds.Submit(ctx, line)
	switch {
	case err == nil:
	case errors.Is(err, turn.ErrNotYourTurn):
		t.printf("not your turn\n")
	case errors.Is(err, turn.ErrAwaitingServer):
		t.printf("waiting for the server\n")
	case errors.Is(err, turn.ErrRowIncomplete):
		t.printf("wrong length\n")
	case errors.Is(err, round.ErrNotAWord):
		t.printf("not in the word list\n")
	default:
		t.printf("%v\n", err)
	}
}

func (t *terminal) record(ctx context.Context, s turn.State) {
	if t.recorder == nil {
		return
	}
	r, err := results.FromState(s, t.clock.Now())
	if err != nil {
		log.Debug().Err(err).Msg("round not recorded")
		return
	}
	if err := t.recorder.Record(context.WithoutCancel(ctx), r); err != nil {
		log.Error().Err(err).Str("match_id", r.MatchID).Msg("failed to record result")
	}
}

func (t *terminal) summarize(s turn.State) {
	switch s.Phase {
	case turn.PhaseRoundEnded:
		switch s.Outcome {
		case models.OutcomeLocalWin:
			t.printf("you win!\n")
		case models.OutcomeRemoteWin:
			t.printf("your opponent wins\n")
		case models.OutcomeDraw:
			t.printf("draw\n")
		case models.OutcomeLoss:
			t.printf("out of rows\n")
		}
	case turn.PhaseOpponentLeft:
		t.printf("round over: opponent left\n")
	case turn.PhaseDisconnected:
		t.printf("round over: disconnected\n")
	case turn.PhaseFailed:
		t.printf("round failed: %v\n", s.LastErr)
	}
	if s.Secret != "" && s.Phase.Terminal() {
		t.printf("the word was %s\n", strings.ToUpper(s.Secret))
	}
}
