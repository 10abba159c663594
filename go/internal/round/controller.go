// Package round runs one round end to end: it fetches the secret, settles who
// starts, and feeds local input and server events to the turn coordinator.
package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/advisor"
	"github.com/mcdev12/wordduel/go/internal/coinflip"
	"github.com/mcdev12/wordduel/go/internal/feedback"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/transport"
	"github.com/mcdev12/wordduel/go/internal/turn"
	"github.com/mcdev12/wordduel/go/internal/typing"
	"github.com/mcdev12/wordduel/go/internal/words"
)

var (
	// ErrWordSourceExhausted is returned after MaxWordErrors consecutive
	// failures to fetch a secret.
	ErrWordSourceExhausted = errors.New("word source exhausted")
	ErrNotAWord            = errors.New("not in word list")
	ErrNoRound             = errors.New("no round in progress")
	ErrMatchClosed         = errors.New("match subscriptions closed")
)

// Bus is the match connection. *transport.Router satisfies it.
type Bus interface {
	transport.Sender
	Subscribe(matchID string, events ...transport.EventType) *transport.Subscription
	SubscribeLossy(matchID string, events ...transport.EventType) *transport.Subscription
	CloseMatch(matchID string)
	Done() <-chan struct{}
	Err() error
}

// Config tunes a controller.
type Config struct {
	PvPRows       int
	SoloRows      int
	MaxWordErrors int
	RetryBackoff  time.Duration
	// RequireDictionary rejects guesses missing from the embedded lists.
	RequireDictionary bool
}

func DefaultConfig() Config {
	return Config{
		PvPRows:       5,
		SoloRows:      6,
		MaxWordErrors: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// Controller plays rounds. PlayMatch and PlaySolo block until the round ends;
// Submit, Type and Hints are called from the input side meanwhile.
type Controller struct {
	source  words.Source
	bus     Bus
	arbiter *coinflip.Arbiter
	coord   *turn.Coordinator
	clock   clockwork.Clock
	cfg     Config

	mu    sync.Mutex
	relay *typing.Relay
	lang  string
	ended chan struct{}
	once  *sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clockwork.Clock) Option { return func(rc *Controller) { rc.clock = c } }

func WithConfig(cfg Config) Option { return func(rc *Controller) { rc.cfg = cfg } }

func WithArbiter(a *coinflip.Arbiter) Option { return func(rc *Controller) { rc.arbiter = a } }

// New creates a controller. bus may be nil for solo-only use.
func New(ctx context.Context, source words.Source, bus Bus, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		bus:    bus,
		clock:  clockwork.NewRealClock(),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.arbiter == nil {
		var ab coinflip.Bus
		if bus != nil {
			ab = bus
		}
		c.arbiter = coinflip.NewArbiter(ab)
	}
	var sender transport.Sender
	if bus != nil {
		sender = bus
	}
	c.coord = turn.NewCoordinator(ctx, sender)
	return c
}

// Coordinator exposes the turn coordinator for observers.
func (c *Controller) Coordinator() *turn.Coordinator { return c.coord }

// Close stops the coordinator.
func (c *Controller) Close() { c.coord.Close() }

// Queue moves an idle coordinator to Matching while matchmaking runs.
func (c *Controller) Queue(ctx context.Context, policy turn.Policy) error {
	if err := c.reset(ctx); err != nil {
		return err
	}
	s, err := c.coord.State(ctx)
	if err != nil {
		return err
	}
	if s.Phase == turn.PhaseMatching {
		return nil
	}
	_, err = c.coord.Do(ctx, turn.Start(policy))
	return err
}

// PlayMatch plays a networked round for session and returns the final state.
func (c *Controller) PlayMatch(ctx context.Context, session models.MatchSession) (turn.State, error) {
	if c.bus == nil {
		return turn.State{}, fmt.Errorf("play match %s: no transport", session.MatchID)
	}
	if !session.Networked() {
		return turn.State{}, fmt.Errorf("play match: %w", turn.ErrInvalidMatch)
	}
	logger := log.With().Str("match_id", session.MatchID).Logger()

	if err := c.Queue(ctx, turn.PolicyPvP); err != nil {
		return turn.State{}, err
	}
	ended := c.beginRound(session.LanguageCode)

	// Opponent typing shares the ordered subscription with turn events: the
	// final frame of a row must be applied before the turn that scores it.
	events := c.bus.Subscribe(session.MatchID,
		transport.EventTyping, transport.EventTurn, transport.EventPlayerLeft, transport.EventOpponentLeft)
	relay := typing.NewRelay(ctx, c.bus, session)
	c.mu.Lock()
	c.relay = relay
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.relay = nil
		c.mu.Unlock()
		relay.Close()
		events.Close()
		c.bus.CloseMatch(session.MatchID)
		c.arbiter.Forget(session.MatchID)
	}()

	// Setup runs beside the event loop; a departure or a lost connection
	// ends the round even while the coin flip is pending.
	setupCtx, cancelSetup := context.WithCancel(ctx)
	ready := make(chan error, 1)
	go func(out chan<- error) { out <- c.setupMatch(setupCtx, session) }(ready)
	defer func() {
		cancelSetup()
		if ready != nil {
			<-ready
		}
	}()

	// Turn and typing events wait for the coin flip, in arrival order.
	var held []turn.Command
	for {
		select {
		case <-ended:
			return c.coord.State(ctx)

		case <-ctx.Done():
			return c.finalState(ctx.Err())

		case <-c.bus.Done():
			err := c.bus.Err()
			if err == nil {
				err = transport.ErrClosed
			}
			u, _ := c.coord.Do(context.WithoutCancel(ctx), turn.Disconnected(err))
			return u.State, fmt.Errorf("match %s: %w", session.MatchID, err)

		case <-events.Done():
			return c.finalState(fmt.Errorf("match %s: %w", session.MatchID, ErrMatchClosed))

		case err := <-ready:
			ready = nil
			if err != nil {
				if ctx.Err() != nil {
					return c.finalState(ctx.Err())
				}
				logger.Error().Err(err).Msg("round setup failed")
				return c.failMatch(ctx, err)
			}
			for _, cmd := range held {
				c.applyEvent(ctx, logger, cmd)
			}
			held = nil

		case env := <-events.C():
			cmd, ok := commandFor(session, env)
			if !ok {
				continue
			}
			if ready != nil && cmd.Type != turn.CmdOpponentLeft {
				held = hold(held, cmd)
				continue
			}
			c.applyEvent(ctx, logger, cmd)
		}
	}
}

// setupMatch fetches the secret and settles the starting side.
func (c *Controller) setupMatch(ctx context.Context, session models.MatchSession) error {
	secret, err := c.fetchWord(ctx, words.Request{Length: models.PvPWordLength, Lang: session.LanguageCode, MatchID: session.MatchID})
	if err != nil {
		return err
	}
	if _, err := c.coord.Do(ctx, turn.MatchFound(session, secret, c.cfg.PvPRows)); err != nil {
		return err
	}
	starter, err := c.arbiter.Decide(ctx, session.MatchID, session.LocalPlayerID)
	if err != nil {
		return err
	}
	if _, err := c.coord.Do(ctx, turn.CoinFlip(starter)); err != nil {
		return err
	}
	log.Info().Str("match_id", session.MatchID).Str("starter", string(starter)).Msg("round started")
	return nil
}

func (c *Controller) applyEvent(ctx context.Context, logger zerolog.Logger, cmd turn.Command) {
	u, err := c.coord.Do(ctx, cmd)
	if err != nil {
		logger.Warn().Err(err).Str("command", string(cmd.Type)).Msg("server event rejected")
		return
	}
	c.checkEnded(u.State)
}

// hold queues cmd, keeping only the latest of consecutive typing frames for
// the same row.
func hold(held []turn.Command, cmd turn.Command) []turn.Command {
	if n := len(held); n > 0 && cmd.Type == turn.CmdOpponentRow {
		if last := held[n-1]; last.Type == turn.CmdOpponentRow && last.Row == cmd.Row {
			held[n-1] = cmd
			return held
		}
	}
	return append(held, cmd)
}

// PlaySolo plays a round against the word alone.
func (c *Controller) PlaySolo(ctx context.Context, difficulty models.Difficulty, lang string) (turn.State, error) {
	if err := c.Queue(ctx, turn.PolicySolo); err != nil {
		return turn.State{}, err
	}
	ended := c.beginRound(lang)

	secret, err := c.fetchWord(ctx, words.Request{Length: difficulty.WordLength(), Lang: lang})
	if err != nil {
		return c.fail(ctx, err)
	}
	session := models.MatchSession{LocalPlayerID: "local", LanguageCode: lang}
	if _, err := c.coord.Do(ctx, turn.MatchFound(session, secret, c.cfg.SoloRows)); err != nil {
		return c.fail(ctx, err)
	}
	starter, err := c.arbiter.Decide(ctx, "", session.LocalPlayerID)
	if err != nil {
		return c.fail(ctx, err)
	}
	if _, err := c.coord.Do(ctx, turn.CoinFlip(starter)); err != nil {
		return c.fail(ctx, err)
	}

	select {
	case <-ended:
		return c.coord.State(ctx)
	case <-ctx.Done():
		return c.finalState(ctx.Err())
	}
}

// Submit plays the local row.
func (c *Controller) Submit(ctx context.Context, guess string) (turn.Update, error) {
	c.mu.Lock()
	lang, requireWord := c.lang, c.cfg.RequireDictionary
	c.mu.Unlock()
	if requireWord && !words.IsAllowed(lang, guess) {
		return turn.Update{}, fmt.Errorf("%w: %q", ErrNotAWord, guess)
	}

	u, err := c.coord.Do(ctx, turn.SubmitRow(guess))
	if err != nil {
		return u, err
	}
	c.checkEnded(u.State)
	return u, nil
}

// Type relays the row being typed to the opponent. It never blocks and is a
// no-op outside networked rounds.
func (c *Controller) Type(row int, partial string) {
	c.mu.Lock()
	relay := c.relay
	c.mu.Unlock()
	if relay != nil {
		relay.Send(row, partial)
	}
}

// OnOpponentTyping delivers the opponent's row previews during a networked
// round. It returns a no-op cancel outside one.
func (c *Controller) OnOpponentTyping(fn func(typing.Preview)) (cancel func()) {
	c.mu.Lock()
	relay := c.relay
	c.mu.Unlock()
	if relay == nil {
		return func() {}
	}
	return relay.Subscribe(fn)
}

// Hints returns per-column letter candidates from both boards.
func (c *Controller) Hints(ctx context.Context) ([]advisor.Hint, error) {
	s, err := c.coord.State(ctx)
	if err != nil {
		return nil, err
	}
	if s.Width == 0 {
		return nil, ErrNoRound
	}
	return advisor.Suggest(s.Width, entries(s.Entries(models.SideLocal)), entries(s.Entries(models.SideRemote))), nil
}

func entries(lines []turn.Line) []advisor.Entry {
	out := make([]advisor.Entry, len(lines))
	for i, l := range lines {
		out[i] = advisor.Entry{Guess: l.Guess, Verdicts: l.Verdicts}
	}
	return out
}

// fetchWord retries the source until it succeeds or fails MaxWordErrors
// times in a row.
func (c *Controller) fetchWord(ctx context.Context, req words.Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxWordErrors; attempt++ {
		w, err := c.source.Word(ctx, req)
		if err == nil && feedback.Len(w) != req.Length {
			err = fmt.Errorf("%w: %q is not %d letters", words.ErrInvalidWord, w, req.Length)
		}
		if err == nil {
			return feedback.Normalize(w), nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("match_id", req.MatchID).Msg("word fetch failed")
		if attempt == c.cfg.MaxWordErrors {
			break
		}
		select {
		case <-c.clock.After(c.cfg.RetryBackoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrWordSourceExhausted, c.cfg.MaxWordErrors, lastErr)
}

func (c *Controller) fail(ctx context.Context, err error) (turn.State, error) {
	u, doErr := c.coord.Do(context.WithoutCancel(ctx), turn.Fail(err))
	if doErr != nil {
		return u.State, errors.Join(err, doErr)
	}
	return u.State, err
}

// failMatch reports a lost connection as Disconnected rather than Failed.
func (c *Controller) failMatch(ctx context.Context, err error) (turn.State, error) {
	select {
	case <-c.bus.Done():
		u, _ := c.coord.Do(context.WithoutCancel(ctx), turn.Disconnected(err))
		return u.State, err
	default:
		return c.fail(ctx, err)
	}
}

func (c *Controller) finalState(cause error) (turn.State, error) {
	s, err := c.coord.State(context.Background())
	if err != nil {
		return s, errors.Join(cause, err)
	}
	return s, cause
}

func (c *Controller) reset(ctx context.Context) error {
	s, err := c.coord.State(ctx)
	if err != nil {
		return err
	}
	if s.Phase == turn.PhaseIdle || s.Phase == turn.PhaseMatching {
		return nil
	}
	_, err = c.coord.Do(ctx, turn.Reset())
	return err
}

func (c *Controller) beginRound(lang string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lang = lang
	c.ended = make(chan struct{})
	c.once = &sync.Once{}
	return c.ended
}

func (c *Controller) checkEnded(s turn.State) {
	if !s.Phase.Terminal() {
		return
	}
	c.mu.Lock()
	ended, once := c.ended, c.once
	c.mu.Unlock()
	if once != nil {
		once.Do(func() { close(ended) })
	}
}

func commandFor(session models.MatchSession, env transport.Envelope) (turn.Command, bool) {
	switch env.Event {
	case transport.EventTyping:
		p, err := transport.DecodePayload[transport.TypingPayload](env)
		if err != nil || p.PlayerID == session.LocalPlayerID {
			return turn.Command{}, false
		}
		return turn.OpponentRow(p.Row, p.Guess), true
	case transport.EventTurn:
		p, err := transport.DecodePayload[transport.TurnPayload](env)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed turn event")
			return turn.Command{}, false
		}
		return turn.Turn(p.NextPlayerID, p.NextRow), true
	case transport.EventPlayerLeft, transport.EventOpponentLeft:
		p, err := transport.DecodePayload[transport.PlayerLeftPayload](env)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed opponent left event")
			return turn.Command{}, false
		}
		return turn.OpponentLeft(p.PlayerID, p.Reason), true
	}
	return turn.Command{}, false
}
