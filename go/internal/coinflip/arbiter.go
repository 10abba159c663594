// Package coinflip decides which side of a match moves first.
//
// Networked matches ask the server, which answers both players with the same
// outcome. Offline matches flip a local coin.
package coinflip

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/transport"
)

// DefaultTimeout bounds how long Decide waits for the server.
const DefaultTimeout = 8 * time.Second

var (
	// ErrUndetermined means the server did not answer in time. Callers must
	// not pick a side themselves.
	ErrUndetermined = errors.New("coin flip undetermined")
	// ErrCancelled means the match subscriptions were torn down before an answer arrived.
	ErrCancelled = errors.New("coin flip cancelled")
)

// Clock is the subset of clockwork.Clock the arbiter needs.
type Clock interface {
	NewTimer(d time.Duration) clockwork.Timer
}

// Bus sends requests and subscribes to match-scoped replies. *transport.Router
// satisfies it.
type Bus interface {
	transport.Sender
	Subscribe(matchID string, events ...transport.EventType) *transport.Subscription
}

type call struct {
	done chan struct{}
	side models.Side
	err  error
}

// Arbiter resolves coin flips. A second Decide for a match that is already
// being decided joins the first request instead of sending another one.
type Arbiter struct {
	bus     Bus
	clock   Clock
	timeout time.Duration
	flip    func() (models.Side, error)

	mu       sync.Mutex
	inFlight map[string]*call
	decided  map[string]models.Side
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithClock replaces the real clock, for tests.
func WithClock(c Clock) Option { return func(a *Arbiter) { a.clock = c } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(a *Arbiter) { a.timeout = d } }

// NewArbiter creates an arbiter. bus may be nil for offline-only use.
func NewArbiter(bus Bus, opts ...Option) *Arbiter {
	a := &Arbiter{
		bus:      bus,
		clock:    clockwork.NewRealClock(),
		timeout:  DefaultTimeout,
		flip:     localFlip,
		inFlight: make(map[string]*call),
		decided:  make(map[string]models.Side),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Decide returns the side that moves first. With an empty matchID it flips a
// local coin and never touches the network.
func (a *Arbiter) Decide(ctx context.Context, matchID, playerID string) (models.Side, error) {
	if matchID == "" {
		return a.flip()
	}
	if a.bus == nil {
		return models.SideNone, fmt.Errorf("decide %s: no transport", matchID)
	}

	a.mu.Lock()
	if side, ok := a.decided[matchID]; ok {
		a.mu.Unlock()
		return side, nil
	}
	if c, ok := a.inFlight[matchID]; ok {
		a.mu.Unlock()
		log.Debug().Str("match_id", matchID).Msg("joining in-flight coin flip")
		select {
		case <-c.done:
			return c.side, c.err
		case <-ctx.Done():
			return models.SideNone, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	a.inFlight[matchID] = c
	a.mu.Unlock()

	c.side, c.err = a.exchange(ctx, matchID, playerID)

	a.mu.Lock()
	delete(a.inFlight, matchID)
	if c.err == nil {
		a.decided[matchID] = c.side
	}
	a.mu.Unlock()
	close(c.done)

	return c.side, c.err
}

// Result returns the cached outcome for matchID, if decided.
func (a *Arbiter) Result(matchID string) (models.CoinFlipResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	side, ok := a.decided[matchID]
	return models.CoinFlipResult{MatchID: matchID, WinningSide: side}, ok
}

// Forget drops the cached outcome for a finished match.
func (a *Arbiter) Forget(matchID string) {
	a.mu.Lock()
	delete(a.decided, matchID)
	a.mu.Unlock()
}

func (a *Arbiter) exchange(ctx context.Context, matchID, playerID string) (models.Side, error) {
	sub := a.bus.Subscribe(matchID, transport.EventCoinFlipResult)
	defer sub.Close()

	ticket := uuid.New().String()
	logger := log.With().Str("match_id", matchID).Str("ticket", ticket).Logger()

	req := transport.CoinFlipPayload{MatchID: matchID, PlayerID: playerID, Ticket: ticket}
	if err := transport.Emit(ctx, a.bus, transport.EventCoinFlip, req); err != nil {
		return models.SideNone, fmt.Errorf("request coin flip: %w", err)
	}
	logger.Debug().Msg("coin flip requested")

	timer := a.clock.NewTimer(a.timeout)
	defer timer.Stop()

	for {
		select {
		case env := <-sub.C():
			res, err := transport.DecodePayload[transport.CoinFlipResultPayload](env)
			if err != nil {
				logger.Warn().Err(err).Msg("ignoring malformed coin flip result")
				continue
			}
			if res.MatchID != "" && res.MatchID != matchID {
				continue
			}
			side := models.SideRemote
			if res.YouStart {
				side = models.SideLocal
			}
			logger.Info().Str("starter", string(side)).Msg("coin flip decided")
			return side, nil

		case <-timer.Chan():
			logger.Warn().Dur("timeout", a.timeout).Msg("coin flip timed out")
			return models.SideNone, fmt.Errorf("match %s: %w", matchID, ErrUndetermined)

		case <-sub.Done():
			return models.SideNone, fmt.Errorf("match %s: %w", matchID, ErrCancelled)

		case <-ctx.Done():
			return models.SideNone, ctx.Err()
		}
	}
}

func localFlip() (models.Side, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return models.SideNone, fmt.Errorf("local coin flip: %w", err)
	}
	if b[0]&1 == 0 {
		return models.SideLocal, nil
	}
	return models.SideRemote, nil
}
