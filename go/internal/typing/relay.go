// Package typing relays in-progress guesses between the two players for a
// live preview. Delivery is best effort and never affects turn state.
package typing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/transport"
)

const sendTimeout = 2 * time.Second

// Bus is what the relay needs from the connection. *transport.Router
// satisfies it.
type Bus interface {
	transport.Sender
	SubscribeLossy(matchID string, events ...transport.EventType) *transport.Subscription
}

// Preview is one remote typing update.
type Preview struct {
	Row   int
	Guess string
}

// Relay sends local keystrokes and receives the opponent's for one match.
type Relay struct {
	bus     Bus
	session models.MatchSession

	mailbox chan transport.TypingPayload

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay starts a relay for session. Close stops it.
func NewRelay(parent context.Context, bus Bus, session models.MatchSession) *Relay {
	ctx, cancel := context.WithCancel(parent)
	r := &Relay{
		bus:     bus,
		session: session,
		mailbox: make(chan transport.TypingPayload, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	r.wg.Add(1)
	go r.pump()
	return r
}

// Send queues the latest partial guess for a row. It never blocks; an unsent
// older value is replaced.
func (r *Relay) Send(row int, partial string) {
	p := transport.TypingPayload{
		MatchID:  r.session.MatchID,
		PlayerID: r.session.LocalPlayerID,
		Row:      row,
		Guess:    partial,
	}
	for {
		select {
		case r.mailbox <- p:
			return
		default:
		}
		select {
		case <-r.mailbox:
		default:
		}
	}
}

// Subscribe calls fn for each opponent typing update of this match. Updates
// from other matches and echoes of our own typing are dropped. The returned
// func stops delivery.
func (r *Relay) Subscribe(fn func(Preview)) (cancel func()) {
	sub := r.bus.SubscribeLossy(r.session.MatchID, transport.EventTyping)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer sub.Close()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-sub.Done():
				return
			case env := <-sub.C():
				p, err := transport.DecodePayload[transport.TypingPayload](env)
				if err != nil {
					log.Debug().Err(err).Msg("dropping malformed typing event")
					continue
				}
				if p.MatchID != r.session.MatchID || p.PlayerID == r.session.LocalPlayerID {
					continue
				}
				fn(Preview{Row: p.Row, Guess: p.Guess})
			}
		}
	}()
	return sub.Close
}

// Close stops the pump and every subscription.
func (r *Relay) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Relay) pump() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case p := <-r.mailbox:
			ctx, cancel := context.WithTimeout(r.ctx, sendTimeout)
			err := transport.Emit(ctx, r.bus, transport.EventTyping, p)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("match_id", p.MatchID).Msg("typing update not sent")
			}
		}
	}
}
