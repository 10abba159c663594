package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultSubscriptionBuffer = 64

// Router reads one connection and fans envelopes out to typed subscriptions.
// It is the only reader of the connection.
type Router struct {
	conn Conn
	id   string

	mu   sync.Mutex
	subs map[*Subscription]struct{}

	done chan struct{}
	once sync.Once
	err  error
}

// Subscription receives the envelopes of a set of event types, optionally
// scoped to one match. Envelopes carrying a different match id are discarded.
type Subscription struct {
	router  *Router
	matchID string
	events  map[EventType]struct{}
	lossy   bool
	ch      chan Envelope
	done    chan struct{}
	once    sync.Once
}

// NewRouter wraps conn. Call Run to start delivery.
func NewRouter(conn Conn) *Router {
	return &Router{
		conn: conn,
		id:   uuid.New().String()[:8],
		subs: make(map[*Subscription]struct{}),
		done: make(chan struct{}),
	}
}

// Send passes through to the connection so the router can be used as a Sender.
func (r *Router) Send(ctx context.Context, env Envelope) error {
	return r.conn.Send(ctx, env)
}

// Subscribe registers an authoritative subscription. Delivery waits for the
// subscriber, so it must keep draining C until it calls Close.
func (r *Router) Subscribe(matchID string, events ...EventType) *Subscription {
	return r.subscribe(matchID, false, events)
}

// SubscribeLossy registers a best-effort subscription that drops envelopes
// when its buffer is full.
func (r *Router) SubscribeLossy(matchID string, events ...EventType) *Subscription {
	return r.subscribe(matchID, true, events)
}

func (r *Router) subscribe(matchID string, lossy bool, events []EventType) *Subscription {
	s := &Subscription{
		router:  r,
		matchID: matchID,
		events:  make(map[EventType]struct{}, len(events)),
		lossy:   lossy,
		ch:      make(chan Envelope, defaultSubscriptionBuffer),
		done:    make(chan struct{}),
	}
	for _, e := range events {
		s.events[e] = struct{}{}
	}

	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()

	log.Debug().
		Str("router", r.id).
		Str("match_id", matchID).
		Int("events", len(events)).
		Msg("subscription registered")
	return s
}

// C delivers matching envelopes.
func (s *Subscription) C() <-chan Envelope { return s.ch }

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// MatchID is the match the subscription is scoped to, "" when unscoped.
func (s *Subscription) MatchID() string { return s.matchID }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.router.mu.Lock()
		delete(s.router.subs, s)
		s.router.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) wants(env Envelope, envMatchID string) bool {
	if _, ok := s.events[env.Event]; !ok {
		return false
	}
	if s.matchID == "" || envMatchID == "" {
		return true
	}
	return s.matchID == envMatchID
}

// CloseMatch closes every subscription scoped to matchID.
func (r *Router) CloseMatch(matchID string) {
	if matchID == "" {
		return
	}
	r.mu.Lock()
	var scoped []*Subscription
	for s := range r.subs {
		if s.matchID == matchID {
			scoped = append(scoped, s)
		}
	}
	r.mu.Unlock()

	for _, s := range scoped {
		s.Close()
	}
	log.Debug().Str("router", r.id).Str("match_id", matchID).Int("closed", len(scoped)).Msg("match subscriptions closed")
}

// Done is closed when Run returns.
func (r *Router) Done() <-chan struct{} { return r.done }

// Err reports why Run stopped.
func (r *Router) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Run delivers envelopes until the connection ends or ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	defer r.stop()

	log.Info().Str("router", r.id).Msg("router started")
	for {
		select {
		case <-ctx.Done():
			r.err = ctx.Err()
			return r.err
		case <-r.conn.Done():
			r.err = r.conn.Err()
			log.Warn().Err(r.err).Str("router", r.id).Msg("connection ended")
			return r.err
		case env := <-r.conn.Receive():
			r.dispatch(ctx, env)
		}
	}
}

func (r *Router) stop() {
	r.once.Do(func() { close(r.done) })
	log.Info().Str("router", r.id).Msg("router stopped")
}

func (r *Router) dispatch(ctx context.Context, env Envelope) {
	envMatchID := env.MatchID()

	r.mu.Lock()
	var targets []*Subscription
	stale := false
	for s := range r.subs {
		if s.wants(env, envMatchID) {
			targets = append(targets, s)
			continue
		}
		if _, ok := s.events[env.Event]; ok {
			stale = true
		}
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		ev := log.Debug().Str("router", r.id).Str("event", string(env.Event)).Str("match_id", envMatchID)
		if stale {
			ev.Msg("discarding event for stale match")
		} else {
			ev.Msg("no subscriber for event")
		}
		return
	}

	for _, s := range targets {
		if s.lossy {
			select {
			case s.ch <- env:
			case <-s.done:
			default:
				log.Debug().Str("router", r.id).Str("event", string(env.Event)).Msg("lossy subscriber full, dropping event")
			}
			continue
		}
		select {
		case s.ch <- env:
		case <-s.done:
		case <-ctx.Done():
			return
		}
	}
}
