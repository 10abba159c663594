// Package matchmaking joins and leaves the duel queue.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/transport"
)

var ErrMissingPlayer = errors.New("player id is required")

// Bus is what the session needs from the connection. *transport.Router
// satisfies it.
type Bus interface {
	transport.Sender
	Subscribe(matchID string, events ...transport.EventType) *transport.Subscription
	CloseMatch(matchID string)
}

type UpdateKind string

const (
	UpdateWaiting      UpdateKind = "WAITING"
	UpdateMatchFound   UpdateKind = "MATCH_FOUND"
	UpdateOpponentLeft UpdateKind = "OPPONENT_LEFT"
	UpdateError        UpdateKind = "ERROR"
)

// Update is one queue notification.
type Update struct {
	Kind       UpdateKind
	Waiting    bool
	MatchID    string
	OpponentID string
	Reason     string
}

// Session tracks one player's presence in the queue and the match it yields.
// Join and Leave are idempotent and safe to call in any order.
type Session struct {
	bus Bus

	mu       sync.Mutex
	active   bool
	issued   bool
	playerID string
	lang     string
	match    models.MatchSession
	updates  chan Update
	sub      *transport.Subscription
	cancel   context.CancelFunc
	stopped  chan struct{}
}

func NewSession(bus Bus) *Session {
	return &Session{bus: bus}
}

// Join enters the queue and returns the update stream. While a join is active
// further calls return the same stream. The stream closes on Leave and must be
// drained until then.
func (s *Session) Join(ctx context.Context, playerID, lang string) (<-chan Update, error) {
	if playerID == "" {
		return nil, ErrMissingPlayer
	}

	s.mu.Lock()
	if s.active {
		updates := s.updates
		s.mu.Unlock()
		return updates, nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.active = true
	s.issued = true
	s.playerID = playerID
	s.lang = lang
	s.match = models.MatchSession{}
	s.updates = make(chan Update, 16)
	s.cancel = cancel
	s.stopped = make(chan struct{})
	s.sub = s.bus.Subscribe("",
		transport.EventQueueWaiting,
		transport.EventMatchFound,
		transport.EventOpponentLeft,
		transport.EventPlayerLeft,
		transport.EventError,
	)
	updates, sub, stopped := s.updates, s.sub, s.stopped
	s.mu.Unlock()

	go s.run(runCtx, sub, updates, stopped)

	// Leave aborts a join that is still being sent.
	sendCtx, stop := context.WithCancel(ctx)
	defer stop()
	unhook := context.AfterFunc(runCtx, stop)
	defer unhook()

	err := transport.Emit(sendCtx, s.bus, transport.EventQueueJoin, transport.QueueJoinPayload{PlayerID: playerID, Lang: lang})
	if err != nil {
		s.teardown(context.Background(), false)
		return nil, fmt.Errorf("join queue: %w", err)
	}
	log.Info().Str("player_id", playerID).Str("lang", lang).Msg("joined matchmaking queue")
	return updates, nil
}

// Leave exits the queue or the current match. It cancels a pending join,
// tells the server when a join was issued, and closes the update stream.
func (s *Session) Leave(ctx context.Context) error {
	return s.teardown(ctx, true)
}

// Match returns the match found by the active join, if any.
func (s *Session) Match() (models.MatchSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match, s.match.MatchID != ""
}

func (s *Session) teardown(ctx context.Context, notify bool) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	issued := s.issued
	s.issued = false
	cancel, sub, stopped := s.cancel, s.sub, s.stopped
	matchID := s.match.MatchID
	s.mu.Unlock()

	cancel()
	<-stopped
	sub.Close()
	if matchID != "" {
		s.bus.CloseMatch(matchID)
	}

	if !notify || !issued {
		return nil
	}
	if err := transport.Emit(ctx, s.bus, transport.EventQueueLeave, transport.QueueLeavePayload{}); err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("failed to send queue leave")
		return fmt.Errorf("leave queue: %w", err)
	}
	log.Info().Str("match_id", matchID).Msg("left matchmaking")
	return nil
}

func (s *Session) run(ctx context.Context, sub *transport.Subscription, updates chan Update, stopped chan struct{}) {
	defer close(stopped)
	defer close(updates)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case env := <-sub.C():
			u, ok := s.handle(ctx, env)
			if !ok {
				continue
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, env transport.Envelope) (Update, bool) {
	switch env.Event {
	case transport.EventQueueWaiting:
		p, err := transport.DecodePayload[transport.QueueWaitingPayload](env)
		if err != nil {
			return decodeError(env, err)
		}
		return Update{Kind: UpdateWaiting, Waiting: p.Waiting}, true

	case transport.EventMatchFound:
		p, err := transport.DecodePayload[transport.MatchFoundPayload](env)
		if err != nil {
			return decodeError(env, err)
		}
		return s.matched(ctx, p)

	case transport.EventOpponentLeft, transport.EventPlayerLeft:
		p, err := transport.DecodePayload[transport.PlayerLeftPayload](env)
		if err != nil {
			return decodeError(env, err)
		}
		match, _ := s.Match()
		if p.MatchID != "" && match.MatchID != "" && p.MatchID != match.MatchID {
			return Update{}, false
		}
		if p.PlayerID != "" && p.PlayerID == match.LocalPlayerID {
			return Update{}, false
		}
		return Update{Kind: UpdateOpponentLeft, MatchID: match.MatchID, OpponentID: p.PlayerID, Reason: p.Reason}, true

	case transport.EventError:
		p, err := transport.DecodePayload[transport.ErrorPayload](env)
		if err != nil {
			return decodeError(env, err)
		}
		return Update{Kind: UpdateError, MatchID: p.MatchID, Reason: p.Message}, true
	}
	return Update{}, false
}

func (s *Session) matched(ctx context.Context, p transport.MatchFoundPayload) (Update, bool) {
	s.mu.Lock()
	if s.match.MatchID == p.MatchID {
		s.mu.Unlock()
		return Update{}, false
	}
	local := p.You
	if local == "" {
		local = s.playerID
	}
	s.match = models.MatchSession{
		MatchID:        p.MatchID,
		LocalPlayerID:  local,
		RemotePlayerID: p.OpponentID,
		LanguageCode:   s.lang,
	}
	s.mu.Unlock()

	logger := log.With().Str("match_id", p.MatchID).Str("opponent_id", p.OpponentID).Logger()
	logger.Info().Msg("match found")

	if err := transport.Emit(ctx, s.bus, transport.EventJoin, transport.JoinPayload{MatchID: p.MatchID, PlayerID: local}); err != nil {
		logger.Error().Err(err).Msg("failed to join match")
		return Update{Kind: UpdateError, MatchID: p.MatchID, Reason: err.Error()}, true
	}
	return Update{Kind: UpdateMatchFound, MatchID: p.MatchID, OpponentID: p.OpponentID}, true
}

func decodeError(env transport.Envelope, err error) (Update, bool) {
	log.Warn().Err(err).Str("event", string(env.Event)).Msg("dropping malformed queue event")
	return Update{}, false
}
