package turn

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/transport"
)

var ErrCoordinatorClosed = errors.New("turn coordinator closed")

const sendTimeout = 5 * time.Second

// Update is the result of applying one command.
type Update struct {
	State   State
	Effects []Effect
	Err     error
}

// Has reports whether the update carries an effect of type t.
func (u Update) Has(t EffectType) bool {
	for _, e := range u.Effects {
		if e.Type == t {
			return true
		}
	}
	return false
}

type msg interface{ isCoordinatorMsg() }

type applyMsg struct {
	cmd   Command
	reply chan Update
}

func (applyMsg) isCoordinatorMsg() {}

type getState struct {
	reply chan State
}

func (getState) isCoordinatorMsg() {}

// Coordinator owns a State and applies commands to it one at a time. Local
// input and server events go through the same inbox, so a submitted row and an
// incoming turn change are never applied concurrently.
type Coordinator struct {
	sender  transport.Sender
	inbox   chan msg
	updates chan Update
	state   State

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator starts a coordinator. sender may be nil for solo rounds.
func NewCoordinator(parent context.Context, sender transport.Sender) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		sender:  sender,
		inbox:   make(chan msg, 64),
		updates: make(chan Update, 64),
		state:   NewState(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.loop()
	return c
}

// Do applies cmd and returns the resulting update. The returned error is the
// command's rejection, if any.
func (c *Coordinator) Do(ctx context.Context, cmd Command) (Update, error) {
	m := applyMsg{cmd: cmd, reply: make(chan Update, 1)}
	select {
	case c.inbox <- m:
	case <-c.done:
		return Update{}, ErrCoordinatorClosed
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
	select {
	case u := <-m.reply:
		return u, u.Err
	case <-c.done:
		return Update{}, ErrCoordinatorClosed
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}

// State returns a snapshot of the current state.
func (c *Coordinator) State(ctx context.Context) (State, error) {
	m := getState{reply: make(chan State, 1)}
	select {
	case c.inbox <- m:
	case <-c.done:
		return State{}, ErrCoordinatorClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-m.reply:
		return s, nil
	case <-c.done:
		return State{}, ErrCoordinatorClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Updates streams every accepted command's update. Observers that fall behind
// miss updates; Do's return value is the lossless path.
func (c *Coordinator) Updates() <-chan Update { return c.updates }

// Done is closed when the coordinator stops.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Close stops the coordinator and closes Updates.
func (c *Coordinator) Close() {
	c.cancel()
	<-c.done
}

func (c *Coordinator) loop() {
	defer func() {
		close(c.updates)
		close(c.done)
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case m := <-c.inbox:
			switch m := m.(type) {
			case applyMsg:
				m.reply <- c.apply(m.cmd)
			case getState:
				m.reply <- c.state.clone()
			}
		}
	}
}

func (c *Coordinator) apply(cmd Command) Update {
	effects, next, err := Apply(c.state, cmd)
	if err != nil {
		log.Debug().Err(err).Str("command", string(cmd.Type)).Str("phase", string(c.state.Phase)).Msg("command rejected")
		return Update{State: c.state.clone(), Err: err}
	}
	if next.Phase != c.state.Phase {
		log.Info().
			Str("match_id", next.Session.MatchID).
			Str("from", string(c.state.Phase)).
			Str("to", string(next.Phase)).
			Str("command", string(cmd.Type)).
			Msg("turn phase changed")
	}
	c.state = next

	for _, e := range effects {
		if e.Type != EffSendRowDone {
			continue
		}
		if err := c.sendRowDone(e.Row, e.Line.Guess); err != nil {
			log.Error().Err(err).Str("match_id", c.state.Session.MatchID).Int("row", e.Row).Msg("failed to send rowDone")
			more, recorded, _ := Apply(c.state, TransportError(err))
			c.state = recorded
			effects = append(effects, more...)
		}
	}

	u := Update{State: c.state.clone(), Effects: effects}
	select {
	case c.updates <- u:
	default:
		log.Warn().Str("match_id", c.state.Session.MatchID).Msg("update observer is behind, dropping update")
	}
	return u
}

// sendRowDone publishes the finished row as a last typing frame, then
// rowDone. The opponent scores the row from that frame when the turn passes.
func (c *Coordinator) sendRowDone(row int, guess string) error {
	if c.sender == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	session := c.state.Session
	if err := transport.Emit(ctx, c.sender, transport.EventTyping, transport.TypingPayload{
		MatchID:  session.MatchID,
		PlayerID: session.LocalPlayerID,
		Row:      row,
		Guess:    guess,
	}); err != nil {
		return err
	}
	return transport.Emit(ctx, c.sender, transport.EventRowDone, transport.RowDonePayload{
		MatchID:  session.MatchID,
		PlayerID: session.LocalPlayerID,
		Row:      row,
	})
}

// Winner returns the player id of the winner of an ended round, or "".
func Winner(s State) string {
	switch s.Outcome {
	case models.OutcomeLocalWin:
		return s.Session.LocalPlayerID
	case models.OutcomeRemoteWin:
		return s.Session.RemotePlayerID
	}
	return ""
}
