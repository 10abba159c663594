package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Sender delivers envelopes to the server.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// Conn is one persistent bidirectional event connection, owned by a single
// player session. Receive is never closed; Done is closed once the connection
// ends and Err reports why.
type Conn interface {
	Sender
	Receive() <-chan Envelope
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Emit encodes payload and sends it as event.
func Emit(ctx context.Context, s Sender, event EventType, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := s.Send(ctx, env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
