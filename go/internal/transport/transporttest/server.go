// Package transporttest provides a scripted server for exercising clients
// over an in-memory transport.Pipe.
package transporttest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/wordduel/go/internal/transport"
)

// DefaultWait bounds every expectation so tests never hang.
const DefaultWait = 2 * time.Second

// Server is the far end of a pipe. Tests read what the client sent and push
// server events back.
type Server struct {
	t    testing.TB
	conn transport.Conn
}

// NewPipe returns the client end and a scripted server on the other end.
func NewPipe(t testing.TB) (transport.Conn, *Server) {
	t.Helper()
	client, server := transport.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	return client, &Server{t: t, conn: server}
}

// Push sends an event to the client.
func (s *Server) Push(event transport.EventType, payload any) {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultWait)
	defer cancel()
	require.NoError(s.t, transport.Emit(ctx, s.conn, event, payload))
}

// Next returns the next envelope the client sent.
func (s *Server) Next() transport.Envelope {
	s.t.Helper()
	select {
	case env := <-s.conn.Receive():
		return env
	case <-time.After(DefaultWait):
		s.t.Fatalf("timed out waiting for client event")
		return transport.Envelope{}
	}
}

// Expect reads the next client envelope, asserts its event type and decodes it.
func Expect[T any](s *Server, event transport.EventType) T {
	s.t.Helper()
	env := s.Next()
	require.Equal(s.t, event, env.Event, "unexpected client event")
	payload, err := transport.DecodePayload[T](env)
	require.NoError(s.t, err)
	return payload
}

// ExpectNothing asserts the client sends nothing within d.
func (s *Server) ExpectNothing(d time.Duration) {
	s.t.Helper()
	select {
	case env := <-s.conn.Receive():
		s.t.Fatalf("expected no client event within %v, got %s %s", d, env.Event, string(env.Data))
	case <-time.After(d):
	}
}

// Close hangs up the connection.
func (s *Server) Close() {
	_ = s.conn.Close()
}

// NewRouter starts a router over the client end of a new pipe. The router
// stops when the test ends.
func NewRouter(t testing.TB) (*transport.Router, *Server) {
	t.Helper()
	client, server := NewPipe(t)
	r := transport.NewRouter(client)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(cancel)
	return r, server
}
