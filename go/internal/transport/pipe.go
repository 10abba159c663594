package transport

import (
	"context"
	"sync"
)

const pipeBuffer = 256

// Pipe returns two connected in-memory ends. What one end sends, the other
// receives, in order. Closing either end closes both. Used for offline play
// and for driving the engine against a scripted server in tests.
func Pipe() (Conn, Conn) {
	shared := &pipeState{done: make(chan struct{})}
	a := &pipeEnd{state: shared, in: make(chan Envelope, pipeBuffer)}
	b := &pipeEnd{state: shared, in: make(chan Envelope, pipeBuffer)}
	a.peer, b.peer = b, a
	return a, b
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	state *pipeState
	in    chan Envelope
	peer  *pipeEnd
}

func (p *pipeEnd) Send(ctx context.Context, env Envelope) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.in <- env:
		return nil
	case <-p.state.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive() <-chan Envelope { return p.in }

func (p *pipeEnd) Done() <-chan struct{} { return p.state.done }

func (p *pipeEnd) Err() error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
		return nil
	}
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}
