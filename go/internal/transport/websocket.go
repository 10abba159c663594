package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for the duel socket client.
type WebSocketConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	SendBuffer       int
	Header           http.Header
}

// DefaultWebSocketConfig returns default socket configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   4096,
		SendBuffer:       256,
	}
}

// WebSocketConn is a Conn over a gorilla websocket. One goroutine writes
// (writePump) and one reads (readPump).
type WebSocketConn struct {
	ID string

	conn   *websocket.Conn
	config WebSocketConfig
	send   chan []byte
	recv   chan Envelope

	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

// DialWebSocket connects to the duel server at url.
func DialWebSocket(ctx context.Context, url string, config WebSocketConfig) (*WebSocketConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, config.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWebSocketConn(conn, config), nil
}

func newWebSocketConn(conn *websocket.Conn, config WebSocketConfig) *WebSocketConn {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	c := &WebSocketConn{
		ID:     uuid.New().String(),
		conn:   conn,
		config: config,
		send:   make(chan []byte, config.SendBuffer),
		recv:   make(chan Envelope, config.SendBuffer),
		done:   make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("remote", conn.RemoteAddr().String()).
		Msg("websocket connection established")
	return c
}

func (c *WebSocketConn) Send(ctx context.Context, env Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Event, err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WebSocketConn) Receive() <-chan Envelope { return c.recv }

func (c *WebSocketConn) Done() <-chan struct{} { return c.done }

func (c *WebSocketConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a normal closure frame and tears the connection down.
func (c *WebSocketConn) Close() error {
	deadline := time.Now().Add(c.config.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	c.fail(ErrClosed)
	return nil
}

func (c *WebSocketConn) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
		log.Info().Err(err).Str("connection_id", c.ID).Msg("websocket connection closed")
	})
}

// writePump sends queued frames and keeps the connection alive with pings.
func (c *WebSocketConn) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				c.fail(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.fail(err)
				return
			}
		}
	}
}

// readPump decodes incoming frames. Malformed frames are logged and skipped.
func (c *WebSocketConn) readPump() {
	if c.config.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.config.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				err = ErrClosed
			}
			c.fail(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		env, err := DecodeEnvelope(message)
		if err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("dropping malformed frame")
			continue
		}

		select {
		case c.recv <- env:
		case <-c.done:
			return
		}
	}
}
