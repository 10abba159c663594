package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS backed connection.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	PlayerID      string
	MaxReconnects int
	ReconnectWait time.Duration
	Buffer        int
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "duel",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		Buffer:        256,
	}
}

// OutboundSubject is where a player's client publishes its events.
func (c NATSConfig) OutboundSubject() string {
	return fmt.Sprintf("%s.c2s.%s", c.SubjectPrefix, c.PlayerID)
}

// InboundSubject is where the server publishes events for a player.
func (c NATSConfig) InboundSubject() string {
	return fmt.Sprintf("%s.s2c.%s", c.SubjectPrefix, c.PlayerID)
}

// NATSConn is a Conn over a pair of NATS subjects scoped to one player.
type NATSConn struct {
	ID string

	nc     *nats.Conn
	sub    *nats.Subscription
	msgs   chan *nats.Msg
	recv   chan Envelope
	config NATSConfig

	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

// DialNATS connects to NATS and subscribes to the player's inbound subject.
func DialNATS(config NATSConfig) (*NATSConn, error) {
	if config.PlayerID == "" {
		return nil, fmt.Errorf("dial NATS: player id is required")
	}
	if config.Buffer <= 0 {
		config.Buffer = 256
	}

	c := &NATSConn{
		ID:     uuid.New().String(),
		msgs:   make(chan *nats.Msg, config.Buffer),
		recv:   make(chan Envelope, config.Buffer),
		config: config,
		done:   make(chan struct{}),
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Str("connection_id", c.ID).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("NATS error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.fail(ErrClosed)
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc

	sub, err := nc.ChanSubscribe(config.InboundSubject(), c.msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", config.InboundSubject(), err)
	}
	c.sub = sub

	go c.readLoop()

	log.Info().
		Str("connection_id", c.ID).
		Str("inbound", config.InboundSubject()).
		Str("outbound", config.OutboundSubject()).
		Msg("NATS connection established")
	return c, nil
}

func (c *NATSConn) readLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.msgs:
			env, err := DecodeEnvelope(msg.Data)
			if err != nil {
				log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed NATS message")
				continue
			}
			select {
			case c.recv <- env:
			case <-c.done:
				return
			}
		}
	}
}

func (c *NATSConn) Send(ctx context.Context, env Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	data, err := Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Event, err)
	}
	if err := c.nc.Publish(c.config.OutboundSubject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", env.Event, err)
	}
	return nil
}

func (c *NATSConn) Receive() <-chan Envelope { return c.recv }

func (c *NATSConn) Done() <-chan struct{} { return c.done }

func (c *NATSConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close unsubscribes and closes the NATS connection.
func (c *NATSConn) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("connection_id", c.ID).Msg("failed to unsubscribe")
		}
	}
	c.fail(ErrClosed)
	return nil
}

func (c *NATSConn) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		if c.nc != nil && !c.nc.IsClosed() {
			c.nc.Close()
		}
		log.Info().Err(err).Str("connection_id", c.ID).Msg("NATS connection closed")
	})
}
