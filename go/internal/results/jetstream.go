package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const (
	natsMaxReconnects = 10
	natsReconnectWait = 2 * time.Second
)

// StreamConfig names the stream results are published to.
type StreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxAge        time.Duration
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DUEL_RESULTS",
		SubjectPrefix: "duel.results",
		MaxAge:        30 * 24 * time.Hour,
	}
}

// Publisher publishes results to a JetStream stream, one subject per player.
// The result id is the message id, so retried publishes are deduplicated.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config StreamConfig
}

// NewPublisher connects and creates or updates the stream.
func NewPublisher(ctx context.Context, config StreamConfig) (*Publisher, error) {
	nc, err := nats.Connect(config.URL,
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("results NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("results NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Finished word duel rounds",
		Subjects:    []string{config.SubjectPrefix + ".>"},
		MaxAge:      config.MaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}
	log.Info().Str("stream", config.StreamName).Msg("results stream ready")
	return &Publisher{nc: nc, js: js, config: config}, nil
}

// Subject returns the subject a player's results are published on.
func (p *Publisher) Subject(playerID string) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, playerID)
}

func (p *Publisher) Record(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	ack, err := p.js.Publish(ctx, p.Subject(r.PlayerID), data, jetstream.WithMsgID(r.ID.String()))
	if err != nil {
		return fmt.Errorf("publish result %s: %w", r.ID, err)
	}
	log.Debug().Str("stream", ack.Stream).Uint64("seq", ack.Sequence).Bool("duplicate", ack.Duplicate).Msg("result published")
	return nil
}

// Replay returns the stored results of a player, oldest first, up to limit.
func (p *Publisher) Replay(ctx context.Context, playerID string, limit int) ([]Result, error) {
	consumer, err := p.js.OrderedConsumer(ctx, p.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{p.Subject(playerID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create replay consumer: %w", err)
	}

	batch, err := consumer.FetchNoWait(limit)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	var out []Result
	for msg := range batch.Messages() {
		var r Result
		if err := json.Unmarshal(msg.Data(), &r); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject()).Msg("skipping malformed result")
			continue
		}
		out = append(out, r)
	}
	return out, batch.Error()
}

func (p *Publisher) Close() {
	p.nc.Close()
}
