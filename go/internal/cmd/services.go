package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/wordduel/go/internal/matchmaking"
	"github.com/mcdev12/wordduel/go/internal/round"
	"github.com/mcdev12/wordduel/go/internal/transport"
)

// Services is everything a networked session needs.
type Services struct {
	Conn   transport.Conn
	Router *transport.Router
	Queue  *matchmaking.Session
	Rounds *round.Controller
}

func dialTransport(ctx context.Context, config *Config) (transport.Conn, error) {
	switch config.Transport.Kind {
	case TransportNATS:
		nc := transport.DefaultNATSConfig()
		nc.URL = config.Transport.NATS.URL
		nc.SubjectPrefix = config.Transport.NATS.SubjectPrefix
		nc.PlayerID = config.Player.ID
		return transport.DialNATS(nc)
	case TransportWebSocket:
		return transport.DialWebSocket(ctx, config.Transport.URL, transport.DefaultWebSocketConfig())
	}
	return nil, fmt.Errorf("unknown transport %q", config.Transport.Kind)
}

// setupServices wires conn into the router, queue and round controller.
// Router.Run is left to the caller.
func setupServices(ctx context.Context, config *Config, conn transport.Conn) (*Services, error) {
	source, err := selectSource(config.Words.Source)
	if err != nil {
		return nil, err
	}
	if config.Words.Source != "match" && config.Words.Source != "daily" {
		log.Warn().Str("source", config.Words.Source).Msg("word source is not deterministic; players may get different secrets")
	}

	router := transport.NewRouter(conn)
	return &Services{
		Conn:   conn,
		Router: router,
		Queue:  matchmaking.NewSession(router),
		Rounds: round.New(ctx, source, router, round.WithConfig(config.roundConfig())),
	}, nil
}
