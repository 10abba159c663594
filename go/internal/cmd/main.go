package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/mcdev12/wordduel/go/internal/results"
	"github.com/mcdev12/wordduel/go/internal/round"
	"github.com/mcdev12/wordduel/go/internal/status"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "wordduel.yaml", "path to the config file")
	solo := flag.Bool("solo", false, "play alone against the word list")
	difficulty := flag.String("difficulty", string(models.DifficultyMedium), "solo difficulty: EASY, MEDIUM or HARD")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	config, err := loadConfig(*configPath, isFlagSet("config"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.applyEnv()
	if err := config.validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	setupLogging(config, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := setupWordSources(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up word sources")
	}
	recorders, store, closeRecorders, err := setupRecorders(ctx, config)
	if err != nil {
		cleanup()
		log.Fatal().Err(err).Msg("failed to set up results")
	}
	app := &app{config: config, recorder: recorders}
	if store != nil {
		app.history = store
	}

	if *solo {
		err = app.runSolo(ctx, models.Difficulty(strings.ToUpper(*difficulty)), os.Stdin, os.Stdout)
	} else {
		err = app.runDuel(ctx, os.Stdin, os.Stdout)
	}
	closeRecorders()
	cleanup()
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("wordduel exited")
		os.Exit(1)
	}
}

// app holds what both play modes share.
type app struct {
	config   *Config
	recorder results.Recorder
	history  status.History
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func setupLogging(config *Config, w io.Writer) {
	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if config.Log.JSON {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}

func (a *app) runSolo(ctx context.Context, difficulty models.Difficulty, in io.Reader, out io.Writer) error {
	config := a.config
	source, err := selectSource(config.Words.SoloSource)
	if err != nil {
		return err
	}
	rounds := round.New(ctx, source, nil, round.WithConfig(config.roundConfig()))
	defer rounds.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveStatus(gctx, config.Status.Addr, status.Options{
			Version:   version,
			PlayerID:  config.Player.ID,
			Transport: "offline",
			Rounds:    rounds.Coordinator(),
			History:   a.history,
		})
	})
	g.Go(func() error {
		defer cancel()
		term := newTerminal(in, out, rounds)
		term.recorder = a.recorder
		return term.playSolo(gctx, difficulty, config.Player.Lang)
	})
	return g.Wait()
}

func (a *app) runDuel(ctx context.Context, in io.Reader, out io.Writer) error {
	config := a.config
	conn, err := dialTransport(ctx, config)
	if err != nil {
		return err
	}
	defer conn.Close()

	services, err := setupServices(ctx, config, conn)
	if err != nil {
		return err
	}
	defer services.Rounds.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := services.Router.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return serveStatus(gctx, config.Status.Addr, status.Options{
			Version:   version,
			PlayerID:  config.Player.ID,
			Transport: config.Transport.Kind,
			Rounds:    services.Rounds.Coordinator(),
			Connected: func() bool {
				select {
				case <-services.Router.Done():
					return false
				default:
					return true
				}
			},
			History: a.history,
		})
	})
	g.Go(func() error {
		defer cancel()
		term := newTerminal(in, out, services.Rounds)
		term.recorder = a.recorder
		return term.playDuels(gctx, services.Queue, config.Player.ID, config.Player.Lang)
	})
	return g.Wait()
}
