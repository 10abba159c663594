package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/wordduel/go/internal/dbconfig"
	"github.com/mcdev12/wordduel/go/internal/round"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

type Config struct {
	Player struct {
		ID   string `yaml:"id"`
		Lang string `yaml:"lang"`
	} `yaml:"player"`

	Transport struct {
		Kind string `yaml:"kind"`
		URL  string `yaml:"url"`
		NATS struct {
			URL           string `yaml:"url"`
			SubjectPrefix string `yaml:"subject_prefix"`
		} `yaml:"nats"`
	} `yaml:"transport"`

	Words struct {
		// Source picks the secret of networked rounds. Both players must use
		// the same deterministic source and salt.
		Source     string        `yaml:"source"`
		SoloSource string        `yaml:"solo_source"`
		Salt       string        `yaml:"salt"`
		APIURL     string        `yaml:"api_url"`
		APIKey     string        `yaml:"api_key"`
		APITimeout time.Duration `yaml:"api_timeout"`
		SQLitePath string        `yaml:"sqlite_path"`
		// Postgres enables the "postgres" source: "pgx" or "pq".
		Postgres string `yaml:"postgres"`
	} `yaml:"words"`

	Database dbconfig.Config `yaml:"database"`

	Round struct {
		Rows              int           `yaml:"rows"`
		SoloRows          int           `yaml:"solo_rows"`
		MaxWordErrors     int           `yaml:"max_word_errors"`
		RetryBackoff      time.Duration `yaml:"retry_backoff"`
		RequireDictionary bool          `yaml:"require_dictionary"`
	} `yaml:"round"`

	Results struct {
		SQLitePath string `yaml:"sqlite_path"`
		// Postgres stores results in the configured database through lib/pq.
		Postgres  bool `yaml:"postgres"`
		JetStream bool `yaml:"jetstream"`
	} `yaml:"results"`

	Status struct {
		Addr string `yaml:"addr"`
	} `yaml:"status"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	var c Config
	c.Player.Lang = "en"
	c.Transport.Kind = TransportWebSocket
	c.Transport.URL = "ws://localhost:3000/duel"
	c.Transport.NATS.URL = "nats://127.0.0.1:4222"
	c.Transport.NATS.SubjectPrefix = "duel"
	c.Words.Source = "match"
	c.Words.SoloSource = "random"
	c.Words.Salt = "wordduel"
	c.Words.APITimeout = 10 * time.Second

	rc := round.DefaultConfig()
	c.Round.Rows = rc.PvPRows
	c.Round.SoloRows = rc.SoloRows
	c.Round.MaxWordErrors = rc.MaxWordErrors
	c.Round.RetryBackoff = rc.RetryBackoff

	c.Log.Level = "info"
	return &c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. A missing file is not an error
// unless required is set.
func loadConfig(path string, required bool) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// applyEnv overrides file settings with WORDDUEL_* variables.
func (c *Config) applyEnv() {
	c.Player.ID = getEnv("WORDDUEL_PLAYER_ID", c.Player.ID)
	c.Player.Lang = getEnv("WORDDUEL_LANG", c.Player.Lang)
	c.Transport.Kind = getEnv("WORDDUEL_TRANSPORT", c.Transport.Kind)
	c.Transport.URL = getEnv("WORDDUEL_URL", c.Transport.URL)
	c.Transport.NATS.URL = getEnv("WORDDUEL_NATS_URL", c.Transport.NATS.URL)
	c.Words.Source = getEnv("WORDDUEL_WORD_SOURCE", c.Words.Source)
	c.Words.SoloSource = getEnv("WORDDUEL_SOLO_WORD_SOURCE", c.Words.SoloSource)
	c.Words.Salt = getEnv("WORDDUEL_WORD_SALT", c.Words.Salt)
	c.Words.APIKey = getEnv("WORD_API_KEY", c.Words.APIKey)
	c.Words.SQLitePath = getEnv("WORDDUEL_SQLITE_PATH", c.Words.SQLitePath)
	c.Words.Postgres = getEnv("WORDDUEL_POSTGRES", c.Words.Postgres)
	c.Round.Rows = getEnvAsInt("WORDDUEL_ROWS", c.Round.Rows)
	c.Round.RequireDictionary = getEnvAsBool("WORDDUEL_REQUIRE_DICTIONARY", c.Round.RequireDictionary)
	c.Results.SQLitePath = getEnv("WORDDUEL_RESULTS_SQLITE_PATH", c.Results.SQLitePath)
	c.Results.JetStream = getEnvAsBool("WORDDUEL_RESULTS_JETSTREAM", c.Results.JetStream)
	c.Status.Addr = getEnv("WORDDUEL_STATUS_ADDR", c.Status.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Database = c.Database.WithEnv()
}

// validate checks the settings and fills a random player id if none is set.
func (c *Config) validate() error {
	switch c.Transport.Kind {
	case TransportWebSocket, TransportNATS:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}
	switch c.Words.Postgres {
	case "", "pgx", "pq":
	default:
		return fmt.Errorf("unknown postgres driver %q", c.Words.Postgres)
	}
	if c.Round.Rows <= 0 || c.Round.SoloRows <= 0 {
		return fmt.Errorf("rows must be positive")
	}
	if c.Round.MaxWordErrors <= 0 {
		return fmt.Errorf("max_word_errors must be positive")
	}
	if c.Player.ID == "" {
		c.Player.ID = uuid.New().String()
	}
	return nil
}

func (c *Config) roundConfig() round.Config {
	return round.Config{
		PvPRows:           c.Round.Rows,
		SoloRows:          c.Round.SoloRows,
		MaxWordErrors:     c.Round.MaxWordErrors,
		RetryBackoff:      c.Round.RetryBackoff,
		RequireDictionary: c.Round.RequireDictionary,
	}
}
