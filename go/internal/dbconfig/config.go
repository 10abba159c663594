package dbconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Postgres connection settings for the word database.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{}.WithEnv()
}

// WithEnv fills unset fields from DB_* environment variables, then defaults.
func (c Config) WithEnv() Config {
	if c.Host == "" {
		c.Host = getEnv("DB_HOST", "localhost")
	}
	if c.Port == 0 {
		port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
		if err != nil {
			port = 5432
		}
		c.Port = port
	}
	if c.User == "" {
		c.User = getEnv("DB_USER", "postgres")
	}
	if c.Password == "" {
		c.Password = getEnv("DB_PASSWORD", "postgres")
	}
	if c.Database == "" {
		c.Database = getEnv("DB_NAME", "wordduel")
	}
	if c.SSLMode == "" {
		c.SSLMode = getEnv("DB_SSLMODE", "disable")
	}
	return c
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
