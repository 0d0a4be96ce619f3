// Package config loads environment configuration and owns the application
// logger. A .env file is honored when present; real environment variables
// win.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// GetLogger returns the shared application logger. This channel carries
// operational reporting (startup, shutdown, audit-sink health); the domain
// audit trail lives in the engine's log collection, not here.
func GetLogger() *logrus.Logger {
	return logg
}

// Config is the environment surface of the server.
type Config struct {
	// Port the HTTP server listens on.
	Port int
	// DatabasePath selects the persistence endpoint. Empty means no durable
	// store is configured: a startup warning, not a hard failure - the
	// engine runs degraded on the in-memory store.
	DatabasePath string
}

// Load reads .env (if any) and the environment.
func Load() Config {
	godotenv.Load()

	cfg := Config{
		Port:         8080,
		DatabasePath: os.Getenv("INVENTORY_DB"),
	}
	if p := os.Getenv("PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Port = port
		} else {
			logg.WithField("PORT", p).Warn("invalid PORT, using default")
		}
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			logg.SetLevel(parsed)
		} else {
			logg.WithField("LOG_LEVEL", lvl).Warn("invalid LOG_LEVEL, using info")
		}
	}
	return cfg
}
