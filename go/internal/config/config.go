// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mcdev12/challengetracker/go/internal/dbconfig"
	"github.com/mcdev12/challengetracker/go/internal/protocol"
)

const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"

	BusNATS  = "nats"
	BusLocal = "local"
)

type Config struct {
	World string `validate:"required"`
	Port  string `validate:"required,numeric"`

	BusDriver string `validate:"oneof=nats local"`
	NATS      protocol.NATSConfig

	StoreDriver string `validate:"oneof=badger postgres"`
	BadgerPath  string `validate:"required_if=StoreDriver badger"`
	Database    dbconfig.Config

	SettingsFile string
	UsersFile    string `validate:"required"`
	LogLevel     string `validate:"oneof=trace debug info warn error"`
}

// Load reads envFile if it exists and then the environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the configuration from environment variables with defaults
func FromEnv() *Config {
	nats := protocol.DefaultNATSConfig()
	nats.URL = getEnv("NATS_URL", nats.URL)
	nats.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", nats.SubjectPrefix)
	nats.MaxReconnects = getEnvAsInt("NATS_MAX_RECONNECTS", nats.MaxReconnects)
	nats.ReconnectWait = getEnvAsDuration("NATS_RECONNECT_WAIT", nats.ReconnectWait)

	return &Config{
		World:        getEnv("WORLD_ID", "default"),
		Port:         getEnv("GATEWAY_PORT", "8081"),
		BusDriver:    getEnv("BUS_DRIVER", BusNATS),
		NATS:         nats,
		StoreDriver:  getEnv("STORE_DRIVER", StoreBadger),
		BadgerPath:   getEnv("BADGER_PATH", "data/flags"),
		Database:     dbconfig.NewConfigFromEnv(),
		SettingsFile: getEnv("SETTINGS_FILE", ""),
		UsersFile:    getEnv("USERS_FILE", "go/internal/assets/users.yaml"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Level returns the zerolog level for LogLevel
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
