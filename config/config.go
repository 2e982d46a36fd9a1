// Package config loads process configuration from the environment and
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-kino/auth"
)

const (
	EnvSecret         = "APP_SECRET"
	EnvAddr           = "KINO_ADDR"
	EnvDatabaseDSN    = "KINO_DATABASE_DSN"
	EnvTokenTTL       = "KINO_TOKEN_TTL"
	EnvTokenIssuer    = "KINO_TOKEN_ISSUER"
	EnvBcryptCost     = "KINO_BCRYPT_COST"
	EnvLogLevel       = "KINO_LOG_LEVEL"
	EnvDebug          = "KINO_DEBUG"
	EnvSeed           = "KINO_SEED"
	EnvMaxConcurrency = "KINO_MAX_CONCURRENCY"
	EnvSchemaPath     = "KINO_SCHEMA_PATH"
	EnvRequestTimeout = "KINO_REQUEST_TIMEOUT"
)

var ErrMissingSecret = errors.New("config: " + EnvSecret + " is required")

// Config is the immutable process configuration.
type Config struct {
	Addr           string        `json:"addr"`
	DatabaseDSN    string        `json:"database_dsn"`
	LogLevel       string        `json:"log_level"`
	Debug          bool          `json:"debug"`
	Seed           bool          `json:"seed"`
	MaxConcurrency int           `json:"max_concurrency"`
	SchemaPath     string        `json:"schema_path"`
	RequestTimeout time.Duration `json:"request_timeout"`
	Auth           auth.Config   `json:"auth"`
}

// Defaults returns the values used for anything the environment leaves unset.
func Defaults() Config {
	return Config{
		Addr:           ":8080",
		DatabaseDSN:    "file:kino.db?cache=shared&_fk=1",
		LogLevel:       "info",
		MaxConcurrency: 16,
		SchemaPath:     "schema.graphql",
		RequestTimeout: 30 * time.Second,
		Auth: auth.Config{
			TokenTTL: 24 * time.Hour,
			Issuer:   "kino",
		},
	}
}

type options struct {
	files  []string
	logger *logrus.Logger
}

// Option customizes Load.
type Option func(*options)

// WithEnvFiles replaces the list of dotenv files read by Load.
func WithEnvFiles(files ...string) Option {
	return func(o *options) {
		o.files = files
	}
}

// WithLogger reports which env files were loaded.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Load reads dotenv files, then the process environment, and fills the
// remaining fields from Defaults.
func Load(opts ...Option) (Config, error) {
	o := options{files: []string{".env", ".env.local"}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	loadEnvFiles(o.files, o.logger)

	cfg, err := fromEnv()
	if err != nil {
		return Config{}, err
	}

	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return Config{}, fmt.Errorf("config: merge defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.Auth.Secret.IsZero() {
		return ErrMissingSecret
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %s: %w", EnvLogLevel, err)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config: %s must be positive", EnvMaxConcurrency)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func loadEnvFiles(files []string, logger *logrus.Logger) {
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger != nil && len(loaded) > 0 {
		logger.Debugf("loaded env files: %s", strings.Join(loaded, ", "))
	}
}

func fromEnv() (Config, error) {
	var cfg Config
	var err error

	cfg.Addr = getEnv(EnvAddr)
	cfg.DatabaseDSN = getEnv(EnvDatabaseDSN)
	cfg.LogLevel = strings.ToLower(getEnv(EnvLogLevel))
	cfg.SchemaPath = getEnv(EnvSchemaPath)
	cfg.Auth.Secret = auth.Secret(os.Getenv(EnvSecret))
	cfg.Auth.Issuer = getEnv(EnvTokenIssuer)

	if cfg.Debug, err = getEnvBool(EnvDebug); err != nil {
		return Config{}, err
	}
	if cfg.Seed, err = getEnvBool(EnvSeed); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrency, err = getEnvInt(EnvMaxConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.Auth.HashCost, err = getEnvInt(EnvBcryptCost); err != nil {
		return Config{}, err
	}
	if raw := getEnv(EnvTokenTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", EnvTokenTTL, err)
		}
		cfg.Auth.TokenTTL = ttl
	}
	if raw := getEnv(EnvRequestTimeout); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", EnvRequestTimeout, err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("config: %s must be positive", EnvRequestTimeout)
		}
		cfg.RequestTimeout = timeout
	}

	return cfg, nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvInt(key string) (int, error) {
	raw := getEnv(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}

func getEnvBool(key string) (bool, error) {
	raw := getEnv(key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}
