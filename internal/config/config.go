// Package config manages the service configuration.
//
// It reads variables from the environment (and a `.env` file when present),
// overlays them on built-in defaults, loads them into structured Go types and
// validates them so the process fails fast on bad or missing values.
//
// Responsibilities:
//   - Provide defaults for every optional value.
//   - Map LAYERED_* env vars into nested config ("__" separates levels).
//   - Validate required values and cross-field rules (e.g. the postgres
//     driver needs database settings).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: loads `.env` into the process env if the file exists.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/deppfellow/layered-api/internal/errs"
)

// EnvPrefix is the prefix every configuration env var carries.
//
// Example:
//
//	LAYERED_SERVER__PORT=8080          -> server.port
//	LAYERED_STORAGE__PERSISTENCE=redis -> storage.persistence
const EnvPrefix = "LAYERED_"

// Persistence drivers.
const (
	PersistenceMemory   = "memory"
	PersistencePostgres = "postgres"
	PersistenceRedis    = "redis"
)

// File storage drivers.
const (
	FilesLocal = "local"
	FilesS3    = "s3"
)

// Config is the root configuration object.
//
// Observability is a pointer because it is optional; defaults are injected
// when it is missing.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Storage       StorageConfig        `koanf:"storage" validate:"required"`
	Database      DatabaseConfig       `koanf:"database"`
	Redis         RedisConfig          `koanf:"redis"`
	Jobs          JobsConfig           `koanf:"jobs"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Auth          AuthConfig           `koanf:"auth"`
	Retry         RetryConfig          `koanf:"retry" validate:"required"`
	Errors        ErrorsConfig         `koanf:"errors"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=local development staging production test"`
}

// ServerConfig groups settings for the HTTP server runtime.
//
// Read/Write/Idle timeouts are whole seconds. RequestTimeout is the overall
// deadline of one request through the pipeline.
type ServerConfig struct {
	Port               string        `koanf:"port" validate:"required"`
	ReadTimeout        int           `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int           `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int           `koanf:"idle_timeout" validate:"required,min=1"`
	RequestTimeout     time.Duration `koanf:"request_timeout" validate:"required"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"required"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins" validate:"required"`
}

// StorageConfig selects the adapter bound to each capability interface.
type StorageConfig struct {
	Persistence string          `koanf:"persistence" validate:"required,oneof=memory postgres redis"`
	Files       string          `koanf:"files" validate:"required,oneof=local s3"`
	Local       LocalFileConfig `koanf:"local"`
	S3          S3Config        `koanf:"s3"`
}

// LocalFileConfig configures the filesystem-backed file adapter.
type LocalFileConfig struct {
	Root string `koanf:"root"`
}

// S3Config configures the S3-backed file adapter.
type S3Config struct {
	Bucket         string `koanf:"bucket"`
	Region         string `koanf:"region"`
	Endpoint       string `koanf:"endpoint"`
	Prefix         string `koanf:"prefix"`
	ForcePathStyle bool   `koanf:"force_path_style"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	User            string `koanf:"user"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name"`
	SSLMode         string `koanf:"ssl_mode"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time"`
}

// RedisConfig contains Redis connection details. Address is "host:port".
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// JobsConfig toggles the background worker (welcome emails).
type JobsConfig struct {
	Enabled     bool `koanf:"enabled"`
	Concurrency int  `koanf:"concurrency"`
}

// IntegrationConfig stores third-party API keys.
type IntegrationConfig struct {
	ResendAPIKey string `koanf:"resend_api_key"`
	EmailFrom    string `koanf:"email_from"`
}

// AuthConfig stores authentication settings. Auth is off unless enabled.
type AuthConfig struct {
	Enabled   bool   `koanf:"enabled"`
	SecretKey string `koanf:"secret_key"`
}

// RetryConfig bounds automatic retries of idempotent backend calls.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts" validate:"min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required"`
	MaxInterval     time.Duration `koanf:"max_interval" validate:"required"`
}

// ErrorsConfig overrides the default kind -> HTTP status mapping. Env keys are
// lowercased, so overrides are "Kind=status" pairs:
//
//	LAYERED_ERRORS__STATUS_OVERRIDES=ValidationError=400,ServiceError=409
type ErrorsConfig struct {
	StatusOverrides []string `koanf:"status_overrides"`
}

// Statuses returns the effective kind -> status mapping.
func (e ErrorsConfig) Statuses() (errs.StatusMap, error) {
	overrides := make(map[string]int, len(e.StatusOverrides))
	for _, pair := range e.StatusOverrides {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid status override %q, want Kind=status", pair)
		}
		var status int
		if _, err := fmt.Sscanf(value, "%d", &status); err != nil {
			return nil, fmt.Errorf("invalid status in override %q: %w", pair, err)
		}
		overrides[name] = status
	}
	return errs.DefaultStatuses().WithOverrides(overrides)
}

// defaults are loaded before the environment so every optional value has a
// sane local-development setting.
func defaults() map[string]any {
	return map[string]any{
		"primary.env":                 "local",
		"server.port":                 "8080",
		"server.read_timeout":         30,
		"server.write_timeout":        30,
		"server.idle_timeout":         60,
		"server.request_timeout":      "10s",
		"server.shutdown_timeout":     "30s",
		"server.cors_allowed_origins": []string{"*"},
		"storage.persistence":         PersistenceMemory,
		"storage.files":               FilesLocal,
		"storage.local.root":          "./data/files",
		"storage.s3.region":           "us-east-1",
		"storage.s3.prefix":           "avatars",
		"database.port":               5432,
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     25,
		"database.conn_max_lifetime":  300,
		"database.conn_max_idle_time": 300,
		"jobs.concurrency":            10,
		"integration.email_from":      "Layered API <onboarding@resend.dev>",
		"retry.max_attempts":          3,
		"retry.initial_interval":      "100ms",
		"retry.max_interval":          "2s",
	}
}

// LoadConfig loads defaults and LAYERED_* env vars, validates the result and
// applies observability defaults.
func LoadConfig() (*Config, error) {
	return load(env.Provider(EnvPrefix, ".", envKey))
}

// envKey maps LAYERED_SERVER__READ_TIMEOUT to server.read_timeout.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func load(provider koanf.Provider) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}
	if provider != nil {
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("loading env config: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Observability == nil {
		cfg.Observability = DefaultObservabilityConfig()
	}
	cfg.Observability.ServiceName = "layered-api"
	cfg.Observability.Environment = cfg.Primary.Env

	if err := cfg.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces rules struct tags cannot express: each selected driver
// needs its backend settings.
func (c *Config) Validate() error {
	if c.Storage.Persistence == PersistencePostgres {
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("storage.persistence=postgres requires database.host, database.user and database.name")
		}
	}
	if c.NeedsRedis() && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required by the redis persistence driver and background jobs")
	}
	switch c.Storage.Files {
	case FilesS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.files=s3 requires storage.s3.bucket")
		}
	case FilesLocal:
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("storage.files=local requires storage.local.root")
		}
	}
	if c.Jobs.Enabled && c.Integration.ResendAPIKey == "" {
		return fmt.Errorf("jobs.enabled requires integration.resend_api_key")
	}
	if c.Auth.Enabled && c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.enabled requires auth.secret_key")
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry.max_interval must not be lower than retry.initial_interval")
	}
	if _, err := c.Errors.Statuses(); err != nil {
		return fmt.Errorf("errors.status_overrides: %w", err)
	}
	return nil
}

// NeedsRedis reports whether any bound component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Storage.Persistence == PersistenceRedis || c.Jobs.Enabled
}

// NeedsDatabase reports whether the postgres adapter is bound.
func (c *Config) NeedsDatabase() bool {
	return c.Storage.Persistence == PersistencePostgres
}
