// Package config loads gateway settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig wraps every environment parsing failure.
var ErrParsingConfig = errors.New("failed to parse environment variables into config")

// ErrNoStore is returned when neither DATABASE_URL nor FIXTURES_FILE is set.
var ErrNoStore = errors.New("DATABASE_URL or FIXTURES_FILE is required")

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"dyapi"`

	DatabaseURL     string        `env:"DATABASE_URL"`
	FixturesFile    string        `env:"FIXTURES_FILE"`
	Schema          string        `env:"GATEWAY_DB_SCHEMA" envDefault:"gateway"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	CachePrefix   string        `env:"CACHE_PREFIX" envDefault:"dyapi:"`

	JWTSecret      string        `env:"JWT_SECRET"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	HealthSeconds  int           `env:"HEALTH_CHECK_SECONDS" envDefault:"30"`

	APIPrefix      string `env:"API_PREFIX" envDefault:"/api"`
	VersionSegment string `env:"VERSION_SEGMENT" envDefault:"/v1/"`
	IdentityParam  string `env:"IDENTITY_PARAM" envDefault:"user_id"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"`

	// name=target pairs; each name becomes a handler type.
	GRPCUpstreams map[string]string `env:"GRPC_UPSTREAMS" envKeyValSeparator:"="`
	HTTPUpstreams map[string]string `env:"HTTP_UPSTREAMS" envKeyValSeparator:"="`
}

// Load reads .env when present and parses the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// FromMap parses a fixed environment, ignoring the process one.
func FromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	if c.DatabaseURL == "" && c.FixturesFile == "" {
		return ErrNoStore
	}
	return nil
}

// HealthInterval is the period of the background dependency checks.
func (c Config) HealthInterval() time.Duration {
	if c.HealthSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HealthSeconds) * time.Second
}

// Production reports whether APP_ENV names a production-like environment.
func (c Config) Production() bool {
	switch c.AppEnv {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}
