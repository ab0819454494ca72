package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/runrelay/internal/backend/runpod"
	"github.com/davidbz/runrelay/internal/catalog"
	"github.com/davidbz/runrelay/internal/domain"
	ledgerredis "github.com/davidbz/runrelay/internal/ledger/redis"
	"github.com/davidbz/runrelay/internal/observability"
)

// Config represents the relay service configuration.
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	Auth    AuthConfig
	RunPod  runpod.Config
	Relay   domain.RelayConfig
	Redis   ledgerredis.Config
	Catalog catalog.Config
	Log     observability.LogConfig
}

// ServerConfig contains HTTP server settings. Timeouts are in seconds; a zero
// write timeout keeps long streams open.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"0"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// AuthConfig contains the static bearer token guarding /v1. An empty token
// disables the check.
type AuthConfig struct {
	SecretToken string `env:"API_SECRET_TOKEN"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	Server  *ServerConfig
	CORS    *CORSConfig
	Auth    *AuthConfig
	RunPod  *runpod.Config
	Relay   *domain.RelayConfig
	Redis   *ledgerredis.Config
	Catalog *catalog.Config
	Log     *observability.LogConfig
}

// Load loads environment files and parses configuration.
func Load() (*Config, error) {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Auth,
		&cfg.RunPod,
		&cfg.Relay,
		&cfg.Redis,
		&cfg.Catalog,
		&cfg.Log,
	}
}
