package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config holds the environment-driven settings of the dashboard client.
type Config struct {
	AppName         string        `env:"APP_NAME" envDefault:"Dashboard Client"`
	APIBaseURL      string        `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	StorePath       string        `env:"STORE_PATH" envDefault:"./data/dashboard.db"`
	DedupeInterval  time.Duration `env:"DEDUPE_INTERVAL" envDefault:"30s"`
	MaxCacheEntries int           `env:"MAX_CACHE_ENTRIES" envDefault:"256"`
	RetryBudget     int           `env:"RETRY_BUDGET" envDefault:"1"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config.New] parse env")
	}
	return &c, nil
}
