// Save as: internal/config/environment.go
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port    int    `env:"MINIFEED_PORT, default=8080"`
	DBPath  string `env:"MINIFEED_DB_PATH, default=data/minifeed.db"`
	Workers int    `env:"MINIFEED_WORKERS, default=10"`

	// Relay endpoints tried, in order, when a direct feed fetch fails.
	// Each is a printf template receiving the query-escaped target URL.
	Relays []string `env:"MINIFEED_RELAYS, delimiter=|"`

	TranslateBaseURL string        `env:"MINIFEED_TRANSLATE_BASE_URL"`
	TranslateAPIKey  string        `env:"MINIFEED_TRANSLATE_API_KEY"`
	TranslateModel   string        `env:"MINIFEED_TRANSLATE_MODEL, default=gpt-4o-mini"`
	TranslateTimeout time.Duration `env:"MINIFEED_TRANSLATE_TIMEOUT, default=30s"`
}

// GetConfig reads configuration from the environment. Command line flags in
// main may override individual fields afterwards.
func GetConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}
	return cfg, nil
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}
