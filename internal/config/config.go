package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/stand.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL enables the catalog cache when set. Empty disables it; every
	// cached read falls back to the database anyway.
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	// Instagram Graph API credentials for outbound DMs. When the token is
	// empty, outbound messages are logged instead of delivered.
	IGPageToken    string        `env:"IG_PAGE_TOKEN"`
	IGSenderID     string        `env:"IG_SENDER_ID"`
	IGVerifyToken  string        `env:"IG_VERIFY_TOKEN"`
	IGGraphVersion string        `env:"IG_GRAPH_VERSION" envDefault:"v24.0"`
	IGTimeout      time.Duration `env:"IG_TIMEOUT" envDefault:"8s"`

	// Initial admin credentials, seeded when the admins table is empty.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
