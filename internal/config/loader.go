package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if PICKEM_CONFIG is set
//  3. env (prefix PICKEM_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("PICKEM_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PICKEM_ADDR, PICKEM_DB_PATH, ...
	// Map env keys like PICKEM_PAGE_LIMIT -> page_limit (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PICKEM_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "pickem_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.EventTTLMinutes < 0:
		return fmt.Errorf("%w: event_ttl_minutes must not be negative", ErrInvalidConfig)
	case c.StreamTailSeconds <= 0:
		return fmt.Errorf("%w: stream_tail_seconds must be positive", ErrInvalidConfig)
	case c.HeartbeatSeconds <= 0:
		return fmt.Errorf("%w: heartbeat_seconds must be positive", ErrInvalidConfig)
	case c.PageLimit <= 0:
		return fmt.Errorf("%w: page_limit must be positive", ErrInvalidConfig)
	case c.ReconcileMinutes <= 0:
		return fmt.Errorf("%w: reconcile_minutes must be positive", ErrInvalidConfig)
	case c.ActiveHoursEnabled && (c.ActiveHoursStart < 0 || c.ActiveHoursEnd > 24 || c.ActiveHoursStart >= c.ActiveHoursEnd):
		return fmt.Errorf("%w: active hours window is malformed", ErrInvalidConfig)
	}
	return nil
}
