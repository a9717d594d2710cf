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
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CALLSCORE_CONFIG is set
//  3. env (prefix CALLSCORE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CALLSCORE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: CALLSCORE_ADDR, CALLSCORE_QUEUE_SIZE, ...
	// Underscores are preserved so keys match the koanf struct tags.
	envProvider := env.Provider("CALLSCORE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "callscore_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch cfg.StoreBackend {
	case "jsonfile", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, cfg.StoreBackend)
	}
	switch cfg.OracleMode {
	case "static", "http":
	default:
		return fmt.Errorf("%w: unknown oracle_mode %q", ErrInvalidConfig, cfg.OracleMode)
	}
	if cfg.OracleMode == "http" && cfg.OracleURL == "" {
		return fmt.Errorf("%w: oracle_url required for http oracle", ErrInvalidConfig)
	}
	if cfg.RetentionDays < 0 {
		return fmt.Errorf("%w: retention_days must not be negative", ErrInvalidConfig)
	}
	return nil
}
