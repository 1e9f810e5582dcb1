package dispatch

import (
	"reportbot/internal/apperrors"
	"reportbot/internal/config"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config holds configuration for the task dispatcher.
type Config struct {
	DefaultTimeout time.Duration      // used when a Spec has no timeout (default: 30s)
	MapError       func(error) string // single error-to-message mapping (default: apperrors.UserMessage)
}

// LoadConfig loads dispatcher configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		DefaultTimeout: src.Duration("dispatch.default_timeout", defaultTimeout),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
	if c.MapError == nil {
		c.MapError = apperrors.UserMessage
	}
	return c
}
