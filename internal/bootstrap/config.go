package bootstrap

import (
	"reportbot/internal/config"
	"reportbot/internal/dispatch"
	"reportbot/internal/workerpool"
	"time"
)

// Config holds configuration for the orchestrator and the executors it owns.
type Config struct {
	Pool            workerpool.Config
	Dispatch        dispatch.Config
	ConnectAttempts uint          // storage connect attempts (default: 3)
	ConnectDelay    time.Duration // base delay between attempts (default: 200ms)
}

// LoadConfig loads orchestrator configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		Pool:            workerpool.LoadConfig(src),
		Dispatch:        dispatch.LoadConfig(src),
		ConnectAttempts: uint(max(src.Int("storage.connect_attempts", 3), 0)),
		ConnectDelay:    src.Duration("storage.connect_delay", 200*time.Millisecond),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = 200 * time.Millisecond
	}
	return c
}
