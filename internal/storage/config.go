package storage

import (
	"reportbot/internal/config"
	"time"
)

// Config holds configuration for the SQLite database.
type Config struct {
	Path        string        // database file, or ":memory:"
	BusyTimeout time.Duration // how long a writer waits on a locked database (default: 5s)
	BatchSize   int           // rows per INSERT statement (default: 200)
}

// LoadConfig loads storage configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		Path:        src.String("storage.path", "data/schools.db"),
		BusyTimeout: src.Duration("storage.busy_timeout", 5*time.Second),
		BatchSize:   src.Int("storage.batch_size", 200),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "data/schools.db"
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	return c
}

func (c Config) inMemory() bool {
	return c.Path == ":memory:"
}
