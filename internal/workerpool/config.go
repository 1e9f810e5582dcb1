package workerpool

import (
	"reportbot/internal/config"
	"time"
)

// Defaults for the shared pool.
const (
	defaultCoreWorkers   = 5
	defaultMaxWorkers    = 20
	defaultQueueCapacity = 100
	defaultIdleTimeout   = 60 * time.Second
	defaultShutdownGrace = 30 * time.Second
)

// Config holds configuration for the worker pool.
type Config struct {
	CoreWorkers   int           // workers kept alive for the pool's lifetime (default: 5)
	MaxWorkers    int           // upper bound, extra workers start when the queue is full (default: 20)
	QueueCapacity int           // bounded FIFO queue size (default: 100)
	IdleTimeout   time.Duration // idle time before a worker above core retires (default: 60s)
	ShutdownGrace time.Duration // drain window before running tasks are cancelled (default: 30s)
}

// LoadConfig loads pool configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		CoreWorkers:   src.Int("pool.core_workers", defaultCoreWorkers),
		MaxWorkers:    src.Int("pool.max_workers", defaultMaxWorkers),
		QueueCapacity: src.Int("pool.queue_capacity", defaultQueueCapacity),
		IdleTimeout:   src.Duration("pool.idle_timeout", defaultIdleTimeout),
		ShutdownGrace: src.Duration("pool.shutdown_grace", defaultShutdownGrace),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.CoreWorkers <= 0 {
		c.CoreWorkers = defaultCoreWorkers
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaultMaxWorkers
	}
	if c.MaxWorkers < c.CoreWorkers {
		c.MaxWorkers = c.CoreWorkers
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = defaultShutdownGrace
	}
	return c
}
