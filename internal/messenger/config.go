package messenger

import (
	"reportbot/internal/config"
	"time"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// OutboxConfig holds configuration for webhook delivery.
type OutboxConfig struct {
	WebhookURL string        // empty disables the outbox
	SigningKey string        // HMAC key for X-Signature-256, optional
	Source     string        // CloudEvent source (default: reportbot)
	QueueSize  int           // pending messages (default: 1000)
	Workers    int           // concurrent deliveries (default: 4)
	MaxRetries uint          // retries after the first attempt (default: 3)
	RetryDelay time.Duration // base backoff delay (default: 200ms)
	Timeout    time.Duration // per-request timeout (default: 10s)
}

// Config holds configuration for all message sinks.
type Config struct {
	Outbox          OutboxConfig
	MailboxCapacity int // messages kept per chat (default: 100)
}

// LoadConfig loads messenger configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		Outbox: OutboxConfig{
			WebhookURL: src.String("outbox.webhook_url", ""),
			SigningKey: src.Secret("outbox.signing_key"),
			Source:     src.String("outbox.source", "reportbot"),
			QueueSize:  src.Int("outbox.queue_size", 1000),
			Workers:    src.Int("outbox.workers", 4),
			MaxRetries: uint(max(src.Int("outbox.max_retries", 3), 0)),
			RetryDelay: src.Duration("outbox.retry_delay", 200*time.Millisecond),
			Timeout:    src.Duration("outbox.timeout", 10*time.Second),
		},
		MailboxCapacity: src.Int("mailbox.capacity", 100),
	}
	cfg.Outbox = cfg.Outbox.withDefaults()
	if cfg.MailboxCapacity <= 0 {
		cfg.MailboxCapacity = 100
	}
	return cfg
}

// Enabled reports whether a webhook is configured.
func (c OutboxConfig) Enabled() bool {
	return c.WebhookURL != ""
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	if c.Source == "" {
		c.Source = "reportbot"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}
