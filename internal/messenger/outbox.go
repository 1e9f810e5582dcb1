package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reportbot/pkg/cloudevent"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
)

// EventTypePrefix prefixes the CloudEvent type of every outbound message.
const EventTypePrefix = "reportbot.message."

var (
	// ErrOutboxFull is returned when a message is dropped for lack of queue room.
	ErrOutboxFull = errors.New("outbox queue full")
	// ErrOutboxClosed is returned by Send after Close.
	ErrOutboxClosed = errors.New("outbox closed")
)

// OutboxMetrics is an optional recorder for outbox delivery.
type OutboxMetrics interface {
	RecordOutboxDelivered(ctx context.Context, durationSeconds float64)
	RecordOutboxFailed(ctx context.Context)
	RecordOutboxDropped(ctx context.Context)
	RecordOutboxQueueSize(ctx context.Context, size int64)
}

// OutboxStats is a point-in-time view of the outbox counters.
type OutboxStats struct {
	QueueDepth  int   `json:"queue_depth"`
	Queued      int64 `json:"queued"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
	Dropped     int64 `json:"dropped"`
	Retries     int64 `json:"retries"`
	BreakerOpen bool  `json:"breaker_open"`
}

// Outbox posts messages to a webhook as signed CloudEvents. Messages are
// queued in a bounded channel and delivered by a fixed set of workers; a full
// queue drops the message.
type Outbox struct {
	queue   chan Message
	sender  *cloudevent.Sender
	breaker *breaker
	cfg     OutboxConfig
	logger  *slog.Logger
	metrics OutboxMetrics

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	retries   atomic.Int64

	wg       sync.WaitGroup
	mu       sync.RWMutex // guards closed against in-flight enqueues
	shutdown chan struct{}
	closed   bool
}

// NewOutbox starts the delivery workers. metrics may be nil.
func NewOutbox(cfg OutboxConfig, metrics OutboxMetrics) *Outbox {
	cfg = cfg.withDefaults()

	o := &Outbox{
		queue:    make(chan Message, cfg.QueueSize),
		sender:   cloudevent.NewSender(cfg.Timeout),
		breaker:  newBreaker(defaultBreakerThreshold, defaultBreakerCooldown),
		cfg:      cfg,
		logger:   slog.With("component", "outbox"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	o.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go o.worker()
	}
	if metrics != nil {
		go o.reportQueueSize()
	}

	o.logger.Info("Outbox started", "workers", cfg.Workers, "queue", cfg.QueueSize)
	return o
}

func (o *Outbox) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-o.shutdown:
			return
		case <-ticker.C:
			o.metrics.RecordOutboxQueueSize(context.Background(), int64(len(o.queue)))
		}
	}
}

// Send queues msg for delivery without blocking.
func (o *Outbox) Send(ctx context.Context, msg Message) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrOutboxClosed
	}

	select {
	case o.queue <- msg:
		o.queued.Add(1)
		return nil
	default:
		o.drop(ctx, msg, "queue full")
		return ErrOutboxFull
	}
}

// Stats returns the current counters.
func (o *Outbox) Stats() OutboxStats {
	return OutboxStats{
		QueueDepth:  len(o.queue),
		Queued:      o.queued.Load(),
		Delivered:   o.delivered.Load(),
		Failed:      o.failed.Load(),
		Dropped:     o.dropped.Load(),
		Retries:     o.retries.Load(),
		BreakerOpen: o.breaker.open(),
	}
}

// Close stops accepting messages and waits for the queue to drain or ctx to
// expire. It is safe to call more than once.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.shutdown)
	o.mu.Unlock()

	o.logger.Info("Outbox shutting down", "queued", len(o.queue))

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("Outbox shutdown complete",
			"delivered", o.delivered.Load(),
			"failed", o.failed.Load(),
			"dropped", o.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		o.logger.Warn("Outbox shutdown timed out", "remaining", len(o.queue))
		return ctx.Err()
	}
}

func (o *Outbox) worker() {
	defer o.wg.Done()

	for {
		select {
		case <-o.shutdown:
			o.drainQueue()
			return
		case msg := <-o.queue:
			o.deliver(msg)
		}
	}
}

func (o *Outbox) drainQueue() {
	for {
		select {
		case msg := <-o.queue:
			o.deliver(msg)
		default:
			return
		}
	}
}

func (o *Outbox) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), o.deliveryBudget())
	defer cancel()

	if !o.breaker.allow() {
		o.drop(ctx, msg, "webhook circuit open")
		return
	}

	start := time.Now()
	if err := o.sendWithRetry(ctx, msg); err != nil {
		o.breaker.failure()
		o.failed.Add(1)
		if o.metrics != nil {
			o.metrics.RecordOutboxFailed(ctx)
		}
		o.logger.Warn("Delivery failed", "chat_id", msg.ChatID, "kind", msg.Kind, "error", err)
		return
	}

	o.breaker.success()
	o.delivered.Add(1)
	if o.metrics != nil {
		o.metrics.RecordOutboxDelivered(ctx, time.Since(start).Seconds())
	}
}

func (o *Outbox) sendWithRetry(ctx context.Context, msg Message) error {
	event := Event(o.cfg.Source, msg)
	return retry.Do(
		func() error { return o.sender.Send(ctx, o.cfg.WebhookURL, event, o.cfg.SigningKey) },
		retry.Context(ctx),
		retry.Attempts(o.cfg.MaxRetries+1),
		retry.Delay(o.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !cloudevent.IsClientError(err) }),
		retry.OnRetry(func(n uint, err error) {
			o.retries.Add(1)
			o.logger.Debug("Delivery retry", "chat_id", msg.ChatID, "attempt", n+1, "error", err)
		}),
	)
}

// deliveryBudget bounds one message's attempts and backoff.
func (o *Outbox) deliveryBudget() time.Duration {
	attempts := time.Duration(o.cfg.MaxRetries + 1)
	return attempts*o.cfg.Timeout + attempts*attempts*o.cfg.RetryDelay
}

func (o *Outbox) drop(ctx context.Context, msg Message, reason string) {
	o.dropped.Add(1)
	if o.metrics != nil {
		o.metrics.RecordOutboxDropped(ctx)
	}
	o.logger.Warn("Message dropped", "reason", reason, "chat_id", msg.ChatID, "kind", msg.Kind)
}

// Event wraps msg in a CloudEvent addressed to its chat.
func Event(source string, msg Message) *cloudevent.CloudEvent {
	return cloudevent.New(EventTypePrefix+string(msg.Kind), source, fmt.Sprintf("chats/%d", msg.ChatID), msg)
}
