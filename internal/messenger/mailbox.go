package messenger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Mailbox keeps the latest messages of each chat until they are drained.
// A full chat queue drops its oldest message.
type Mailbox struct {
	capacity int
	logger   *slog.Logger

	mu     sync.Mutex
	queues map[int64][]Message

	dropped atomic.Int64
}

// NewMailbox creates a mailbox holding up to capacity messages per chat.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 100
	}
	return &Mailbox{
		capacity: capacity,
		logger:   slog.With("component", "mailbox"),
		queues:   make(map[int64][]Message),
	}
}

// Send appends msg to its chat queue.
func (m *Mailbox) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[msg.ChatID]
	if len(q) >= m.capacity {
		q = q[1:]
		m.dropped.Add(1)
		m.logger.Warn("Mailbox full, dropped oldest message", "chat_id", msg.ChatID, "capacity", m.capacity)
	}
	m.queues[msg.ChatID] = append(q, msg)
	return nil
}

// Drain removes and returns the queued messages of a chat in send order.
func (m *Mailbox) Drain(chatID int64) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[chatID]
	delete(m.queues, chatID)
	if q == nil {
		return []Message{}
	}
	return q
}

// Pending returns the number of queued messages for a chat.
func (m *Mailbox) Pending(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[chatID])
}

// Dropped returns how many messages were discarded for lack of room.
func (m *Mailbox) Dropped() int64 {
	return m.dropped.Load()
}
