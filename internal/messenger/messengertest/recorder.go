// Package messengertest provides an in-memory sink for tests.
package messengertest

import (
	"context"
	"reportbot/internal/messenger"
	"strings"
	"sync"
)

// Recorder is a Sink that remembers every message.
type Recorder struct {
	mu       sync.Mutex
	messages []messenger.Message
	err      error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes later sends record the message and return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Send(_ context.Context, msg messenger.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.err
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []messenger.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messenger.Message(nil), r.messages...)
}

// For returns the messages sent to chatID.
func (r *Recorder) For(chatID int64) []messenger.Message {
	var out []messenger.Message
	for _, m := range r.Messages() {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Texts returns the text of every text and menu message, in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, m := range r.Messages() {
		if m.Kind != messenger.KindPhoto {
			out = append(out, m.Text)
		}
	}
	return out
}

// Contains reports whether any text message contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, t := range r.Texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Reset forgets all messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
