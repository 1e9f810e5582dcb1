// Package messenger delivers bot replies to chats.
//
// A Chat turns SendText/SendPhoto/SendMenu calls into Message values and hands
// them to a Sink. Sinks in this package keep messages for polling (Mailbox),
// post them to a webhook (Outbox), or fan them out (Tee).
package messenger

import (
	"context"
	"time"
)

// Kind identifies the content of a Message.
type Kind string

const (
	KindText  Kind = "text"
	KindPhoto Kind = "photo"
	KindMenu  Kind = "menu"
)

// Button is one inline or keyboard button. Data is empty for keyboard
// buttons, whose text is sent back as a message.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
}

// Message is one outbound chat message.
type Message struct {
	Kind    Kind       `json:"kind"`
	ChatID  int64      `json:"chat_id"`
	Text    string     `json:"text,omitempty"`
	Photo   []byte     `json:"photo,omitempty"`
	Caption string     `json:"caption,omitempty"`
	Buttons [][]Button `json:"buttons,omitempty"`
	SentAt  time.Time  `json:"sent_at"`
}

// Messenger sends replies to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error
	SendMenu(ctx context.Context, chatID int64, text string, buttons [][]Button) error
}

// Sink accepts finished messages.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Chat implements Messenger on top of a Sink.
type Chat struct {
	sink Sink
	now  func() time.Time
}

// New creates a Chat that writes to sink.
func New(sink Sink) *Chat {
	return &Chat{sink: sink, now: time.Now}
}

func (c *Chat) SendText(ctx context.Context, chatID int64, text string) error {
	return c.sink.Send(ctx, Message{Kind: KindText, ChatID: chatID, Text: text, SentAt: c.now()})
}

func (c *Chat) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error {
	return c.sink.Send(ctx, Message{Kind: KindPhoto, ChatID: chatID, Photo: png, Caption: caption, SentAt: c.now()})
}

func (c *Chat) SendMenu(ctx context.Context, chatID int64, text string, buttons [][]Button) error {
	return c.sink.Send(ctx, Message{Kind: KindMenu, ChatID: chatID, Text: text, Buttons: buttons, SentAt: c.now()})
}
