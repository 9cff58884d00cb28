// Package chat adapts chat transports (WhatsApp Cloud API, Telegram Bot API)
// to the two operations the bot needs: receive a parsed inbound message and
// send a text to a recipient.
package chat

import (
	"context"
	"time"
)

// Message types forwarded to the command parser.
const (
	TypeText        = "text"
	TypeInteractive = "interactive"
)

// InboundMessage is a transport-neutral incoming message. GroupID is empty
// for direct chats.
type InboundMessage struct {
	SenderID   string
	SenderName string
	MessageID  string
	Timestamp  time.Time
	Text       string
	Type       string
	GroupID    string
}

// Forwardable reports whether the message should reach the parser: plain
// text, or an interactive button reply (whose Text is the button title).
func (m InboundMessage) Forwardable() bool {
	return (m.Type == TypeText || m.Type == TypeInteractive) && m.Text != ""
}

// ReplyTo is where answers to m go: the group, or the sender in a direct chat.
func (m InboundMessage) ReplyTo() string {
	if m.GroupID != "" {
		return m.GroupID
	}
	return m.SenderID
}

// Sender delivers a text message and returns the transport's delivery id.
type Sender interface {
	SendText(ctx context.Context, recipient, body string) (deliveryID string, err error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient, body string) (string, error)

// SendText calls f.
func (f SenderFunc) SendText(ctx context.Context, recipient, body string) (string, error) {
	return f(ctx, recipient, body)
}
