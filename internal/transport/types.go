// Package transport describes the chat side of the bot independently of the
// concrete messenger.
package transport

import (
	"context"
	"errors"
)

// ErrNotReady is returned by senders that haven't connected yet.
var ErrNotReady = errors.New("transport not ready")

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers plain text to a chat. Success or failure is only visible
// through the returned error.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// StatusFunc renders a short human-readable status report.
type StatusFunc func() string

// Adapter is a connected chat transport.
//
// Ready is closed once the transport has confirmed its connection; it is
// never closed if Start fails.
type Adapter interface {
	Sender
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ready() <-chan struct{}
}
