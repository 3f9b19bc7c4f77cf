// Package notification turns committed lifecycle events into per-recipient
// deliveries and hands them to a Notifier.
package notification

import (
	"context"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
)

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Attachment references a file already stored by the messaging platform.
type Attachment struct {
	Type     domain.MessageType
	FileID   string
	FileName string
}

// Delivery is one rendered message for one recipient chat.
type Delivery struct {
	EventType  events.EventType
	TicketID   int64
	ChatID     int64
	Text       string
	Attachment *Attachment
	Buttons    [][]Button
}

// Notifier sends a delivery. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, delivery Delivery) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, delivery Delivery) error

func (f NotifierFunc) Notify(ctx context.Context, delivery Delivery) error {
	return f(ctx, delivery)
}

func attachmentOf(msg domain.Message) *Attachment {
	if !msg.HasMedia() {
		return nil
	}
	return &Attachment{Type: msg.Type, FileID: msg.FileID, FileName: msg.FileName}
}
