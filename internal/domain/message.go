package domain

import "time"

// MessageType differentiates message payloads.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypePhoto    MessageType = "photo"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeSystem   MessageType = "system"
)

// Message is an append-only entry in a ticket thread.
type Message struct {
	ID       int64
	TicketID int64
	SenderID int64
	Type     MessageType
	Text     string
	FileID   string
	FileName string
	IsRead   bool
	SentAt   time.Time
}

// IsSystem reports whether the message is part of the audit trail.
func (m Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

// HasMedia reports whether the message carries a file reference.
func (m Message) HasMedia() bool {
	return m.FileID != ""
}

// Content is what a human sends into a ticket: text, or a file with an optional caption.
type Content struct {
	Type     MessageType
	Text     string
	FileID   string
	FileName string
}

// Empty reports whether the content carries nothing to store.
func (c Content) Empty() bool {
	return c.Text == "" && c.FileID == ""
}

// TextContent is a shorthand for plain text content.
func TextContent(text string) Content {
	return Content{Type: MessageTypeText, Text: text}
}
