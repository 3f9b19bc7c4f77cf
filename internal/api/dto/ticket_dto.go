package dto

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	ModeratorID *int64              `json:"moderator_id"`
	Status      domain.TicketStatus `json:"status"`
	Subject     string              `json:"subject"`
	Rating      *int                `json:"rating,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Messages []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse is one thread entry.
type TicketMessageResponse struct {
	ID       int64              `json:"id"`
	SenderID int64              `json:"sender_id"`
	Type     domain.MessageType `json:"type"`
	Text     string             `json:"text"`
	FileID   string             `json:"file_id,omitempty"`
	FileName string             `json:"file_name,omitempty"`
	SentAt   time.Time          `json:"sent_at"`
}

// ReleaseRequest optionally explains a forced release.
type ReleaseRequest struct {
	Reason string `json:"reason"`
}

// NewTicketSummary maps a domain ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:          t.ID,
		UserID:      t.UserID,
		ModeratorID: t.ModeratorID,
		Status:      t.Status,
		Subject:     t.Subject,
		Rating:      t.Rating,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// NewTicketDetail maps a ticket together with its thread.
func NewTicketDetail(t *domain.Ticket, msgs []domain.Message) TicketDetailResponse {
	out := TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		Messages:      make([]TicketMessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, TicketMessageResponse{
			ID:       m.ID,
			SenderID: m.SenderID,
			Type:     m.Type,
			Text:     m.Text,
			FileID:   m.FileID,
			FileName: m.FileName,
			SentAt:   m.SentAt,
		})
	}
	return out
}
