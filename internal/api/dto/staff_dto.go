package dto

import "github.com/spec-kit/support-bot/internal/domain"

// ModeratorResponse lists a moderator together with the ticket they hold.
type ModeratorResponse struct {
	UserResponse
	CurrentTicketID *int64 `json:"current_ticket_id"`
}

// DemoteResponse reports a demotion and the tickets returned to the queue.
type DemoteResponse struct {
	User     UserResponse    `json:"user"`
	Released []TicketSummary `json:"released"`
}

// NewSummaries maps a ticket slice.
func NewSummaries(tickets []domain.Ticket) []TicketSummary {
	out := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketSummary(&tickets[i]))
	}
	return out
}
