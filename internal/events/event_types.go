package events

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketClaimed    EventType = "ticket_claimed"
	EventTicketMessage    EventType = "ticket_message_sent"
	EventTicketResolved   EventType = "ticket_resolved"
	EventTicketReassigned EventType = "ticket_reassigned"
	EventTicketRated      EventType = "ticket_rated"
	EventTicketReleased   EventType = "ticket_released"
	EventTicketReopened   EventType = "ticket_reopened"
	EventRolePromoted     EventType = "role_promoted"
	EventRoleDemoted      EventType = "role_demoted"
)

// AllEventTypes lists every event the engine and staff services emit.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketClaimed,
	EventTicketMessage,
	EventTicketResolved,
	EventTicketReassigned,
	EventTicketRated,
	EventTicketReleased,
	EventTicketReopened,
	EventRolePromoted,
	EventRoleDemoted,
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	ActorID   int64       `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket    domain.Ticket  `json:"ticket"`
	Requester domain.User    `json:"requester"`
	Message   domain.Message `json:"message"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	Ticket    domain.Ticket `json:"ticket"`
	Moderator domain.User   `json:"moderator"`
}

// TicketMessagePayload payload. RecipientID is the internal id of the counterpart.
type TicketMessagePayload struct {
	Ticket      domain.Ticket  `json:"ticket"`
	Sender      domain.User    `json:"sender"`
	RecipientID int64          `json:"recipient_id"`
	Message     domain.Message `json:"message"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Ticket    domain.Ticket `json:"ticket"`
	Moderator domain.User   `json:"moderator"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
	From   domain.User   `json:"from"`
	To     domain.User   `json:"to"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
	Rating int           `json:"rating"`
}

// TicketReleasedPayload payload.
type TicketReleasedPayload struct {
	Ticket              domain.Ticket `json:"ticket"`
	PreviousModeratorID int64         `json:"previous_moderator_id"`
	Reason              string        `json:"reason,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// RoleChangedPayload payload for promotions and demotions.
type RoleChangedPayload struct {
	User    domain.User `json:"user"`
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}
