package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ActiveStatuses are the statuses in which a ticket counts against the requester.
var ActiveStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved}

// HeldStatuses are the statuses in which a ticket is bound to a moderator.
var HeldStatuses = []TicketStatus{TicketStatusInProgress, TicketStatusResolved}

const (
	// SubjectMaxRunes bounds the subject derived from the first message.
	SubjectMaxRunes = 50
	MinRating       = 1
	MaxRating       = 5
)

// allowedTransitions is the complete status graph. Reassignment keeps
// IN_PROGRESS and is therefore a self edge.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusInProgress, TicketStatusResolved, TicketStatusOpen},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusOpen},
	TicketStatusClosed:     {TicketStatusOpen},
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	UserID      int64
	ModeratorID *int64
	Status      TicketStatus
	Subject     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
	Rating      *int
}

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsActive reports whether the status blocks the requester from opening another ticket.
func (s TicketStatus) IsActive() bool {
	for _, st := range ActiveStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsHeld reports whether a ticket in this status stays bound to its moderator.
func (s TicketStatus) IsHeld() bool {
	for _, st := range HeldStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the ticket is the requester's active ticket.
func (t *Ticket) IsActive() bool {
	return t != nil && t.Status.IsActive()
}

// HeldBy reports whether the ticket is currently assigned to the given moderator.
func (t *Ticket) HeldBy(moderatorID int64) bool {
	return t != nil && t.ModeratorID != nil && *t.ModeratorID == moderatorID
}

// Clone returns a deep copy so callers can mutate it without aliasing pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.ModeratorID != nil {
		id := *t.ModeratorID
		c.ModeratorID = &id
	}
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		c.ClosedAt = &at
	}
	if t.Rating != nil {
		r := *t.Rating
		c.Rating = &r
	}
	return &c
}

// SubjectFromText derives a ticket subject from the first message.
func SubjectFromText(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= SubjectMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:SubjectMaxRunes]) + "..."
}

// ValidRating reports whether score is an accepted rating.
func ValidRating(score int) bool {
	return score >= MinRating && score <= MaxRating
}
