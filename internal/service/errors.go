package service

import (
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// Reasons carried in DomainError details so transports can pick a precise message.
const (
	ReasonAlreadyTaken       = "already_taken"
	ReasonModeratorBusy      = "moderator_busy"
	ReasonActiveTicketExists = "active_ticket_exists"
	ReasonNotInProgress      = "not_in_progress"
	ReasonNotAssigned        = "not_assigned"
	ReasonNotParticipant     = "not_participant"
	ReasonNotResolved        = "not_resolved"
	ReasonNotRequester       = "not_requester"
	ReasonNotClosed          = "not_closed"
	ReasonTargetNotModerator = "target_not_moderator"
	ReasonSameModerator      = "same_moderator"
	ReasonNotPromotable      = "not_promotable"
	ReasonNotModerator       = "not_moderator"
	ReasonStale              = "stale"
	ReasonInvalidRating      = "invalid_rating"
)

func precondition(message, reason string, ticketID int64) error {
	details := map[string]any{"reason": reason}
	if ticketID != 0 {
		details["ticket_id"] = ticketID
	}
	return apperrors.NewPrecondition(message, details)
}

func conflict(message, reason string, ticketID int64) error {
	details := map[string]any{"reason": reason}
	if ticketID != 0 {
		details["ticket_id"] = ticketID
	}
	return apperrors.NewConflict(message, details)
}

// notFound converts a missing row into a NotFound DomainError and passes anything else through.
func notFound(resource string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
