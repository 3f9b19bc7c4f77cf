package telegram

import (
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// errorKey picks the catalog entry that explains err to a chat user.
func errorKey(err error) string {
	switch apperrors.Reason(err) {
	case service.ReasonAlreadyTaken:
		return "error.already_taken"
	case service.ReasonModeratorBusy:
		return "error.moderator_busy"
	case service.ReasonActiveTicketExists:
		return "error.active_ticket"
	case service.ReasonNotInProgress:
		return "ticket.not_in_progress"
	}
	switch {
	case apperrors.IsForbidden(err), apperrors.HasCode(err, apperrors.CodeUnauthorized):
		return "error.forbidden"
	case apperrors.IsNotFound(err):
		return "error.not_found"
	case apperrors.IsConflict(err):
		return "error.conflict"
	case apperrors.IsPrecondition(err):
		return "error.precondition"
	case apperrors.HasCode(err, apperrors.CodeValidation):
		return "error.validation"
	}
	return "error.internal"
}
