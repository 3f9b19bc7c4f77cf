package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/clock"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// PageSize is the number of tickets shown per queue or history page.
const PageSize = 5

// LifecycleService owns every ticket mutation. Each operation is one
// transaction of compare-and-swap writes; events go out after commit.
type LifecycleService struct {
	txRunner
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Tickets    []domain.Ticket
	Page       int
	TotalPages int
	Total      int
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		txRunner: newTxRunner(deps.Store, deps.Dispatcher, deps.Clock, deps.Metrics, deps.Logger),
	}
}

// CreateTicket opens a ticket for user with content as its first message.
func (s *LifecycleService) CreateTicket(ctx context.Context, user *domain.User, content domain.Content) (*domain.Ticket, error) {
	if content.Empty() {
		return nil, apperrors.NewValidationError("ticket content is empty", nil)
	}

	var created *domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		existing, err := tx.Tickets().ActiveForUser(ctx, user.ID)
		switch {
		case err == nil:
			return conflict("user already has an active ticket", ReasonActiveTicketExists, existing.ID)
		case !isNoRows(err):
			return err
		}

		now := s.clock.Now()
		ticket := &domain.Ticket{
			UserID:    user.ID,
			Status:    domain.TicketStatusOpen,
			Subject:   subjectFor(content),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			if errors.Is(err, repository.ErrActiveTicketExists) {
				return conflict("user already has an active ticket", ReasonActiveTicketExists, 0)
			}
			return err
		}

		msg := newMessage(ticket.ID, user.ID, content, now)
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}

		created = ticket
		sink.emit(events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			ActorID:  user.ID,
			Payload: events.TicketCreatedPayload{
				Ticket:    *ticket.Clone(),
				Requester: *user,
				Message:   *msg,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket created", zap.Int64("ticket_id", created.ID), zap.Int64("user_id", user.ID))
	return created, nil
}

// Claim assigns an OPEN ticket to moderator. The first claim to commit wins.
// The claimer's role is re-read under a row lock, so a demotion that commits
// first makes the claim fail instead of leaving a ticket held by a user.
func (s *LifecycleService) Claim(ctx context.Context, moderator *domain.User, ticketID int64) (*domain.Ticket, error) {
	var claimed *domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		claimer, err := tx.Users().LockByID(ctx, moderator.ID)
		if err != nil {
			return notFound("moderator", moderator.ID, err)
		}
		if claimer.Role != domain.RoleModerator {
			return precondition("only moderators can take tickets", ReasonNotModerator, ticketID)
		}

		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFound("ticket", ticketID, err)
		}

		busy, err := tx.Tickets().InProgressForModerator(ctx, moderator.ID)
		switch {
		case err == nil && busy.ID != ticketID:
			return conflict("moderator already has a ticket in progress", ReasonModeratorBusy, busy.ID)
		case err != nil && !isNoRows(err):
			return err
		}

		if ticket.Status != domain.TicketStatusOpen {
			return precondition("ticket already taken", ReasonAlreadyTaken, ticketID)
		}

		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		moderatorID := moderator.ID
		next.Status = domain.TicketStatusInProgress
		next.ModeratorID = &moderatorID
		next.UpdatedAt = s.clock.Now()
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			return s.translateClaimError(err, ticketID)
		}

		if err := s.systemMessage(ctx, tx, ticketID, moderator.ID,
			fmt.Sprintf("Ticket taken by moderator %s", moderator.FullName())); err != nil {
			return err
		}

		claimed = next
		sink.emit(events.Event{
			Type:     events.EventTicketClaimed,
			TicketID: ticketID,
			ActorID:  moderator.ID,
			Payload:  events.TicketClaimedPayload{Ticket: *next.Clone(), Moderator: *moderator},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket claimed", zap.Int64("ticket_id", ticketID), zap.Int64("user_id", moderator.ID))
	return claimed, nil
}

func (s *LifecycleService) translateClaimError(err error, ticketID int64) error {
	switch {
	case errors.Is(err, repository.ErrStaleWrite):
		return precondition("ticket already taken", ReasonAlreadyTaken, ticketID)
	case errors.Is(err, repository.ErrModeratorBusy):
		return conflict("moderator already has a ticket in progress", ReasonModeratorBusy, ticketID)
	}
	return err
}

// SendMessage appends content from one participant and routes it to the other.
func (s *LifecycleService) SendMessage(ctx context.Context, sender *domain.User, ticketID int64, content domain.Content) (*domain.Message, error) {
	if content.Empty() {
		return nil, apperrors.NewValidationError("message content is empty", nil)
	}

	var sent *domain.Message
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFound("ticket", ticketID, err)
		}
		if ticket.Status != domain.TicketStatusInProgress {
			return precondition("ticket is not in progress", ReasonNotInProgress, ticketID)
		}

		var recipient int64
		switch {
		case ticket.UserID == sender.ID:
			recipient = *ticket.ModeratorID
		case ticket.HeldBy(sender.ID):
			recipient = ticket.UserID
		default:
			return precondition("sender is not a participant of the ticket", ReasonNotParticipant, ticketID)
		}

		now := s.clock.Now()
		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		next.UpdatedAt = now
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return precondition("ticket changed concurrently", ReasonStale, ticketID)
			}
			return err
		}

		msg := newMessage(ticketID, sender.ID, content, now)
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}

		sent = msg
		sink.emit(events.Event{
			Type:     events.EventTicketMessage,
			TicketID: ticketID,
			ActorID:  sender.ID,
			Payload: events.TicketMessagePayload{
				Ticket:      *next.Clone(),
				Sender:      *sender,
				RecipientID: recipient,
				Message:     *msg,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// MarkResolved moves the moderator's IN_PROGRESS ticket to RESOLVED and
// asks the requester for a rating.
func (s *LifecycleService) MarkResolved(ctx context.Context, moderator *domain.User, ticketID int64) (*domain.Ticket, error) {
	var resolved *domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFound("ticket", ticketID, err)
		}
		if ticket.Status != domain.TicketStatusInProgress {
			return precondition("ticket is not in progress", ReasonNotInProgress, ticketID)
		}
		if !ticket.HeldBy(moderator.ID) {
			return precondition("ticket is assigned to another moderator", ReasonNotAssigned, ticketID)
		}

		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		next.Status = domain.TicketStatusResolved
		next.UpdatedAt = s.clock.Now()
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return precondition("ticket changed concurrently", ReasonStale, ticketID)
			}
			return err
		}
		if err := s.systemMessage(ctx, tx, ticketID, moderator.ID, "Ticket marked as resolved"); err != nil {
			return err
		}

		resolved = next
		sink.emit(events.Event{
			Type:     events.EventTicketResolved,
			TicketID: ticketID,
			ActorID:  moderator.ID,
			Payload:  events.TicketResolvedPayload{Ticket: *next.Clone(), Moderator: *moderator},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket resolved", zap.Int64("ticket_id", ticketID), zap.Int64("user_id", moderator.ID))
	return resolved, nil
}

// Reassign hands an IN_PROGRESS ticket from one moderator to another idle moderator.
func (s *LifecycleService) Reassign(ctx context.Context, from *domain.User, ticketID, toModeratorID int64) (*domain.Ticket, error) {
	var reassigned *domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFound("ticket", ticketID, err)
		}
		if ticket.Status != domain.TicketStatusInProgress {
			return precondition("ticket is not in progress", ReasonNotInProgress, ticketID)
		}
		if !ticket.HeldBy(from.ID) {
			return precondition("ticket is assigned to another moderator", ReasonNotAssigned, ticketID)
		}

		target, err := tx.Users().LockByID(ctx, toModeratorID)
		if err != nil {
			return notFound("moderator", toModeratorID, err)
		}
		if target.ID == from.ID {
			return precondition("ticket is already assigned to this moderator", ReasonSameModerator, ticketID)
		}
		if target.Role != domain.RoleModerator {
			return precondition("target user is not a moderator", ReasonTargetNotModerator, ticketID)
		}

		busy, err := tx.Tickets().InProgressForModerator(ctx, target.ID)
		switch {
		case err == nil:
			return conflict("target moderator already has a ticket in progress", ReasonModeratorBusy, busy.ID)
		case !isNoRows(err):
			return err
		}

		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		next.ModeratorID = &target.ID
		next.UpdatedAt = s.clock.Now()
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			switch {
			case errors.Is(err, repository.ErrStaleWrite):
				return precondition("ticket changed concurrently", ReasonStale, ticketID)
			case errors.Is(err, repository.ErrModeratorBusy):
				return conflict("target moderator already has a ticket in progress", ReasonModeratorBusy, ticketID)
			}
			return err
		}

		if err := s.systemMessage(ctx, tx, ticketID, from.ID,
			fmt.Sprintf("Ticket reassigned from %s to %s", from.FullName(), target.FullName())); err != nil {
			return err
		}

		reassigned = next
		sink.emit(events.Event{
			Type:     events.EventTicketReassigned,
			TicketID: ticketID,
			ActorID:  from.ID,
			Payload:  events.TicketReassignedPayload{Ticket: *next.Clone(), From: *from, To: *target},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket reassigned",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("user_id", from.ID),
		zap.Int64("to_moderator_id", toModeratorID))
	return reassigned, nil
}

// Rate closes a RESOLVED ticket with the requester's score.
func (s *LifecycleService) Rate(ctx context.Context, user *domain.User, ticketID int64, score int) (*domain.Ticket, error) {
	if !domain.ValidRating(score) {
		return nil, precondition(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating), ReasonInvalidRating, ticketID)
	}

	var closed *domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFound("ticket", ticketID, err)
		}
		if ticket.Status != domain.TicketStatusResolved {
			return precondition("ticket is not awaiting a rating", ReasonNotResolved, ticketID)
		}
		if ticket.UserID != user.ID {
			return precondition("only the requester can rate the ticket", ReasonNotRequester, ticketID)
		}

		now := s.clock.Now()
		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		next.Status = domain.TicketStatusClosed
		next.Rating = &score
		next.ClosedAt = &now
		next.UpdatedAt = now
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return precondition("ticket changed concurrently", ReasonStale, ticketID)
			}
			return err
		}
		if err := s.systemMessage(ctx, tx, ticketID, user.ID,
			fmt.Sprintf("Ticket closed with rating %d", score)); err != nil {
			return err
		}

		closed = next
		sink.emit(events.Event{
			Type:     events.EventTicketRated,
			TicketID: ticketID,
			ActorID:  user.ID,
			Payload:  events.TicketRatedPayload{Ticket: *next.Clone(), Rating: score},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket rated", zap.Int64("ticket_id", ticketID), zap.Int("rating", score))
	return closed, nil
}

// ForceRelease returns every ticket held by the moderator to the queue.
func (s *LifecycleService) ForceRelease(ctx context.Context, admin *domain.User, moderatorID int64, reason string) ([]domain.Ticket, error) {
	var released []domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		if _, err := tx.Users().GetByID(ctx, moderatorID); err != nil {
			return notFound("moderator", moderatorID, err)
		}
		var err error
		released, err = s.releaseTx(ctx, tx, sink, admin.ID, moderatorID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("moderator tickets released",
		zap.Int64("user_id", moderatorID),
		zap.Int("tickets", len(released)))
	return released, nil
}

// releaseTx is the unit shared by ForceRelease and demotion. A lost CAS on
// any ticket fails the whole transaction.
func (s *LifecycleService) releaseTx(ctx context.Context, tx repository.Store, sink *eventSink, actorID, moderatorID int64, reason string) ([]domain.Ticket, error) {
	held, err := tx.Tickets().HeldByModerator(ctx, moderatorID)
	if err != nil {
		return nil, err
	}

	text := "Ticket returned to queue"
	if reason = strings.TrimSpace(reason); reason != "" {
		text += ": " + reason
	}

	released := make([]domain.Ticket, 0, len(held))
	for i := range held {
		ticket := &held[i]
		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		next.Status = domain.TicketStatusOpen
		next.ModeratorID = nil
		next.UpdatedAt = s.clock.Now()
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return nil, precondition("ticket changed concurrently", ReasonStale, ticket.ID)
			}
			return nil, err
		}
		if err := s.systemMessage(ctx, tx, ticket.ID, actorID, text); err != nil {
			return nil, err
		}

		released = append(released, *next)
		sink.emit(events.Event{
			Type:     events.EventTicketReleased,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.TicketReleasedPayload{
				Ticket:              *next.Clone(),
				PreviousModeratorID: moderatorID,
				Reason:              reason,
			},
		})
	}
	return released, nil
}

// Reopen returns a CLOSED ticket to the queue, clearing its assignment and rating.
func (s *LifecycleService) Reopen(ctx context.Context, admin *domain.User, ticketID int64) (*domain.Ticket, error) {
	var reopened *domain.Ticket
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return notFound("ticket", ticketID, err)
		}
		if ticket.Status != domain.TicketStatusClosed {
			return precondition("only closed tickets can be reopened", ReasonNotClosed, ticketID)
		}

		active, err := tx.Tickets().ActiveForUser(ctx, ticket.UserID)
		switch {
		case err == nil:
			return conflict("requester already has an active ticket", ReasonActiveTicketExists, active.ID)
		case !isNoRows(err):
			return err
		}

		expect := repository.ExpectationOf(ticket)
		next := ticket.Clone()
		next.Status = domain.TicketStatusOpen
		next.ModeratorID = nil
		next.ClosedAt = nil
		next.Rating = nil
		next.UpdatedAt = s.clock.Now()
		if err := tx.Tickets().Transition(ctx, next, expect); err != nil {
			switch {
			case errors.Is(err, repository.ErrStaleWrite):
				return precondition("ticket changed concurrently", ReasonStale, ticketID)
			case errors.Is(err, repository.ErrActiveTicketExists):
				return conflict("requester already has an active ticket", ReasonActiveTicketExists, ticketID)
			}
			return err
		}
		if err := s.systemMessage(ctx, tx, ticketID, admin.ID, "Ticket reopened by administrator"); err != nil {
			return err
		}

		reopened = next
		sink.emit(events.Event{
			Type:     events.EventTicketReopened,
			TicketID: ticketID,
			ActorID:  admin.ID,
			Payload:  events.TicketReopenedPayload{Ticket: *next.Clone()},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket reopened", zap.Int64("ticket_id", ticketID), zap.Int64("user_id", admin.ID))
	return reopened, nil
}

// GetTicket loads a ticket by id.
func (s *LifecycleService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound("ticket", ticketID, err)
	}
	return ticket, nil
}

// ActiveTicketForUser returns the requester's active ticket or a NotFound error.
func (s *LifecycleService) ActiveTicketForUser(ctx context.Context, userID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().ActiveForUser(ctx, userID)
	if err != nil {
		return nil, notFound("active ticket", userID, err)
	}
	return ticket, nil
}

// ActiveTicketForModerator returns the moderator's IN_PROGRESS ticket or a NotFound error.
func (s *LifecycleService) ActiveTicketForModerator(ctx context.Context, moderatorID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().InProgressForModerator(ctx, moderatorID)
	if err != nil {
		return nil, notFound("active ticket", moderatorID, err)
	}
	return ticket, nil
}

// ListUnassigned pages through OPEN tickets, oldest first.
func (s *LifecycleService) ListUnassigned(ctx context.Context, page int) (*TicketPage, error) {
	return s.listPage(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
	}, page)
}

// ListHistory pages through the user's CLOSED tickets, newest first.
func (s *LifecycleService) ListHistory(ctx context.Context, userID int64, page int) (*TicketPage, error) {
	return s.listPage(ctx, repository.TicketFilter{
		UserID:      &userID,
		Statuses:    []domain.TicketStatus{domain.TicketStatusClosed},
		NewestFirst: true,
	}, page)
}

func (s *LifecycleService) listPage(ctx context.Context, filter repository.TicketFilter, page int) (*TicketPage, error) {
	total, err := s.store.Tickets().CountWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	filter.Limit = PageSize
	filter.Offset = (page - 1) * PageSize
	tickets, err := s.store.Tickets().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TicketPage{Tickets: tickets, Page: page, TotalPages: totalPages, Total: total}, nil
}

// TicketMessages returns the last limit messages of the ticket in chronological order.
func (s *LifecycleService) TicketMessages(ctx context.Context, ticketID int64, limit int) ([]domain.Message, error) {
	return s.store.Messages().ListByTicket(ctx, ticketID, limit)
}

// AvailableModerators lists moderators who could take over a ticket.
func (s *LifecycleService) AvailableModerators(ctx context.Context, excluding int64) ([]domain.User, error) {
	return s.store.Users().AvailableModerators(ctx, excluding)
}

func newMessage(ticketID, senderID int64, content domain.Content, at time.Time) *domain.Message {
	msgType := content.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	return &domain.Message{
		TicketID: ticketID,
		SenderID: senderID,
		Type:     msgType,
		Text:     content.Text,
		FileID:   content.FileID,
		FileName: content.FileName,
		SentAt:   at,
	}
}

// subjectFor derives the subject from the first message, falling back to the
// media type for captionless files.
func subjectFor(content domain.Content) string {
	if subject := domain.SubjectFromText(content.Text); subject != "" {
		return subject
	}
	return "[" + string(content.Type) + "]"
}
