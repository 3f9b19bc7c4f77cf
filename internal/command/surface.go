package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// Engine is the slice of the lifecycle service the surface drives.
type Engine interface {
	CreateTicket(ctx context.Context, user *domain.User, content domain.Content) (*domain.Ticket, error)
	Claim(ctx context.Context, moderator *domain.User, ticketID int64) (*domain.Ticket, error)
	SendMessage(ctx context.Context, sender *domain.User, ticketID int64, content domain.Content) (*domain.Message, error)
	MarkResolved(ctx context.Context, moderator *domain.User, ticketID int64) (*domain.Ticket, error)
	Reassign(ctx context.Context, from *domain.User, ticketID, toModeratorID int64) (*domain.Ticket, error)
	Rate(ctx context.Context, user *domain.User, ticketID int64, score int) (*domain.Ticket, error)
	ForceRelease(ctx context.Context, admin *domain.User, moderatorID int64, reason string) ([]domain.Ticket, error)
	Reopen(ctx context.Context, admin *domain.User, ticketID int64) (*domain.Ticket, error)
	ActiveTicketForUser(ctx context.Context, userID int64) (*domain.Ticket, error)
	ActiveTicketForModerator(ctx context.Context, moderatorID int64) (*domain.Ticket, error)
}

// Staff changes roles.
type Staff interface {
	Promote(ctx context.Context, admin *domain.User, telegramID int64) (*domain.User, error)
	Demote(ctx context.Context, admin *domain.User, userID int64) (*domain.User, []domain.Ticket, error)
}

// Stats serves the statistics views.
type Stats interface {
	ModeratorStats(ctx context.Context, moderatorID int64) (*domain.ModeratorStats, error)
	GlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

// Result carries whatever the executed command produced. Only the fields
// relevant to the command are set.
type Result struct {
	Ticket         *domain.Ticket
	Message        *domain.Message
	User           *domain.User
	Released       []domain.Ticket
	ModeratorStats *domain.ModeratorStats
	GlobalStats    *domain.GlobalStats
}

// Surface checks the actor's role and then runs the command.
type Surface struct {
	engine Engine
	staff  Staff
	stats  Stats
	logger *zap.Logger
}

// NewSurface wires the surface.
func NewSurface(engine Engine, staff Staff, stats Stats, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{engine: engine, staff: staff, stats: stats, logger: logger}
}

// Execute runs cmd on behalf of actor. A denied command fails with a
// FORBIDDEN error before the engine is touched.
func (s *Surface) Execute(ctx context.Context, actor *domain.User, cmd Command) (Result, error) {
	if actor == nil {
		return Result{}, apperrors.NewUnauthorized("unknown actor")
	}
	if cmd == nil {
		return Result{}, apperrors.NewValidationError("empty command", nil)
	}
	if err := s.Authorize(actor, cmd.Kind()); err != nil {
		return Result{}, err
	}

	switch c := cmd.(type) {
	case CreateTicket:
		t, err := s.engine.CreateTicket(ctx, actor, c.Content)
		return Result{Ticket: t}, err
	case Claim:
		t, err := s.engine.Claim(ctx, actor, c.TicketID)
		return Result{Ticket: t}, err
	case SendMessage:
		ticketID := c.TicketID
		if ticketID == 0 {
			active, err := s.activeTicket(ctx, actor)
			if err != nil {
				return Result{}, err
			}
			ticketID = active.ID
		}
		m, err := s.engine.SendMessage(ctx, actor, ticketID, c.Content)
		return Result{Message: m}, err
	case Resolve:
		t, err := s.engine.MarkResolved(ctx, actor, c.TicketID)
		return Result{Ticket: t}, err
	case Reassign:
		t, err := s.engine.Reassign(ctx, actor, c.TicketID, c.ToModeratorID)
		return Result{Ticket: t}, err
	case Rate:
		t, err := s.engine.Rate(ctx, actor, c.TicketID, c.Score)
		return Result{Ticket: t}, err
	case ForceRelease:
		released, err := s.engine.ForceRelease(ctx, actor, c.ModeratorID, c.Reason)
		return Result{Released: released}, err
	case Promote:
		u, err := s.staff.Promote(ctx, actor, c.TelegramID)
		return Result{User: u}, err
	case Demote:
		u, released, err := s.staff.Demote(ctx, actor, c.UserID)
		return Result{User: u, Released: released}, err
	case Reopen:
		t, err := s.engine.Reopen(ctx, actor, c.TicketID)
		return Result{Ticket: t}, err
	case ModeratorStats:
		st, err := s.stats.ModeratorStats(ctx, actor.ID)
		return Result{ModeratorStats: st}, err
	case GlobalStats:
		st, err := s.stats.GlobalStats(ctx)
		return Result{GlobalStats: st}, err
	}
	return Result{}, fmt.Errorf("unhandled command %s", cmd.Kind())
}

// Authorize checks actor against the policy for kind.
func (s *Surface) Authorize(actor *domain.User, kind Kind) error {
	if actor == nil {
		return apperrors.NewUnauthorized("unknown actor")
	}
	if Allowed(actor.Role, kind) {
		return nil
	}
	s.logger.Warn("command denied",
		zap.Int64("user_id", actor.ID),
		zap.String("role", string(actor.Role)),
		zap.String("command", string(kind)))
	return apperrors.NewForbidden(fmt.Sprintf("%s requires a different role", kind))
}

func (s *Surface) activeTicket(ctx context.Context, actor *domain.User) (*domain.Ticket, error) {
	if actor.IsModerator() {
		if t, err := s.engine.ActiveTicketForModerator(ctx, actor.ID); err == nil {
			return t, nil
		} else if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}
	return s.engine.ActiveTicketForUser(ctx, actor.ID)
}
