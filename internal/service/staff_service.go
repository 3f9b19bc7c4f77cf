package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// StaffService manages users and their roles.
type StaffService struct {
	txRunner
	lifecycle    *LifecycleService
	telegram     config.TelegramConfig
	localization config.LocalizationConfig
}

// NewStaffService constructs the service. Demotion reuses the lifecycle
// service's release unit so both commit in one transaction.
func NewStaffService(cfg config.Config, lifecycle *LifecycleService) *StaffService {
	return &StaffService{
		txRunner:     lifecycle.txRunner,
		lifecycle:    lifecycle,
		telegram:     cfg.Telegram,
		localization: cfg.Localization,
	}
}

// Register upserts the user behind a platform profile. created reports
// whether the user talked to the bot for the first time.
func (s *StaffService) Register(ctx context.Context, profile domain.Profile) (user *domain.User, created bool, err error) {
	_, err = s.store.Users().GetByTelegramID(ctx, profile.TelegramID)
	switch {
	case err == nil:
	case isNoRows(err):
		created = true
	default:
		return nil, false, err
	}

	role := domain.RoleUser
	if s.telegram.IsAdmin(profile.TelegramID) {
		role = domain.RoleAdmin
	}
	user = &domain.User{
		TelegramID:   profile.TelegramID,
		Username:     profile.Username,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Language:     s.language(profile.Language),
		Role:         role,
		LastActivity: s.clock.Now(),
	}
	if err := s.store.Users().Upsert(ctx, user); err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	}
	return user, created, nil
}

// EnsureAdmins grants the admin role to every configured Telegram id. A
// moderator being raised to admin first hands back the tickets they hold.
func (s *StaffService) EnsureAdmins(ctx context.Context) error {
	for _, telegramID := range s.telegram.AdminIDs {
		err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
			user, err := tx.Users().GetByTelegramID(ctx, telegramID)
			if isNoRows(err) {
				return tx.Users().Upsert(ctx, &domain.User{
					TelegramID:   telegramID,
					Language:     s.localization.DefaultLanguage,
					Role:         domain.RoleAdmin,
					LastActivity: s.clock.Now(),
				})
			}
			if err != nil {
				return err
			}
			if user.Role == domain.RoleAdmin {
				return nil
			}
			if user, err = tx.Users().LockByID(ctx, user.ID); err != nil {
				return err
			}
			if user.Role == domain.RoleModerator {
				if _, err := s.lifecycle.releaseTx(ctx, tx, sink, user.ID, user.ID, "moderator became administrator"); err != nil {
					return err
				}
			}
			return tx.Users().UpdateRole(ctx, user.ID, user.Role, domain.RoleAdmin, s.clock.Now())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Promote raises a plain user, found by Telegram id, to moderator.
func (s *StaffService) Promote(ctx context.Context, admin *domain.User, telegramID int64) (*domain.User, error) {
	var promoted *domain.User
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		target, err := tx.Users().GetByTelegramID(ctx, telegramID)
		if err != nil {
			return notFound("user", telegramID, err)
		}
		if target.Role != domain.RoleUser {
			return precondition("only users can be promoted", ReasonNotPromotable, 0)
		}

		if err := tx.Users().UpdateRole(ctx, target.ID, domain.RoleUser, domain.RoleModerator, s.clock.Now()); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return precondition("user changed concurrently", ReasonStale, 0)
			}
			return err
		}

		target.Role = domain.RoleModerator
		promoted = target
		sink.emit(events.Event{
			Type:    events.EventRolePromoted,
			ActorID: admin.ID,
			Payload: events.RoleChangedPayload{User: *target, OldRole: domain.RoleUser, NewRole: domain.RoleModerator},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user promoted", zap.Int64("user_id", promoted.ID), zap.Int64("admin_id", admin.ID))
	return promoted, nil
}

// Demote lowers a moderator to user. The moderator's row is locked first,
// then the held tickets are released in the same transaction; the role only
// flips once every release has been written. A concurrent Claim by the same
// moderator either commits before the lock is granted, and its ticket is
// released here, or sees the new role and fails.
func (s *StaffService) Demote(ctx context.Context, admin *domain.User, userID int64) (*domain.User, []domain.Ticket, error) {
	var (
		demoted  *domain.User
		released []domain.Ticket
	)
	err := s.run(ctx, func(ctx context.Context, tx repository.Store, sink *eventSink) error {
		target, err := tx.Users().LockByID(ctx, userID)
		if err != nil {
			return notFound("user", userID, err)
		}
		if target.Role != domain.RoleModerator {
			return precondition("only moderators can be demoted", ReasonNotModerator, 0)
		}

		released, err = s.lifecycle.releaseTx(ctx, tx, sink, admin.ID, target.ID, "moderator demoted")
		if err != nil {
			return err
		}

		if err := tx.Users().UpdateRole(ctx, target.ID, domain.RoleModerator, domain.RoleUser, s.clock.Now()); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return precondition("user changed concurrently", ReasonStale, 0)
			}
			return err
		}

		target.Role = domain.RoleUser
		demoted = target
		sink.emit(events.Event{
			Type:    events.EventRoleDemoted,
			ActorID: admin.ID,
			Payload: events.RoleChangedPayload{User: *target, OldRole: domain.RoleModerator, NewRole: domain.RoleUser},
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("moderator demoted",
		zap.Int64("user_id", demoted.ID),
		zap.Int64("admin_id", admin.ID),
		zap.Int("released_tickets", len(released)))
	return demoted, released, nil
}

// SetLanguage stores the user's interface language.
func (s *StaffService) SetLanguage(ctx context.Context, user *domain.User, language string) error {
	language = strings.ToLower(strings.TrimSpace(language))
	if !s.localization.Supports(language) {
		return apperrors.NewValidationError("unsupported language", map[string]any{"language": language})
	}
	if err := s.store.Users().SetLanguage(ctx, user.ID, language, s.clock.Now()); err != nil {
		return notFound("user", user.ID, err)
	}
	user.Language = language
	return nil
}

// Touch records user activity.
func (s *StaffService) Touch(ctx context.Context, userID int64) error {
	return s.store.Users().Touch(ctx, userID, s.clock.Now())
}

// GetUser loads a user by internal id.
func (s *StaffService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

// GetByTelegramID loads a user by platform id.
func (s *StaffService) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	user, err := s.store.Users().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, notFound("user", telegramID, err)
	}
	return user, nil
}

// ListModerators returns every active moderator.
func (s *StaffService) ListModerators(ctx context.Context) ([]domain.User, error) {
	return s.store.Users().ListByRole(ctx, domain.RoleModerator)
}

func (s *StaffService) language(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if len(requested) > 2 {
		requested = requested[:2]
	}
	if s.localization.Supports(requested) {
		return requested
	}
	return s.localization.DefaultLanguage
}
