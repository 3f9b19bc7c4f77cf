package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// AuthService signs administrators into the HTTP API.
type AuthService struct {
	users        repository.UserRepository
	tokenMgr     *auth.TokenManager
	passwordHash string
	logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, store repository.Store, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:        store.Users(),
		tokenMgr:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		passwordHash: cfg.Auth.AdminPasswordHash,
		logger:       logger,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login checks the shared admin password and issues a token for the
// administrator with the given Telegram id.
func (s *AuthService) Login(ctx context.Context, telegramID int64, password string) (*domain.User, string, time.Time, error) {
	if s.passwordHash == "" {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("api login is disabled")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if isNoRows(err) {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if !user.IsAdmin() {
		s.logger.Warn("api login by non-admin", zap.Int64("telegram_id", telegramID))
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("api login", zap.Int64("user_id", user.ID))
	return user, token, exp, nil
}
