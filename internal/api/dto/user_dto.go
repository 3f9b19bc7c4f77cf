package dto

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// LoginRequest payload for administrator login.
type LoginRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Password   string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID           int64       `json:"id"`
	TelegramID   int64       `json:"telegram_id"`
	Username     string      `json:"username,omitempty"`
	Name         string      `json:"name"`
	Language     string      `json:"language"`
	Role         domain.Role `json:"role"`
	LastActivity time.Time   `json:"last_activity"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		TelegramID:   u.TelegramID,
		Username:     u.Username,
		Name:         u.FullName(),
		Language:     u.Language,
		Role:         u.Role,
		LastActivity: u.LastActivity,
	}
}
