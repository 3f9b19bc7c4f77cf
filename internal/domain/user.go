package domain

import (
	"strconv"
	"strings"
	"time"
)

// Role determines which commands a user may issue.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is anyone who has talked to the bot. Moderators and admins are users with a raised role.
type User struct {
	ID           int64
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	Language     string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
}

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// FullName renders the best available display name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case u.Username != "":
		return "@" + u.Username
	default:
		return strconv.FormatInt(u.TelegramID, 10)
	}
}

// IsModerator reports whether the user may work tickets.
func (u *User) IsModerator() bool {
	return u != nil && u.Role == RoleModerator
}

// IsAdmin reports whether the user has administrative rights.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Profile is the platform identity captured when a user talks to the bot.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	Language   string
}
