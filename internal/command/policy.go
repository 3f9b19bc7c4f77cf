package command

import "github.com/spec-kit/support-bot/internal/domain"

var anyRole = []domain.Role{domain.RoleUser, domain.RoleModerator, domain.RoleAdmin}

// policy lists the roles allowed to issue each command.
var policy = map[Kind][]domain.Role{
	KindCreateTicket:   anyRole,
	KindSendMessage:    anyRole,
	KindRate:           anyRole,
	KindClaim:          {domain.RoleModerator},
	KindResolve:        {domain.RoleModerator},
	KindReassign:       {domain.RoleModerator},
	KindModeratorStats: {domain.RoleModerator},
	KindForceRelease:   {domain.RoleAdmin},
	KindPromote:        {domain.RoleAdmin},
	KindDemote:         {domain.RoleAdmin},
	KindReopen:         {domain.RoleAdmin},
	KindGlobalStats:    {domain.RoleAdmin},

	KindViewQueue:      {domain.RoleModerator},
	KindViewModerators: {domain.RoleAdmin},
}

// Allowed reports whether role may issue commands of kind.
func Allowed(role domain.Role, kind Kind) bool {
	for _, r := range policy[kind] {
		if r == role {
			return true
		}
	}
	return false
}
