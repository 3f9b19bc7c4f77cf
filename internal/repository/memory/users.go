package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Upsert(_ context.Context, user *domain.User) error {
	return r.s.do(func(d *state) error {
		for _, existing := range d.users {
			if existing.TelegramID != user.TelegramID {
				continue
			}
			existing.Username = user.Username
			existing.FirstName = user.FirstName
			existing.LastName = user.LastName
			if user.Role == domain.RoleAdmin {
				existing.Role = domain.RoleAdmin
			}
			existing.UpdatedAt = user.LastActivity
			existing.LastActivity = user.LastActivity
			*user = *existing
			return nil
		}

		d.nextUser++
		stored := *user
		stored.ID = d.nextUser
		stored.IsActive = true
		stored.CreatedAt = user.LastActivity
		stored.UpdatedAt = user.LastActivity
		d.users[stored.ID] = &stored
		*user = stored
		return nil
	})
}

func (r *userRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.do(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

// LockByID is GetByID: transactions already hold the store lock.
func (r *userRepository) LockByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepository) GetByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.do(func(d *state) error {
		for _, u := range d.users {
			if u.TelegramID == telegramID {
				cp := *u
				out = &cp
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

func (r *userRepository) UpdateRole(_ context.Context, id int64, from, to domain.Role, at time.Time) error {
	return r.s.do(func(d *state) error {
		u, ok := d.users[id]
		if !ok || u.Role != from {
			return repository.ErrStaleWrite
		}
		u.Role = to
		u.UpdatedAt = at
		return nil
	})
}

func (r *userRepository) SetLanguage(_ context.Context, id int64, language string, at time.Time) error {
	return r.s.do(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		u.Language = language
		u.UpdatedAt = at
		return nil
	})
}

func (r *userRepository) Touch(_ context.Context, id int64, at time.Time) error {
	return r.s.do(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		u.LastActivity = at
		return nil
	})
}

func (r *userRepository) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	err := r.s.do(func(d *state) error {
		for _, u := range d.sortedUsers() {
			if u.Role == role && u.IsActive {
				out = append(out, *u)
			}
		}
		return nil
	})
	return out, err
}

func (r *userRepository) AvailableModerators(_ context.Context, excluding int64) ([]domain.User, error) {
	var out []domain.User
	err := r.s.do(func(d *state) error {
		busy := map[int64]bool{}
		for _, t := range d.tickets {
			if t.Status == domain.TicketStatusInProgress && t.ModeratorID != nil {
				busy[*t.ModeratorID] = true
			}
		}
		for _, u := range d.sortedUsers() {
			if u.Role == domain.RoleModerator && u.IsActive && u.ID != excluding && !busy[u.ID] {
				out = append(out, *u)
			}
		}
		return nil
	})
	return out, err
}

func (d *state) sortedUsers() []*domain.User {
	out := make([]*domain.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
