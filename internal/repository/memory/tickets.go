package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
)

type ticketRepository struct {
	s *Store
}

func (r *ticketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.s.do(func(d *state) error {
		candidate := ticket.Clone()
		candidate.ID = d.nextTicket + 1
		if err := d.checkCardinality(candidate); err != nil {
			return err
		}
		d.nextTicket++
		ticket.ID = candidate.ID
		d.tickets[candidate.ID] = candidate
		return nil
	})
}

func (r *ticketRepository) Transition(_ context.Context, ticket *domain.Ticket, expect repository.Expectation) error {
	if !domain.CanTransition(expect.Status, ticket.Status) {
		return fmt.Errorf("%w: %s -> %s", repository.ErrIllegalTransition, expect.Status, ticket.Status)
	}
	return r.s.do(func(d *state) error {
		stored, ok := d.tickets[ticket.ID]
		if !ok || stored.Status != expect.Status || !sameModerator(stored.ModeratorID, expect.ModeratorID) {
			return repository.ErrStaleWrite
		}

		next := stored.Clone()
		next.Status = ticket.Status
		next.ModeratorID = ticket.Clone().ModeratorID
		next.UpdatedAt = ticket.UpdatedAt
		next.ClosedAt = ticket.Clone().ClosedAt
		next.Rating = ticket.Clone().Rating
		if err := d.checkCardinality(next); err != nil {
			return err
		}
		d.tickets[ticket.ID] = next
		return nil
	})
}

func (r *ticketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.do(func(d *state) error {
		t, ok := d.tickets[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *ticketRepository) ActiveForUser(_ context.Context, userID int64) (*domain.Ticket, error) {
	return r.first(func(t *domain.Ticket) bool {
		return t.UserID == userID && t.Status.IsActive()
	})
}

func (r *ticketRepository) InProgressForModerator(_ context.Context, moderatorID int64) (*domain.Ticket, error) {
	return r.first(func(t *domain.Ticket) bool {
		return t.Status == domain.TicketStatusInProgress && t.HeldBy(moderatorID)
	})
}

func (r *ticketRepository) HeldByModerator(_ context.Context, moderatorID int64) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.s.do(func(d *state) error {
		for _, t := range d.sortedTickets() {
			if t.HeldBy(moderatorID) && t.Status.IsHeld() {
				out = append(out, *t.Clone())
			}
		}
		return nil
	})
	return out, err
}

func (r *ticketRepository) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.s.do(func(d *state) error {
		matched := d.filter(filter)
		byClosure := len(filter.Statuses) == 1 && filter.Statuses[0] == domain.TicketStatusClosed
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i], matched[j]
			ka, kb := a.CreatedAt, b.CreatedAt
			if byClosure && a.ClosedAt != nil && b.ClosedAt != nil {
				ka, kb = *a.ClosedAt, *b.ClosedAt
			}
			if !ka.Equal(kb) {
				if filter.NewestFirst {
					return ka.After(kb)
				}
				return ka.Before(kb)
			}
			if filter.NewestFirst {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		})

		limit := filter.Limit
		if limit <= 0 {
			limit = 20
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		for i := offset; i < len(matched) && i < offset+limit; i++ {
			out = append(out, *matched[i].Clone())
		}
		return nil
	})
	return out, err
}

func (r *ticketRepository) CountWithFilter(_ context.Context, filter repository.TicketFilter) (int, error) {
	var count int
	err := r.s.do(func(d *state) error {
		count = len(d.filter(filter))
		return nil
	})
	return count, err
}

func (r *ticketRepository) first(match func(*domain.Ticket) bool) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.do(func(d *state) error {
		for _, t := range d.sortedTickets() {
			if match(t) {
				out = t.Clone()
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

// checkCardinality mirrors the partial unique indexes of the Postgres schema.
func (d *state) checkCardinality(candidate *domain.Ticket) error {
	for id, other := range d.tickets {
		if id == candidate.ID {
			continue
		}
		if candidate.Status.IsActive() && other.Status.IsActive() && other.UserID == candidate.UserID {
			return repository.ErrActiveTicketExists
		}
		if candidate.Status == domain.TicketStatusInProgress && other.Status == domain.TicketStatusInProgress &&
			candidate.ModeratorID != nil && other.HeldBy(*candidate.ModeratorID) {
			return repository.ErrModeratorBusy
		}
	}
	return nil
}

func (d *state) sortedTickets() []*domain.Ticket {
	out := make([]*domain.Ticket, 0, len(d.tickets))
	for _, t := range d.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *state) filter(f repository.TicketFilter) []*domain.Ticket {
	var out []*domain.Ticket
	for _, t := range d.sortedTickets() {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.ModeratorID != nil && !t.HeldBy(*f.ModeratorID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func sameModerator(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
