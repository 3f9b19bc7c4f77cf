package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

const (
	recentClosedLimit = 5
	topModeratorLimit = 5
)

type statsRepository struct {
	s *Store
}

type ratingSum struct {
	sum   int
	count int
}

func (r *ratingSum) add(rating *int) {
	if rating != nil {
		r.sum += *rating
		r.count++
	}
}

func (r ratingSum) average() *float64 {
	if r.count == 0 {
		return nil
	}
	avg := float64(r.sum) / float64(r.count)
	return &avg
}

func (r *statsRepository) ModeratorStats(_ context.Context, moderatorID int64) (*domain.ModeratorStats, error) {
	stats := &domain.ModeratorStats{}
	err := r.s.do(func(d *state) error {
		var ratings ratingSum
		var closed []*domain.Ticket
		for _, t := range d.sortedTickets() {
			if !t.HeldBy(moderatorID) {
				continue
			}
			stats.Total++
			switch t.Status {
			case domain.TicketStatusClosed:
				stats.Closed++
				closed = append(closed, t)
			case domain.TicketStatusInProgress:
				stats.InProgress++
			case domain.TicketStatusResolved:
				stats.Resolved++
			}
			ratings.add(t.Rating)
		}
		stats.AverageRating = ratings.average()

		sort.SliceStable(closed, func(i, j int) bool {
			a, b := closed[i], closed[j]
			if a.ClosedAt != nil && b.ClosedAt != nil && !a.ClosedAt.Equal(*b.ClosedAt) {
				return a.ClosedAt.After(*b.ClosedAt)
			}
			return a.ID > b.ID
		})
		for i := 0; i < len(closed) && i < recentClosedLimit; i++ {
			stats.RecentClosed = append(stats.RecentClosed, *closed[i].Clone())
		}
		return nil
	})
	return stats, err
}

func (r *statsRepository) GlobalStats(_ context.Context, since time.Time) (*domain.GlobalStats, error) {
	stats := &domain.GlobalStats{
		UsersByRole:     map[domain.Role]int{},
		TicketsByStatus: map[domain.TicketStatus]int{},
	}
	err := r.s.do(func(d *state) error {
		for _, u := range d.users {
			stats.UsersByRole[u.Role]++
		}

		var overall ratingSum
		perModerator := map[int64]*ratingSum{}
		closedBy := map[int64]int{}
		for _, t := range d.tickets {
			stats.TicketsByStatus[t.Status]++
			stats.TotalTickets++
			if !t.CreatedAt.Before(since) {
				stats.CreatedLastWeek++
			}
			if t.Status != domain.TicketStatusClosed {
				continue
			}
			overall.add(t.Rating)
			if t.ModeratorID != nil {
				id := *t.ModeratorID
				if perModerator[id] == nil {
					perModerator[id] = &ratingSum{}
				}
				perModerator[id].add(t.Rating)
				closedBy[id]++
			}
		}
		stats.AverageRating = overall.average()

		for id, count := range closedBy {
			u, ok := d.users[id]
			if !ok {
				continue
			}
			stats.TopModerators = append(stats.TopModerators, domain.ModeratorScore{
				Moderator:     *u,
				Closed:        count,
				AverageRating: perModerator[id].average(),
			})
		}
		sort.Slice(stats.TopModerators, func(i, j int) bool {
			a, b := stats.TopModerators[i], stats.TopModerators[j]
			if a.Closed != b.Closed {
				return a.Closed > b.Closed
			}
			return a.Moderator.ID < b.Moderator.ID
		})
		if len(stats.TopModerators) > topModeratorLimit {
			stats.TopModerators = stats.TopModerators[:topModeratorLimit]
		}
		return nil
	})
	return stats, err
}
