package repository

import (
	"context"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

const (
	recentClosedLimit = 5
	topModeratorLimit = 5
)

// StatsRepository runs the aggregate queries behind the statistics views.
type StatsRepository interface {
	// ModeratorStats fills every field except Moderator.
	ModeratorStats(ctx context.Context, moderatorID int64) (*domain.ModeratorStats, error)
	GlobalStats(ctx context.Context, since time.Time) (*domain.GlobalStats, error)
}

type statsRepository struct {
	q querier
}

func (r *statsRepository) ModeratorStats(ctx context.Context, moderatorID int64) (*domain.ModeratorStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='closed'),
               COUNT(*) FILTER (WHERE status='in_progress'),
               COUNT(*) FILTER (WHERE status='resolved'),
               AVG(rating)::float8
        FROM tickets WHERE moderator_id=$1`
	stats := &domain.ModeratorStats{}
	if err := r.q.QueryRow(ctx, query, moderatorID).Scan(
		&stats.Total,
		&stats.Closed,
		&stats.InProgress,
		&stats.Resolved,
		&stats.AverageRating,
	); err != nil {
		return nil, err
	}

	recentQuery := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE moderator_id=$1 AND status='closed'
        ORDER BY closed_at DESC, id DESC LIMIT $2`
	rows, err := r.q.Query(ctx, recentQuery, moderatorID, recentClosedLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats.RecentClosed, err = scanTickets(rows)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *statsRepository) GlobalStats(ctx context.Context, since time.Time) (*domain.GlobalStats, error) {
	stats := &domain.GlobalStats{
		UsersByRole:     map[domain.Role]int{},
		TicketsByStatus: map[domain.TicketStatus]int{},
	}

	rows, err := r.q.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var role domain.Role
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.UsersByRole[role] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.q.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.TicketsByStatus[status] = count
		stats.TotalTickets += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const summary = `
        SELECT COUNT(*) FILTER (WHERE created_at >= $1),
               AVG(rating) FILTER (WHERE status='closed')::float8
        FROM tickets`
	if err := r.q.QueryRow(ctx, summary, since).Scan(&stats.CreatedLastWeek, &stats.AverageRating); err != nil {
		return nil, err
	}

	topQuery := `
        SELECT u.id, u.telegram_id, u.username, u.first_name, u.last_name, u.language, u.role,
               u.is_active, u.created_at, u.updated_at, u.last_activity,
               COUNT(t.id), AVG(t.rating)::float8
        FROM users u
        JOIN tickets t ON t.moderator_id = u.id AND t.status = 'closed'
        GROUP BY u.id
        ORDER BY COUNT(t.id) DESC, u.id
        LIMIT $1`
	rows, err = r.q.Query(ctx, topQuery, topModeratorLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var score domain.ModeratorScore
		u := &score.Moderator
		if err := rows.Scan(
			&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Language, &u.Role,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastActivity,
			&score.Closed, &score.AverageRating,
		); err != nil {
			return nil, err
		}
		stats.TopModerators = append(stats.TopModerators, score)
	}
	return stats, rows.Err()
}
