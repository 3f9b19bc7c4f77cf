package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	UserID      *int64
	ModeratorID *int64
	Statuses    []domain.TicketStatus
	NewestFirst bool
	Limit       int
	Offset      int
}

// Expectation is the state a compare-and-swap update requires the stored row to be in.
type Expectation struct {
	Status      domain.TicketStatus
	ModeratorID *int64
}

// ExpectationOf captures the current state of a ticket.
func ExpectationOf(t *domain.Ticket) Expectation {
	exp := Expectation{Status: t.Status}
	if t.ModeratorID != nil {
		id := *t.ModeratorID
		exp.ModeratorID = &id
	}
	return exp
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Transition writes the mutable fields of ticket only when the stored row
	// still matches expect. It returns ErrStaleWrite when it does not and
	// ErrIllegalTransition when expect.Status -> ticket.Status is not an edge
	// of the status graph.
	Transition(ctx context.Context, ticket *domain.Ticket, expect Expectation) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ActiveForUser(ctx context.Context, userID int64) (*domain.Ticket, error)
	InProgressForModerator(ctx context.Context, moderatorID int64) (*domain.Ticket, error)
	// HeldByModerator returns the IN_PROGRESS and RESOLVED tickets assigned to the
	// moderator, locked for update when running in a transaction.
	HeldByModerator(ctx context.Context, moderatorID int64) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountWithFilter(ctx context.Context, filter TicketFilter) (int, error)
}

type ticketRepository struct {
	q querier
}

const ticketColumns = `id, user_id, moderator_id, status, subject, created_at, updated_at, closed_at, rating`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, moderator_id, status, subject, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.q.QueryRow(ctx, query,
		ticket.UserID,
		ticket.ModeratorID,
		ticket.Status,
		ticket.Subject,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID)
	return mapWriteError(err)
}

func (r *ticketRepository) Transition(ctx context.Context, ticket *domain.Ticket, expect Expectation) error {
	const query = `
        UPDATE tickets SET status=$1, moderator_id=$2, updated_at=$3, closed_at=$4, rating=$5
        WHERE id=$6 AND status=$7 AND moderator_id IS NOT DISTINCT FROM $8`
	if !domain.CanTransition(expect.Status, ticket.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, expect.Status, ticket.Status)
	}
	cmd, err := r.q.Exec(ctx, query,
		ticket.Status,
		ticket.ModeratorID,
		ticket.UpdatedAt,
		ticket.ClosedAt,
		ticket.Rating,
		ticket.ID,
		expect.Status,
		expect.ModeratorID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.q.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ActiveForUser(ctx context.Context, userID int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE user_id=$1 AND status IN ('open','in_progress','resolved')
        ORDER BY created_at DESC LIMIT 1`
	return scanTicket(r.q.QueryRow(ctx, query, userID))
}

func (r *ticketRepository) InProgressForModerator(ctx context.Context, moderatorID int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE moderator_id=$1 AND status='in_progress'
        LIMIT 1`
	return scanTicket(r.q.QueryRow(ctx, query, moderatorID))
}

func (r *ticketRepository) HeldByModerator(ctx context.Context, moderatorID int64) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE moderator_id=$1 AND status = ANY($2)
        ORDER BY id
        FOR UPDATE`
	held := make([]string, len(domain.HeldStatuses))
	for i, st := range domain.HeldStatuses {
		held[i] = string(st)
	}
	rows, err := r.q.Query(ctx, query, moderatorID, held)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := filter.where()

	order := "ASC"
	if filter.NewestFirst {
		order = "DESC"
	}
	// closed history is ordered by closure, everything else by creation.
	orderColumn := "created_at"
	if len(filter.Statuses) == 1 && filter.Statuses[0] == domain.TicketStatusClosed {
		orderColumn = "closed_at"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s %s, id %s LIMIT %d OFFSET %d`,
		ticketColumns, where, orderColumn, order, order, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountWithFilter(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := filter.where()
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&count)
	return count, err
}

func (f TicketFilter) where() (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if f.UserID != nil {
		args = append(args, *f.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.ModeratorID != nil {
		args = append(args, *f.ModeratorID)
		clauses = append(clauses, fmt.Sprintf("moderator_id=$%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, status := range f.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row scanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.ModeratorID,
		&ticket.Status,
		&ticket.Subject,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
		&ticket.Rating,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
