package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStaleWrite is returned when a compare-and-swap update matched no row
	// because the ticket or user changed since it was read.
	ErrStaleWrite = errors.New("stale write")
	// ErrActiveTicketExists is returned when a write would give a requester a second active ticket.
	ErrActiveTicketExists = errors.New("requester already has an active ticket")
	// ErrModeratorBusy is returned when a write would give a moderator a second in-progress ticket.
	ErrModeratorBusy = errors.New("moderator already has a ticket in progress")
	// ErrIllegalTransition is returned when a write would leave the status graph.
	ErrIllegalTransition = errors.New("illegal ticket status transition")
)

const (
	constraintUserActive          = "ux_tickets_user_active"
	constraintModeratorInProgress = "ux_tickets_moderator_in_progress"
	uniqueViolation               = "23505"
)

// Store is the entity store. Repositories obtained from a transactional Store
// share its transaction.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	Messages() MessageRepository
	Stats() StatsRepository
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	// Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStore struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewPostgresStore returns a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, q: pool}
}

func (s *pgStore) Users() UserRepository       { return &userRepository{q: s.q} }
func (s *pgStore) Tickets() TicketRepository   { return &ticketRepository{q: s.q} }
func (s *pgStore) Messages() MessageRepository { return &messageRepository{q: s.q} }
func (s *pgStore) Stats() StatsRepository      { return &statsRepository{q: s.q} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgStore{pool: s.pool, q: tx, inTx: true})
	})
}

// mapWriteError translates unique violations on the ticket cardinality
// indexes into repository sentinels.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintUserActive:
			return ErrActiveTicketExists
		case constraintModeratorInProgress:
			return ErrModeratorBusy
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}
