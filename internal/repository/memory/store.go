// Package memory is an in-process Store used by tests and by STORE_DRIVER=memory.
// It enforces the same compare-and-swap and cardinality rules as the Postgres store.
package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
)

type state struct {
	users       map[int64]*domain.User
	tickets     map[int64]*domain.Ticket
	messages    []domain.Message
	nextUser    int64
	nextTicket  int64
	nextMessage int64
}

func newState() *state {
	return &state{
		users:   map[int64]*domain.User{},
		tickets: map[int64]*domain.Ticket{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]*domain.User, len(s.users)),
		tickets:     make(map[int64]*domain.Ticket, len(s.tickets)),
		messages:    append([]domain.Message(nil), s.messages...),
		nextUser:    s.nextUser,
		nextTicket:  s.nextTicket,
		nextMessage: s.nextMessage,
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	for id, t := range s.tickets {
		c.tickets[id] = t.Clone()
	}
	return c
}

// Store is a mutex-guarded in-memory repository.Store. Transactions hold the
// lock for their whole duration and restore a snapshot when they fail.
type Store struct {
	mu   *sync.Mutex
	data *state
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository       { return &userRepository{s: s} }
func (s *Store) Tickets() repository.TicketRepository   { return &ticketRepository{s: s} }
func (s *Store) Messages() repository.MessageRepository { return &messageRepository{s: s} }
func (s *Store) Stats() repository.StatsRepository      { return &statsRepository{s: s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true}
	if err := fn(ctx, tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

// do runs fn against the state, taking the lock unless a transaction already holds it.
func (s *Store) do(fn func(d *state) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}
