package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/repository/memory"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, store repository.Store, telegramID int64, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: telegramID, FirstName: "u", Language: "en", Role: role, LastActivity: epoch}
	require.NoError(t, store.Users().Upsert(context.Background(), u))
	return u
}

func openTicket(t *testing.T, store repository.Store, userID int64) *domain.Ticket {
	t.Helper()
	tk := &domain.Ticket{UserID: userID, Status: domain.TicketStatusOpen, Subject: "help", CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, store.Tickets().Create(context.Background(), tk))
	return tk
}

func TestCreateRejectsSecondActiveTicket(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := seedUser(t, store, 1, domain.RoleUser)
	openTicket(t, store, u.ID)

	err := store.Tickets().Create(ctx, &domain.Ticket{UserID: u.ID, Status: domain.TicketStatusOpen})
	assert.ErrorIs(t, err, repository.ErrActiveTicketExists)
}

func TestTransitionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := seedUser(t, store, 1, domain.RoleUser)
	mod := seedUser(t, store, 2, domain.RoleModerator)
	tk := openTicket(t, store, u.ID)

	expect := repository.ExpectationOf(tk)
	claimed := tk.Clone()
	claimed.Status = domain.TicketStatusInProgress
	claimed.ModeratorID = &mod.ID
	require.NoError(t, store.Tickets().Transition(ctx, claimed, expect))

	// Same expectation again: the row moved on.
	err := store.Tickets().Transition(ctx, claimed, expect)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	stored, err := store.Tickets().GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	assert.True(t, stored.HeldBy(mod.ID))
}

func TestTransitionRejectsBusyModerator(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u1 := seedUser(t, store, 1, domain.RoleUser)
	u2 := seedUser(t, store, 2, domain.RoleUser)
	mod := seedUser(t, store, 3, domain.RoleModerator)
	t1 := openTicket(t, store, u1.ID)
	t2 := openTicket(t, store, u2.ID)

	for i, tk := range []*domain.Ticket{t1, t2} {
		next := tk.Clone()
		next.Status = domain.TicketStatusInProgress
		next.ModeratorID = &mod.ID
		err := store.Tickets().Transition(ctx, next, repository.ExpectationOf(tk))
		if i == 0 {
			require.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, repository.ErrModeratorBusy)
		}
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := seedUser(t, store, 1, domain.RoleUser)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		tk := &domain.Ticket{UserID: u.ID, Status: domain.TicketStatusOpen, CreatedAt: epoch, UpdatedAt: epoch}
		require.NoError(t, tx.Tickets().Create(ctx, tk))
		require.NoError(t, tx.Messages().Create(ctx, &domain.Message{TicketID: tk.ID, SenderID: u.ID, Type: domain.MessageTypeText, Text: "hi"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Tickets().ActiveForUser(ctx, u.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	msgs, err := store.Messages().ListByTicket(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUpsertKeepsRoleUnlessAdmin(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mod := seedUser(t, store, 7, domain.RoleModerator)

	again := &domain.User{TelegramID: 7, FirstName: "renamed", Role: domain.RoleUser, LastActivity: epoch.Add(time.Hour)}
	require.NoError(t, store.Users().Upsert(ctx, again))
	assert.Equal(t, mod.ID, again.ID)
	assert.Equal(t, domain.RoleModerator, again.Role)
	assert.Equal(t, "renamed", again.FirstName)

	admin := &domain.User{TelegramID: 7, Role: domain.RoleAdmin, LastActivity: epoch}
	require.NoError(t, store.Users().Upsert(ctx, admin))
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

func TestUpdateRoleIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := seedUser(t, store, 1, domain.RoleUser)

	require.NoError(t, store.Users().UpdateRole(ctx, u.ID, domain.RoleUser, domain.RoleModerator, epoch))
	assert.ErrorIs(t, store.Users().UpdateRole(ctx, u.ID, domain.RoleUser, domain.RoleModerator, epoch), repository.ErrStaleWrite)
}

func TestListWithFilterOrdersAndPages(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for i := int64(1); i <= 7; i++ {
		u := seedUser(t, store, i, domain.RoleUser)
		tk := &domain.Ticket{UserID: u.ID, Status: domain.TicketStatusOpen, CreatedAt: epoch.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.Tickets().Create(ctx, tk))
	}

	filter := repository.TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}, Limit: 5}
	page, err := store.Tickets().ListWithFilter(ctx, filter)
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, int64(1), page[0].ID)

	filter.Offset = 5
	page, err = store.Tickets().ListWithFilter(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	total, err := store.Tickets().CountWithFilter(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestListByTicketReturnsTail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Messages().Create(ctx, &domain.Message{TicketID: 9, Text: string(rune('a' + i))}))
	}
	msgs, err := store.Messages().ListByTicket(ctx, 9, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "d", msgs[0].Text)
	assert.Equal(t, "e", msgs[1].Text)
}

func TestAvailableModeratorsSkipsBusy(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := seedUser(t, store, 1, domain.RoleUser)
	busy := seedUser(t, store, 2, domain.RoleModerator)
	free := seedUser(t, store, 3, domain.RoleModerator)
	tk := openTicket(t, store, u.ID)

	next := tk.Clone()
	next.Status = domain.TicketStatusInProgress
	next.ModeratorID = &busy.ID
	require.NoError(t, store.Tickets().Transition(ctx, next, repository.ExpectationOf(tk)))

	mods, err := store.Users().AvailableModerators(ctx, 0)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, free.ID, mods[0].ID)
}

func TestTransitionRejectsEdgesOutsideStatusGraph(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	u := seedUser(t, store, 1, domain.RoleUser)
	tk := openTicket(t, store, u.ID)

	rating := 5
	skipped := tk.Clone()
	skipped.Status = domain.TicketStatusClosed
	skipped.Rating = &rating
	err := store.Tickets().Transition(ctx, skipped, repository.ExpectationOf(tk))
	assert.ErrorIs(t, err, repository.ErrIllegalTransition)

	stored, err := store.Tickets().GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestHeldByModeratorReturnsInProgressAndResolved(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mod := seedUser(t, store, 9, domain.RoleModerator)

	var held []int64
	for i, final := range []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusInProgress, domain.TicketStatusOpen} {
		tk := openTicket(t, store, seedUser(t, store, int64(i+1), domain.RoleUser).ID)
		if final == domain.TicketStatusOpen {
			continue
		}
		next := tk.Clone()
		next.Status = domain.TicketStatusInProgress
		next.ModeratorID = &mod.ID
		require.NoError(t, store.Tickets().Transition(ctx, next, repository.ExpectationOf(tk)))
		if final == domain.TicketStatusResolved {
			resolved := next.Clone()
			resolved.Status = domain.TicketStatusResolved
			require.NoError(t, store.Tickets().Transition(ctx, resolved, repository.ExpectationOf(next)))
		}
		held = append(held, tk.ID)
	}

	got, err := store.Tickets().HeldByModerator(ctx, mod.ID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(got))
	for _, tk := range got {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, held, ids)
}
