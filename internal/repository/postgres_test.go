package repository_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

// testDSNEnv points the Postgres store tests at a database the tests may
// create and drop schemas in. The tests are skipped when it is unset.
const testDSNEnv = "SUPPORTBOT_TEST_POSTGRES_DSN"

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// newPostgresStore migrates a throwaway schema and returns a store bound to it.
func newPostgresStore(t *testing.T) repository.Store {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	poolCfg.ConnConfig.RuntimeParams["search_path"] = schema
	poolCfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	return repository.NewPostgresStore(pool)
}

func seed(t *testing.T, store repository.Store, telegramID int64, role domain.Role) *domain.User {
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

func claimedBy(tk *domain.Ticket, moderatorID int64) *domain.Ticket {
	next := tk.Clone()
	next.Status = domain.TicketStatusInProgress
	next.ModeratorID = &moderatorID
	return next
}

func services(store repository.Store) (*service.LifecycleService, *service.StaffService) {
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:      store,
		Dispatcher: events.NewInMemoryDispatcher(nil),
	})
	staff := service.NewStaffService(config.Config{
		Localization: config.LocalizationConfig{DefaultLanguage: "en", Languages: []string{"en"}},
	}, lifecycle)
	return lifecycle, staff
}

func TestPostgresCreateRejectsSecondActiveTicket(t *testing.T) {
	store := newPostgresStore(t)
	u := seed(t, store, 1, domain.RoleUser)
	openTicket(t, store, u.ID)

	err := store.Tickets().Create(context.Background(), &domain.Ticket{UserID: u.ID, Status: domain.TicketStatusOpen, CreatedAt: epoch, UpdatedAt: epoch})
	assert.ErrorIs(t, err, repository.ErrActiveTicketExists)
}

func TestPostgresTransitionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	u := seed(t, store, 1, domain.RoleUser)
	mod := seed(t, store, 2, domain.RoleModerator)
	other := seed(t, store, 3, domain.RoleModerator)
	tk := openTicket(t, store, u.ID)

	expect := repository.ExpectationOf(tk)
	require.NoError(t, store.Tickets().Transition(ctx, claimedBy(tk, mod.ID), expect))
	assert.ErrorIs(t, store.Tickets().Transition(ctx, claimedBy(tk, other.ID), expect), repository.ErrStaleWrite)

	// the moderator column is part of the expectation too
	held, err := store.Tickets().GetByID(ctx, tk.ID)
	require.NoError(t, err)
	wrongHolder := repository.Expectation{Status: domain.TicketStatusInProgress, ModeratorID: &other.ID}
	resolved := held.Clone()
	resolved.Status = domain.TicketStatusResolved
	assert.ErrorIs(t, store.Tickets().Transition(ctx, resolved, wrongHolder), repository.ErrStaleWrite)
	require.NoError(t, store.Tickets().Transition(ctx, resolved, repository.ExpectationOf(held)))

	stored, err := store.Tickets().GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	assert.True(t, stored.HeldBy(mod.ID))
}

func TestPostgresTransitionRejectsBusyModerator(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	mod := seed(t, store, 3, domain.RoleModerator)
	t1 := openTicket(t, store, seed(t, store, 1, domain.RoleUser).ID)
	t2 := openTicket(t, store, seed(t, store, 2, domain.RoleUser).ID)

	require.NoError(t, store.Tickets().Transition(ctx, claimedBy(t1, mod.ID), repository.ExpectationOf(t1)))
	err := store.Tickets().Transition(ctx, claimedBy(t2, mod.ID), repository.ExpectationOf(t2))
	assert.ErrorIs(t, err, repository.ErrModeratorBusy)
}

func TestPostgresTransitionRejectsEdgesOutsideStatusGraph(t *testing.T) {
	store := newPostgresStore(t)
	tk := openTicket(t, store, seed(t, store, 1, domain.RoleUser).ID)

	rating := 4
	closed := tk.Clone()
	closed.Status = domain.TicketStatusClosed
	closed.Rating = &rating
	err := store.Tickets().Transition(context.Background(), closed, repository.ExpectationOf(tk))
	assert.ErrorIs(t, err, repository.ErrIllegalTransition)
}

func TestPostgresWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	u := seed(t, store, 1, domain.RoleUser)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		tk := &domain.Ticket{UserID: u.ID, Status: domain.TicketStatusOpen, CreatedAt: epoch, UpdatedAt: epoch}
		require.NoError(t, tx.Tickets().Create(ctx, tk))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Tickets().ActiveForUser(ctx, u.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestPostgresUpsertKeepsRoleUnlessAdmin(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	mod := seed(t, store, 7, domain.RoleModerator)

	again := &domain.User{TelegramID: 7, FirstName: "renamed", Language: "en", Role: domain.RoleUser, LastActivity: epoch.Add(time.Hour)}
	require.NoError(t, store.Users().Upsert(ctx, again))
	assert.Equal(t, mod.ID, again.ID)
	assert.Equal(t, domain.RoleModerator, again.Role)
	assert.Equal(t, "renamed", again.FirstName)

	admin := &domain.User{TelegramID: 7, Language: "en", Role: domain.RoleAdmin, LastActivity: epoch}
	require.NoError(t, store.Users().Upsert(ctx, admin))
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	assert.ErrorIs(t, store.Users().UpdateRole(ctx, mod.ID, domain.RoleModerator, domain.RoleUser, epoch), repository.ErrStaleWrite)
}

func TestPostgresHeldByModerator(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	mod := seed(t, store, 9, domain.RoleModerator)
	resolvedTicket := openTicket(t, store, seed(t, store, 1, domain.RoleUser).ID)
	inProgress := openTicket(t, store, seed(t, store, 2, domain.RoleUser).ID)
	openTicket(t, store, seed(t, store, 3, domain.RoleUser).ID)

	claimed := claimedBy(resolvedTicket, mod.ID)
	require.NoError(t, store.Tickets().Transition(ctx, claimed, repository.ExpectationOf(resolvedTicket)))
	resolved := claimed.Clone()
	resolved.Status = domain.TicketStatusResolved
	require.NoError(t, store.Tickets().Transition(ctx, resolved, repository.ExpectationOf(claimed)))
	require.NoError(t, store.Tickets().Transition(ctx, claimedBy(inProgress, mod.ID), repository.ExpectationOf(inProgress)))

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		held, err := tx.Tickets().HeldByModerator(ctx, mod.ID)
		require.NoError(t, err)
		require.Len(t, held, 2)
		assert.Equal(t, resolvedTicket.ID, held[0].ID)
		assert.Equal(t, inProgress.ID, held[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgresConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	lifecycle, _ := services(store)
	requester := seed(t, store, 1, domain.RoleUser)
	tk, err := lifecycle.CreateTicket(ctx, requester, domain.TextContent("help"))
	require.NoError(t, err)

	const claimers = 8
	mods := make([]*domain.User, claimers)
	for i := range mods {
		mods[i] = seed(t, store, int64(100+i), domain.RoleModerator)
	}

	errs := make([]error, claimers)
	var wg sync.WaitGroup
	for i, mod := range mods {
		wg.Add(1)
		go func(i int, mod *domain.User) {
			defer wg.Done()
			_, errs[i] = lifecycle.Claim(ctx, mod, tk.ID)
		}(i, mod)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.Equal(t, service.ReasonAlreadyTaken, apperrors.Reason(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, winners)

	stored, err := lifecycle.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
}

func TestPostgresBusyModeratorClaimsConcurrently(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	lifecycle, _ := services(store)
	mod := seed(t, store, 50, domain.RoleModerator)

	const tickets = 4
	ids := make([]int64, tickets)
	for i := range ids {
		tk, err := lifecycle.CreateTicket(ctx, seed(t, store, int64(i+1), domain.RoleUser), domain.TextContent("help"))
		require.NoError(t, err)
		ids[i] = tk.ID
	}

	errs := make([]error, tickets)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = lifecycle.Claim(ctx, mod, id)
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperrors.IsConflict(err), "unexpected error: %v", err)
		assert.Equal(t, service.ReasonModeratorBusy, apperrors.Reason(err))
	}
	assert.Equal(t, 1, winners)
}

func TestPostgresDemoteRacingClaimNeverLeavesUserHoldingTicket(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)
	lifecycle, staff := services(store)
	admin := seed(t, store, 1, domain.RoleAdmin)

	for round := int64(0); round < 10; round++ {
		mod := seed(t, store, 1000+round, domain.RoleModerator)
		tk, err := lifecycle.CreateTicket(ctx, seed(t, store, 2000+round, domain.RoleUser), domain.TextContent("help"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = lifecycle.Claim(ctx, mod, tk.ID)
		}()
		go func() {
			defer wg.Done()
			_, _, err := staff.Demote(ctx, admin, mod.ID)
			assert.NoError(t, err)
		}()
		wg.Wait()

		user, err := store.Users().GetByID(ctx, mod.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, user.Role)

		stored, err := store.Tickets().GetByID(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, stored.Status, "round %d", round)
		assert.Nil(t, stored.ModeratorID, "round %d", round)
	}
}
