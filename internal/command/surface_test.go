package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository/memory"
	"github.com/spec-kit/support-bot/internal/service"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

type mockEngine struct {
	mock.Mock
	command.Engine
}

func (m *mockEngine) Claim(ctx context.Context, moderator *domain.User, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, moderator, ticketID)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockEngine) Reopen(ctx context.Context, admin *domain.User, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, admin, ticketID)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func TestPolicyTable(t *testing.T) {
	cases := []struct {
		kind command.Kind
		user bool
		mod  bool
		adm  bool
	}{
		{command.KindCreateTicket, true, true, true},
		{command.KindSendMessage, true, true, true},
		{command.KindRate, true, true, true},
		{command.KindClaim, false, true, false},
		{command.KindResolve, false, true, false},
		{command.KindReassign, false, true, false},
		{command.KindModeratorStats, false, true, false},
		{command.KindForceRelease, false, false, true},
		{command.KindPromote, false, false, true},
		{command.KindDemote, false, false, true},
		{command.KindReopen, false, false, true},
		{command.KindGlobalStats, false, false, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.user, command.Allowed(domain.RoleUser, tc.kind))
			assert.Equal(t, tc.mod, command.Allowed(domain.RoleModerator, tc.kind))
			assert.Equal(t, tc.adm, command.Allowed(domain.RoleAdmin, tc.kind))
		})
	}
}

func TestDeniedCommandNeverReachesEngine(t *testing.T) {
	engine := &mockEngine{}
	surface := command.NewSurface(engine, nil, nil, nil)
	user := &domain.User{ID: 1, Role: domain.RoleUser}

	_, err := surface.Execute(context.Background(), user, command.Claim{TicketID: 5})
	assert.True(t, apperrors.IsForbidden(err))

	_, err = surface.Execute(context.Background(), &domain.User{ID: 2, Role: domain.RoleModerator}, command.Reopen{TicketID: 5})
	assert.True(t, apperrors.IsForbidden(err))

	engine.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
	engine.AssertNotCalled(t, "Reopen", mock.Anything, mock.Anything, mock.Anything)
}

func TestAllowedCommandIsForwarded(t *testing.T) {
	engine := &mockEngine{}
	mod := &domain.User{ID: 2, Role: domain.RoleModerator}
	engine.On("Claim", mock.Anything, mod, int64(5)).Return(&domain.Ticket{ID: 5, Status: domain.TicketStatusInProgress}, nil)

	res, err := command.NewSurface(engine, nil, nil, nil).Execute(context.Background(), mod, command.Claim{TicketID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Ticket.ID)
	engine.AssertExpectations(t)
}

func TestNilActorIsUnauthorized(t *testing.T) {
	_, err := command.NewSurface(&mockEngine{}, nil, nil, nil).Execute(context.Background(), nil, command.GlobalStats{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

type deps struct {
	store   *memory.Store
	surface *command.Surface
}

func newDeps(t *testing.T) deps {
	t.Helper()
	store := memory.New()
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:      store,
		Dispatcher: events.NewInMemoryDispatcher(nil),
	})
	staff := service.NewStaffService(config.Config{
		Localization: config.LocalizationConfig{DefaultLanguage: "en", Languages: []string{"en"}},
	}, lifecycle)
	stats := service.NewStatsService(lifecycle)
	return deps{store: store, surface: command.NewSurface(lifecycle, staff, stats, nil)}
}

func (d deps) user(t *testing.T, telegramID int64, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: telegramID, FirstName: "u", Language: "en", Role: role}
	require.NoError(t, d.store.Users().Upsert(context.Background(), u))
	return u
}

func TestFullLifecycleThroughSurface(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	requester := d.user(t, 10, domain.RoleUser)
	mod := d.user(t, 20, domain.RoleModerator)
	admin := d.user(t, 30, domain.RoleAdmin)

	res, err := d.surface.Execute(ctx, requester, command.CreateTicket{Content: domain.TextContent("help")})
	require.NoError(t, err)
	ticketID := res.Ticket.ID

	_, err = d.surface.Execute(ctx, mod, command.Claim{TicketID: ticketID})
	require.NoError(t, err)

	res, err = d.surface.Execute(ctx, requester, command.SendMessage{Content: domain.TextContent("any news?")})
	require.NoError(t, err)
	assert.Equal(t, ticketID, res.Message.TicketID)

	res, err = d.surface.Execute(ctx, mod, command.SendMessage{Content: domain.TextContent("working on it")})
	require.NoError(t, err)
	assert.Equal(t, ticketID, res.Message.TicketID)

	_, err = d.surface.Execute(ctx, mod, command.Resolve{TicketID: ticketID})
	require.NoError(t, err)

	res, err = d.surface.Execute(ctx, requester, command.Rate{TicketID: ticketID, Score: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, res.Ticket.Status)
	require.NotNil(t, res.Ticket.Rating)
	assert.Equal(t, 5, *res.Ticket.Rating)

	res, err = d.surface.Execute(ctx, mod, command.ModeratorStats{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ModeratorStats.Closed)

	res, err = d.surface.Execute(ctx, admin, command.Reopen{TicketID: ticketID})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, res.Ticket.Status)
}

func TestSendMessageWithoutActiveTicket(t *testing.T) {
	d := newDeps(t)
	requester := d.user(t, 10, domain.RoleUser)

	_, err := d.surface.Execute(context.Background(), requester, command.SendMessage{Content: domain.TextContent("hi")})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDemoteThroughSurfaceReleasesTickets(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	requester := d.user(t, 10, domain.RoleUser)
	mod := d.user(t, 20, domain.RoleModerator)
	admin := d.user(t, 30, domain.RoleAdmin)

	res, err := d.surface.Execute(ctx, requester, command.CreateTicket{Content: domain.TextContent("help")})
	require.NoError(t, err)
	_, err = d.surface.Execute(ctx, mod, command.Claim{TicketID: res.Ticket.ID})
	require.NoError(t, err)

	res, err = d.surface.Execute(ctx, admin, command.Demote{UserID: mod.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	require.Len(t, res.Released, 1)
	assert.Equal(t, domain.TicketStatusOpen, res.Released[0].Status)
	assert.Nil(t, res.Released[0].ModeratorID)
}
