package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/localization"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository/memory"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/worker"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, d notification.Delivery) error {
	return m.Called(ctx, d).Error(0)
}

type notifyHarness struct {
	store     *memory.Store
	lifecycle *service.LifecycleService
	notifier  *mockNotifier
	metrics   *observability.Metrics
	worker    *worker.NotificationWorker
}

func newNotifyHarness(t *testing.T) *notifyHarness {
	t.Helper()
	l, err := localization.New("en")
	require.NoError(t, err)

	h := &notifyHarness{
		store:    memory.New(),
		notifier: &mockNotifier{},
		metrics:  observability.NewMetrics(),
		worker:   worker.NewNotificationWorker(config.NotificationConfig{Workers: 2, QueueSize: 32}, nil),
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	h.lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		Store:      h.store,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
	})
	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Planner:    notification.NewPlanner(h.store, l, 20),
		Notifier:   h.notifier,
		Worker:     h.worker,
		Metrics:    h.metrics,
	}).RegisterHandlers()
	h.worker.Start(context.Background())
	return h
}

func (h *notifyHarness) seed(t *testing.T, telegramID int64, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: telegramID, FirstName: "u", Language: "en", Role: role}
	require.NoError(t, h.store.Users().Upsert(context.Background(), u))
	return u
}

func toChat(id int64) any {
	return mock.MatchedBy(func(d notification.Delivery) bool { return d.ChatID == id })
}

func TestNotificationsDeliveredAfterCommit(t *testing.T) {
	h := newNotifyHarness(t)
	ctx := context.Background()
	requester := h.seed(t, 10, domain.RoleUser)
	mod := h.seed(t, 20, domain.RoleModerator)

	h.notifier.On("Notify", mock.Anything, toChat(20)).Return(nil).Once()
	h.notifier.On("Notify", mock.Anything, toChat(10)).Return(nil).Once()

	tk, err := h.lifecycle.CreateTicket(ctx, requester, domain.TextContent("help"))
	require.NoError(t, err)
	_, err = h.lifecycle.Claim(ctx, mod, tk.ID)
	require.NoError(t, err)
	h.worker.Stop()

	h.notifier.AssertExpectations(t)
	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Notifications["ticket_created|delivered"])
	assert.Equal(t, int64(1), snap.Notifications["ticket_claimed|delivered"])
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	h := newNotifyHarness(t)
	ctx := context.Background()
	requester := h.seed(t, 10, domain.RoleUser)
	h.seed(t, 20, domain.RoleModerator)
	h.seed(t, 30, domain.RoleModerator)

	h.notifier.On("Notify", mock.Anything, toChat(20)).Return(errors.New("bot was blocked by the user"))
	h.notifier.On("Notify", mock.Anything, toChat(30)).Return(nil)

	tk, err := h.lifecycle.CreateTicket(ctx, requester, domain.TextContent("help"))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, tk.Status)
	h.worker.Stop()

	h.notifier.AssertNumberOfCalls(t, "Notify", 2)
	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Notifications["ticket_created|failed"])
	assert.Equal(t, int64(1), snap.Notifications["ticket_created|delivered"])
}

func TestNoNotificationForFailedOperation(t *testing.T) {
	h := newNotifyHarness(t)
	ctx := context.Background()
	requester := h.seed(t, 10, domain.RoleUser)
	h.seed(t, 20, domain.RoleModerator)
	h.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	_, err := h.lifecycle.CreateTicket(ctx, requester, domain.TextContent("one"))
	require.NoError(t, err)
	_, err = h.lifecycle.CreateTicket(ctx, requester, domain.TextContent("two"))
	require.Error(t, err)
	h.worker.Stop()

	h.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestDeliveriesToOneChatKeepCommitOrder(t *testing.T) {
	h := newNotifyHarness(t)
	ctx := context.Background()
	mod := h.seed(t, 20, domain.RoleModerator)

	var (
		mu      sync.Mutex
		tickets []int64
	)
	h.notifier.On("Notify", mock.Anything, toChat(mod.TelegramID)).Return(nil).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		tickets = append(tickets, args.Get(1).(notification.Delivery).TicketID)
	})

	var want []int64
	for tg := int64(100); tg < 110; tg++ {
		tk, err := h.lifecycle.CreateTicket(ctx, h.seed(t, tg, domain.RoleUser), domain.TextContent("help"))
		require.NoError(t, err)
		want = append(want, tk.ID)
	}
	h.worker.Stop()

	assert.Equal(t, want, tickets)
}
