package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/clock"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository/memory"
	"github.com/spec-kit/support-bot/internal/service"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type harness struct {
	store     *memory.Store
	clock     *clock.FakeClock
	events    *recorder
	metrics   *observability.Metrics
	lifecycle *service.LifecycleService
	staff     *service.StaffService
	stats     *service.StatsService
	nextTG    int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   memory.New(),
		clock:   clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		events:  &recorder{},
		metrics: observability.NewMetrics(),
		nextTG:  1000,
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(h.events.handle)
	h.lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		Store:      h.store,
		Dispatcher: dispatcher,
		Clock:      h.clock,
		Metrics:    h.metrics,
	})
	cfg := config.Config{
		Telegram:     config.TelegramConfig{AdminIDs: []int64{1}},
		Localization: config.LocalizationConfig{DefaultLanguage: "ru", Languages: []string{"ru", "en", "uk"}},
	}
	h.staff = service.NewStaffService(cfg, h.lifecycle)
	h.stats = service.NewStatsService(h.lifecycle)
	return h
}

func (h *harness) user(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	h.nextTG++
	u := &domain.User{TelegramID: h.nextTG, FirstName: "user", Language: "en", Role: role, LastActivity: h.clock.Now()}
	require.NoError(t, h.store.Users().Upsert(context.Background(), u))
	return u
}

func (h *harness) openTicket(t *testing.T, requester *domain.User, text string) *domain.Ticket {
	t.Helper()
	tk, err := h.lifecycle.CreateTicket(context.Background(), requester, domain.TextContent(text))
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	return tk
}

func (h *harness) claimed(t *testing.T, requester, moderator *domain.User) *domain.Ticket {
	t.Helper()
	tk := h.openTicket(t, requester, "help")
	tk, err := h.lifecycle.Claim(context.Background(), moderator, tk.ID)
	require.NoError(t, err)
	return tk
}

func (h *harness) systemMessages(t *testing.T, ticketID int64) []domain.Message {
	t.Helper()
	msgs, err := h.store.Messages().ListByTicket(context.Background(), ticketID, 0)
	require.NoError(t, err)
	var out []domain.Message
	for _, m := range msgs {
		if m.IsSystem() {
			out = append(out, m)
		}
	}
	return out
}
