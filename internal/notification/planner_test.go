package notification_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/localization"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/repository/memory"
)

type fixture struct {
	store   *memory.Store
	planner *notification.Planner
	nextTG  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := localization.New("en")
	require.NoError(t, err)
	store := memory.New()
	return &fixture{store: store, planner: notification.NewPlanner(store, l, 10), nextTG: 500}
}

func (f *fixture) user(t *testing.T, name, lang string, role domain.Role) *domain.User {
	t.Helper()
	f.nextTG++
	u := &domain.User{TelegramID: f.nextTG, FirstName: name, Language: lang, Role: role}
	require.NoError(t, f.store.Users().Upsert(context.Background(), u))
	return u
}

func chats(ds []notification.Delivery) []int64 {
	out := make([]int64, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ChatID)
	}
	return out
}

func TestPlanCreatedFansOutToModerators(t *testing.T) {
	f := newFixture(t)
	requester := f.user(t, "Ann", "en", domain.RoleUser)
	modA := f.user(t, "Bob", "en", domain.RoleModerator)
	modB := f.user(t, "Olena", "uk", domain.RoleModerator)
	f.user(t, "Root", "en", domain.RoleAdmin)

	ticket := domain.Ticket{ID: 3, UserID: requester.ID, Status: domain.TicketStatusOpen, Subject: "printer"}
	msg := domain.Message{TicketID: 3, SenderID: requester.ID, Type: domain.MessageTypePhoto, Text: "printer", FileID: "file-1"}

	ds, err := f.planner.Plan(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: 3,
		Payload:  events.TicketCreatedPayload{Ticket: ticket, Requester: *requester, Message: msg},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{modA.TelegramID, modB.TelegramID}, chats(ds))
	for _, d := range ds {
		assert.Equal(t, events.EventTicketCreated, d.EventType)
		assert.Equal(t, int64(3), d.TicketID)
		require.NotNil(t, d.Attachment)
		assert.Equal(t, "file-1", d.Attachment.FileID)
		require.Len(t, d.Buttons, 1)
		assert.Equal(t, callback.Take(3), d.Buttons[0][0].Data)
		assert.Contains(t, d.Text, "Ann")
	}
}

func TestPlanMessageGoesToCounterpart(t *testing.T) {
	f := newFixture(t)
	requester := f.user(t, "Ann", "en", domain.RoleUser)
	mod := f.user(t, "Bob", "en", domain.RoleModerator)
	modID := mod.ID
	ticket := domain.Ticket{ID: 9, UserID: requester.ID, ModeratorID: &modID, Status: domain.TicketStatusInProgress}

	ds, err := f.planner.Plan(context.Background(), events.Event{
		Type:     events.EventTicketMessage,
		TicketID: 9,
		Payload: events.TicketMessagePayload{
			Ticket: ticket, Sender: *requester, RecipientID: mod.ID,
			Message: domain.Message{Type: domain.MessageTypeText, Text: "still broken"},
		},
	})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, mod.TelegramID, ds[0].ChatID)
	assert.Contains(t, ds[0].Text, "message from Ann")
	assert.Contains(t, ds[0].Text, "still broken")
	assert.Nil(t, ds[0].Attachment)

	ds, err = f.planner.Plan(context.Background(), events.Event{
		Type:     events.EventTicketMessage,
		TicketID: 9,
		Payload: events.TicketMessagePayload{
			Ticket: ticket, Sender: *mod, RecipientID: requester.ID,
			Message: domain.Message{Type: domain.MessageTypeText, Text: "try again"},
		},
	})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, requester.TelegramID, ds[0].ChatID)
	assert.Contains(t, ds[0].Text, "Reply on ticket #9")
}

func TestPlanResolvedOffersRating(t *testing.T) {
	f := newFixture(t)
	requester := f.user(t, "Ann", "en", domain.RoleUser)
	mod := f.user(t, "Bob", "en", domain.RoleModerator)
	modID := mod.ID

	ds, err := f.planner.Plan(context.Background(), events.Event{
		Type:     events.EventTicketResolved,
		TicketID: 4,
		Payload: events.TicketResolvedPayload{
			Ticket:    domain.Ticket{ID: 4, UserID: requester.ID, ModeratorID: &modID, Status: domain.TicketStatusResolved},
			Moderator: *mod,
		},
	})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, requester.TelegramID, ds[0].ChatID)
	require.Len(t, ds[0].Buttons, 5)
	assert.Equal(t, callback.Rate(4, 5), ds[0].Buttons[4][0].Data)
}

func TestPlanReassignedNotifiesAllThreeParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.user(t, "Ann", "en", domain.RoleUser)
	from := f.user(t, "Bob", "en", domain.RoleModerator)
	to := f.user(t, "Cid", "en", domain.RoleModerator)
	toID := to.ID

	ticket := &domain.Ticket{UserID: requester.ID, Status: domain.TicketStatusOpen, Subject: "vpn", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, f.store.Tickets().Create(ctx, ticket))
	require.NoError(t, f.store.Messages().Create(ctx, &domain.Message{
		TicketID: ticket.ID, SenderID: requester.ID, Type: domain.MessageTypeText, Text: "vpn is down",
		SentAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
	}))
	ticket.ModeratorID = &toID
	ticket.Status = domain.TicketStatusInProgress

	ds, err := f.planner.Plan(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticket.ID,
		Payload:  events.TicketReassignedPayload{Ticket: *ticket, From: *from, To: *to},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{to.TelegramID, from.TelegramID, requester.TelegramID}, chats(ds))

	assert.Contains(t, ds[0].Text, "[01.03 10:05] Ann: vpn is down")
	require.Len(t, ds[0].Buttons, 2)
	assert.Equal(t, callback.Resolve(ticket.ID), ds[0].Buttons[0][0].Data)
	assert.Equal(t, callback.Reassign(ticket.ID), ds[0].Buttons[1][0].Data)
	assert.Contains(t, ds[1].Text, "Cid")
	assert.Contains(t, ds[2].Text, "Cid")
}

func TestPlanReopenedNotifiesRequesterThenQueue(t *testing.T) {
	f := newFixture(t)
	requester := f.user(t, "Ann", "en", domain.RoleUser)
	mod := f.user(t, "Bob", "en", domain.RoleModerator)

	ds, err := f.planner.Plan(context.Background(), events.Event{
		Type:     events.EventTicketReopened,
		TicketID: 2,
		Payload:  events.TicketReopenedPayload{Ticket: domain.Ticket{ID: 2, UserID: requester.ID, Status: domain.TicketStatusOpen, Subject: "mail"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{requester.TelegramID, mod.TelegramID}, chats(ds))
	assert.Equal(t, callback.Take(2), ds[1].Buttons[0][0].Data)
}

func TestPlanRoleChangeUsesRecipientLanguage(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Olena", "uk", domain.RoleModerator)

	ds, err := f.planner.Plan(context.Background(), events.Event{
		Type:    events.EventRolePromoted,
		Payload: events.RoleChangedPayload{User: *u, OldRole: domain.RoleUser, NewRole: domain.RoleModerator},
	})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, u.TelegramID, ds[0].ChatID)
	assert.NotContains(t, ds[0].Text, "You are now")
}

func TestPlanMissingRecipientFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.planner.Plan(context.Background(), events.Event{
		Type:     events.EventTicketReleased,
		TicketID: 1,
		Payload:  events.TicketReleasedPayload{Ticket: domain.Ticket{ID: 1, UserID: 404}},
	})
	assert.Error(t, err)
}

func TestPlanUnknownPayload(t *testing.T) {
	f := newFixture(t)
	_, err := f.planner.Plan(context.Background(), events.Event{Type: "mystery", Payload: 42})
	assert.Error(t, err)
}

func TestPlanReassignedReplaysWholeThread(t *testing.T) {
	ctx := context.Background()
	l, err := localization.New("en")
	require.NoError(t, err)
	store := memory.New()
	f := &fixture{store: store, planner: notification.NewPlanner(store, l, 0), nextTG: 500}

	requester := f.user(t, "Ann", "en", domain.RoleUser)
	from := f.user(t, "Bob", "en", domain.RoleModerator)
	to := f.user(t, "Cid", "en", domain.RoleModerator)
	toID := to.ID

	ticket := &domain.Ticket{UserID: requester.ID, Status: domain.TicketStatusOpen, Subject: "vpn", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	// more than the 20 messages the active ticket view shows
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 25; i++ {
		require.NoError(t, store.Messages().Create(ctx, &domain.Message{
			TicketID: ticket.ID, SenderID: requester.ID, Type: domain.MessageTypeText,
			Text: fmt.Sprintf("msg-%02d", i), SentAt: start.Add(time.Duration(i) * time.Minute),
		}))
	}
	ticket.ModeratorID = &toID
	ticket.Status = domain.TicketStatusInProgress

	ds, err := f.planner.Plan(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticket.ID,
		Payload:  events.TicketReassignedPayload{Ticket: *ticket, From: *from, To: *to},
	})
	require.NoError(t, err)
	require.NotEmpty(t, ds)
	assert.Equal(t, to.TelegramID, ds[0].ChatID)
	for i := 1; i <= 25; i++ {
		assert.Contains(t, ds[0].Text, fmt.Sprintf("msg-%02d", i))
	}

	// a bounded planner keeps only the tail
	bounded := notification.NewPlanner(store, l, 10)
	ds, err = bounded.Plan(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticket.ID,
		Payload:  events.TicketReassignedPayload{Ticket: *ticket, From: *from, To: *to},
	})
	require.NoError(t, err)
	assert.NotContains(t, ds[0].Text, "msg-15")
	assert.Contains(t, ds[0].Text, "msg-16")
	assert.Contains(t, ds[0].Text, "msg-25")
}
