package notification

import (
	"context"
	"fmt"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/localization"
	"github.com/spec-kit/support-bot/internal/repository"
)

// Planner decides who hears about an event and renders what each recipient
// sees in their own language.
type Planner struct {
	store        repository.Store
	localizer    *localization.Localizer
	historyLimit int
}

// NewPlanner constructs a planner. historyLimit bounds the thread replayed to
// a moderator receiving a reassigned ticket; zero replays everything.
func NewPlanner(store repository.Store, localizer *localization.Localizer, historyLimit int) *Planner {
	return &Planner{store: store, localizer: localizer, historyLimit: historyLimit}
}

// Plan returns the ordered deliveries for event.
func (p *Planner) Plan(ctx context.Context, event events.Event) ([]Delivery, error) {
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		return p.planCreated(ctx, event, payload)
	case events.TicketClaimedPayload:
		return p.toUser(ctx, event, payload.Ticket.UserID, func(lang string) Delivery {
			return Delivery{Text: p.t(lang, "notify.claimed", payload.Moderator.FullName(), payload.Ticket.ID)}
		})
	case events.TicketMessagePayload:
		return p.planMessage(ctx, event, payload)
	case events.TicketResolvedPayload:
		return p.toUser(ctx, event, payload.Ticket.UserID, func(lang string) Delivery {
			return Delivery{
				Text:    p.t(lang, "notify.resolved", payload.Ticket.ID),
				Buttons: RatingButtons(payload.Ticket.ID),
			}
		})
	case events.TicketRatedPayload:
		if payload.Ticket.ModeratorID == nil {
			return nil, nil
		}
		return p.toUser(ctx, event, *payload.Ticket.ModeratorID, func(lang string) Delivery {
			return Delivery{Text: p.t(lang, "notify.rated", payload.Ticket.ID, payload.Rating)}
		})
	case events.TicketReassignedPayload:
		return p.planReassigned(ctx, event, payload)
	case events.TicketReleasedPayload:
		return p.toUser(ctx, event, payload.Ticket.UserID, func(lang string) Delivery {
			return Delivery{Text: p.t(lang, "notify.released", payload.Ticket.ID)}
		})
	case events.TicketReopenedPayload:
		return p.planReopened(ctx, event, payload)
	case events.RoleChangedPayload:
		key := "notify.promoted"
		if event.Type == events.EventRoleDemoted {
			key = "notify.demoted"
		}
		user := payload.User
		return []Delivery{p.stamp(event, &user, Delivery{Text: p.t(user.Language, key)})}, nil
	}
	return nil, fmt.Errorf("no notification plan for %s payload %T", event.Type, event.Payload)
}

func (p *Planner) planCreated(ctx context.Context, event events.Event, payload events.TicketCreatedPayload) ([]Delivery, error) {
	moderators, err := p.store.Users().ListByRole(ctx, domain.RoleModerator)
	if err != nil {
		return nil, err
	}
	out := make([]Delivery, 0, len(moderators))
	for i := range moderators {
		mod := &moderators[i]
		lang := mod.Language
		out = append(out, p.stamp(event, mod, Delivery{
			Text: p.t(lang, "notify.new_ticket",
				payload.Ticket.ID, payload.Requester.FullName(), Preview(p.localizer, lang, payload.Message)),
			Attachment: attachmentOf(payload.Message),
			Buttons:    [][]Button{{{Text: p.t(lang, "btn.take"), Data: callback.Take(payload.Ticket.ID)}}},
		}))
	}
	return out, nil
}

func (p *Planner) planMessage(ctx context.Context, event events.Event, payload events.TicketMessagePayload) ([]Delivery, error) {
	fromRequester := payload.Sender.ID == payload.Ticket.UserID
	return p.toUser(ctx, event, payload.RecipientID, func(lang string) Delivery {
		text := p.t(lang, "notify.message_from_moderator", payload.Ticket.ID, payload.Message.Text)
		if fromRequester {
			text = p.t(lang, "notify.message_from_user", payload.Ticket.ID, payload.Sender.FullName(), payload.Message.Text)
		}
		return Delivery{Text: text, Attachment: attachmentOf(payload.Message)}
	})
}

func (p *Planner) planReassigned(ctx context.Context, event events.Event, payload events.TicketReassignedPayload) ([]Delivery, error) {
	ticket := payload.Ticket
	msgs, err := p.store.Messages().ListByTicket(ctx, ticket.ID, p.historyLimit)
	if err != nil {
		return nil, err
	}
	names, err := SenderNames(ctx, p.store.Users().GetByID, msgs)
	if err != nil {
		return nil, err
	}

	to := payload.To
	toLang := to.Language
	text := p.t(toLang, "notify.reassigned_to", ticket.ID, payload.From.FullName(), ticket.Subject)
	if len(msgs) > 0 {
		text += "\n\n" + p.t(toLang, "ticket.messages_header") + "\n" + FormatHistory(p.localizer, toLang, msgs, names)
	}
	out := []Delivery{p.stamp(event, &to, Delivery{
		Text: text,
		Buttons: [][]Button{
			{{Text: p.t(toLang, "btn.resolve"), Data: callback.Resolve(ticket.ID)}},
			{{Text: p.t(toLang, "btn.reassign"), Data: callback.Reassign(ticket.ID)}},
		},
	})}

	from := payload.From
	out = append(out, p.stamp(event, &from, Delivery{
		Text: p.t(from.Language, "notify.reassigned_from", ticket.ID, to.FullName()),
	}))

	requester, err := p.store.Users().GetByID(ctx, ticket.UserID)
	if err != nil {
		return nil, err
	}
	out = append(out, p.stamp(event, requester, Delivery{
		Text: p.t(requester.Language, "notify.reassigned_user", ticket.ID, to.FullName()),
	}))
	return out, nil
}

func (p *Planner) planReopened(ctx context.Context, event events.Event, payload events.TicketReopenedPayload) ([]Delivery, error) {
	ticket := payload.Ticket
	out, err := p.toUser(ctx, event, ticket.UserID, func(lang string) Delivery {
		return Delivery{Text: p.t(lang, "notify.reopened_user", ticket.ID)}
	})
	if err != nil {
		return nil, err
	}

	moderators, err := p.store.Users().ListByRole(ctx, domain.RoleModerator)
	if err != nil {
		return nil, err
	}
	for i := range moderators {
		mod := &moderators[i]
		out = append(out, p.stamp(event, mod, Delivery{
			Text:    p.t(mod.Language, "notify.reopened_moderators", ticket.ID, ticket.Subject),
			Buttons: [][]Button{{{Text: p.t(mod.Language, "btn.take"), Data: callback.Take(ticket.ID)}}},
		}))
	}
	return out, nil
}

// toUser plans a single delivery to the user with the given internal id.
func (p *Planner) toUser(ctx context.Context, event events.Event, userID int64, render func(lang string) Delivery) ([]Delivery, error) {
	user, err := p.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load recipient %d: %w", userID, err)
	}
	return []Delivery{p.stamp(event, user, render(user.Language))}, nil
}

func (p *Planner) stamp(event events.Event, recipient *domain.User, d Delivery) Delivery {
	d.EventType = event.Type
	d.TicketID = event.TicketID
	d.ChatID = recipient.TelegramID
	return d
}

func (p *Planner) t(lang, key string, args ...any) string {
	return p.localizer.T(lang, key, args...)
}
