package telegram

import (
	"context"
	"strings"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/session"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

func (b *BotService) userCallback(ctx context.Context, user *domain.User, chatID int64, data callback.Data) {
	switch data.Action {
	case callback.ActionCreate:
		if _, err := b.lifecycle.ActiveTicketForUser(ctx, user.ID); err == nil {
			b.reply(ctx, chatID, b.t(user, "error.active_ticket"), b.kb.back(user.Language, callback.Menu(callback.ActionMenuUser)))
			return
		}
		b.setState(ctx, chatID, session.StepCreatingTicket)
		b.reply(ctx, chatID, b.t(user, "ticket.create_prompt"), nil)
	case callback.ActionActive:
		b.showActiveTicket(ctx, user, chatID)
	case callback.ActionHistory:
		b.showHistory(ctx, user, chatID, int(data.Arg(0)))
	case callback.ActionLanguage:
		b.reply(ctx, chatID, b.t(user, "start.choose_language"), b.kb.languages())
	}
}

func (b *BotService) changeLanguage(ctx context.Context, user *domain.User, chatID int64, lang string) {
	if err := b.staff.SetLanguage(ctx, user, lang); err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	b.reply(ctx, chatID, b.t(user, "language.changed"), nil)
	b.showMenu(ctx, user, chatID)
}

func (b *BotService) createTicket(ctx context.Context, user *domain.User, chatID int64, content domain.Content) {
	res, err := b.surface.Execute(ctx, user, command.CreateTicket{Content: content})
	if err != nil {
		b.fail(ctx, user, chatID, err)
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			b.clearState(ctx, chatID)
		}
		return
	}
	b.clearState(ctx, chatID)
	b.reply(ctx, chatID, b.t(user, "ticket.created", res.Ticket.ID), b.kb.back(user.Language, callback.Menu(callback.ActionMenuUser)))
}

// relayMessage posts free text or media into the sender's active ticket.
func (b *BotService) relayMessage(ctx context.Context, user *domain.User, chatID int64, content domain.Content) {
	if content.Empty() {
		return
	}
	_, err := b.surface.Execute(ctx, user, command.SendMessage{Content: content})
	switch {
	case err == nil:
	case apperrors.IsNotFound(err) && user.IsModerator():
		b.reply(ctx, chatID, b.t(user, "mod.no_active"), nil)
	case apperrors.IsNotFound(err):
		b.reply(ctx, chatID, b.t(user, "ticket.no_ticket_for_message"), nil)
	default:
		b.fail(ctx, user, chatID, err)
	}
}

func (b *BotService) rate(ctx context.Context, user *domain.User, chatID, ticketID int64, score int) {
	res, err := b.surface.Execute(ctx, user, command.Rate{TicketID: ticketID, Score: score})
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	b.reply(ctx, chatID, b.t(user, "rate.thanks", res.Ticket.ID, score), b.kb.back(user.Language, callback.Menu(callback.ActionMenuUser)))
}

func (b *BotService) showActiveTicket(ctx context.Context, user *domain.User, chatID int64) {
	ticket, err := b.lifecycle.ActiveTicketForUser(ctx, user.ID)
	if apperrors.IsNotFound(err) {
		b.reply(ctx, chatID, b.t(user, "ticket.no_active"), b.kb.back(user.Language, callback.Menu(callback.ActionMenuUser)))
		return
	}
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	text, err := b.ticketView(ctx, user, ticket)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	rows := b.kb.back(user.Language, callback.Menu(callback.ActionMenuUser))
	if ticket.Status == domain.TicketStatusResolved {
		rows = append(notification.RatingButtons(ticket.ID), rows...)
	}
	b.reply(ctx, chatID, text, rows)
}

func (b *BotService) showHistory(ctx context.Context, user *domain.User, chatID int64, page int) {
	lang := user.Language
	res, err := b.lifecycle.ListHistory(ctx, user.ID, page)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	back := b.kb.back(lang, callback.Menu(callback.ActionMenuUser))
	if res.Total == 0 {
		b.reply(ctx, chatID, b.t(user, "ticket.history_empty"), back)
		return
	}

	lines := []string{b.t(user, "ticket.history_title", res.Page, res.TotalPages)}
	for _, t := range res.Tickets {
		closed := t.UpdatedAt
		if t.ClosedAt != nil {
			closed = *t.ClosedAt
		}
		lines = append(lines, b.t(user, "ticket.history_row", t.ID, t.Subject, notification.FormatTime(closed)))
	}
	var rows [][]notification.Button
	if pager := b.kb.pager(lang, res.Page, res.TotalPages, callback.History); len(pager) > 0 {
		rows = append(rows, pager)
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n"), append(rows, back...))
}

// ticketView renders a ticket header followed by its latest messages.
func (b *BotService) ticketView(ctx context.Context, viewer *domain.User, t *domain.Ticket) (string, error) {
	lang := viewer.Language
	text := b.t(viewer, "ticket.view",
		notification.StatusEmoji(t.Status), t.ID,
		b.t(viewer, "status."+string(t.Status)), t.Subject,
		notification.FormatTime(t.CreatedAt))

	msgs, err := b.lifecycle.TicketMessages(ctx, t.ID, b.cfg.HistoryMaxMessages)
	if err != nil || len(msgs) == 0 {
		return text, err
	}
	names, err := notification.SenderNames(ctx, b.staff.GetUser, msgs)
	if err != nil {
		return "", err
	}
	return text + "\n\n" + b.t(viewer, "ticket.messages_header") + "\n" + notification.FormatHistory(b.l, lang, msgs, names), nil
}
