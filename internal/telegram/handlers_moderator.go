package telegram

import (
	"context"
	"strings"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/notification"
	apperrors "github.com/spec-kit/support-bot/pkg/util/errorutil"
)

func (b *BotService) moderatorCallback(ctx context.Context, user *domain.User, chatID int64, data callback.Data) {
	switch data.Action {
	case callback.ActionQueue:
		b.showQueue(ctx, user, chatID, int(data.Arg(0)))
	case callback.ActionTake:
		b.take(ctx, user, chatID, data.Arg(0))
	case callback.ActionResolve:
		if err := b.surface.Authorize(user, command.KindResolve); err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "mod.resolve_confirm", data.Arg(0)),
			b.kb.confirm(user.Language, callback.ResolveConfirm(data.Arg(0)), callback.Mod(callback.ActionCurrent)))
	case callback.ActionResolveOK:
		res, err := b.surface.Execute(ctx, user, command.Resolve{TicketID: data.Arg(0)})
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "mod.resolved", res.Ticket.ID), b.kb.moderatorMenu(user.Language))
	case callback.ActionReassign:
		b.showReassignTargets(ctx, user, chatID, data.Arg(0))
	case callback.ActionAssign:
		b.assign(ctx, user, chatID, data.Arg(0), data.Arg(1))
	case callback.ActionStats:
		b.showModeratorStats(ctx, user, chatID)
	case callback.ActionCurrent:
		b.showCurrentTicket(ctx, user, chatID)
	}
}

func (b *BotService) showQueue(ctx context.Context, user *domain.User, chatID int64, page int) {
	if err := b.surface.Authorize(user, command.KindViewQueue); err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	lang := user.Language
	res, err := b.lifecycle.ListUnassigned(ctx, page)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	back := b.kb.back(lang, callback.Menu(callback.ActionMenuMod))
	if res.Total == 0 {
		b.reply(ctx, chatID, b.t(user, "queue.empty"), back)
		return
	}

	lines := []string{b.t(user, "queue.title", res.Page, res.TotalPages)}
	var rows [][]notification.Button
	for _, t := range res.Tickets {
		lines = append(lines, b.t(user, "queue.row", t.ID, t.Subject))
		rows = append(rows, button(b.t(user, "btn.take")+" #"+itoa(t.ID), callback.Take(t.ID)))
	}
	if pager := b.kb.pager(lang, res.Page, res.TotalPages, callback.Queue); len(pager) > 0 {
		rows = append(rows, pager)
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n"), append(rows, back...))
}

func (b *BotService) take(ctx context.Context, user *domain.User, chatID, ticketID int64) {
	res, err := b.surface.Execute(ctx, user, command.Claim{TicketID: ticketID})
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	text, err := b.ticketView(ctx, user, res.Ticket)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	b.reply(ctx, chatID, b.t(user, "mod.claimed", res.Ticket.ID)+"\n\n"+text, b.kb.workingTicket(user.Language, res.Ticket.ID))
}

func (b *BotService) showCurrentTicket(ctx context.Context, user *domain.User, chatID int64) {
	if err := b.surface.Authorize(user, command.KindViewQueue); err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	ticket, err := b.lifecycle.ActiveTicketForModerator(ctx, user.ID)
	if apperrors.IsNotFound(err) {
		b.reply(ctx, chatID, b.t(user, "mod.no_active"), b.kb.back(user.Language, callback.Menu(callback.ActionMenuMod)))
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
	rows := append(b.kb.workingTicket(user.Language, ticket.ID), b.kb.back(user.Language, callback.Menu(callback.ActionMenuMod))...)
	b.reply(ctx, chatID, text, rows)
}

func (b *BotService) showReassignTargets(ctx context.Context, user *domain.User, chatID, ticketID int64) {
	if err := b.surface.Authorize(user, command.KindReassign); err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	mods, err := b.lifecycle.AvailableModerators(ctx, user.ID)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	back := b.kb.back(user.Language, callback.Mod(callback.ActionCurrent))
	if len(mods) == 0 {
		b.reply(ctx, chatID, b.t(user, "mod.no_available"), back)
		return
	}
	rows := make([][]notification.Button, 0, len(mods)+1)
	for _, m := range mods {
		rows = append(rows, button(m.FullName(), callback.Assign(ticketID, m.ID)))
	}
	b.reply(ctx, chatID, b.t(user, "mod.choose_moderator", ticketID), append(rows, back...))
}

func (b *BotService) assign(ctx context.Context, user *domain.User, chatID, ticketID, toID int64) {
	if _, err := b.surface.Execute(ctx, user, command.Reassign{TicketID: ticketID, ToModeratorID: toID}); err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	target, err := b.staff.GetUser(ctx, toID)
	name := ""
	if err == nil {
		name = target.FullName()
	}
	b.reply(ctx, chatID, b.t(user, "mod.reassigned", ticketID, name), b.kb.moderatorMenu(user.Language))
}

func (b *BotService) showModeratorStats(ctx context.Context, user *domain.User, chatID int64) {
	res, err := b.surface.Execute(ctx, user, command.ModeratorStats{})
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	st := res.ModeratorStats
	lang := user.Language
	lines := []string{b.t(user, "stats.moderator",
		st.Moderator.FullName(), st.Total, st.Closed, st.InProgress, st.Resolved,
		formatRating(b.l, lang, st.AverageRating))}
	if len(st.RecentClosed) > 0 {
		lines = append(lines, "", b.t(user, "stats.recent"))
		for _, t := range st.RecentClosed {
			closed := t.UpdatedAt
			if t.ClosedAt != nil {
				closed = *t.ClosedAt
			}
			lines = append(lines, b.t(user, "ticket.history_row", t.ID, t.Subject, notification.FormatTime(closed)))
		}
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n"), b.kb.back(lang, callback.Menu(callback.ActionMenuMod)))
}
