package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/session"
)

func (b *BotService) adminCallback(ctx context.Context, user *domain.User, chatID int64, data callback.Data) {
	switch data.Action {
	case callback.ActionStats:
		b.showGlobalStats(ctx, user, chatID)
	case callback.ActionMods:
		b.showModerators(ctx, user, chatID)
	case callback.ActionPromote:
		if err := b.surface.Authorize(user, command.KindPromote); err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.setState(ctx, chatID, session.StepAwaitingPromoteID)
		b.reply(ctx, chatID, b.t(user, "admin.promote_prompt"), b.kb.back(user.Language, callback.Admin(callback.ActionCancel)))
	case callback.ActionPromoteOK:
		res, err := b.surface.Execute(ctx, user, command.Promote{TelegramID: data.Arg(0)})
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "admin.promoted", res.User.FullName()), b.kb.back(user.Language, callback.Admin(callback.ActionMods)))
	case callback.ActionDemote:
		if err := b.surface.Authorize(user, command.KindDemote); err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		target, err := b.staff.GetUser(ctx, data.Arg(0))
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "admin.demote_confirm", target.FullName()),
			b.kb.confirm(user.Language, callback.DemoteConfirm(target.ID), callback.Admin(callback.ActionMods)))
	case callback.ActionDemoteOK:
		res, err := b.surface.Execute(ctx, user, command.Demote{UserID: data.Arg(0)})
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "admin.demoted", res.User.FullName(), len(res.Released)),
			b.kb.back(user.Language, callback.Admin(callback.ActionMods)))
	case callback.ActionCancel:
		b.clearState(ctx, chatID)
		b.reply(ctx, chatID, b.t(user, "admin.cancelled"), nil)
		b.showMenu(ctx, user, chatID)
	}
}

// promotePrompt handles the Telegram id typed after "add moderator".
func (b *BotService) promotePrompt(ctx context.Context, user *domain.User, chatID int64, raw string) {
	if err := b.surface.Authorize(user, command.KindPromote); err != nil {
		b.clearState(ctx, chatID)
		b.fail(ctx, user, chatID, err)
		return
	}
	telegramID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || telegramID <= 0 {
		b.reply(ctx, chatID, b.t(user, "admin.promote_invalid"), b.kb.back(user.Language, callback.Admin(callback.ActionCancel)))
		return
	}
	b.clearState(ctx, chatID)
	target, err := b.staff.GetByTelegramID(ctx, telegramID)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	b.reply(ctx, chatID, b.t(user, "admin.promote_confirm", target.FullName()),
		b.kb.confirm(user.Language, callback.PromoteConfirm(telegramID), callback.Admin(callback.ActionMods)))
}

func (b *BotService) showModerators(ctx context.Context, user *domain.User, chatID int64) {
	if err := b.surface.Authorize(user, command.KindViewModerators); err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	lang := user.Language
	mods, err := b.staff.ListModerators(ctx)
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	text := b.t(user, "admin.no_mods")
	rows := make([][]notification.Button, 0, len(mods)+2)
	if len(mods) > 0 {
		lines := []string{b.t(user, "admin.mods_title")}
		for _, m := range mods {
			lines = append(lines, "• "+m.FullName()+" ("+strconv.FormatInt(m.TelegramID, 10)+")")
			rows = append(rows, button(b.t(user, "btn.demote", m.FullName()), callback.Demote(m.ID)))
		}
		text = strings.Join(lines, "\n")
	}
	rows = append(rows, button(b.t(user, "btn.promote"), callback.Admin(callback.ActionPromote)))
	b.reply(ctx, chatID, text, append(rows, b.kb.back(lang, callback.Menu(callback.ActionMenuAdmin))...))
}

func (b *BotService) showGlobalStats(ctx context.Context, user *domain.User, chatID int64) {
	res, err := b.surface.Execute(ctx, user, command.GlobalStats{})
	if err != nil {
		b.fail(ctx, user, chatID, err)
		return
	}
	st := res.GlobalStats
	lang := user.Language
	users := 0
	for _, n := range st.UsersByRole {
		users += n
	}
	lines := []string{b.t(user, "stats.global",
		users, st.UsersByRole[domain.RoleModerator], st.UsersByRole[domain.RoleAdmin],
		st.TotalTickets,
		st.TicketsByStatus[domain.TicketStatusOpen], st.TicketsByStatus[domain.TicketStatusInProgress],
		st.TicketsByStatus[domain.TicketStatusResolved], st.TicketsByStatus[domain.TicketStatusClosed],
		st.CreatedLastWeek, formatRating(b.l, lang, st.AverageRating))}
	if len(st.TopModerators) > 0 {
		lines = append(lines, "", b.t(user, "stats.top"))
		for i, row := range st.TopModerators {
			lines = append(lines, b.t(user, "stats.top_row", i+1, row.Moderator.FullName(), row.Closed, formatRating(b.l, lang, row.AverageRating)))
		}
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n"), b.kb.back(lang, callback.Menu(callback.ActionMenuAdmin)))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
