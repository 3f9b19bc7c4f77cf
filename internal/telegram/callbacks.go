package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/domain"
)

func (b *BotService) handleCallback(ctx context.Context, user *domain.User, cq *tgbotapi.CallbackQuery) {
	b.answer(cq.ID, "")
	chatID := cq.From.ID

	data, err := callback.Parse(cq.Data)
	if err != nil {
		b.logger.Warn("ignoring callback", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}

	switch data.Prefix {
	case callback.PrefixLanguage:
		b.changeLanguage(ctx, user, chatID, data.Action)
	case callback.PrefixRate:
		b.rate(ctx, user, chatID, data.Arg(0), int(data.Arg(1)))
	case callback.PrefixUser:
		b.userCallback(ctx, user, chatID, data)
	case callback.PrefixMod:
		b.moderatorCallback(ctx, user, chatID, data)
	case callback.PrefixAdmin:
		b.adminCallback(ctx, user, chatID, data)
	case callback.PrefixMenu:
		b.menuCallback(ctx, user, chatID, data.Action)
	}
}

func (b *BotService) menuCallback(ctx context.Context, user *domain.User, chatID int64, action string) {
	b.clearState(ctx, chatID)
	switch {
	case action == callback.ActionMenuMod && user.IsModerator():
		b.reply(ctx, chatID, b.t(user, "menu.moderator"), b.kb.moderatorMenu(user.Language))
	case action == callback.ActionMenuAdmin && user.IsAdmin():
		b.reply(ctx, chatID, b.t(user, "menu.admin"), b.kb.adminMenu(user.Language))
	case action == callback.ActionMenuUser:
		b.reply(ctx, chatID, b.t(user, "menu.user"), b.kb.userMenu(user))
	default:
		b.showMenu(ctx, user, chatID)
	}
}
