package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/localization"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/session"
)

// BotService receives Telegram updates and routes them through the command surface.
type BotService struct {
	client    Client
	out       *Notifier
	surface   *command.Surface
	lifecycle *service.LifecycleService
	staff     *service.StaffService
	l         *localization.Localizer
	kb        keyboards
	throttler *session.Throttler
	states    *session.StateStore
	cfg       config.TelegramConfig
	logger    *zap.Logger
}

// BotDependencies wires the bot.
type BotDependencies struct {
	Client    Client
	Surface   *command.Surface
	Lifecycle *service.LifecycleService
	Staff     *service.StaffService
	Localizer *localization.Localizer
	Languages []string
	Throttler *session.Throttler
	States    *session.StateStore
	Config    config.TelegramConfig
	Logger    *zap.Logger
}

// NewBotService constructs the bot.
func NewBotService(deps BotDependencies) *BotService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotService{
		client:    deps.Client,
		out:       NewNotifier(deps.Client),
		surface:   deps.Surface,
		lifecycle: deps.Lifecycle,
		staff:     deps.Staff,
		l:         deps.Localizer,
		kb:        keyboards{l: deps.Localizer, langs: deps.Languages},
		throttler: deps.Throttler,
		states:    deps.States,
		cfg:       deps.Config,
		logger:    logger,
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *BotService) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout()
	updates := b.client.GetUpdatesChan(u)
	defer b.client.StopReceivingUpdates()

	b.logger.Info("telegram update loop started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram update loop stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. It never panics and never returns an
// error; failures are answered in chat and logged.
func (b *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	var from *tgbotapi.User
	switch {
	case update.Message != nil:
		from = update.Message.From
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	}
	if from == nil || from.IsBot {
		return
	}

	if !b.allow(ctx, from.ID) {
		if update.CallbackQuery != nil {
			b.answer(update.CallbackQuery.ID, b.l.T(b.profileLanguage(from), "throttle.slow_down"))
		}
		return
	}

	user, created, err := b.staff.Register(ctx, domain.Profile{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Language:   from.LanguageCode,
	})
	if err != nil {
		b.logger.Error("register user", zap.Int64("telegram_id", from.ID), zap.Error(err))
		return
	}

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, user, created, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, user, update.CallbackQuery)
	}
}

func (b *BotService) allow(ctx context.Context, telegramID int64) bool {
	if b.throttler == nil {
		return true
	}
	ok, err := b.throttler.Allow(ctx, telegramID)
	if err != nil {
		b.logger.Warn("throttle check failed; letting update through", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return true
	}
	return ok
}

func (b *BotService) profileLanguage(from *tgbotapi.User) string {
	if lang := strings.ToLower(from.LanguageCode); len(lang) >= 2 && b.l.Has(lang[:2]) {
		return lang[:2]
	}
	return ""
}

func (b *BotService) handleMessage(ctx context.Context, user *domain.User, created bool, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.IsCommand() {
		b.handleCommand(ctx, user, created, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.logger.Warn("load conversation state", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	switch st.Step {
	case session.StepCreatingTicket:
		b.createTicket(ctx, user, chatID, contentOf(msg))
	case session.StepAwaitingPromoteID:
		b.promotePrompt(ctx, user, chatID, strings.TrimSpace(msg.Text))
	default:
		b.relayMessage(ctx, user, chatID, contentOf(msg))
	}
}

func (b *BotService) handleCommand(ctx context.Context, user *domain.User, created bool, chatID int64, name, args string) {
	switch name {
	case "start":
		b.clearState(ctx, chatID)
		if created {
			b.reply(ctx, chatID, b.t(user, "start.choose_language"), b.kb.languages())
			return
		}
		b.showMenu(ctx, user, chatID)
	case "menu":
		b.clearState(ctx, chatID)
		b.showMenu(ctx, user, chatID)
	case "help":
		b.reply(ctx, chatID, b.t(user, "help.text"), nil)
	case "reopen":
		ticketID, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			b.reply(ctx, chatID, b.t(user, "admin.usage_reopen"), nil)
			return
		}
		res, err := b.surface.Execute(ctx, user, command.Reopen{TicketID: ticketID})
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "admin.reopened", res.Ticket.ID), nil)
	case "release":
		telegramID, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			b.reply(ctx, chatID, b.t(user, "admin.usage_release"), nil)
			return
		}
		if err := b.surface.Authorize(user, command.KindForceRelease); err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		target, err := b.staff.GetByTelegramID(ctx, telegramID)
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		res, err := b.surface.Execute(ctx, user, command.ForceRelease{ModeratorID: target.ID, Reason: "released by administrator"})
		if err != nil {
			b.fail(ctx, user, chatID, err)
			return
		}
		b.reply(ctx, chatID, b.t(user, "admin.released", len(res.Released)), nil)
	default:
		b.reply(ctx, chatID, b.t(user, "help.text"), nil)
	}
}

func (b *BotService) showMenu(ctx context.Context, user *domain.User, chatID int64) {
	key, rows := b.kb.roleMenu(user)
	b.reply(ctx, chatID, b.t(user, key), rows)
}

func (b *BotService) clearState(ctx context.Context, chatID int64) {
	if err := b.states.Clear(ctx, chatID); err != nil {
		b.logger.Warn("clear conversation state", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *BotService) setState(ctx context.Context, chatID int64, step session.Step) {
	if err := b.states.Set(ctx, chatID, session.State{Step: step}); err != nil {
		b.logger.Warn("save conversation state", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *BotService) reply(ctx context.Context, chatID int64, text string, rows [][]notification.Button) {
	if err := b.out.Notify(ctx, notification.Delivery{ChatID: chatID, Text: text, Buttons: rows}); err != nil {
		b.logger.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *BotService) answer(callbackID, text string) {
	if _, err := b.client.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("answer callback", zap.Error(err))
	}
}

// fail tells the user why their action did not happen.
func (b *BotService) fail(ctx context.Context, user *domain.User, chatID int64, err error) {
	key := errorKey(err)
	if key == "error.internal" {
		b.logger.Error("bot action failed", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		b.logger.Debug("bot action rejected", zap.Int64("user_id", user.ID), zap.String("reason", key), zap.Error(err))
	}
	b.reply(ctx, chatID, b.t(user, key), nil)
}

func (b *BotService) t(user *domain.User, key string, args ...any) string {
	return b.l.T(user.Language, key, args...)
}

func contentOf(msg *tgbotapi.Message) domain.Content {
	switch {
	case len(msg.Photo) > 0:
		return domain.Content{Type: domain.MessageTypePhoto, Text: msg.Caption, FileID: msg.Photo[len(msg.Photo)-1].FileID}
	case msg.Video != nil:
		return domain.Content{Type: domain.MessageTypeVideo, Text: msg.Caption, FileID: msg.Video.FileID, FileName: msg.Video.FileName}
	case msg.Document != nil:
		return domain.Content{Type: domain.MessageTypeDocument, Text: msg.Caption, FileID: msg.Document.FileID, FileName: msg.Document.FileName}
	case msg.Audio != nil:
		return domain.Content{Type: domain.MessageTypeAudio, Text: msg.Caption, FileID: msg.Audio.FileID, FileName: msg.Audio.FileName}
	case msg.Voice != nil:
		return domain.Content{Type: domain.MessageTypeVoice, Text: msg.Caption, FileID: msg.Voice.FileID}
	}
	return domain.TextContent(msg.Text)
}

func formatRating(l *localization.Localizer, lang string, avg *float64) string {
	if avg == nil {
		return l.T(lang, "stats.no_rating")
	}
	return fmt.Sprintf("%.1f", *avg)
}
