// Package telegram adapts the Bot API to the ticket engine: it reads updates,
// turns them into commands and renders deliveries back into chats.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
)

// Sender is the write side of the Bot API.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client is the full Bot API surface the bot loop needs.
type Client interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewClient authorizes against the Bot API with the configured token.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	bot.Debug = cfg.Debug
	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	return bot, nil
}
