package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/notification"
)

const (
	maxTextRunes    = 4000
	maxCaptionRunes = 1024
)

// Notifier delivers rendered notifications through the Bot API.
type Notifier struct {
	sender Sender
}

// NewNotifier wraps a sender.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify sends d. Long text is split into chunks; a file whose caption fits
// is sent with it, otherwise the text goes first and the file follows bare.
// The keyboard is attached to the last message sent.
func (n *Notifier) Notify(_ context.Context, d notification.Delivery) error {
	markup := inlineMarkup(d.Buttons)

	if d.Attachment != nil && utf8.RuneCountInString(d.Text) <= maxCaptionRunes {
		return n.send(media(d.ChatID, d.Attachment, d.Text, markup))
	}

	chunks := splitText(d.Text, maxTextRunes)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(d.ChatID, chunk)
		if i == len(chunks)-1 && d.Attachment == nil && markup != nil {
			msg.ReplyMarkup = *markup
		}
		if err := n.send(msg); err != nil {
			return err
		}
	}
	if d.Attachment != nil {
		return n.send(media(d.ChatID, d.Attachment, "", markup))
	}
	return nil
}

func (n *Notifier) send(c tgbotapi.Chattable) error {
	if _, err := n.sender.Send(c); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func media(chatID int64, a *notification.Attachment, caption string, markup *tgbotapi.InlineKeyboardMarkup) tgbotapi.Chattable {
	file := tgbotapi.FileID(a.FileID)
	switch a.Type {
	case domain.MessageTypePhoto:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = *markup
		}
		return cfg
	case domain.MessageTypeVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = *markup
		}
		return cfg
	case domain.MessageTypeAudio:
		cfg := tgbotapi.NewAudio(chatID, file)
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = *markup
		}
		return cfg
	case domain.MessageTypeVoice:
		cfg := tgbotapi.NewVoice(chatID, file)
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = *markup
		}
		return cfg
	default:
		cfg := tgbotapi.NewDocument(chatID, file)
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = *markup
		}
		return cfg
	}
}

// splitText cuts text into pieces of at most limit runes, preferring to cut
// at a newline in the second half of a piece.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
