package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/notification"
)

type recordingSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func hasMarkup(markup any) bool {
	_, ok := markup.(tgbotapi.InlineKeyboardMarkup)
	return ok
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))

	text := strings.Repeat("a", 7) + "\n" + strings.Repeat("b", 7)
	assert.Equal(t, []string{strings.Repeat("a", 7) + "\n", strings.Repeat("b", 7)}, splitText(text, 10))

	chunks := splitText(strings.Repeat("я", 25), 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, strings.Repeat("я", 25), strings.Join(chunks, ""))
}

func TestNotifyLongTextPutsKeyboardOnLastChunk(t *testing.T) {
	sender := &recordingSender{}
	err := NewNotifier(sender).Notify(context.Background(), notification.Delivery{
		ChatID:  7,
		Text:    strings.Repeat("x", maxTextRunes+10),
		Buttons: [][]notification.Button{{{Text: "ok", Data: "menu:user"}}},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	first := sender.sent[0].(tgbotapi.MessageConfig)
	second := sender.sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(7), first.ChatID)
	assert.False(t, hasMarkup(first.ReplyMarkup))
	assert.True(t, hasMarkup(second.ReplyMarkup))
}

func TestNotifyAttachmentWithCaption(t *testing.T) {
	sender := &recordingSender{}
	err := NewNotifier(sender).Notify(context.Background(), notification.Delivery{
		ChatID:     7,
		Text:       "see screenshot",
		Attachment: &notification.Attachment{Type: domain.MessageTypePhoto, FileID: "file-1"},
		Buttons:    [][]notification.Button{{{Text: "take", Data: "mod:take:1"}}},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	photo, ok := sender.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "see screenshot", photo.Caption)
	assert.True(t, hasMarkup(photo.ReplyMarkup))
}

func TestNotifyLongCaptionSendsTextThenFile(t *testing.T) {
	sender := &recordingSender{}
	err := NewNotifier(sender).Notify(context.Background(), notification.Delivery{
		ChatID:     7,
		Text:       strings.Repeat("c", maxCaptionRunes+1),
		Attachment: &notification.Attachment{Type: "sticker", FileID: "file-2"},
		Buttons:    [][]notification.Button{{{Text: "take", Data: "mod:take:1"}}},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	text := sender.sent[0].(tgbotapi.MessageConfig)
	assert.False(t, hasMarkup(text.ReplyMarkup))

	doc, ok := sender.sent[1].(tgbotapi.DocumentConfig)
	require.True(t, ok, "unknown types fall back to documents")
	assert.Empty(t, doc.Caption)
	assert.True(t, hasMarkup(doc.ReplyMarkup))
}

func TestNotifyWrapsSendErrors(t *testing.T) {
	err := NewNotifier(&recordingSender{err: errors.New("chat not found")}).
		Notify(context.Background(), notification.Delivery{ChatID: 1, Text: "hi"})
	assert.ErrorContains(t, err, "telegram send: chat not found")
}
