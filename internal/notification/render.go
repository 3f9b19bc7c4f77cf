package notification

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/localization"
)

const timeLayout = "02.01 15:04"

// FormatHistory renders a message thread, one line per message. names maps
// sender ids to display names.
func FormatHistory(l *localization.Localizer, lang string, msgs []domain.Message, names map[int64]string) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSystem() {
			lines = append(lines, l.T(lang, "history.system", m.Text))
			continue
		}
		lines = append(lines, l.T(lang, "history.line", m.SentAt.Format(timeLayout), names[m.SenderID], Preview(l, lang, m)))
	}
	return strings.Join(lines, "\n")
}

// SenderNames resolves the display name of every human sender in msgs.
func SenderNames(ctx context.Context, lookup func(context.Context, int64) (*domain.User, error), msgs []domain.Message) (map[int64]string, error) {
	names := map[int64]string{}
	for _, m := range msgs {
		if _, ok := names[m.SenderID]; ok || m.IsSystem() {
			continue
		}
		user, err := lookup(ctx, m.SenderID)
		if err != nil {
			return nil, err
		}
		names[m.SenderID] = user.FullName()
	}
	return names, nil
}

// Preview is the text of a message, or a media marker followed by its caption.
func Preview(l *localization.Localizer, lang string, m domain.Message) string {
	if !m.HasMedia() {
		return m.Text
	}
	marker := l.T(lang, "history.media", string(m.Type))
	if m.Text == "" {
		return marker
	}
	return marker + " " + m.Text
}

// FormatTime renders a timestamp the way ticket views show it.
func FormatTime(t time.Time) string {
	return t.Format(timeLayout)
}

// StatusEmoji marks a ticket status in lists and views.
func StatusEmoji(s domain.TicketStatus) string {
	switch s {
	case domain.TicketStatusOpen:
		return "🆕"
	case domain.TicketStatusInProgress:
		return "🔄"
	case domain.TicketStatusResolved:
		return "✅"
	case domain.TicketStatusClosed:
		return "🔒"
	}
	return "❓"
}

// RatingButtons is the 1..5 star keyboard offered on resolution.
func RatingButtons(ticketID int64) [][]Button {
	rows := make([][]Button, 0, domain.MaxRating)
	for score := domain.MinRating; score <= domain.MaxRating; score++ {
		rows = append(rows, []Button{{Text: strings.Repeat("⭐", score), Data: callback.Rate(ticketID, score)}})
	}
	return rows
}
