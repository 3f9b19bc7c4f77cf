package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/spec-kit/support-bot/internal/callback"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/localization"
	"github.com/spec-kit/support-bot/internal/notification"
)

func inlineMarkup(rows [][]notification.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup
}

func button(text, data string) []notification.Button {
	return []notification.Button{{Text: text, Data: data}}
}

type keyboards struct {
	l     *localization.Localizer
	langs []string
}

func (k keyboards) languages() [][]notification.Button {
	langs := k.langs
	if len(langs) == 0 {
		langs = k.l.Languages()
	}
	var row []notification.Button
	for _, lang := range langs {
		if !k.l.Has(lang) {
			continue
		}
		row = append(row, notification.Button{Text: k.l.T(lang, "language.name"), Data: callback.Language(lang)})
	}
	return [][]notification.Button{row}
}

func (k keyboards) userMenu(u *domain.User) [][]notification.Button {
	lang := u.Language
	rows := [][]notification.Button{
		button(k.l.T(lang, "btn.create"), callback.User(callback.ActionCreate)),
		button(k.l.T(lang, "btn.active"), callback.User(callback.ActionActive)),
		button(k.l.T(lang, "btn.history"), callback.History(1)),
		button(k.l.T(lang, "btn.language"), callback.User(callback.ActionLanguage)),
	}
	switch u.Role {
	case domain.RoleModerator:
		rows = append(rows, button(k.l.T(lang, "btn.mod_menu"), callback.Menu(callback.ActionMenuMod)))
	case domain.RoleAdmin:
		rows = append(rows, button(k.l.T(lang, "btn.back"), callback.Menu(callback.ActionMenuAdmin)))
	}
	return rows
}

func (k keyboards) moderatorMenu(lang string) [][]notification.Button {
	return [][]notification.Button{
		button(k.l.T(lang, "btn.queue"), callback.Queue(1)),
		button(k.l.T(lang, "btn.current"), callback.Mod(callback.ActionCurrent)),
		button(k.l.T(lang, "btn.my_stats"), callback.Mod(callback.ActionStats)),
		button(k.l.T(lang, "btn.user_menu"), callback.Menu(callback.ActionMenuUser)),
	}
}

func (k keyboards) adminMenu(lang string) [][]notification.Button {
	return [][]notification.Button{
		button(k.l.T(lang, "btn.global_stats"), callback.Admin(callback.ActionStats)),
		button(k.l.T(lang, "btn.manage_mods"), callback.Admin(callback.ActionMods)),
		button(k.l.T(lang, "btn.user_menu"), callback.Menu(callback.ActionMenuUser)),
	}
}

// roleMenu is the home screen for the user's role.
func (k keyboards) roleMenu(u *domain.User) (string, [][]notification.Button) {
	switch u.Role {
	case domain.RoleAdmin:
		return "menu.admin", k.adminMenu(u.Language)
	case domain.RoleModerator:
		return "menu.moderator", k.moderatorMenu(u.Language)
	}
	return "menu.user", k.userMenu(u)
}

func (k keyboards) workingTicket(lang string, ticketID int64) [][]notification.Button {
	return [][]notification.Button{
		button(k.l.T(lang, "btn.resolve"), callback.Resolve(ticketID)),
		button(k.l.T(lang, "btn.reassign"), callback.Reassign(ticketID)),
	}
}

func (k keyboards) back(lang, data string) [][]notification.Button {
	return [][]notification.Button{button(k.l.T(lang, "btn.back"), data)}
}

func (k keyboards) confirm(lang, yes, no string) [][]notification.Button {
	return [][]notification.Button{{
		{Text: k.l.T(lang, "btn.confirm"), Data: yes},
		{Text: k.l.T(lang, "btn.cancel"), Data: no},
	}}
}

// pager renders prev/next controls around page of total; link builds the
// callback for a page number.
func (k keyboards) pager(lang string, page, total int, link func(int) string) []notification.Button {
	var row []notification.Button
	if page > 1 {
		row = append(row, notification.Button{Text: k.l.T(lang, "btn.prev"), Data: link(page - 1)})
	}
	if page < total {
		row = append(row, notification.Button{Text: k.l.T(lang, "btn.next"), Data: link(page + 1)})
	}
	return row
}
