// Package callback encodes and parses inline-button payloads of the form
// prefix:action[:arg...].
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	PrefixLanguage = "lang"
	PrefixUser     = "user"
	PrefixRate     = "rate"
	PrefixMod      = "mod"
	PrefixAdmin    = "admin"
	PrefixMenu     = "menu"
)

const (
	ActionCreate     = "create"
	ActionActive     = "active"
	ActionHistory    = "history"
	ActionLanguage   = "language"
	ActionRate       = "rate"
	ActionQueue      = "queue"
	ActionTake       = "take"
	ActionResolve    = "resolve"
	ActionResolveOK  = "resolve_ok"
	ActionReassign   = "reassign"
	ActionAssign     = "assign"
	ActionStats      = "stats"
	ActionCurrent    = "current"
	ActionMods       = "mods"
	ActionPromote    = "promote"
	ActionPromoteOK  = "promote_ok"
	ActionDemote     = "demote"
	ActionDemoteOK   = "demote_ok"
	ActionCancel     = "cancel"
	ActionMenuUser   = "user"
	ActionMenuMod    = "mod"
	ActionMenuAdmin  = "admin"
	maxCallbackBytes = 64
)

// ErrMalformed is returned for payloads outside the grammar.
var ErrMalformed = errors.New("malformed callback data")

// Data is a parsed callback payload. For the lang prefix Action holds the language code.
type Data struct {
	Prefix string
	Action string
	Args   []int64
}

// Arg returns the i-th numeric argument or zero.
func (d Data) Arg(i int) int64 {
	if i < len(d.Args) {
		return d.Args[i]
	}
	return 0
}

type arity struct{ min, max int }

var grammar = map[string]map[string]arity{
	PrefixUser: {
		ActionCreate:   {0, 0},
		ActionActive:   {0, 0},
		ActionHistory:  {0, 1},
		ActionLanguage: {0, 0},
	},
	PrefixMod: {
		ActionQueue:     {0, 1},
		ActionTake:      {1, 1},
		ActionResolve:   {1, 1},
		ActionResolveOK: {1, 1},
		ActionReassign:  {1, 1},
		ActionAssign:    {2, 2},
		ActionStats:     {0, 0},
		ActionCurrent:   {0, 0},
	},
	PrefixAdmin: {
		ActionStats:     {0, 0},
		ActionMods:      {0, 0},
		ActionPromote:   {0, 0},
		ActionPromoteOK: {1, 1},
		ActionDemote:    {1, 1},
		ActionDemoteOK:  {1, 1},
		ActionCancel:    {0, 0},
	},
	PrefixMenu: {
		ActionMenuUser:  {0, 0},
		ActionMenuMod:   {0, 0},
		ActionMenuAdmin: {0, 0},
	},
}

// Parse validates raw against the callback grammar.
func Parse(raw string) (Data, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(raw) > maxCallbackBytes {
		return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}

	switch parts[0] {
	case PrefixLanguage:
		if len(parts) != 2 || parts[1] == "" {
			return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
		}
		return Data{Prefix: PrefixLanguage, Action: parts[1]}, nil
	case PrefixRate:
		args, err := parseArgs(parts[1:])
		if err != nil || len(args) != 2 {
			return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
		}
		return Data{Prefix: PrefixRate, Action: ActionRate, Args: args}, nil
	}

	actions, ok := grammar[parts[0]]
	if !ok {
		return Data{}, fmt.Errorf("%w: unknown prefix in %q", ErrMalformed, raw)
	}
	want, ok := actions[parts[1]]
	if !ok {
		return Data{}, fmt.Errorf("%w: unknown action in %q", ErrMalformed, raw)
	}
	args, err := parseArgs(parts[2:])
	if err != nil || len(args) < want.min || len(args) > want.max {
		return Data{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	return Data{Prefix: parts[0], Action: parts[1], Args: args}, nil
}

func parseArgs(raw []string) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(raw))
	for _, part := range raw {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func encode(prefix, action string, args ...int64) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(action)
	for _, a := range args {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(a, 10))
	}
	return b.String()
}

func Language(code string) string { return PrefixLanguage + ":" + code }
func User(action string) string   { return encode(PrefixUser, action) }
func History(page int) string     { return encode(PrefixUser, ActionHistory, int64(page)) }
func Rate(ticketID int64, score int) string {
	return PrefixRate + ":" + strconv.FormatInt(ticketID, 10) + ":" + strconv.Itoa(score)
}
func Queue(page int) string                { return encode(PrefixMod, ActionQueue, int64(page)) }
func Take(ticketID int64) string           { return encode(PrefixMod, ActionTake, ticketID) }
func Resolve(ticketID int64) string        { return encode(PrefixMod, ActionResolve, ticketID) }
func ResolveConfirm(ticketID int64) string { return encode(PrefixMod, ActionResolveOK, ticketID) }
func Reassign(ticketID int64) string       { return encode(PrefixMod, ActionReassign, ticketID) }
func Assign(ticketID, userID int64) string { return encode(PrefixMod, ActionAssign, ticketID, userID) }
func Mod(action string) string             { return encode(PrefixMod, action) }
func Admin(action string) string           { return encode(PrefixAdmin, action) }
func PromoteConfirm(telegramID int64) string {
	return encode(PrefixAdmin, ActionPromoteOK, telegramID)
}
func Demote(userID int64) string        { return encode(PrefixAdmin, ActionDemote, userID) }
func DemoteConfirm(userID int64) string { return encode(PrefixAdmin, ActionDemoteOK, userID) }
func Menu(action string) string         { return encode(PrefixMenu, action) }
