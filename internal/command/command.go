// Package command is the single authorization checkpoint between the chat
// and HTTP entry points and the ticket engine. Both entry points build the
// same tagged commands and run them through a Surface.
package command

import "github.com/spec-kit/support-bot/internal/domain"

// Kind names a command.
type Kind string

const (
	KindCreateTicket   Kind = "create_ticket"
	KindClaim          Kind = "claim"
	KindSendMessage    Kind = "send_message"
	KindResolve        Kind = "resolve"
	KindReassign       Kind = "reassign"
	KindRate           Kind = "rate"
	KindForceRelease   Kind = "force_release"
	KindPromote        Kind = "promote"
	KindDemote         Kind = "demote"
	KindReopen         Kind = "reopen"
	KindModeratorStats Kind = "moderator_stats"
	KindGlobalStats    Kind = "global_stats"

	// View kinds gate read-only screens; they have no Command type.
	KindViewQueue      Kind = "view_queue"
	KindViewModerators Kind = "view_moderators"
)

// Command is implemented only by the types in this package.
type Command interface {
	Kind() Kind
	sealed()
}

// CreateTicket opens a ticket with Content as its first message.
type CreateTicket struct {
	Content domain.Content
}

// Claim takes an OPEN ticket.
type Claim struct {
	TicketID int64
}

// SendMessage posts into a ticket. A zero TicketID targets the actor's own
// active ticket: the one they requested, or the one they work as moderator.
type SendMessage struct {
	TicketID int64
	Content  domain.Content
}

// Resolve marks the actor's IN_PROGRESS ticket as resolved.
type Resolve struct {
	TicketID int64
}

// Reassign hands a ticket to another moderator.
type Reassign struct {
	TicketID      int64
	ToModeratorID int64
}

// Rate closes a RESOLVED ticket with a 1..5 score.
type Rate struct {
	TicketID int64
	Score    int
}

// ForceRelease returns every ticket held by a moderator to the queue.
type ForceRelease struct {
	ModeratorID int64
	Reason      string
}

// Promote raises the user with TelegramID to moderator.
type Promote struct {
	TelegramID int64
}

// Demote lowers a moderator to user, releasing their tickets first.
type Demote struct {
	UserID int64
}

// Reopen returns a CLOSED ticket to the queue.
type Reopen struct {
	TicketID int64
}

// ModeratorStats reports on the acting moderator.
type ModeratorStats struct{}

// GlobalStats reports on the whole desk.
type GlobalStats struct{}

func (CreateTicket) Kind() Kind   { return KindCreateTicket }
func (Claim) Kind() Kind          { return KindClaim }
func (SendMessage) Kind() Kind    { return KindSendMessage }
func (Resolve) Kind() Kind        { return KindResolve }
func (Reassign) Kind() Kind       { return KindReassign }
func (Rate) Kind() Kind           { return KindRate }
func (ForceRelease) Kind() Kind   { return KindForceRelease }
func (Promote) Kind() Kind        { return KindPromote }
func (Demote) Kind() Kind         { return KindDemote }
func (Reopen) Kind() Kind         { return KindReopen }
func (ModeratorStats) Kind() Kind { return KindModeratorStats }
func (GlobalStats) Kind() Kind    { return KindGlobalStats }

func (CreateTicket) sealed()   {}
func (Claim) sealed()          {}
func (SendMessage) sealed()    {}
func (Resolve) sealed()        {}
func (Reassign) sealed()       {}
func (Rate) sealed()           {}
func (ForceRelease) sealed()   {}
func (Promote) sealed()        {}
func (Demote) sealed()         {}
func (Reopen) sealed()         {}
func (ModeratorStats) sealed() {}
func (GlobalStats) sealed()    {}
