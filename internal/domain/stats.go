package domain

// ModeratorStats summarises one moderator's workload.
type ModeratorStats struct {
	Moderator     User
	Total         int
	Closed        int
	InProgress    int
	Resolved      int
	AverageRating *float64
	RecentClosed  []Ticket
}

// ModeratorScore is one row of the moderator leaderboard.
type ModeratorScore struct {
	Moderator     User
	Closed        int
	AverageRating *float64
}

// GlobalStats summarises the whole support desk.
type GlobalStats struct {
	UsersByRole     map[Role]int
	TicketsByStatus map[TicketStatus]int
	TotalTickets    int
	CreatedLastWeek int
	AverageRating   *float64
	TopModerators   []ModeratorScore
}
