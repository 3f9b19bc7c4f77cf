package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/dto"
	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/service"
)

// StatsHandler serves desk statistics and process counters.
type StatsHandler struct {
	surface *command.Surface
	stats   *service.StatsService
	metrics *observability.Metrics
}

// NewStatsHandler constructs handler.
func NewStatsHandler(surface *command.Surface, stats *service.StatsService, metrics *observability.Metrics) *StatsHandler {
	return &StatsHandler{surface: surface, stats: stats, metrics: metrics}
}

type scoreResponse struct {
	Moderator     dto.UserResponse `json:"moderator"`
	Closed        int              `json:"closed"`
	AverageRating *float64         `json:"average_rating"`
}

// GlobalStats GET /api/stats.
func (h *StatsHandler) GlobalStats(c *fiber.Ctx) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	res, err := h.surface.Execute(c.UserContext(), admin, command.GlobalStats{})
	if err != nil {
		return err
	}
	st := res.GlobalStats
	top := make([]scoreResponse, 0, len(st.TopModerators))
	for i := range st.TopModerators {
		row := st.TopModerators[i]
		top = append(top, scoreResponse{
			Moderator:     dto.NewUserResponse(&row.Moderator),
			Closed:        row.Closed,
			AverageRating: row.AverageRating,
		})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"users_by_role":     st.UsersByRole,
		"tickets_by_status": st.TicketsByStatus,
		"total_tickets":     st.TotalTickets,
		"created_last_week": st.CreatedLastWeek,
		"average_rating":    st.AverageRating,
		"top_moderators":    top,
	}})
}

// ModeratorStats GET /api/moderators/:userID/stats.
func (h *StatsHandler) ModeratorStats(c *fiber.Ctx) error {
	if _, err := principal(c); err != nil {
		return err
	}
	userID, err := int64Param(c, "userID")
	if err != nil {
		return err
	}
	st, err := h.stats.ModeratorStats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"moderator":      dto.NewUserResponse(&st.Moderator),
		"total":          st.Total,
		"closed":         st.Closed,
		"in_progress":    st.InProgress,
		"resolved":       st.Resolved,
		"average_rating": st.AverageRating,
		"recent_closed":  dto.NewSummaries(st.RecentClosed),
	}})
}

// Metrics GET /api/metrics.
func (h *StatsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
