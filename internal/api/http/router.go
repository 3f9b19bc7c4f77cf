package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Staff          *handlers.StaffHandler
	Tickets        *handlers.TicketsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	api.Get("/stats", cfg.Stats.GlobalStats)
	api.Get("/metrics", cfg.Stats.Metrics)

	api.Get("/moderators", cfg.Staff.ListModerators)
	api.Post("/moderators/:telegramID", cfg.Staff.Promote)
	api.Delete("/moderators/:userID", cfg.Staff.Demote)
	api.Post("/moderators/:userID/release", cfg.Staff.Release)
	api.Get("/moderators/:userID/stats", cfg.Stats.ModeratorStats)

	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Post("/tickets/:id/reopen", cfg.Tickets.ReopenTicket)
}
