package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-bot/internal/api/http"
	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/telegram"
	"github.com/spec-kit/support-bot/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the admin HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if err := a.migrate(ctx); err != nil {
		return err
	}
	if err := a.staff.EnsureAdmins(ctx); err != nil {
		return err
	}

	redis := persistence.NewRedis(ctx, a.cfg.Redis, logger)
	defer redis.Close()

	client, err := telegram.NewClient(a.cfg.Telegram, logger)
	if err != nil {
		return err
	}

	notifyWorker := worker.NewNotificationWorker(a.cfg.Notification, logger)
	notifyWorker.Start(ctx)
	defer notifyWorker.Stop()

	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: a.dispatcher,
		Planner:    notification.NewPlanner(a.store, a.localizer, a.cfg.Telegram.ReassignHistoryMessages),
		Notifier:   telegram.NewNotifier(client),
		Worker:     notifyWorker,
		Metrics:    a.metrics,
		Logger:     logger,
	}).RegisterHandlers()

	bot := telegram.NewBotService(telegram.BotDependencies{
		Client:    client,
		Surface:   a.surface,
		Lifecycle: a.lifecycle,
		Staff:     a.staff,
		Localizer: a.localizer,
		Languages: a.cfg.Localization.Languages,
		Throttler: session.NewThrottler(redis.Client, a.cfg.Throttle.RateLimit()),
		States:    session.NewStateStore(redis.Client),
		Config:    a.cfg.Telegram,
		Logger:    logger,
	})

	httpApp := newHTTPApp(a, redis)
	go func() {
		if err := httpApp.Listen(a.cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			stop()
		}
	}()

	err = bot.Run(ctx)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpApp.ShutdownWithContext(shutdownCtx); shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
		logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	return err
}

func newHTTPApp(a *app, redis *persistence.Redis) *fiber.App {
	httpApp := fiber.New(fiber.Config{AppName: a.cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(httpApp, a.logger, a.metrics, a.cfg.App.RequestTimeout())

	var pg handlers.Pinger
	if a.postgres != nil {
		pg = a.postgres
	}
	authService := service.NewAuthService(*a.cfg, a.store, a.logger)
	httptransport.RegisterRoutes(httpApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Staff:          handlers.NewStaffHandler(a.surface, a.staff, a.lifecycle, a.logger),
		Tickets:        handlers.NewTicketsHandler(a.surface, a.lifecycle),
		Stats:          handlers.NewStatsHandler(a.surface, a.stats, a.metrics),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), a.staff),
	})
	return httpApp
}
