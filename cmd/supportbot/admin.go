package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/telegram"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage moderators from the command line",
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List moderators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withAdmin(cmd, func(ctx context.Context, a *app, _ *domain.User) error {
			mods, err := a.staff.ListModerators(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTELEGRAM ID\tNAME\tLAST ACTIVITY")
			for i := range mods {
				m := &mods[i]
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", m.ID, m.TelegramID, m.FullName(), notification.FormatTime(m.LastActivity))
			}
			return w.Flush()
		})
	},
}

var adminPromoteCmd = &cobra.Command{
	Use:   "promote <telegram-id>",
	Short: "Make a registered user a moderator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram id %q", args[0])
		}
		return withAdmin(cmd, func(ctx context.Context, a *app, admin *domain.User) error {
			res, err := a.surface.Execute(ctx, admin, command.Promote{TelegramID: telegramID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d) is now a moderator\n", res.User.FullName(), res.User.ID)
			return nil
		})
	},
}

var adminDemoteCmd = &cobra.Command{
	Use:   "demote <user-id>",
	Short: "Return a moderator to the user role, releasing their tickets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		return withAdmin(cmd, func(ctx context.Context, a *app, admin *domain.User) error {
			res, err := a.surface.Execute(ctx, admin, command.Demote{UserID: userID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s demoted, %d ticket(s) returned to the queue\n", res.User.FullName(), len(res.Released))
			return nil
		})
	},
}

var releaseReason string

var adminReleaseCmd = &cobra.Command{
	Use:   "release <user-id>",
	Short: "Return every ticket a moderator holds to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		return withAdmin(cmd, func(ctx context.Context, a *app, admin *domain.User) error {
			res, err := a.surface.Execute(ctx, admin, command.ForceRelease{ModeratorID: userID, Reason: releaseReason})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d ticket(s) returned to the queue\n", len(res.Released))
			return nil
		})
	},
}

var bcryptCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for ADMIN_API_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0], bcryptCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	adminReleaseCmd.Flags().StringVar(&releaseReason, "reason", "released by administrator", "reason recorded in the ticket thread")
	hashPasswordCmd.Flags().IntVar(&bcryptCost, "cost", 0, "bcrypt cost (0 uses the default)")
	adminCmd.AddCommand(adminListCmd, adminPromoteCmd, adminDemoteCmd, adminReleaseCmd, hashPasswordCmd)
}

// withAdmin runs fn as the first configured administrator. When a bot token
// is set, lifecycle notifications are delivered before the command returns.
func withAdmin(cmd *cobra.Command, fn func(ctx context.Context, a *app, admin *domain.User) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.migrate(ctx); err != nil {
		return err
	}
	if len(a.cfg.Telegram.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS is empty; no administrator to act as")
	}
	if err := a.staff.EnsureAdmins(ctx); err != nil {
		return err
	}
	admin, err := a.staff.GetByTelegramID(ctx, a.cfg.Telegram.AdminIDs[0])
	if err != nil {
		return err
	}

	if a.cfg.Telegram.Token != "" {
		client, err := telegram.NewClient(a.cfg.Telegram, a.logger)
		if err != nil {
			a.logger.Warn("notifications disabled", zap.Error(err))
		} else {
			service.NewNotificationService(service.NotificationDependencies{
				Dispatcher: a.dispatcher,
				Planner:    notification.NewPlanner(a.store, a.localizer, a.cfg.Telegram.ReassignHistoryMessages),
				Notifier:   telegram.NewNotifier(client),
				Metrics:    a.metrics,
				Logger:     a.logger,
			}).RegisterHandlers()
		}
	}
	return fn(ctx, a, admin)
}
