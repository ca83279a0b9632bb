package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/client/internal/adapters/render"
	"github.com/taskmaster/client/internal/application/feed"
	"github.com/taskmaster/client/internal/application/session"
)

// NewNotificationsCommand creates the notifications command with subcommands
func NewNotificationsCommand() *cobra.Command {
	notificationsCmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notes"},
		Short:   "Notification feed commands",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the notification feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if _, err := s.RequireUser(ctx); err != nil {
					return err
				}
				list, err := s.Notifications.GetNotifications(ctx, limit, offset)
				if err != nil {
					return err
				}
				unread, err := s.Notifications.GetUnreadCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), render.Feed(list, unread, false, time.Now()))
				return nil
			})
		},
	}
	listCmd.Flags().Int("limit", 0, "Page size (server default when 0)")
	listCmd.Flags().Int("offset", 0, "Entries to skip")

	readCmd := &cobra.Command{
		Use:   "read <id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid notification id %q", arg)
				}
				ids = append(ids, id)
			}

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if _, err := s.Resume(ctx); err != nil {
					return err
				}
				if err := s.Feed.MarkAsRead(ctx, ids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", s.Feed.State().UnreadCount)
				return nil
			})
		},
	}

	readAllCmd := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if _, err := s.Resume(ctx); err != nil {
					return err
				}
				if err := s.Feed.MarkAllAsRead(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All notifications read")
				return nil
			})
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the notification stream until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if _, err := s.Resume(ctx); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				state := s.Feed.State()
				fmt.Fprint(out, render.Feed(state.Notifications, state.UnreadCount, state.Connected, time.Now()))

				var mu sync.Mutex
				var seen int64
				if len(state.Notifications) > 0 {
					seen = state.Notifications[0].ID
				}
				unsubscribe := s.Feed.Subscribe(func(state feed.State) {
					mu.Lock()
					defer mu.Unlock()
					if len(state.Notifications) == 0 || state.Notifications[0].ID == seen {
						return
					}
					seen = state.Notifications[0].ID
					fmt.Fprintln(out, render.NotificationLine(state.Notifications[0], time.Now()))
				})
				defer unsubscribe()

				<-ctx.Done()
				return nil
			})
		},
	}

	notificationsCmd.AddCommand(listCmd, readCmd, readAllCmd, watchCmd)
	return notificationsCmd
}
