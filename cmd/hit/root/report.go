package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"hit/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var (
		flags storeFlags
		user  string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show streak, averages, skills and achievements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := openService(cmd, &flags)
			if err != nil {
				return err
			}
			defer cleanup()

			userKey := userKeyFor(user)
			dash, err := svc.Dashboard(userKey)
			if err != nil {
				return err
			}
			ui.RenderDashboard(cmd.OutOrStdout(), userKey, dash)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&user, "user", "guest", "account uid, or guest")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		flags storeFlags
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			svc, cleanup, err := openService(cmd, &flags)
			if err != nil {
				return err
			}
			defer cleanup()

			history, err := svc.History(userKeyFor(user), limit)
			if err != nil {
				return err
			}
			ui.RenderHistory(cmd.OutOrStdout(), history)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&user, "user", "guest", "account uid, or guest")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of sessions to show, 0 for all")
	return cmd
}

func newResetCmd() *cobra.Command {
	var (
		flags storeFlags
		user  string
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every recorded session for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := openService(cmd, &flags)
			if err != nil {
				return err
			}
			defer cleanup()

			userKey := userKeyFor(user)
			if err := svc.ResetHistory(userKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(ui.IconBroom+" history cleared for "+userKey))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&user, "user", "guest", "account uid, or guest")
	return cmd
}
