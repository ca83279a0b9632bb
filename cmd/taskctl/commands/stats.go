package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmaster/client/internal/adapters/render"
	"github.com/taskmaster/client/internal/application/session"
	"github.com/taskmaster/client/internal/domain/entities"
)

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			period, _ := cmd.Flags().GetString("period")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")

			query := entities.StatsQuery{Period: entities.StatsPeriod(period), FromDate: from, ToDate: to}
			analytics := query != entities.StatsQuery{}
			if analytics {
				if err := entities.Validate(query); err != nil {
					return err
				}
			}

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				var (
					stats *entities.TaskStats
					err   error
				)
				if analytics {
					stats, err = s.Stats.GetAnalyticsStats(ctx, query)
				} else {
					stats, err = s.Stats.GetGeneralStats(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.Stats(*stats))
				return nil
			})
		},
	}

	statsCmd.Flags().String("period", "", "Time series period (day, week, month, year)")
	statsCmd.Flags().String("from", "", "Period start (YYYY-MM-DD)")
	statsCmd.Flags().String("to", "", "Period end (YYYY-MM-DD)")
	return statsCmd
}
