// Package commands holds the taskctl command tree
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmaster/client/internal/application/session"
	"github.com/taskmaster/client/internal/infrastructure/config"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

// Build information, set with -ldflags
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewRootCommand creates the taskctl command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "TaskMaster command line client",
		Long:          `taskctl manages your TaskMaster tasks, statistics and notifications from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("TASKCTL_CONFIG"), "Path to a YAML config file")

	rootCmd.AddCommand(NewLoginCommand())
	rootCmd.AddCommand(NewRegisterCommand())
	rootCmd.AddCommand(NewWhoamiCommand())
	rootCmd.AddCommand(NewLogoutCommand())
	rootCmd.AddCommand(NewTasksCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewNotificationsCommand())
	rootCmd.AddCommand(NewMockServerCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print taskctl version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "taskctl v%s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	var path string
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

// withSession runs fn against a session built from the command's config
// and tears it down afterwards
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) error) error {
	cfg, appLogger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer appLogger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := session.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}
