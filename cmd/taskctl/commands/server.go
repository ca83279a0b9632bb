package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/client/internal/infrastructure/server"
)

// NewMockServerCommand creates the mock-server command
func NewMockServerCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run the in-memory TaskMaster backend",
		Long:  "Run an in-memory implementation of the TaskMaster REST and notification API for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer appLogger.Close()

			if cmd.Flags().Changed("port") {
				cfg.MockServer.Port, _ = cmd.Flags().GetInt("port")
			}

			srv, err := server.New(cfg, nil, appLogger)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				appLogger.Infow("Starting mock TaskMaster server",
					"port", cfg.MockServer.Port,
					"legacy_envelope", cfg.MockServer.LegacyEnvelope,
				)
				if err := srv.Start(fmt.Sprintf(":%d", cfg.MockServer.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// Wait for interrupt signal to gracefully shutdown the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errCh:
				return fmt.Errorf("server failed to start: %w", err)
			}

			appLogger.Info("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			appLogger.Info("Server exited gracefully")
			return nil
		},
	}

	serveCmd.Flags().Int("port", 8000, "Port to listen on")
	return serveCmd
}
