package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmaster/client/internal/adapters/render"
	"github.com/taskmaster/client/internal/application/session"
	"github.com/taskmaster/client/internal/domain/entities"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				resp, err := s.Login(ctx, entities.LoginRequest{Email: email, Password: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", resp.User.Email)
				return nil
			})
		},
	}

	loginCmd.Flags().String("email", "", "Account email (required)")
	loginCmd.Flags().String("password", "", "Account password (required)")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("password")
	return loginCmd
}

// NewRegisterCommand creates the register command
func NewRegisterCommand() *cobra.Command {
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				resp, err := s.Register(ctx, entities.RegisterRequest{Name: name, Email: email, Password: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\n", resp.User.Email)
				return nil
			})
		},
	}

	registerCmd.Flags().String("name", "", "Display name (required)")
	registerCmd.Flags().String("email", "", "Account email (required)")
	registerCmd.Flags().String("password", "", "Account password, at least 6 characters (required)")
	registerCmd.MarkFlagRequired("name")
	registerCmd.MarkFlagRequired("email")
	registerCmd.MarkFlagRequired("password")
	return registerCmd
}

// NewWhoamiCommand creates the whoami command
func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if _, err := s.RequireUser(ctx); err != nil {
					return err
				}
				user, err := s.Auth.Me(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), render.User(*user))
				return nil
			})
		},
	}
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if err := s.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}
