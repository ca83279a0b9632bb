package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

var _ ports.AuthService = (*AuthService)(nil)

// AuthService handles authentication operations
type AuthService struct {
	transport   ports.Transport
	credentials ports.CredentialStore
	logger      *logger.Logger
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(transport ports.Transport, credentials ports.CredentialStore, logger *logger.Logger) *AuthService {
	return &AuthService{
		transport:   transport,
		credentials: credentials,
		logger:      logger.WithComponent("auth"),
		now:         time.Now,
	}
}

// Login authenticates a user and persists the returned token and profile
func (s *AuthService) Login(ctx context.Context, req entities.LoginRequest) (*entities.AuthResponse, error) {
	if err := entities.Validate(req); err != nil {
		return nil, err
	}

	var resp entities.AuthResponse
	if err := s.transport.Do(ctx, "POST", "/auth/login", req, nil, &resp); err != nil {
		s.logger.LogSecurityEvent("login_failed", "", "", map[string]interface{}{"email": req.Email})
		return nil, err
	}

	if err := s.persist(ctx, &resp); err != nil {
		return nil, err
	}

	s.logger.LogUserAction(resp.User.ID, "login", nil)
	return &resp, nil
}

// Register creates a new account; the server logs the user in on success
func (s *AuthService) Register(ctx context.Context, req entities.RegisterRequest) (*entities.AuthResponse, error) {
	if err := entities.Validate(req); err != nil {
		return nil, err
	}

	var resp entities.AuthResponse
	if err := s.transport.Do(ctx, "POST", "/auth/register", req, nil, &resp); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, &resp); err != nil {
		return nil, err
	}

	s.logger.LogUserAction(resp.User.ID, "register", nil)
	return &resp, nil
}

func (s *AuthService) persist(ctx context.Context, resp *entities.AuthResponse) error {
	if resp.Token == "" {
		return nil
	}
	user := resp.User
	if w, ok := s.credentials.(ports.SessionWriter); ok {
		if err := w.SetSession(ctx, resp.Token, &user); err != nil {
			return fmt.Errorf("store session: %w", err)
		}
		return nil
	}
	if err := s.credentials.SetToken(ctx, resp.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.credentials.SetUser(ctx, &user); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// Me fetches the profile of the authenticated user
func (s *AuthService) Me(ctx context.Context) (*entities.User, error) {
	var user entities.User
	if err := s.transport.Do(ctx, "GET", "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the stored credentials. There is no server-side session.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.credentials.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	s.logger.Debug("Credentials cleared")
	return nil
}

// IsAuthenticated reports whether a token is stored. Tokens that parse as a
// JWT with an expiry in the past are treated as absent; the signature is
// the server's business and is not checked here.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	token, err := s.credentials.Token(ctx)
	if err != nil || token == "" {
		return false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		// opaque token
		return true
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return false
	}
	return true
}

// StoredUser returns the profile persisted at login, if any
func (s *AuthService) StoredUser(ctx context.Context) (*entities.User, error) {
	return s.credentials.User(ctx)
}
