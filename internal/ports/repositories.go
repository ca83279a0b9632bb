package ports

import (
	"context"

	"github.com/taskmaster/client/internal/domain/entities"
)

// CredentialStore persists the bearer token and user profile between runs.
// A missing token is returned as "" with a nil error; a missing user as nil, nil.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	User(ctx context.Context) (*entities.User, error)
	SetUser(ctx context.Context, user *entities.User) error
	Clear(ctx context.Context) error
}

// SessionWriter is implemented by stores that can write the token and user
// atomically.
type SessionWriter interface {
	SetSession(ctx context.Context, token string, user *entities.User) error
}
