package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/database"
)

// SQLiteStore keeps one credentials row per profile
type SQLiteStore struct {
	db      *database.DB
	profile string
}

type credentialsRow struct {
	Token    string         `db:"token"`
	UserJSON sql.NullString `db:"user_json"`
}

// NewSQLiteStore creates a store for the given profile
func NewSQLiteStore(db *database.DB, profile string) *SQLiteStore {
	if profile == "" {
		profile = "default"
	}
	return &SQLiteStore{db: db, profile: profile}
}

func (s *SQLiteStore) row(ctx context.Context) (*credentialsRow, error) {
	var row credentialsRow
	err := s.db.DB.GetContext(ctx, &row,
		`SELECT token, user_json FROM credentials WHERE profile = ?`, s.profile)
	if errors.Is(err, sql.ErrNoRows) {
		return &credentialsRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return &row, nil
}

func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	row, err := s.row(ctx)
	if err != nil {
		return "", err
	}
	return row.Token, nil
}

func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	return s.setToken(ctx, s.db.DB, token)
}

func (s *SQLiteStore) setToken(ctx context.Context, exec sqlx.ExecerContext, token string) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO credentials (profile, token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(profile) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		s.profile, token)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) User(ctx context.Context) (*entities.User, error) {
	row, err := s.row(ctx)
	if err != nil {
		return nil, err
	}
	if !row.UserJSON.Valid || row.UserJSON.String == "" {
		return nil, nil
	}
	var user entities.User
	if err := json.Unmarshal([]byte(row.UserJSON.String), &user); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) SetUser(ctx context.Context, user *entities.User) error {
	return s.setUser(ctx, s.db.DB, user)
}

func (s *SQLiteStore) setUser(ctx context.Context, exec sqlx.ExecerContext, user *entities.User) error {
	var payload sql.NullString
	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO credentials (profile, user_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(profile) DO UPDATE SET user_json = excluded.user_json, updated_at = excluded.updated_at`,
		s.profile, payload)
	if err != nil {
		return fmt.Errorf("set user: %w", err)
	}
	return nil
}

// SetSession writes the token and user in one transaction.
func (s *SQLiteStore) SetSession(ctx context.Context, token string, user *entities.User) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.setToken(ctx, tx, token); err != nil {
			return err
		}
		return s.setUser(ctx, tx, user)
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, s.profile); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
