package credentials

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/client/internal/infrastructure/config"
	"github.com/taskmaster/client/internal/infrastructure/database"
	"github.com/taskmaster/client/internal/ports"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the credential store selected by cfg.Backend. The returned
// closer releases the backing connection, if any.
func Open(ctx context.Context, cfg config.CredentialsConfig) (ports.CredentialStore, io.Closer, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file", "":
		return NewFileStore(cfg.FilePath), nopCloser{}, nil
	case "sqlite":
		db, err := database.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.HealthCheck(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewSQLiteStore(db, cfg.Profile), db, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return NewRedisStore(client, cfg.RedisPrefix), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown credentials backend %q", cfg.Backend)
	}
}
