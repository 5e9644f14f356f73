package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/limbo/habitstreak/pkg/cleanup"
	"github.com/redis/go-redis/v9"
)

type RedisCfg struct {
	Addr     string
	Password string
	DB       int
}

// SessionsRepository keeps ids of signed out tokens until they expire.
type SessionsRepository struct {
	client redis.Cmdable
}

func NewSessionsRepo(ctx context.Context, cfg *RedisCfg) (*SessionsRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.New("pinging redis error: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing redis client",
		F:    client.Close,
	})
	slog.Info("connected to redis", slog.String("address", cfg.Addr))
	return NewSessionsRepoWithClient(client), nil
}

func NewSessionsRepoWithClient(client redis.Cmdable) *SessionsRepository {
	return &SessionsRepository{
		client: client,
	}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

func (sr *SessionsRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to remember
		return nil
	}
	if err := sr.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return errors.New("revoking token error: " + err.Error())
	}
	return nil
}

func (sr *SessionsRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := sr.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, errors.New("checking revoked token error: " + err.Error())
	}
	return n > 0, nil
}
