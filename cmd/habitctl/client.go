package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/limbo/habitstreak/internal/repository"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/internal/session"
	"github.com/limbo/habitstreak/internal/store"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/cleanup"
	"github.com/limbo/habitstreak/pkg/config"
	jwtservice "github.com/limbo/habitstreak/pkg/jwt_service"
)

// client is what every command works with: the session of the local user,
// restored from the OS keyring, and their habits cache.
type client struct {
	gate   *session.Gate
	habits *store.HabitStore
}

func newClient(ctx context.Context) (*client, error) {
	cfg := config.New()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	pool, err := repository.NewPool(ctx, &repository.PGCfg{
		Address:  cfg.Database.Address,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 2,
	})
	if err != nil {
		return nil, err
	}

	cal := streak.NewCalendar(streak.RealClock{}, cfg.Location())
	userService := service.NewUserService(repository.NewUsersRepoWithConn(pool))
	habitService := service.NewHabitsService(
		repository.NewHabitsRepoWithConn(pool),
		repository.NewStreaksRepoWithConn(pool),
		cal,
	)

	opts := []session.Option{session.WithTokenStore(session.NewKeyringStore(cfg.Client.KeyringService))}
	if cfg.Redis.Addr != "" {
		sessions, err := repository.NewSessionsRepo(ctx, &repository.RedisCfg{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithRevoker(sessions))
	}
	gate := session.NewGate(userService, jwtservice.New(cfg.JWT.Secret, cfg.JWT.TokenTTL), opts...)
	if _, err = gate.Restore(ctx); err != nil {
		slog.Warn("restoring session failed", slog.String("error", err.Error()))
	}

	habits := store.New(habitService, gate, cal, cfg.Client.RequestTimeout)
	cleanup.Register(&cleanup.Job{
		Name: "closing habits store",
		F: func() error {
			habits.Close()
			return nil
		},
	})
	return &client{
		gate:   gate,
		habits: habits,
	}, nil
}
