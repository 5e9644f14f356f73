package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/limbo/habitstreak/internal/api"
	"github.com/limbo/habitstreak/internal/repository"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/internal/worker"
	"github.com/limbo/habitstreak/pkg/cleanup"
	"github.com/limbo/habitstreak/pkg/config"
	jwtservice "github.com/limbo/habitstreak/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	cfg := config.New()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	})).With(slog.String("service", cfg.Service.Name)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer cleanup.CleanUp()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		cleanup.CleanUp()
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.JWT.Secret == "" {
		return errors.New("jwt secret is not set")
	}
	dbCfg := repository.PGCfg{
		Address:  cfg.Database.Address,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	}
	if err := repository.Migrate(dbCfg.ConnString(), cfg.Database.MigrationsDir); err != nil {
		return err
	}
	pool, err := repository.NewPool(ctx, &dbCfg)
	if err != nil {
		return err
	}
	cal := streak.NewCalendar(streak.RealClock{}, cfg.Location())
	userService := service.NewUserService(repository.NewUsersRepoWithConn(pool))
	habitService := service.NewHabitsService(
		repository.NewHabitsRepoWithConn(pool),
		repository.NewStreaksRepoWithConn(pool),
		cal,
	)

	services := &api.ServicesList{
		UserService:    userService,
		HabitsService:  habitService,
		JwtService:     jwtservice.New(cfg.JWT.Secret, cfg.JWT.TokenTTL),
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
	if cfg.Redis.Addr != "" {
		sessions, err := repository.NewSessionsRepo(ctx, &repository.RedisCfg{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		services.Revoker = sessions
	} else {
		slog.Warn("redis address is empty, signed out tokens stay valid until expiry")
	}

	reconciler := worker.NewReconciler(habitService, cfg.Streaks.ReconcileInterval)
	if err = reconciler.Start(); err != nil {
		return err
	}
	cleanup.Register(&cleanup.Job{
		Name: "stopping streak reconciler",
		F:    reconciler.Stop,
	})

	return api.New(services).Run(ctx, cfg.HTTP.Address)
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
