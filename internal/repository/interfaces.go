package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/habitstreak/pkg/entity"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks . UsersRepositoryI,HabitsRepositoryI,StreaksRepositoryI,SessionsRepositoryI

type UsersRepositoryI interface {
	// Creates new user in database and returns its id
	Create(ctx context.Context, user *entity.User) (uuid.UUID, error)
	// Looks up user by email. Used for sign in
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// Looks up user by uid. Used by authorization middleware
	FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error)
	Delete(ctx context.Context, uid uuid.UUID) error
}

type HabitsRepositoryI interface {
	// Creates new habit with zeroed streak counters, returns its id
	Create(ctx context.Context, habit *entity.Habit) (uuid.UUID, error)
	// Searches habit with given id, archived ones included
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Habit, error)
	// Lists not archived habits owned by user with uid
	GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Habit, error)
	// Lists active habits of every user
	ListActive(ctx context.Context) ([]*entity.Habit, error)
	// Updates editable fields of a not archived habit (ID is necessary)
	Update(ctx context.Context, habit *entity.Habit) error
	// Soft deletes habit with id
	Archive(ctx context.Context, id uuid.UUID) error
	// Writes corrected streak counters, all or nothing
	UpdateStreakCounts(ctx context.Context, counts []entity.StreakCounts) error
}

type StreaksRepositoryI interface {
	// Creates completed record for period key (habitID, date) or flips completion of the existing one.
	// day is the day inside the period the completion is marked on
	Toggle(ctx context.Context, habitID uuid.UUID, date, day time.Time) (*entity.StreakRecord, error)
	// Marks (habitID, date) completed as a rescue on day, appending proof if given
	Rescue(ctx context.Context, habitID uuid.UUID, date, day time.Time, proofURL string) (*entity.StreakRecord, error)
	// Provides all records of habit, most recent first
	GetByHabitID(ctx context.Context, habitID uuid.UUID) ([]entity.StreakRecord, error)
	// Provides records of every not archived habit owned by uid, most recent first
	GetByUserID(ctx context.Context, uid uuid.UUID) ([]entity.StreakRecord, error)
	// Provides records of habitID for a period
	GetByHabitAndDateRange(ctx context.Context, habitID uuid.UUID, from, to time.Time) ([]entity.StreakRecord, error)
	// Returns count of completed records for habitID
	CountCompleted(ctx context.Context, habitID uuid.UUID) (int, error)
}

type SessionsRepositoryI interface {
	// Marks token id revoked until it would expire anyway
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
	SSLMode  string
	MaxConns int32
}

func (pgcfg *PGCfg) ConnString() string {
	sslMode := pgcfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s/%s?sslmode=%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB, sslMode)
}
