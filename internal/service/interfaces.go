package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/habitstreak/pkg/entity"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks . UserServiceI,HabitsServiceI

type RegisterRequest struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

type CreateHabitRequest struct {
	Name        string     `json:"name" validate:"nonblank,max=100"`
	Description string     `json:"desc" validate:"max=500"`
	Frequency   string     `json:"frequency" validate:"required,oneof=daily weekly"`
	TargetDays  int        `json:"target_days" validate:"min=1,max=365"`
	IsPublic    bool       `json:"is_public"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// UpdateHabitRequest is a partial update: nil fields are left untouched.
type UpdateHabitRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitnil,nonblank,max=100"`
	Description *string    `json:"desc,omitempty" validate:"omitnil,max=500"`
	Frequency   *string    `json:"frequency,omitempty" validate:"omitnil,oneof=daily weekly"`
	TargetDays  *int       `json:"target_days,omitempty" validate:"omitnil,min=1,max=365"`
	IsPublic    *bool      `json:"is_public,omitempty"`
	Status      *string    `json:"status,omitempty" validate:"omitnil,oneof=active completed"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type UserServiceI interface {
	// Validates user's credentials, creates new row in database. Returns user's data with ID
	Register(ctx context.Context, req *RegisterRequest) (*entity.User, error)
	// Compares given credentials. If ok, give back user's data with ID.
	Login(ctx context.Context, email, password string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	DeleteAccount(ctx context.Context, id uuid.UUID, password string) error
}

type HabitsServiceI interface {
	// Lists not archived habits of uid with their records, streak counters corrected
	ListHabits(ctx context.Context, uid uuid.UUID) ([]*entity.Habit, error)
	CreateHabit(ctx context.Context, uid uuid.UUID, req *CreateHabitRequest) (*entity.Habit, error)
	GetHabit(ctx context.Context, habitID, uid uuid.UUID) (*entity.Habit, error)
	UpdateHabit(ctx context.Context, habitID, uid uuid.UUID, req *UpdateHabitRequest) (*entity.Habit, error)
	// Archives habit, archiving an archived one is a no-op
	DeleteHabit(ctx context.Context, habitID, uid uuid.UUID) error
	// Flips completion of the period containing date (today if zero), returns refreshed habit
	ToggleCompletion(ctx context.Context, habitID, uid uuid.UUID, date time.Time) (*entity.Habit, error)
	RescueStreak(ctx context.Context, habitID, uid uuid.UUID, date time.Time, proofURL string) (*entity.Habit, error)
	GetHabitRecords(ctx context.Context, habitID, uid uuid.UUID, from, to time.Time) ([]entity.StreakRecord, error)
	GetHabitStats(ctx context.Context, habitID, uid uuid.UUID) (*entity.HabitStats, error)
}
