package api

import (
	"context"
	"time"

	"github.com/limbo/habitstreak/pkg/entity"
	jwtservice "github.com/limbo/habitstreak/pkg/jwt_service"
)

type JWTServiceI interface {
	GenerateToken(user *entity.User) (string, error)
	ParseToken(tokenString string) (*jwtservice.Claims, error)
}

// RevocationI keeps ids of tokens signed out before they expired.
type RevocationI interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID    string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// Dates in requests are civil dates formatted as YYYY-MM-DD.
type CreateHabitRequest struct {
	Name        string `json:"name"`
	Description string `json:"desc"`
	Frequency   string `json:"frequency"`
	TargetDays  int    `json:"target_days"`
	IsPublic    bool   `json:"is_public"`
	EndDate     string `json:"end_date,omitempty"`
}

type UpdateHabitRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"desc,omitempty"`
	Frequency   *string `json:"frequency,omitempty"`
	TargetDays  *int    `json:"target_days,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
	Status      *string `json:"status,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

type ToggleRequest struct {
	Date string `json:"date,omitempty"`
}

type RescueRequest struct {
	Date     string `json:"date"`
	ProofURL string `json:"proof_url,omitempty"`
}

type GetHabitsResponse struct {
	UserID string          `json:"uid"`
	Habits []*entity.Habit `json:"habits"`
}

type GetRecordsResponse struct {
	HabitID string                `json:"habit_id"`
	From    string                `json:"from,omitempty"`
	To      string                `json:"to,omitempty"`
	Records []entity.StreakRecord `json:"records"`
}
