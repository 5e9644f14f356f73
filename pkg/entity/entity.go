package entity

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

type HabitStatus string

const (
	StatusActive    HabitStatus = "active"
	StatusCompleted HabitStatus = "completed"
	StatusArchived  HabitStatus = "archived"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Habit as stored in habits table. Streak counters are a cache of what the
// streak records say, Records and TodayCompleted are filled on reads only.
type Habit struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"uid"`
	Name            string         `json:"name"`
	Description     string         `json:"desc"`
	Frequency       Frequency      `json:"frequency"`
	TargetDays      int            `json:"target_days"`
	IsPublic        bool           `json:"is_public"`
	Status          HabitStatus    `json:"status"`
	PartnerID       *uuid.UUID     `json:"partner_id,omitempty"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	CurrentStreak   int            `json:"current_streak"`
	LongestStreak   int            `json:"longest_streak"`
	LastCompletedAt *time.Time     `json:"last_completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Records         []StreakRecord `json:"records,omitempty"`
	TodayCompleted  bool           `json:"today_completed"`
}

// Clone returns a deep copy, so cached habits can be handed out safely.
func (h *Habit) Clone() *Habit {
	c := *h
	if h.PartnerID != nil {
		p := *h.PartnerID
		c.PartnerID = &p
	}
	if h.EndDate != nil {
		e := *h.EndDate
		c.EndDate = &e
	}
	if h.LastCompletedAt != nil {
		l := *h.LastCompletedAt
		c.LastCompletedAt = &l
	}
	if h.Records != nil {
		c.Records = make([]StreakRecord, len(h.Records))
		for i, r := range h.Records {
			c.Records[i] = r
			if r.CompletedOn != nil {
				d := *r.CompletedOn
				c.Records[i].CompletedOn = &d
			}
			if r.ProofURLs != nil {
				c.Records[i].ProofURLs = append([]string(nil), r.ProofURLs...)
			}
		}
	}
	return &c
}

// StreakRecord is one completion period of a habit. Date is the period key:
// the day itself for daily habits, the Monday of the week for weekly ones.
// CompletedOn is the day inside the period it was marked on, nil while not
// completed.
type StreakRecord struct {
	ID               uuid.UUID  `json:"id"`
	HabitID          uuid.UUID  `json:"habit_id"`
	Date             time.Time  `json:"date"`
	CompletedOn      *time.Time `json:"completed_on,omitempty"`
	UserCompleted    bool       `json:"user_completed"`
	PartnerCompleted bool       `json:"partner_completed"`
	ProofURLs        []string   `json:"proof_urls,omitempty"`
	IsRescue         bool       `json:"is_rescue"`
	CreatedAt        time.Time  `json:"created_at"`
}

type StreakInfo struct {
	CurrentStreak int         `json:"current_streak"`
	LongestStreak int         `json:"longest_streak"`
	LastCompleted *time.Time  `json:"last_completed,omitempty"`
	ChainDates    []time.Time `json:"chain_dates"`
}

// StreakCounts is a corrective write of the cached counters of one habit.
type StreakCounts struct {
	HabitID         uuid.UUID
	CurrentStreak   int
	LongestStreak   int
	LastCompletedAt *time.Time
}

type HabitStats struct {
	ID               uuid.UUID  `json:"habit_id"`
	TotalCompletions int        `json:"total_completions"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastCompleted    *time.Time `json:"last_completed,omitempty"`
	TargetDays       int        `json:"target_days"`
}
