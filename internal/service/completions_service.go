package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/entity"
)

// ToggleCompletion flips the user's completion of the period containing date.
// The record is written with a single upsert, so concurrent toggles of the
// same day never produce a second record.
func (hs *HabitsService) ToggleCompletion(ctx context.Context, habitID, uid uuid.UUID, date time.Time) (*entity.Habit, error) {
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return nil, err
	}
	if habit.Status == entity.StatusArchived {
		return nil, errorvalues.ErrHabitArchived
	}
	day, err := hs.completionDay(date, false)
	if err != nil {
		return nil, err
	}
	record, err := hs.streaks.Toggle(ctx, habitID, streak.PeriodKey(habit.Frequency, day), day)
	if err != nil {
		return nil, err
	}
	cached := cachedOf(habit)
	if !record.UserCompleted {
		// Undo: the log was just read in full, so the previous current
		// streak and last completion must not pin the result.
		cached = streak.Cached{LongestStreak: habit.LongestStreak}
	}
	return hs.refresh(ctx, habit, cached)
}

// RescueStreak marks a missed past period as completed so the chain through
// it holds. A proof URL may be attached.
func (hs *HabitsService) RescueStreak(ctx context.Context, habitID, uid uuid.UUID, date time.Time, proofURL string) (*entity.Habit, error) {
	if err := validateVar("ProofURL", proofURL, "omitempty,url,max=2048"); err != nil {
		return nil, err
	}
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return nil, err
	}
	if habit.Status == entity.StatusArchived {
		return nil, errorvalues.ErrHabitArchived
	}
	day, err := hs.completionDay(date, true)
	if err != nil {
		return nil, err
	}
	if _, err = hs.streaks.Rescue(ctx, habitID, streak.PeriodKey(habit.Frequency, day), day, proofURL); err != nil {
		return nil, err
	}
	return hs.refresh(ctx, habit, cachedOf(habit))
}

func (hs *HabitsService) GetHabitRecords(ctx context.Context, habitID, uid uuid.UUID, from, to time.Time) ([]entity.StreakRecord, error) {
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = hs.cal.Today()
	}
	if from.IsZero() {
		from = habit.StartDate
	}
	from, to = streak.CivilDate(from), streak.CivilDate(to)
	if from.After(to) {
		return nil, &errorvalues.ValidationError{Fields: []string{"from", "to"}, Err: errors.New("period starts after it ends")}
	}
	return hs.streaks.GetByHabitAndDateRange(ctx, habitID, from, to)
}

func (hs *HabitsService) GetHabitStats(ctx context.Context, habitID, uid uuid.UUID) (*entity.HabitStats, error) {
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return nil, err
	}
	if _, err = hs.refresh(ctx, habit, cachedOf(habit)); err != nil {
		return nil, err
	}
	total, err := hs.streaks.CountCompleted(ctx, habitID)
	if err != nil {
		return nil, err
	}
	return &entity.HabitStats{
		ID:               habit.ID,
		TotalCompletions: total,
		CurrentStreak:    habit.CurrentStreak,
		LongestStreak:    habit.LongestStreak,
		LastCompleted:    habit.LastCompletedAt,
		TargetDays:       habit.TargetDays,
	}, nil
}

// completionDay resolves the civil date an operation applies to, today when
// date is zero. Future dates are never allowed. With past set only dates
// before today are.
func (hs *HabitsService) completionDay(date time.Time, past bool) (time.Time, error) {
	today := hs.cal.Today()
	if date.IsZero() {
		if past {
			return time.Time{}, errorvalues.ErrDateNotAllowed
		}
		return today, nil
	}
	day := streak.CivilDate(date)
	if day.After(today) {
		return time.Time{}, errorvalues.ErrDateNotAllowed
	}
	if past && !day.Before(today) {
		return time.Time{}, errorvalues.ErrDateNotAllowed
	}
	return day, nil
}
