package service

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/internal/repository"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/entity"
)

type HabitsService struct {
	habits  repository.HabitsRepositoryI
	streaks repository.StreaksRepositoryI
	cal     *streak.Calendar
}

func NewHabitsService(habitsRepo repository.HabitsRepositoryI, streaksRepo repository.StreaksRepositoryI, cal *streak.Calendar) *HabitsService {
	if habitsRepo == nil || streaksRepo == nil {
		log.Fatal("on habits service provided nil repos")
	}
	if cal == nil {
		cal = streak.NewCalendar(nil, nil)
	}
	return &HabitsService{
		habits:  habitsRepo,
		streaks: streaksRepo,
		cal:     cal,
	}
}

func (hs *HabitsService) ListHabits(ctx context.Context, uid uuid.UUID) ([]*entity.Habit, error) {
	habits, err := hs.habits.GetByUserID(ctx, uid)
	if err != nil {
		return nil, err
	}
	records, err := hs.streaks.GetByUserID(ctx, uid)
	if err != nil {
		return nil, err
	}
	byHabit := make(map[uuid.UUID][]entity.StreakRecord, len(habits))
	for _, r := range records {
		byHabit[r.HabitID] = append(byHabit[r.HabitID], r)
	}

	infos := make([]entity.StreakInfo, len(habits))
	corrections := make([]entity.StreakCounts, 0)
	for i, h := range habits {
		infos[i] = hs.calculate(h, byHabit[h.ID], cachedOf(h))
		if counts, drifted := driftedCounts(h, infos[i]); drifted {
			corrections = append(corrections, counts)
		}
	}
	// Written before anything is applied to the habits, so a failed
	// transaction leaves them as they were read.
	if len(corrections) > 0 {
		if err = hs.habits.UpdateStreakCounts(ctx, corrections); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "streak counters corrected", slog.String("uid", uid.String()), slog.Int("habits", len(corrections)))
	}
	for i, h := range habits {
		applyInfo(h, infos[i])
		hs.decorate(h, byHabit[h.ID])
	}
	return habits, nil
}

func (hs *HabitsService) CreateHabit(ctx context.Context, uid uuid.UUID, req *CreateHabitRequest) (*entity.Habit, error) {
	if req == nil {
		return nil, &errorvalues.ValidationError{Err: errors.New("empty request")}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	today := hs.cal.Today()
	h := entity.Habit{
		UserID:      uid,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Frequency:   entity.Frequency(req.Frequency),
		TargetDays:  req.TargetDays,
		IsPublic:    req.IsPublic,
		Status:      entity.StatusActive,
		StartDate:   today,
	}
	if req.EndDate != nil {
		end := streak.CivilDate(*req.EndDate)
		if end.Before(today) {
			return nil, &errorvalues.ValidationError{Fields: []string{"EndDate"}, Err: errors.New("end date is before start date")}
		}
		h.EndDate = &end
	}
	id, err := hs.habits.Create(ctx, &h)
	if err != nil {
		if errors.Is(err, errorvalues.ErrOwnerNotFound) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, err
	}
	return hs.habits.GetByID(ctx, id)
}

// GetHabit provides habit with its full record log. Counters are recomputed
// and written back if they drifted.
func (hs *HabitsService) GetHabit(ctx context.Context, habitID, uid uuid.UUID) (*entity.Habit, error) {
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return nil, err
	}
	return hs.refresh(ctx, habit, cachedOf(habit))
}

func (hs *HabitsService) UpdateHabit(ctx context.Context, habitID, uid uuid.UUID, req *UpdateHabitRequest) (*entity.Habit, error) {
	if req == nil {
		return nil, &errorvalues.ValidationError{Err: errors.New("empty request")}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return nil, err
	}
	if habit.Status == entity.StatusArchived {
		return nil, errorvalues.ErrHabitArchived
	}
	if req.Frequency != nil && entity.Frequency(*req.Frequency) != habit.Frequency {
		completed, err := hs.streaks.CountCompleted(ctx, habitID)
		if err != nil {
			return nil, err
		}
		if completed > 0 {
			return nil, errorvalues.ErrFrequencyLocked
		}
		habit.Frequency = entity.Frequency(*req.Frequency)
	}
	if req.Name != nil {
		habit.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		habit.Description = *req.Description
	}
	if req.TargetDays != nil {
		habit.TargetDays = *req.TargetDays
	}
	if req.IsPublic != nil {
		habit.IsPublic = *req.IsPublic
	}
	if req.Status != nil {
		habit.Status = entity.HabitStatus(*req.Status)
	}
	if req.EndDate != nil {
		end := streak.CivilDate(*req.EndDate)
		if end.Before(habit.StartDate) {
			return nil, &errorvalues.ValidationError{Fields: []string{"EndDate"}, Err: errors.New("end date is before start date")}
		}
		habit.EndDate = &end
	}
	if err = hs.habits.Update(ctx, habit); err != nil {
		return nil, err
	}
	return hs.refresh(ctx, habit, cachedOf(habit))
}

func (hs *HabitsService) DeleteHabit(ctx context.Context, habitID, uid uuid.UUID) error {
	habit, err := hs.ownedHabit(ctx, habitID, uid)
	if err != nil {
		return err
	}
	if habit.Status == entity.StatusArchived {
		return nil
	}
	return hs.habits.Archive(ctx, habitID)
}

// ReconcileStreakCounts writes info's counters into the habit's cached ones
// when they differ. Reports whether a write happened.
func (hs *HabitsService) ReconcileStreakCounts(ctx context.Context, habit *entity.Habit, info entity.StreakInfo) (bool, error) {
	counts, drifted := driftedCounts(habit, info)
	if !drifted {
		return false, nil
	}
	if err := hs.habits.UpdateStreakCounts(ctx, []entity.StreakCounts{counts}); err != nil {
		return false, err
	}
	slog.InfoContext(ctx, "streak counters corrected",
		slog.String("habit_id", habit.ID.String()),
		slog.Int("current", counts.CurrentStreak),
		slog.Int("longest", counts.LongestStreak),
	)
	applyInfo(habit, info)
	return true, nil
}

// ReconcileAll recomputes counters of every active habit and writes the
// drifted ones in a single transaction. Returns how many were corrected.
func (hs *HabitsService) ReconcileAll(ctx context.Context) (int, error) {
	habits, err := hs.habits.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	corrections := make([]entity.StreakCounts, 0)
	for _, h := range habits {
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		records, err := hs.streaks.GetByHabitID(ctx, h.ID)
		if err != nil {
			return 0, err
		}
		if counts, drifted := driftedCounts(h, hs.calculate(h, records, cachedOf(h))); drifted {
			corrections = append(corrections, counts)
		}
	}
	if len(corrections) == 0 {
		return 0, nil
	}
	if err = hs.habits.UpdateStreakCounts(ctx, corrections); err != nil {
		return 0, err
	}
	return len(corrections), nil
}

func (hs *HabitsService) ownedHabit(ctx context.Context, habitID, uid uuid.UUID) (*entity.Habit, error) {
	habit, err := hs.habits.GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.UserID != uid {
		return nil, errorvalues.ErrWrongOwner
	}
	return habit, nil
}

// refresh reloads the record log of habit, reconciles its counters against
// it and fills the read-only fields.
func (hs *HabitsService) refresh(ctx context.Context, habit *entity.Habit, cached streak.Cached) (*entity.Habit, error) {
	records, err := hs.streaks.GetByHabitID(ctx, habit.ID)
	if err != nil {
		return nil, err
	}
	if _, err = hs.ReconcileStreakCounts(ctx, habit, hs.calculate(habit, records, cached)); err != nil {
		return nil, err
	}
	hs.decorate(habit, records)
	return habit, nil
}

func (hs *HabitsService) calculate(h *entity.Habit, records []entity.StreakRecord, cached streak.Cached) entity.StreakInfo {
	return streak.Calculate(streak.Input{
		Frequency:   h.Frequency,
		Completions: streak.CompletedDates(records),
		Cached:      cached,
		Today:       hs.cal.Today(),
	})
}

func (hs *HabitsService) decorate(h *entity.Habit, records []entity.StreakRecord) {
	h.Records = records
	h.TodayCompleted = streak.CompletedOn(h.Frequency, records, hs.cal.Today())
}

func cachedOf(h *entity.Habit) streak.Cached {
	return streak.Cached{
		CurrentStreak:   h.CurrentStreak,
		LongestStreak:   h.LongestStreak,
		LastCompletedAt: h.LastCompletedAt,
	}
}

func driftedCounts(h *entity.Habit, info entity.StreakInfo) (entity.StreakCounts, bool) {
	counts := entity.StreakCounts{
		HabitID:         h.ID,
		CurrentStreak:   info.CurrentStreak,
		LongestStreak:   info.LongestStreak,
		LastCompletedAt: info.LastCompleted,
	}
	drifted := h.CurrentStreak != info.CurrentStreak ||
		h.LongestStreak != info.LongestStreak ||
		!sameDate(h.LastCompletedAt, info.LastCompleted)
	return counts, drifted
}

func applyInfo(h *entity.Habit, info entity.StreakInfo) {
	h.CurrentStreak = info.CurrentStreak
	h.LongestStreak = info.LongestStreak
	h.LastCompletedAt = info.LastCompleted
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return streak.DaysBetween(*a, *b) == 0
}
