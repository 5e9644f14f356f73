package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/internal/repository/mocks"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sunday
var (
	today    = streak.Date(2026, time.October, 18)
	calendar = streak.NewCalendar(streak.FixedClock{T: time.Date(2026, time.October, 18, 15, 0, 0, 0, time.UTC)}, time.UTC)
	dbErr    = errorvalues.NewPersistenceError("querying", errors.New("db error"))
)

func daysAgo(n int) time.Time {
	return today.AddDate(0, 0, -n)
}

func ptr[T any](v T) *T {
	return &v
}

func newHabit(uid uuid.UUID) *entity.Habit {
	return &entity.Habit{
		ID:         uuid.New(),
		UserID:     uid,
		Name:       "read",
		Frequency:  entity.FrequencyDaily,
		TargetDays: 7,
		Status:     entity.StatusActive,
		StartDate:  daysAgo(10),
	}
}

func completed(habitID uuid.UUID, date time.Time) entity.StreakRecord {
	return entity.StreakRecord{ID: uuid.New(), HabitID: habitID, Date: date, UserCompleted: true}
}

func setupHabitsService(t *testing.T) (*service.HabitsService, *mocks.MockHabitsRepositoryI, *mocks.MockStreaksRepositoryI) {
	ctrl := gomock.NewController(t)
	habitsRepo := mocks.NewMockHabitsRepositoryI(ctrl)
	streaksRepo := mocks.NewMockStreaksRepositoryI(ctrl)
	return service.NewHabitsService(habitsRepo, streaksRepo, calendar), habitsRepo, streaksRepo
}

func TestListHabits(t *testing.T) {
	t.Parallel()
	uid := uuid.New()
	ctx := context.Background()
	t.Run("drifted counters corrected in one write", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		drifted := newHabit(uid)
		inSync := newHabit(uid)
		inSync.CurrentStreak, inSync.LongestStreak, inSync.LastCompletedAt = 1, 4, ptr(daysAgo(1))
		habitsRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return([]*entity.Habit{drifted, inSync}, nil)
		streaksRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return([]entity.StreakRecord{
			completed(drifted.ID, today),
			completed(inSync.ID, daysAgo(1)),
			completed(drifted.ID, daysAgo(1)),
		}, nil)
		habitsRepo.EXPECT().UpdateStreakCounts(gomock.Any(), []entity.StreakCounts{
			{HabitID: drifted.ID, CurrentStreak: 2, LongestStreak: 2, LastCompletedAt: ptr(today)},
		}).Return(nil)

		habits, err := serv.ListHabits(ctx, uid)
		require.NoError(t, err)
		require.Len(t, habits, 2)
		assert.Equal(t, 2, habits[0].CurrentStreak)
		assert.True(t, habits[0].TodayCompleted)
		assert.Len(t, habits[0].Records, 2)
		assert.Equal(t, 1, habits[1].CurrentStreak)
		assert.Equal(t, 4, habits[1].LongestStreak)
		assert.False(t, habits[1].TodayCompleted)
	})
	t.Run("nothing written when counters match", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		h := newHabit(uid)
		habitsRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return([]*entity.Habit{h}, nil)
		streaksRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return([]entity.StreakRecord{}, nil)
		habits, err := serv.ListHabits(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, 0, habits[0].CurrentStreak)
		assert.False(t, habits[0].TodayCompleted)
	})
	t.Run("failed correction leaves habits untouched", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		h := newHabit(uid)
		habitsRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return([]*entity.Habit{h}, nil)
		streaksRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return([]entity.StreakRecord{completed(h.ID, today)}, nil)
		habitsRepo.EXPECT().UpdateStreakCounts(gomock.Any(), gomock.Any()).Return(dbErr)
		_, err := serv.ListHabits(ctx, uid)
		assert.ErrorIs(t, err, errorvalues.ErrPersistence)
		assert.Equal(t, 0, h.CurrentStreak)
		assert.Nil(t, h.LastCompletedAt)
	})
	t.Run("habits error", func(t *testing.T) {
		serv, habitsRepo, _ := setupHabitsService(t)
		habitsRepo.EXPECT().GetByUserID(gomock.Any(), uid).Return(nil, dbErr)
		_, err := serv.ListHabits(ctx, uid)
		assert.ErrorIs(t, err, errorvalues.ErrPersistence)
	})
}

func TestCreateHabit(t *testing.T) {
	t.Parallel()
	uid := uuid.New()
	ctx := context.Background()
	valid := service.CreateHabitRequest{Name: " read ", Frequency: "daily", TargetDays: 7}
	testCases := []struct {
		Desc         string
		Req          *service.CreateHabitRequest
		Error        error
		MockPrepFunc func(habitsRepo *mocks.MockHabitsRepositoryI)
	}{
		{
			Desc: "success",
			Req:  &valid,
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI) {
				hid := uuid.New()
				habitsRepo.EXPECT().Create(gomock.Any(), &entity.Habit{
					UserID:     uid,
					Name:       "read",
					Frequency:  entity.FrequencyDaily,
					TargetDays: 7,
					Status:     entity.StatusActive,
					StartDate:  today,
				}).Return(hid, nil)
				habitsRepo.EXPECT().GetByID(gomock.Any(), hid).Return(&entity.Habit{ID: hid, UserID: uid}, nil)
			},
		},
		{Desc: "nil request", Req: nil, Error: errorvalues.ErrValidation},
		{Desc: "blank name", Req: &service.CreateHabitRequest{Name: "   ", Frequency: "daily", TargetDays: 7}, Error: errorvalues.ErrValidation},
		{Desc: "zero target", Req: &service.CreateHabitRequest{Name: "read", Frequency: "daily"}, Error: errorvalues.ErrValidation},
		{Desc: "target too big", Req: &service.CreateHabitRequest{Name: "read", Frequency: "daily", TargetDays: 366}, Error: errorvalues.ErrValidation},
		{Desc: "unknown frequency", Req: &service.CreateHabitRequest{Name: "read", Frequency: "monthly", TargetDays: 7}, Error: errorvalues.ErrValidation},
		{
			Desc:  "end before start",
			Req:   &service.CreateHabitRequest{Name: "read", Frequency: "daily", TargetDays: 7, EndDate: ptr(daysAgo(1))},
			Error: errorvalues.ErrValidation,
		},
		{
			Desc:  "owner not found",
			Req:   &valid,
			Error: errorvalues.ErrUserNotFound,
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI) {
				habitsRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(uuid.UUID{}, errorvalues.ErrOwnerNotFound)
			},
		},
		{
			Desc:  "db error",
			Req:   &valid,
			Error: errorvalues.ErrPersistence,
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI) {
				habitsRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(uuid.UUID{}, dbErr)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			serv, habitsRepo, _ := setupHabitsService(t)
			if tc.MockPrepFunc != nil {
				tc.MockPrepFunc(habitsRepo)
			}
			h, err := serv.CreateHabit(ctx, uid, tc.Req)
			if tc.Error != nil {
				assert.ErrorIs(t, err, tc.Error)
				assert.Nil(t, h)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, h)
			}
		})
	}
}

func TestUpdateHabit(t *testing.T) {
	t.Parallel()
	uid := uuid.New()
	ctx := context.Background()
	t.Run("partial update", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		h := newHabit(uid)
		habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
		habitsRepo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, updated *entity.Habit) error {
			assert.Equal(t, "read more", updated.Name)
			assert.Equal(t, 30, updated.TargetDays)
			assert.Equal(t, entity.FrequencyDaily, updated.Frequency)
			return nil
		})
		streaksRepo.EXPECT().GetByHabitID(gomock.Any(), h.ID).Return([]entity.StreakRecord{}, nil)
		result, err := serv.UpdateHabit(ctx, h.ID, uid, &service.UpdateHabitRequest{Name: ptr("read more"), TargetDays: ptr(30)})
		require.NoError(t, err)
		assert.Equal(t, "read more", result.Name)
	})
	t.Run("frequency change before first completion", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		h := newHabit(uid)
		habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
		streaksRepo.EXPECT().CountCompleted(gomock.Any(), h.ID).Return(0, nil)
		habitsRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
		streaksRepo.EXPECT().GetByHabitID(gomock.Any(), h.ID).Return([]entity.StreakRecord{}, nil)
		result, err := serv.UpdateHabit(ctx, h.ID, uid, &service.UpdateHabitRequest{Frequency: ptr("weekly")})
		require.NoError(t, err)
		assert.Equal(t, entity.FrequencyWeekly, result.Frequency)
	})
	t.Run("frequency locked after completion", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		h := newHabit(uid)
		habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
		streaksRepo.EXPECT().CountCompleted(gomock.Any(), h.ID).Return(3, nil)
		_, err := serv.UpdateHabit(ctx, h.ID, uid, &service.UpdateHabitRequest{Frequency: ptr("weekly")})
		assert.ErrorIs(t, err, errorvalues.ErrFrequencyLocked)
		assert.ErrorIs(t, err, errorvalues.ErrValidation)
	})
	t.Run("same frequency is not a change", func(t *testing.T) {
		serv, habitsRepo, streaksRepo := setupHabitsService(t)
		h := newHabit(uid)
		habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
		habitsRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
		streaksRepo.EXPECT().GetByHabitID(gomock.Any(), h.ID).Return([]entity.StreakRecord{}, nil)
		_, err := serv.UpdateHabit(ctx, h.ID, uid, &service.UpdateHabitRequest{Frequency: ptr("daily")})
		assert.NoError(t, err)
	})
	t.Run("blank name", func(t *testing.T) {
		serv, _, _ := setupHabitsService(t)
		_, err := serv.UpdateHabit(ctx, uuid.New(), uid, &service.UpdateHabitRequest{Name: ptr(" ")})
		var vErr *errorvalues.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, []string{"Name"}, vErr.Fields)
	})
	t.Run("archived status not settable", func(t *testing.T) {
		serv, _, _ := setupHabitsService(t)
		_, err := serv.UpdateHabit(ctx, uuid.New(), uid, &service.UpdateHabitRequest{Status: ptr("archived")})
		assert.ErrorIs(t, err, errorvalues.ErrValidation)
	})
	t.Run("archived habit", func(t *testing.T) {
		serv, habitsRepo, _ := setupHabitsService(t)
		h := newHabit(uid)
		h.Status = entity.StatusArchived
		habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
		_, err := serv.UpdateHabit(ctx, h.ID, uid, &service.UpdateHabitRequest{Name: ptr("x")})
		assert.ErrorIs(t, err, errorvalues.ErrHabitArchived)
	})
	t.Run("wrong owner", func(t *testing.T) {
		serv, habitsRepo, _ := setupHabitsService(t)
		h := newHabit(uuid.New())
		habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
		_, err := serv.UpdateHabit(ctx, h.ID, uid, &service.UpdateHabitRequest{Name: ptr("x")})
		assert.ErrorIs(t, err, errorvalues.ErrWrongOwner)
	})
}

func TestDeleteHabit(t *testing.T) {
	t.Parallel()
	uid := uuid.New()
	ctx := context.Background()
	testCases := []struct {
		Desc         string
		Error        error
		MockPrepFunc func(habitsRepo *mocks.MockHabitsRepositoryI, h *entity.Habit)
	}{
		{
			Desc: "archived",
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI, h *entity.Habit) {
				habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
				habitsRepo.EXPECT().Archive(gomock.Any(), h.ID).Return(nil)
			},
		},
		{
			Desc: "already archived is a no-op",
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI, h *entity.Habit) {
				h.Status = entity.StatusArchived
				habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
			},
		},
		{
			Desc:  "not found",
			Error: errorvalues.ErrHabitNotFound,
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI, h *entity.Habit) {
				habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(nil, errorvalues.ErrHabitNotFound)
			},
		},
		{
			Desc:  "wrong owner",
			Error: errorvalues.ErrWrongOwner,
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI, h *entity.Habit) {
				h.UserID = uuid.New()
				habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
			},
		},
		{
			Desc:  "db error",
			Error: errorvalues.ErrPersistence,
			MockPrepFunc: func(habitsRepo *mocks.MockHabitsRepositoryI, h *entity.Habit) {
				habitsRepo.EXPECT().GetByID(gomock.Any(), h.ID).Return(h, nil)
				habitsRepo.EXPECT().Archive(gomock.Any(), h.ID).Return(dbErr)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			serv, habitsRepo, _ := setupHabitsService(t)
			h := newHabit(uid)
			tc.MockPrepFunc(habitsRepo, h)
			err := serv.DeleteHabit(ctx, h.ID, uid)
			if tc.Error != nil {
				assert.ErrorIs(t, err, tc.Error)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReconcileStreakCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("in sync", func(t *testing.T) {
		serv, _, _ := setupHabitsService(t)
		h := newHabit(uuid.New())
		h.CurrentStreak, h.LongestStreak, h.LastCompletedAt = 2, 3, ptr(today)
		changed, err := serv.ReconcileStreakCounts(ctx, h, entity.StreakInfo{CurrentStreak: 2, LongestStreak: 3, LastCompleted: ptr(today)})
		assert.NoError(t, err)
		assert.False(t, changed)
	})
	t.Run("drifted", func(t *testing.T) {
		serv, habitsRepo, _ := setupHabitsService(t)
		h := newHabit(uuid.New())
		habitsRepo.EXPECT().UpdateStreakCounts(gomock.Any(), []entity.StreakCounts{
			{HabitID: h.ID, CurrentStreak: 2, LongestStreak: 3, LastCompletedAt: ptr(today)},
		}).Return(nil)
		changed, err := serv.ReconcileStreakCounts(ctx, h, entity.StreakInfo{CurrentStreak: 2, LongestStreak: 3, LastCompleted: ptr(today)})
		assert.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 2, h.CurrentStreak)
	})
	t.Run("write failed", func(t *testing.T) {
		serv, habitsRepo, _ := setupHabitsService(t)
		h := newHabit(uuid.New())
		habitsRepo.EXPECT().UpdateStreakCounts(gomock.Any(), gomock.Any()).Return(dbErr)
		changed, err := serv.ReconcileStreakCounts(ctx, h, entity.StreakInfo{CurrentStreak: 1, LongestStreak: 1, LastCompleted: ptr(today)})
		assert.ErrorIs(t, err, errorvalues.ErrPersistence)
		assert.False(t, changed)
		assert.Equal(t, 0, h.CurrentStreak)
	})
}

func TestReconcileAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	serv, habitsRepo, streaksRepo := setupHabitsService(t)
	drifted, inSync := newHabit(uuid.New()), newHabit(uuid.New())
	habitsRepo.EXPECT().ListActive(gomock.Any()).Return([]*entity.Habit{drifted, inSync}, nil)
	streaksRepo.EXPECT().GetByHabitID(gomock.Any(), drifted.ID).Return([]entity.StreakRecord{completed(drifted.ID, daysAgo(1))}, nil)
	streaksRepo.EXPECT().GetByHabitID(gomock.Any(), inSync.ID).Return([]entity.StreakRecord{}, nil)
	habitsRepo.EXPECT().UpdateStreakCounts(gomock.Any(), []entity.StreakCounts{
		{HabitID: drifted.ID, CurrentStreak: 1, LongestStreak: 1, LastCompletedAt: ptr(daysAgo(1))},
	}).Return(nil)
	corrected, err := serv.ReconcileAll(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, corrected)
}

func TestReconcileAllKeepsLapsedFloor(t *testing.T) {
	t.Parallel()
	serv, habitsRepo, streaksRepo := setupHabitsService(t)
	h := newHabit(uuid.New())
	h.CurrentStreak, h.LongestStreak, h.LastCompletedAt = 3, 3, ptr(daysAgo(5))
	habitsRepo.EXPECT().ListActive(gomock.Any()).Return([]*entity.Habit{h}, nil)
	streaksRepo.EXPECT().GetByHabitID(gomock.Any(), h.ID).Return([]entity.StreakRecord{
		completed(h.ID, daysAgo(5)), completed(h.ID, daysAgo(6)), completed(h.ID, daysAgo(7)),
	}, nil)
	corrected, err := serv.ReconcileAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, corrected)
}

func TestMain(m *testing.M) {
	service.InitValidator()
	m.Run()
}
