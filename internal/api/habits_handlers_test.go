package api_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/limbo/habitstreak/internal/api"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	habitID = uuid.New()
	habit   = &entity.Habit{
		ID:         habitID,
		UserID:     userID,
		Name:       "read",
		Frequency:  entity.FrequencyDaily,
		TargetDays: 30,
		Status:     entity.StatusActive,
		StartDate:  streak.Date(2026, time.October, 1),
	}
)

func habitReq(method, target string, body io.Reader) *http.Request {
	r := withUser(httptest.NewRequest(method, target, body))
	r.SetPathValue("id", habitID.String())
	return r
}

func TestGetHabits(t *testing.T) {
	serv, d := setupServer(t)
	testCases := []struct {
		Desc         string
		ExpectedCode int
		MockPrepFunc func()
	}{
		{
			Desc:         "provided",
			ExpectedCode: http.StatusOK,
			MockPrepFunc: func() {
				d.habits.EXPECT().ListHabits(gomock.Any(), userID).Return([]*entity.Habit{habit}, nil)
			},
		},
		{
			Desc:         "counter write failed",
			ExpectedCode: http.StatusInternalServerError,
			MockPrepFunc: func() {
				d.habits.EXPECT().ListHabits(gomock.Any(), userID).Return(nil, errorvalues.NewPersistenceError("writing streak counts", errors.New("db error")))
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			rr := httptest.NewRecorder()
			serv.GetHabits(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/habits", nil)))
			assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode)
		})
	}

	t.Run("body", func(t *testing.T) {
		d.habits.EXPECT().ListHabits(gomock.Any(), userID).Return([]*entity.Habit{habit}, nil)
		rr := httptest.NewRecorder()
		serv.GetHabits(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/habits", nil)))
		var resp api.GetHabitsResponse
		require.NoError(t, sonic.ConfigDefault.NewDecoder(rr.Result().Body).Decode(&resp))
		assert.Equal(t, userID.String(), resp.UserID)
		require.Len(t, resp.Habits, 1)
		assert.Equal(t, habitID, resp.Habits[0].ID)
	})
	t.Run("unauthorized", func(t *testing.T) {
		rr := httptest.NewRecorder()
		serv.GetHabits(rr, httptest.NewRequest(http.MethodGet, "/api/v1/habits", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Result().StatusCode)
	})
}

func TestCreateHabit(t *testing.T) {
	serv, d := setupServer(t)
	end := streak.Date(2026, time.December, 31)
	testCases := []struct {
		Desc         string
		ExpectedCode int
		MockPrepFunc func()
		Body         string
	}{
		{
			Desc:         "created",
			ExpectedCode: http.StatusCreated,
			MockPrepFunc: func() {
				d.habits.EXPECT().CreateHabit(gomock.Any(), userID, &service.CreateHabitRequest{
					Name:       "read",
					Frequency:  "daily",
					TargetDays: 30,
					EndDate:    &end,
				}).Return(habit, nil)
			},
			Body: `{"name":"read","frequency":"daily","target_days":30,"end_date":"2026-12-31"}`,
		},
		{
			Desc:         "invalid end date",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {},
			Body:         `{"name":"read","frequency":"daily","target_days":30,"end_date":"31.12.2026"}`,
		},
		{
			Desc:         "rejected fields",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {
				d.habits.EXPECT().CreateHabit(gomock.Any(), userID, gomock.Any()).Return(nil, &errorvalues.ValidationError{
					Fields: []string{"Name"},
					Err:    errors.New("Name failed on nonblank"),
				})
			},
			Body: `{"name":" ","frequency":"daily","target_days":30}`,
		},
		{
			Desc:         "corrupted body",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {},
			Body:         `{"name":`,
		},
		{
			Desc:         "service error",
			ExpectedCode: http.StatusInternalServerError,
			MockPrepFunc: func() {
				d.habits.EXPECT().CreateHabit(gomock.Any(), userID, gomock.Any()).Return(nil, errors.New("mocked error"))
			},
			Body: `{"name":"read","frequency":"daily","target_days":30}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			rr := httptest.NewRecorder()
			serv.CreateHabit(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/habits", strings.NewReader(tc.Body))))
			assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode)
		})
	}
}

func TestUpdateHabit(t *testing.T) {
	serv, d := setupServer(t)
	weekly := "weekly"
	testCases := []struct {
		Desc         string
		ExpectedCode int
		MockPrepFunc func()
		Body         string
	}{
		{
			Desc:         "updated",
			ExpectedCode: http.StatusOK,
			MockPrepFunc: func() {
				d.habits.EXPECT().UpdateHabit(gomock.Any(), habitID, userID, &service.UpdateHabitRequest{Frequency: &weekly}).Return(habit, nil)
			},
			Body: `{"frequency":"weekly"}`,
		},
		{
			Desc:         "frequency locked",
			ExpectedCode: http.StatusConflict,
			MockPrepFunc: func() {
				d.habits.EXPECT().UpdateHabit(gomock.Any(), habitID, userID, gomock.Any()).Return(nil, errorvalues.ErrFrequencyLocked)
			},
			Body: `{"frequency":"weekly"}`,
		},
		{
			Desc:         "not owned",
			ExpectedCode: http.StatusNotFound,
			MockPrepFunc: func() {
				d.habits.EXPECT().UpdateHabit(gomock.Any(), habitID, userID, gomock.Any()).Return(nil, errorvalues.ErrWrongOwner)
			},
			Body: `{"name":"write"}`,
		},
		{
			Desc:         "invalid end date",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {},
			Body:         `{"end_date":"tomorrow"}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			rr := httptest.NewRecorder()
			serv.UpdateHabit(rr, habitReq(http.MethodPatch, "/api/v1/habits/"+habitID.String(), strings.NewReader(tc.Body)))
			assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode)
		})
	}
}

func TestDeleteHabit(t *testing.T) {
	serv, d := setupServer(t)
	testCases := []struct {
		Desc         string
		ExpectedCode int
		MockPrepFunc func()
	}{
		{
			Desc:         "archived",
			ExpectedCode: http.StatusNoContent,
			MockPrepFunc: func() {
				d.habits.EXPECT().DeleteHabit(gomock.Any(), habitID, userID).Return(nil)
			},
		},
		{
			Desc:         "not found",
			ExpectedCode: http.StatusNotFound,
			MockPrepFunc: func() {
				d.habits.EXPECT().DeleteHabit(gomock.Any(), habitID, userID).Return(errorvalues.ErrHabitNotFound)
			},
		},
		{
			Desc:         "service error",
			ExpectedCode: http.StatusInternalServerError,
			MockPrepFunc: func() {
				d.habits.EXPECT().DeleteHabit(gomock.Any(), habitID, userID).Return(errors.New("mocked error"))
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			rr := httptest.NewRecorder()
			serv.DeleteHabit(rr, habitReq(http.MethodDelete, "/api/v1/habits/"+habitID.String(), nil))
			assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode)
		})
	}

	t.Run("invalid id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r := withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/habits/abc", nil))
		r.SetPathValue("id", "abc")
		serv.DeleteHabit(rr, r)
		assert.Equal(t, http.StatusBadRequest, rr.Result().StatusCode)
	})
}

func TestToggleCompletion(t *testing.T) {
	serv, d := setupServer(t)
	toggled := habit.Clone()
	toggled.TodayCompleted = true
	toggled.CurrentStreak = 1
	toggled.LongestStreak = 1

	testCases := []struct {
		Desc         string
		ExpectedCode int
		MockPrepFunc func()
		Body         io.Reader
	}{
		{
			Desc:         "today without body",
			ExpectedCode: http.StatusOK,
			MockPrepFunc: func() {
				d.habits.EXPECT().ToggleCompletion(gomock.Any(), habitID, userID, time.Time{}).Return(toggled, nil)
			},
		},
		{
			Desc:         "explicit date",
			ExpectedCode: http.StatusOK,
			MockPrepFunc: func() {
				d.habits.EXPECT().ToggleCompletion(gomock.Any(), habitID, userID, streak.Date(2026, time.October, 17)).Return(toggled, nil)
			},
			Body: strings.NewReader(`{"date":"2026-10-17"}`),
		},
		{
			Desc:         "future date",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {
				d.habits.EXPECT().ToggleCompletion(gomock.Any(), habitID, userID, gomock.Any()).Return(nil, errorvalues.ErrDateNotAllowed)
			},
			Body: strings.NewReader(`{"date":"2026-10-19"}`),
		},
		{
			Desc:         "archived habit",
			ExpectedCode: http.StatusConflict,
			MockPrepFunc: func() {
				d.habits.EXPECT().ToggleCompletion(gomock.Any(), habitID, userID, gomock.Any()).Return(nil, errorvalues.ErrHabitArchived)
			},
		},
		{
			Desc:         "malformed date",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {},
			Body:         strings.NewReader(`{"date":"17/10/2026"}`),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			rr := httptest.NewRecorder()
			serv.ToggleCompletion(rr, habitReq(http.MethodPost, "/api/v1/habits/"+habitID.String()+"/toggle", tc.Body))
			assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode)
		})
	}

	t.Run("response carries counters", func(t *testing.T) {
		d.habits.EXPECT().ToggleCompletion(gomock.Any(), habitID, userID, time.Time{}).Return(toggled, nil)
		rr := httptest.NewRecorder()
		serv.ToggleCompletion(rr, habitReq(http.MethodPost, "/api/v1/habits/"+habitID.String()+"/toggle", nil))
		var got entity.Habit
		require.NoError(t, sonic.ConfigDefault.NewDecoder(rr.Result().Body).Decode(&got))
		assert.True(t, got.TodayCompleted)
		assert.Equal(t, 1, got.CurrentStreak)
		assert.Equal(t, 1, got.LongestStreak)
	})
}

func TestRescueStreak(t *testing.T) {
	serv, d := setupServer(t)
	proof := "https://example.org/proof.png"
	testCases := []struct {
		Desc         string
		ExpectedCode int
		MockPrepFunc func()
		Body         string
	}{
		{
			Desc:         "rescued",
			ExpectedCode: http.StatusOK,
			MockPrepFunc: func() {
				d.habits.EXPECT().RescueStreak(gomock.Any(), habitID, userID, streak.Date(2026, time.October, 16), proof).Return(habit, nil)
			},
			Body: `{"date":"2026-10-16","proof_url":"` + proof + `"}`,
		},
		{
			Desc:         "today not rescuable",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {
				d.habits.EXPECT().RescueStreak(gomock.Any(), habitID, userID, gomock.Any(), proof).Return(nil, errorvalues.ErrDateNotAllowed)
			},
			Body: `{"date":"2026-10-18","proof_url":"` + proof + `"}`,
		},
		{
			Desc:         "empty body",
			ExpectedCode: http.StatusBadRequest,
			MockPrepFunc: func() {},
			Body:         ``,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			tc.MockPrepFunc()
			rr := httptest.NewRecorder()
			serv.RescueStreak(rr, habitReq(http.MethodPost, "/api/v1/habits/"+habitID.String()+"/rescue", strings.NewReader(tc.Body)))
			assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode)
		})
	}
}

func TestGetHabitRecords(t *testing.T) {
	serv, d := setupServer(t)
	from := streak.Date(2026, time.October, 1)
	to := streak.Date(2026, time.October, 18)
	records := []entity.StreakRecord{{ID: uuid.New(), HabitID: habitID, Date: to, UserCompleted: true}}

	t.Run("range", func(t *testing.T) {
		d.habits.EXPECT().GetHabitRecords(gomock.Any(), habitID, userID, from, to).Return(records, nil)
		rr := httptest.NewRecorder()
		serv.GetHabitRecords(rr, habitReq(http.MethodGet, "/api/v1/habits/"+habitID.String()+"/records?from=2026-10-01&to=2026-10-18", nil))
		require.Equal(t, http.StatusOK, rr.Result().StatusCode)
		var resp api.GetRecordsResponse
		require.NoError(t, sonic.ConfigDefault.NewDecoder(rr.Result().Body).Decode(&resp))
		assert.Equal(t, "2026-10-01", resp.From)
		assert.Equal(t, "2026-10-18", resp.To)
		assert.Len(t, resp.Records, 1)
	})
	t.Run("all records", func(t *testing.T) {
		d.habits.EXPECT().GetHabitRecords(gomock.Any(), habitID, userID, time.Time{}, time.Time{}).Return(records, nil)
		rr := httptest.NewRecorder()
		serv.GetHabitRecords(rr, habitReq(http.MethodGet, "/api/v1/habits/"+habitID.String()+"/records", nil))
		assert.Equal(t, http.StatusOK, rr.Result().StatusCode)
	})
	t.Run("bad range", func(t *testing.T) {
		rr := httptest.NewRecorder()
		serv.GetHabitRecords(rr, habitReq(http.MethodGet, "/api/v1/habits/"+habitID.String()+"/records?from=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Result().StatusCode)
	})
}

func TestGetHabitStats(t *testing.T) {
	serv, d := setupServer(t)
	t.Run("provided", func(t *testing.T) {
		d.habits.EXPECT().GetHabitStats(gomock.Any(), habitID, userID).Return(&entity.HabitStats{
			ID:               habitID,
			TotalCompletions: 4,
			CurrentStreak:    2,
			LongestStreak:    3,
			TargetDays:       30,
		}, nil)
		rr := httptest.NewRecorder()
		serv.GetHabitStats(rr, habitReq(http.MethodGet, "/api/v1/habits/"+habitID.String()+"/stats", nil))
		require.Equal(t, http.StatusOK, rr.Result().StatusCode)
		var stats entity.HabitStats
		require.NoError(t, sonic.ConfigDefault.NewDecoder(rr.Result().Body).Decode(&stats))
		assert.Equal(t, 4, stats.TotalCompletions)
	})
	t.Run("not owned", func(t *testing.T) {
		d.habits.EXPECT().GetHabitStats(gomock.Any(), habitID, userID).Return(nil, errorvalues.ErrWrongOwner)
		rr := httptest.NewRecorder()
		serv.GetHabitStats(rr, habitReq(http.MethodGet, "/api/v1/habits/"+habitID.String()+"/stats", nil))
		assert.Equal(t, http.StatusNotFound, rr.Result().StatusCode)
	})
}

func TestHabitRoutes(t *testing.T) {
	serv, d := setupServer(t)
	token, err := jwt.GenerateToken(user)
	require.NoError(t, err)

	d.sessions.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	d.users.EXPECT().GetByID(gomock.Any(), userID).Return(user, nil).AnyTimes()
	d.habits.EXPECT().GetHabit(gomock.Any(), habitID, userID).Return(habit, nil)
	d.habits.EXPECT().ToggleCompletion(gomock.Any(), habitID, userID, time.Time{}).Return(habit, nil)

	for _, tc := range []struct {
		method, path string
		expected     int
	}{
		{http.MethodGet, "/api/v1/habits/" + habitID.String(), http.StatusOK},
		{http.MethodPost, "/api/v1/habits/" + habitID.String() + "/toggle", http.StatusOK},
		{http.MethodPut, "/api/v1/habits/" + habitID.String(), http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader(nil))
		req.Header.Set("Authorization", "Bearer "+token)
		serv.ServeHTTP(rr, req)
		assert.Equal(t, tc.expected, rr.Result().StatusCode, tc.method+" "+tc.path)
	}
}
