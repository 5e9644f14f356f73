package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/pkg/httputil"
)

func (s *Server) GetHabits(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("get habits error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	habits, err := s.habitService.ListHabits(ctx, uid)
	if err != nil {
		writeServiceError(w, logger, "getting habits list", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetHabitsResponse{
		UserID: uid.String(),
		Habits: habits,
	})
	logger.Info("habits provided")
}

func (s *Server) CreateHabit(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("create habit error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req CreateHabitRequest
	defer r.Body.Close()
	if err = httputil.ReadJSON(r, &req); err != nil {
		logger.Error("create habit error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	serviceReq := &service.CreateHabitRequest{
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		TargetDays:  req.TargetDays,
		IsPublic:    req.IsPublic,
	}
	if req.EndDate != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			writeServiceError(w, logger, "creating habit", err)
			return
		}
		serviceReq.EndDate = &end
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	habit, err := s.habitService.CreateHabit(ctx, uid, serviceReq)
	if err != nil {
		writeServiceError(w, logger, "creating habit", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, habit)
	logger.Info("habit created", slog.String("habit_id", habit.ID.String()))
}

func (s *Server) GetHabit(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "get habit")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	habit, err := s.habitService.GetHabit(ctx, id, uid)
	if err != nil {
		writeServiceError(w, logger, "getting habit", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, habit)
}

func (s *Server) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "update habit")
	if !ok {
		return
	}
	var req UpdateHabitRequest
	defer r.Body.Close()
	if err := httputil.ReadJSON(r, &req); err != nil {
		logger.Error("update habit error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	serviceReq := &service.UpdateHabitRequest{
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		TargetDays:  req.TargetDays,
		IsPublic:    req.IsPublic,
		Status:      req.Status,
	}
	if req.EndDate != nil && *req.EndDate != "" {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			writeServiceError(w, logger, "updating habit", err)
			return
		}
		serviceReq.EndDate = &end
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	habit, err := s.habitService.UpdateHabit(ctx, id, uid, serviceReq)
	if err != nil {
		writeServiceError(w, logger, "updating habit", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, habit)
	logger.Info("habit updated")
}

func (s *Server) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "habit deletion")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	if err := s.habitService.DeleteHabit(ctx, id, uid); err != nil {
		writeServiceError(w, logger, "deleting habit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logger.Info("habit archived")
}

// ToggleCompletion takes an optional body with the date to toggle, today
// when absent.
func (s *Server) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "toggle")
	if !ok {
		return
	}
	var req ToggleRequest
	defer r.Body.Close()
	if r.ContentLength != 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			logger.Error("toggle error: invalid request body")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeServiceError(w, logger, "toggling completion", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	habit, err := s.habitService.ToggleCompletion(ctx, id, uid, date)
	if err != nil {
		writeServiceError(w, logger, "toggling completion", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, habit)
	logger.Info("completion toggled", slog.Bool("today_completed", habit.TodayCompleted))
}

func (s *Server) RescueStreak(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "rescue")
	if !ok {
		return
	}
	var req RescueRequest
	defer r.Body.Close()
	if err := httputil.ReadJSON(r, &req); err != nil {
		logger.Error("rescue error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeServiceError(w, logger, "rescuing streak", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	habit, err := s.habitService.RescueStreak(ctx, id, uid, date, req.ProofURL)
	if err != nil {
		writeServiceError(w, logger, "rescuing streak", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, habit)
	logger.Info("streak rescued")
}

// GetHabitRecords takes optional from and to query params, YYYY-MM-DD.
func (s *Server) GetHabitRecords(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "get records")
	if !ok {
		return
	}
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeServiceError(w, logger, "getting records", err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, logger, "getting records", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	records, err := s.habitService.GetHabitRecords(ctx, id, uid, from, to)
	if err != nil {
		writeServiceError(w, logger, "getting records", err)
		return
	}
	resp := GetRecordsResponse{HabitID: id.String(), Records: records}
	if !from.IsZero() {
		resp.From = from.Format(time.DateOnly)
	}
	if !to.IsZero() {
		resp.To = to.Format(time.DateOnly)
	}
	httputil.WriteJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) GetHabitStats(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, id, ok := s.habitRequest(w, r, "get stats")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	stats, err := s.habitService.GetHabitStats(ctx, id, uid)
	if err != nil {
		writeServiceError(w, logger, "getting stats", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, stats)
}

// habitRequest extracts the caller and the habit id path value. On failure
// the response is already written.
func (s *Server) habitRequest(w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, uuid.UUID, bool) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error(op + " error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return uuid.UUID{}, uuid.UUID{}, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		logger.Error(op + " error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid habit id in path value", nil)
		return uuid.UUID{}, uuid.UUID{}, false
	}
	return uid, id, true
}
