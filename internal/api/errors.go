package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/pkg/httputil"
)

// writeServiceError answers with the status matching err's category. Details
// of persistence failures never leave the server.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var vErr *errorvalues.ValidationError
	switch {
	case errors.As(err, &vErr):
		logger.Error(op+" error: invalid request", slog.String("error", err.Error()))
		httputil.WriteFieldsErrorResponse(w, http.StatusBadRequest, "invalid request", vErr.Err, vErr.Fields)
	case errors.Is(err, errorvalues.ErrHabitNotFound), errors.Is(err, errorvalues.ErrWrongOwner):
		logger.Error(op+" error: habit not found", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusNotFound, "habit doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrFrequencyLocked), errors.Is(err, errorvalues.ErrHabitArchived):
		logger.Error(op+" error: conflicting state", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, errorvalues.ErrValidation):
		logger.Error(op+" error: invalid request", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, errorvalues.ErrUserExists):
		logger.Error(op + " error: existed user")
		httputil.WriteErrorResponse(w, http.StatusConflict, "user with such email already exists", nil)
	case errors.Is(err, errorvalues.ErrUserNotFound):
		logger.Error(op + " error: unexist user")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrWrongCredentials):
		logger.Error(op + " error: wrong credentials")
		httputil.WriteErrorResponse(w, http.StatusForbidden, "invalid email or password", nil)
	case errors.Is(err, errorvalues.ErrNotAuthenticated), errors.Is(err, errorvalues.ErrAuth):
		logger.Error(op+" error: unauthorized", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
	default:
		logger.Error(op+" error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during "+op, nil)
	}
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, &errorvalues.ValidationError{
			Fields: []string{"date"},
			Err:    errors.New("date must look like 2006-01-02"),
		}
	}
	return date, nil
}
