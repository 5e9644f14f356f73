package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/pkg/entity"
)

const recordColumns = `id, habit_id, date, completed_on, user_completed, partner_completed, proof_urls, is_rescue, created_at`

type StreaksRepository struct {
	conn PgConnection
}

func NewStreaksRepoWithConn(conn PgConnection) *StreaksRepository {
	return &StreaksRepository{
		conn: conn,
	}
}

// Toggle relies on the (habit_id, date) unique constraint: a concurrent
// insert of the same period turns into a flip of the existing row instead of
// a second record. day is kept as completed_on while the record is completed.
func (sr *StreaksRepository) Toggle(ctx context.Context, habitID uuid.UUID, date, day time.Time) (*entity.StreakRecord, error) {
	row := sr.conn.QueryRow(
		ctx,
		`INSERT INTO streaks (habit_id, date, user_completed, completed_on) VALUES ($1, $2, TRUE, $3) `+
			`ON CONFLICT (habit_id, date) DO UPDATE SET user_completed = NOT streaks.user_completed, `+
			`completed_on = CASE WHEN streaks.user_completed THEN NULL ELSE EXCLUDED.completed_on END `+
			`RETURNING `+recordColumns+`;`,
		habitID,
		date,
		day,
	)
	record, err := scanRecord(row)
	if err != nil {
		return nil, mapRecordWriteError("toggling completion", err)
	}
	return record, nil
}

func (sr *StreaksRepository) Rescue(ctx context.Context, habitID uuid.UUID, date, day time.Time, proofURL string) (*entity.StreakRecord, error) {
	proofs := []string{}
	if proofURL != "" {
		proofs = append(proofs, proofURL)
	}
	row := sr.conn.QueryRow(
		ctx,
		`INSERT INTO streaks (habit_id, date, completed_on, user_completed, is_rescue, proof_urls) VALUES ($1, $2, $3, TRUE, TRUE, $4) `+
			`ON CONFLICT (habit_id, date) DO UPDATE SET user_completed = TRUE, is_rescue = TRUE, `+
			`completed_on = GREATEST(streaks.completed_on, EXCLUDED.completed_on), `+
			`proof_urls = array_cat(streaks.proof_urls, EXCLUDED.proof_urls) `+
			`RETURNING `+recordColumns+`;`,
		habitID,
		date,
		day,
		proofs,
	)
	record, err := scanRecord(row)
	if err != nil {
		return nil, mapRecordWriteError("rescuing streak", err)
	}
	return record, nil
}

func (sr *StreaksRepository) GetByHabitID(ctx context.Context, habitID uuid.UUID) ([]entity.StreakRecord, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT `+recordColumns+` FROM streaks WHERE habit_id = $1 ORDER BY date DESC;`,
		habitID,
	)
	if err != nil {
		return nil, errorvalues.NewPersistenceError("getting habit records", err)
	}
	return collectRecords(rows)
}

func (sr *StreaksRepository) GetByUserID(ctx context.Context, uid uuid.UUID) ([]entity.StreakRecord, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT s.id, s.habit_id, s.date, s.completed_on, s.user_completed, s.partner_completed, s.proof_urls, s.is_rescue, s.created_at `+
			`FROM streaks s JOIN habits h ON h.id = s.habit_id WHERE h.user_id = $1 AND h.status <> 'archived' ORDER BY s.date DESC;`,
		uid,
	)
	if err != nil {
		return nil, errorvalues.NewPersistenceError("getting user records", err)
	}
	return collectRecords(rows)
}

func (sr *StreaksRepository) GetByHabitAndDateRange(ctx context.Context, habitID uuid.UUID, from, to time.Time) ([]entity.StreakRecord, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT `+recordColumns+` FROM streaks WHERE habit_id = $1 AND date >= $2 AND date <= $3 ORDER BY date DESC;`,
		habitID,
		from,
		to,
	)
	if err != nil {
		return nil, errorvalues.NewPersistenceError("getting records for period", err)
	}
	return collectRecords(rows)
}

func (sr *StreaksRepository) CountCompleted(ctx context.Context, habitID uuid.UUID) (int, error) {
	row := sr.conn.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM streaks WHERE habit_id = $1 AND user_completed;`,
		habitID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, errorvalues.NewPersistenceError("counting completions", err)
	}
	return count, nil
}

func mapRecordWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// FK violation
		case "23503":
			return errorvalues.ErrHabitNotFound
		}
	}
	return errorvalues.NewPersistenceError(op, err)
}

func collectRecords(rows pgx.Rows) ([]entity.StreakRecord, error) {
	defer rows.Close()
	records := make([]entity.StreakRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, errorvalues.NewPersistenceError("record row parsing", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, errorvalues.NewPersistenceError("unexpected record rows", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*entity.StreakRecord, error) {
	var r entity.StreakRecord
	err := row.Scan(&r.ID, &r.HabitID, &r.Date, &r.CompletedOn, &r.UserCompleted, &r.PartnerCompleted, &r.ProofURLs, &r.IsRescue, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Date = r.Date.UTC()
	if r.CompletedOn != nil {
		day := r.CompletedOn.UTC()
		r.CompletedOn = &day
	}
	return &r, nil
}
