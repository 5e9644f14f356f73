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

const habitColumns = `id, user_id, name, description, frequency, target_days, is_public, status, partner_id, start_date, end_date, ` +
	`current_streak_count, longest_streak_count, last_completed_at, created_at, updated_at`

type HabitsRepository struct {
	conn PgConnection
}

func NewHabitsRepoWithConn(conn PgConnection) *HabitsRepository {
	return &HabitsRepository{
		conn: conn,
	}
}

func (hr *HabitsRepository) Create(ctx context.Context, habit *entity.Habit) (uuid.UUID, error) {
	var id uuid.UUID
	row := hr.conn.QueryRow(ctx, `INSERT INTO habits (user_id, name, description, frequency, target_days, is_public, partner_id, start_date, end_date) `+
		`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id;`,
		habit.UserID,
		habit.Name,
		habit.Description,
		string(habit.Frequency),
		habit.TargetDays,
		habit.IsPublic,
		habit.PartnerID,
		habit.StartDate,
		habit.EndDate,
	)
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return uuid.UUID{}, errorvalues.ErrOwnerNotFound
			}
		}
		return uuid.UUID{}, errorvalues.NewPersistenceError("creating habit", err)
	}
	return id, nil
}

func (hr *HabitsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Habit, error) {
	row := hr.conn.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = $1;`, id)
	habit, err := scanHabit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrHabitNotFound
		}
		return nil, errorvalues.NewPersistenceError("getting habit by id", err)
	}
	return habit, nil
}

func (hr *HabitsRepository) GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Habit, error) {
	rows, err := hr.conn.Query(ctx, `SELECT `+habitColumns+` FROM habits WHERE user_id = $1 AND status <> 'archived' ORDER BY created_at;`, uid)
	if err != nil {
		return nil, errorvalues.NewPersistenceError("getting habits by uid", err)
	}
	return collectHabits(rows)
}

func (hr *HabitsRepository) ListActive(ctx context.Context) ([]*entity.Habit, error) {
	rows, err := hr.conn.Query(ctx, `SELECT `+habitColumns+` FROM habits WHERE status = 'active';`)
	if err != nil {
		return nil, errorvalues.NewPersistenceError("listing active habits", err)
	}
	return collectHabits(rows)
}

func (hr *HabitsRepository) Update(ctx context.Context, habit *entity.Habit) error {
	ct, err := hr.conn.Exec(ctx, `UPDATE habits SET name = $1, description = $2, frequency = $3, target_days = $4, is_public = $5, `+
		`status = $6, end_date = $7, updated_at = NOW() WHERE id = $8 AND status <> 'archived';`,
		habit.Name,
		habit.Description,
		string(habit.Frequency),
		habit.TargetDays,
		habit.IsPublic,
		string(habit.Status),
		habit.EndDate,
		habit.ID,
	)
	if err != nil {
		return errorvalues.NewPersistenceError("updating habit", err)
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrHabitNotFound
	}
	return nil
}

func (hr *HabitsRepository) Archive(ctx context.Context, id uuid.UUID) error {
	ct, err := hr.conn.Exec(ctx, `UPDATE habits SET status = 'archived', updated_at = NOW() WHERE id = $1;`, id)
	if err != nil {
		return errorvalues.NewPersistenceError("archiving habit", err)
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrHabitNotFound
	}
	return nil
}

func (hr *HabitsRepository) UpdateStreakCounts(ctx context.Context, counts []entity.StreakCounts) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := hr.conn.Begin(ctx)
	if err != nil {
		return errorvalues.NewPersistenceError("beginning streak counts tx", err)
	}
	for _, c := range counts {
		ct, err := tx.Exec(ctx, `UPDATE habits SET current_streak_count = $1, longest_streak_count = $2, last_completed_at = $3, `+
			`updated_at = NOW() WHERE id = $4;`,
			c.CurrentStreak,
			c.LongestStreak,
			c.LastCompletedAt,
			c.HabitID,
		)
		if err != nil {
			tx.Rollback(ctx)
			return errorvalues.NewPersistenceError("updating streak counts", err)
		}
		if ct.RowsAffected() == 0 {
			tx.Rollback(ctx)
			return errorvalues.ErrHabitNotFound
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return errorvalues.NewPersistenceError("committing streak counts", err)
	}
	return nil
}

func collectHabits(rows pgx.Rows) ([]*entity.Habit, error) {
	defer rows.Close()
	habits := make([]*entity.Habit, 0)
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, errorvalues.NewPersistenceError("unmarshalling habit", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errorvalues.NewPersistenceError("scanning habits", err)
	}
	return habits, nil
}

func scanHabit(row pgx.Row) (*entity.Habit, error) {
	var (
		h             entity.Habit
		frequency     string
		status        string
		lastCompleted *time.Time
	)
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Description,
		&frequency,
		&h.TargetDays,
		&h.IsPublic,
		&status,
		&h.PartnerID,
		&h.StartDate,
		&h.EndDate,
		&h.CurrentStreak,
		&h.LongestStreak,
		&lastCompleted,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.Frequency = entity.Frequency(frequency)
	h.Status = entity.HabitStatus(status)
	// Written as midnight UTC of the period key, read back in UTC so the
	// civil date survives the driver's local time conversion.
	if lastCompleted != nil {
		lc := lastCompleted.UTC()
		h.LastCompletedAt = &lc
	}
	return &h, nil
}
