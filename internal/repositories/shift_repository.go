package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evn/shiftbot/internal/models"
)

// Store is the persistence boundary consumed by the shift, user and
// leaderboard services.
type Store interface {
	FindUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	CreateUser(ctx context.Context, externalID, displayName string) (*models.User, error)
	UpdateDisplayName(ctx context.Context, externalID, displayName string) error

	FindOpenShift(ctx context.Context, externalID string) (*models.Shift, error)
	CreateShift(ctx context.Context, externalID, department string, start time.Time) (*models.Shift, error)
	CloseShift(ctx context.Context, shiftID int, end time.Time, durationMinutes int) (*models.Shift, error)
	ListOpenShifts(ctx context.Context) ([]models.ActiveShift, error)

	AggregateDurations(ctx context.Context, department string) ([]models.DurationTotal, error)
	DeleteAllShifts(ctx context.Context) (int64, error)
}

// ShiftRepository implements Store on database/sql for Postgres and SQLite.
type ShiftRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewShiftRepository(db *sql.DB, dialect Dialect) *ShiftRepository {
	return &ShiftRepository{db: db, dialect: dialect}
}

var _ Store = (*ShiftRepository)(nil)

func (r *ShiftRepository) FindUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT id, external_id, display_name, created_at
		FROM users
		WHERE external_id = ?
	`), externalID).Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find user", err)
	}
	return &u, nil
}

// CreateUser inserts a user row. A concurrent insert for the same external id
// yields models.ErrConflict; the caller re-fetches.
func (r *ShiftRepository) CreateUser(ctx context.Context, externalID, displayName string) (*models.User, error) {
	u := models.User{
		ExternalID:  externalID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		INSERT INTO users (external_id, display_name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id
	`), u.ExternalID, u.DisplayName, u.CreatedAt).Scan(&u.ID)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, unavailable("create user", err)
	}
	return &u, nil
}

func (r *ShiftRepository) UpdateDisplayName(ctx context.Context, externalID, displayName string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		UPDATE users SET display_name = ? WHERE external_id = ?
	`), displayName, externalID)
	if err != nil {
		return unavailable("update display name", err)
	}
	return nil
}

func (r *ShiftRepository) FindOpenShift(ctx context.Context, externalID string) (*models.Shift, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT id, external_id, department, start_time, end_time, duration_minutes
		FROM shifts
		WHERE external_id = ? AND end_time IS NULL
	`), externalID)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find open shift", err)
	}
	return s, nil
}

// CreateShift opens a shift in a single conditional insert: the partial unique
// index on open shifts turns a second open shift into a no-op, reported as
// models.ErrAlreadyActive.
func (r *ShiftRepository) CreateShift(ctx context.Context, externalID, department string, start time.Time) (*models.Shift, error) {
	s := models.Shift{
		ExternalID: externalID,
		Department: department,
		StartTime:  start,
	}
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		INSERT INTO shifts (external_id, department, start_time)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id
	`), externalID, department, start).Scan(&s.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return nil, models.ErrAlreadyActive
	case isForeignKeyViolation(err):
		return nil, models.ErrNotFound
	case err != nil:
		return nil, unavailable("create shift", err)
	}
	return &s, nil
}

// CloseShift sets the end timestamp exactly once. It returns models.ErrNotFound
// when the shift is gone or was already closed.
func (r *ShiftRepository) CloseShift(ctx context.Context, shiftID int, end time.Time, durationMinutes int) (*models.Shift, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		UPDATE shifts
		SET end_time = ?, duration_minutes = ?
		WHERE id = ? AND end_time IS NULL
	`), end, durationMinutes, shiftID)
	if err != nil {
		return nil, unavailable("close shift", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("close shift", err)
	}
	if n == 0 {
		return nil, models.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT id, external_id, department, start_time, end_time, duration_minutes
		FROM shifts
		WHERE id = ?
	`), shiftID)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		// reset ran between the update and the read
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("read closed shift", err)
	}
	return s, nil
}

func (r *ShiftRepository) ListOpenShifts(ctx context.Context) ([]models.ActiveShift, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.external_id, u.display_name, s.department, s.start_time
		FROM shifts s
		JOIN users u ON u.external_id = s.external_id
		WHERE s.end_time IS NULL
		ORDER BY s.start_time, s.id
	`)
	if err != nil {
		return nil, unavailable("list open shifts", err)
	}
	defer rows.Close()

	shifts := []models.ActiveShift{}
	for rows.Next() {
		var a models.ActiveShift
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.DisplayName, &a.Department, &a.StartTime); err != nil {
			return nil, unavailable("scan open shift", err)
		}
		shifts = append(shifts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list open shifts", err)
	}
	return shifts, nil
}

// AggregateDurations sums closed shifts per user, optionally restricted to one
// department. Users without a closed shift in scope produce no row. Ties on
// the total keep user insertion order.
func (r *ShiftRepository) AggregateDurations(ctx context.Context, department string) ([]models.DurationTotal, error) {
	query := `
		SELECT u.external_id, u.display_name, SUM(s.duration_minutes) AS total_minutes
		FROM shifts s
		JOIN users u ON u.external_id = s.external_id
		WHERE s.end_time IS NOT NULL`
	var args []interface{}
	if department != "" {
		query += ` AND s.department = ?`
		args = append(args, department)
	}
	query += `
		GROUP BY u.id, u.external_id, u.display_name
		ORDER BY total_minutes DESC, u.id ASC`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, unavailable("aggregate durations", err)
	}
	defer rows.Close()

	totals := []models.DurationTotal{}
	for rows.Next() {
		var t models.DurationTotal
		var total int64
		if err := rows.Scan(&t.ExternalID, &t.DisplayName, &total); err != nil {
			return nil, unavailable("scan total", err)
		}
		t.TotalMinutes = int(total)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("aggregate durations", err)
	}
	return totals, nil
}

// DeleteAllShifts removes every shift row. Users are kept.
func (r *ShiftRepository) DeleteAllShifts(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shifts`)
	if err != nil {
		return 0, unavailable("delete shifts", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanShift(row *sql.Row) (*models.Shift, error) {
	var s models.Shift
	var end sql.NullTime
	var duration sql.NullInt64
	if err := row.Scan(&s.ID, &s.ExternalID, &s.Department, &s.StartTime, &end, &duration); err != nil {
		return nil, err
	}
	if end.Valid {
		t := end.Time
		s.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMinutes = &d
	}
	return &s, nil
}
