package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// insertChunk bounds the rows per multi-row INSERT.
const insertChunk = 500

// Repository persists schedules, ledger records and history in Postgres.
type Repository struct {
	db    *sql.DB
	types *pgtype.Map
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, types: pgtype.NewMap()}
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)

// translate maps a unique_violation onto ErrDuplicateKey.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

// UpsertRecord writes one ledger row, overwriting the status on conflict.
func (r *Repository) UpsertRecord(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, staff_id, schedule_id, class_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, staff_id, schedule_id, class_date) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()
	`, rec.ID, rec.StudentID, rec.StaffID, rec.ScheduleID, rec.ClassDate, string(rec.Status))
	return translate(err)
}

// InsertRecords inserts in chunks and ignores rows whose key is already taken.
func (r *Repository) InsertRecords(ctx context.Context, recs []Record) (int, error) {
	total := 0
	for start := 0; start < len(recs); start += insertChunk {
		end := start + insertChunk
		if end > len(recs) {
			end = len(recs)
		}
		chunk := recs[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO attendance_records (id, student_id, staff_id, schedule_id, class_date, status) VALUES `)
		args := make([]any, 0, len(chunk)*6)
		for i, rec := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := len(args)
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
			id := rec.ID
			if id == "" {
				id = uuid.NewString()
			}
			args = append(args, id, rec.StudentID, rec.StaffID, rec.ScheduleID, rec.ClassDate, string(rec.Status))
		}
		sb.WriteString(` ON CONFLICT (student_id, staff_id, schedule_id, class_date) DO NOTHING`)

		res, err := r.db.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return total, translate(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}
	return total, nil
}

// OverrideStatus rewrites the status of a student's records for one date.
func (r *Repository) OverrideStatus(ctx context.Context, studentID, scheduleID, date string, status Status) (int, error) {
	query := `UPDATE attendance_records SET status = $1, updated_at = NOW() WHERE student_id = $2 AND class_date = $3`
	args := []any{string(status), studentID, date}
	if scheduleID != "" {
		query += ` AND schedule_id = $4`
		args = append(args, scheduleID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PresentStudentIDs returns distinct students marked present on date.
func (r *Repository) PresentStudentIDs(ctx context.Context, date string, f PresentFilter) ([]string, error) {
	query := `SELECT DISTINCT student_id FROM attendance_records WHERE class_date = $1 AND status = $2`
	args := []any{date, string(StatusPresent)}
	if f.StaffID != "" {
		args = append(args, f.StaffID)
		query += fmt.Sprintf(" AND staff_id = $%d", len(args))
	}
	if f.ScheduleID != "" {
		args = append(args, f.ScheduleID)
		query += fmt.Sprintf(" AND schedule_id = $%d", len(args))
	}
	query += ` ORDER BY student_id`
	return r.queryStrings(ctx, query, args...)
}

// CountPresent counts present records a staff member wrote for date.
func (r *Repository) CountPresent(ctx context.Context, staffID, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE staff_id = $1 AND class_date = $2 AND status = $3
	`, staffID, date, string(StatusPresent)).Scan(&n)
	return n, err
}

// ListRecords returns the whole ledger ordered by date.
func (r *Repository) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, staff_id, schedule_id, class_date, status, updated_at
		FROM attendance_records
		ORDER BY class_date, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.StaffID, &rec.ScheduleID, &rec.ClassDate, &status, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// RecordDates returns the distinct dates present in the ledger.
func (r *Repository) RecordDates(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT class_date FROM attendance_records ORDER BY class_date`)
}

// CreateSchedule inserts a schedule; (date, start time) is unique.
func (r *Repository) CreateSchedule(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	staffIDs := s.StaffIDs
	if staffIDs == nil {
		staffIDs = []string{}
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO class_schedules (id, class_date, start_time, end_time, staff_ids)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.Date, s.StartTime, s.EndTime, staffIDs)
	return translate(row.Scan(&s.CreatedAt))
}

const scheduleColumns = `id, class_date, start_time, end_time, staff_ids, created_at`

// GetSchedule returns a single live schedule by id.
func (r *Repository) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM class_schedules WHERE id = $1`, id)
	s, err := r.scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns all live schedules.
func (r *Repository) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM class_schedules ORDER BY class_date, start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Schedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanSchedule(row scanner) (Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, r.types.SQLScanner(&s.StaffIDs), &s.CreatedAt)
	return s, err
}

// DeleteSchedule removes a schedule; deleting a missing one is not an error.
func (r *Repository) DeleteSchedule(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_schedules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const historyColumns = `id, schedule_id, class_date, staff_id, start_time, end_time, attendance_taken, total_present, updated_at`

func scanHistory(row scanner) (History, error) {
	var h History
	err := row.Scan(&h.ID, &h.ScheduleID, &h.ClassDate, &h.StaffID, &h.StartTime, &h.EndTime, &h.AttendanceTaken, &h.TotalPresent, &h.UpdatedAt)
	return h, err
}

// GetHistory returns the history row of one staff member for one schedule.
func (r *Repository) GetHistory(ctx context.Context, scheduleID, staffID string) (*History, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM schedule_history WHERE schedule_id = $1 AND staff_id = $2`, scheduleID, staffID)
	h, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// HistoryOn returns a staff member's history row for a date, if any.
func (r *Repository) HistoryOn(ctx context.Context, date, staffID string) (*History, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM schedule_history WHERE class_date = $1 AND staff_id = $2 LIMIT 1`, date, staffID)
	h, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// CreateHistory inserts a history row and fails on any unique conflict.
func (r *Repository) CreateHistory(ctx context.Context, h *History) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO schedule_history (id, schedule_id, class_date, staff_id, start_time, end_time, attendance_taken, total_present)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING updated_at
	`, h.ID, h.ScheduleID, h.ClassDate, h.StaffID, h.StartTime, h.EndTime, h.AttendanceTaken, h.TotalPresent)
	return translate(row.Scan(&h.UpdatedAt))
}

// SaveHistory upserts on (schedule, staff).
func (r *Repository) SaveHistory(ctx context.Context, h *History) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO schedule_history (id, schedule_id, class_date, staff_id, start_time, end_time, attendance_taken, total_present)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (schedule_id, staff_id) DO UPDATE SET
			attendance_taken = EXCLUDED.attendance_taken,
			total_present = EXCLUDED.total_present,
			updated_at = NOW()
		RETURNING id, updated_at
	`, h.ID, h.ScheduleID, h.ClassDate, h.StaffID, h.StartTime, h.EndTime, h.AttendanceTaken, h.TotalPresent)
	return translate(row.Scan(&h.ID, &h.UpdatedAt))
}

// SubmittedStaffIDs lists the distinct staff with a history row for a schedule.
func (r *Repository) SubmittedStaffIDs(ctx context.Context, scheduleID string) ([]string, error) {
	return r.queryStrings(ctx, `
		SELECT DISTINCT staff_id FROM schedule_history
		WHERE schedule_id = $1 AND staff_id <> ''
		ORDER BY staff_id
	`, scheduleID)
}

// LockedDates lists the dates a staff member already has history for.
func (r *Repository) LockedDates(ctx context.Context, staffID string) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT class_date FROM schedule_history WHERE staff_id = $1 ORDER BY class_date`, staffID)
}

// ListHistory returns history rows, newest date first.
func (r *Repository) ListHistory(ctx context.Context, staffID string) ([]History, error) {
	query := `SELECT ` + historyColumns + ` FROM schedule_history`
	args := []any{}
	if staffID != "" {
		query += ` WHERE staff_id = $1`
		args = append(args, staffID)
	}
	query += ` ORDER BY class_date DESC, start_time, staff_id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

