package roster

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Repository reads the roster from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, name, rank, roll_no, reg_no, gender, year, class_section`

// StudentIDs returns every student id.
func (r *Repository) StudentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Students lists students, optionally restricted to one class section.
func (r *Repository) Students(ctx context.Context, classSection string) ([]Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	args := []any{}
	if !matchAllClasses(classSection) {
		query += ` WHERE LOWER(class_section) = LOWER($1)`
		args = append(args, strings.TrimSpace(classSection))
	}
	query += ` ORDER BY name`
	return r.queryStudents(ctx, query, args...)
}

// StudentsByIDs returns the students whose id is in ids.
func (r *Repository) StudentsByIDs(ctx context.Context, ids []string) ([]Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryStudents(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ANY($1) ORDER BY name`, ids)
}

func (r *Repository) queryStudents(ctx context.Context, query string, args ...any) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Rank, &s.RollNo, &s.RegNo, &s.Gender, &s.Year, &s.ClassSection); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Staff returns a single staff member by id.
func (r *Repository) Staff(ctx context.Context, id string) (*Staff, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, username, reg_no, pin
		FROM staff WHERE id = $1
	`, id)
	var s Staff
	if err := row.Scan(&s.ID, &s.Name, &s.Username, &s.RegNo, &s.PIN); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// StaffIDs returns every staff id.
func (r *Repository) StaffIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM staff ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
