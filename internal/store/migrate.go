package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		rank          TEXT NOT NULL DEFAULT '',
		roll_no       TEXT NOT NULL DEFAULT '',
		reg_no        TEXT NOT NULL DEFAULT '',
		gender        TEXT NOT NULL DEFAULT '',
		year          TEXT NOT NULL DEFAULT '',
		class_section TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		reg_no   TEXT NOT NULL DEFAULT '',
		pin      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS class_schedules (
		id         TEXT PRIMARY KEY,
		class_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		staff_ids  TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (class_date, start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		staff_id    TEXT NOT NULL DEFAULT '',
		schedule_id TEXT NOT NULL DEFAULT '',
		class_date  TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('Present', 'Absent')),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, staff_id, schedule_id, class_date)
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_records_date_idx ON attendance_records (class_date, status)`,
	`CREATE TABLE IF NOT EXISTS schedule_history (
		id               TEXT PRIMARY KEY,
		schedule_id      TEXT NOT NULL,
		class_date       TEXT NOT NULL,
		staff_id         TEXT NOT NULL DEFAULT '',
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		attendance_taken BOOLEAN NOT NULL DEFAULT FALSE,
		total_present    INTEGER NOT NULL DEFAULT 0,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (schedule_id, staff_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS schedule_history_date_staff_idx
		ON schedule_history (class_date, staff_id) WHERE staff_id <> ''`,
}

// Migrate creates the tables and indexes the services rely on.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
