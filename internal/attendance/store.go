package attendance

import (
	"context"
	"errors"

	"rollcall/internal/metrics"
)

// Ledger stores one attendance record per (student, staff, schedule, date).
type Ledger interface {
	// UpsertRecord inserts rec or overwrites the status of the existing record
	// with the same key. It is atomic per key.
	UpsertRecord(ctx context.Context, rec Record) error
	// InsertRecords inserts every record whose key is not taken yet and
	// silently skips the rest. It returns the number of rows inserted.
	InsertRecords(ctx context.Context, recs []Record) (int, error)
	// OverrideStatus sets status on every record of studentID on date,
	// restricted to scheduleID when it is not empty. It returns the rows touched.
	OverrideStatus(ctx context.Context, studentID, scheduleID, date string, status Status) (int, error)
	PresentStudentIDs(ctx context.Context, date string, f PresentFilter) ([]string, error)
	CountPresent(ctx context.Context, staffID, date string) (int, error)
	ListRecords(ctx context.Context) ([]Record, error)
	// RecordDates returns the distinct dates with any record, ascending.
	RecordDates(ctx context.Context) ([]string, error)
}

// ScheduleStore holds live (not yet retired) schedules.
type ScheduleStore interface {
	// CreateSchedule returns ErrDuplicateKey when (date, start time) is taken.
	CreateSchedule(ctx context.Context, s *Schedule) error
	// GetSchedule returns nil, nil when the schedule does not exist.
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	// ListSchedules returns every live schedule ordered by date then start time.
	ListSchedules(ctx context.Context) ([]Schedule, error)
	// DeleteSchedule is idempotent; it reports whether a row was removed.
	DeleteSchedule(ctx context.Context, id string) (bool, error)
}

// HistoryStore holds per-(schedule, staff) submission outcomes.
type HistoryStore interface {
	// GetHistory returns nil, nil when no row exists.
	GetHistory(ctx context.Context, scheduleID, staffID string) (*History, error)
	// HistoryOn returns staffID's row for date, whichever schedule it belongs
	// to, or nil, nil. At most one exists per (date, staff).
	HistoryOn(ctx context.Context, date, staffID string) (*History, error)
	// CreateHistory returns ErrDuplicateKey when the staff already has a row
	// for the schedule or for the schedule's date.
	CreateHistory(ctx context.Context, h *History) error
	// SaveHistory inserts h or updates the existing (schedule, staff) row.
	SaveHistory(ctx context.Context, h *History) error
	// SubmittedStaffIDs returns the distinct staff with a row for scheduleID.
	SubmittedStaffIDs(ctx context.Context, scheduleID string) ([]string, error)
	// LockedDates returns the dates staffID already has a row for.
	LockedDates(ctx context.Context, staffID string) ([]string, error)
	// ListHistory returns rows newest date first; an empty staffID matches all.
	ListHistory(ctx context.Context, staffID string) ([]History, error)
}

// Store is the full persistence surface of the attendance core.
type Store interface {
	Ledger
	ScheduleStore
	HistoryStore
}

// ignoreDuplicate swallows the expected unique-constraint conflict.
func ignoreDuplicate(err error) error {
	if errors.Is(err, ErrDuplicateKey) {
		return nil
	}
	return err
}

// insertRecords writes recs one status at a time so the written counter
// only counts rows the ledger actually took.
func insertRecords(ctx context.Context, l Ledger, recs []Record) error {
	for _, status := range []Status{StatusPresent, StatusAbsent} {
		batch := make([]Record, 0, len(recs))
		for _, r := range recs {
			if r.Status == status {
				batch = append(batch, r)
			}
		}
		if len(batch) == 0 {
			continue
		}
		n, err := l.InsertRecords(ctx, batch)
		if n > 0 {
			metrics.RecordsWrittenTotal.WithLabelValues(string(status)).Add(float64(n))
		}
		if err := ignoreDuplicate(err); err != nil {
			return err
		}
	}
	return nil
}
