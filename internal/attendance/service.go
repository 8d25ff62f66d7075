package attendance

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/report"
	"rollcall/internal/roster"
	"rollcall/internal/timewindow"
)

// Options configures a Service.
type Options struct {
	// Location is the institution's fixed offset; UTC when nil.
	Location *time.Location
	AdminPIN string
	Events   Publisher
	// Sweeper runs (throttled) before pending schedules are listed.
	Sweeper *Sweeper
	Now     func() time.Time
}

// Service coordinates roll submission, schedule reconciliation and reporting.
type Service struct {
	store    Store
	roster   roster.Directory
	loc      *time.Location
	adminPIN string
	events   Publisher
	sweeper  *Sweeper
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a service backed by a store and the roster.
func NewService(store Store, dir roster.Directory, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    store,
		roster:   dir,
		loc:      opts.Location,
		adminPIN: opts.AdminPIN,
		events:   opts.Events,
		sweeper:  opts.Sweeper,
		now:      opts.Now,
		log:      logging.WithComponent("reconciler"),
	}
}

// UpdateRequest changes one student's status. Without StaffID it is an admin
// override authorised by the global PIN.
type UpdateRequest struct {
	StudentID  string
	ClassDate  string
	Status     Status
	PIN        string
	ScheduleID string
	StaffID    string
}

// RollRequest is a staff member's full roll for one schedule.
type RollRequest struct {
	ScheduleID        string
	ClassDate         string
	PresentStudentIDs []string
	PIN               string
	StaffID           string
}

// RollResult describes what a roll submission wrote.
type RollResult struct {
	Present int  `json:"present"`
	Absent  int  `json:"absent"`
	Retired bool `json:"retired"`
}

func pinMatches(want, got string) bool {
	w, g := strings.TrimSpace(want), strings.TrimSpace(got)
	if w == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(w), []byte(g)) == 1
}

// authorizeStaff loads the staff member and checks the PIN.
func (s *Service) authorizeStaff(ctx context.Context, staffID, pin string) (*roster.Staff, error) {
	staff, err := s.roster.Staff(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if staff == nil {
		return nil, ErrStaffNotFound
	}
	if !pinMatches(staff.PIN, pin) {
		return nil, ErrInvalidPIN
	}
	return staff, nil
}

// openSchedule loads a live schedule and applies the submission gate.
func (s *Service) openSchedule(ctx context.Context, scheduleID string) (*Schedule, error) {
	sch, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if sch == nil {
		return nil, ErrScheduleNotFound
	}
	w, err := timewindow.For(sch.Date, sch.StartTime, sch.EndTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", sch.ID, err)
	}
	if err := w.Check(s.now()); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *Service) requireStudent(ctx context.Context, id string) error {
	found, err := s.roster.StudentsByIDs(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("load student: %w", err)
	}
	if len(found) == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// UpdateOne sets one student's status. A staff update also refreshes that
// staff's history row and may retire the schedule; an admin update only
// touches the ledger.
func (s *Service) UpdateOne(ctx context.Context, req UpdateRequest) (err error) {
	kind := "single"
	if req.StaffID == "" {
		kind = "admin"
	}
	defer func() { observe(kind, err) }()

	if req.StaffID != "" {
		if req.StudentID == "" || req.ClassDate == "" || req.Status == "" || req.ScheduleID == "" {
			return invalid("missing required fields for staff submission")
		}
	} else if req.StudentID == "" || req.ClassDate == "" || req.Status == "" {
		return invalid("missing required fields")
	}
	if !req.Status.Valid() {
		return invalid(fmt.Sprintf("status must be %q or %q", StatusPresent, StatusAbsent))
	}

	if req.StaffID == "" {
		return s.adminUpdate(ctx, req)
	}

	if _, err := s.authorizeStaff(ctx, req.StaffID, req.PIN); err != nil {
		return err
	}
	sch, err := s.openSchedule(ctx, req.ScheduleID)
	if err != nil {
		return err
	}
	if err := s.requireStudent(ctx, req.StudentID); err != nil {
		return err
	}
	prior, err := s.store.HistoryOn(ctx, sch.Date, req.StaffID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if prior != nil && prior.ScheduleID != sch.ID {
		return ErrAlreadySubmitted
	}

	if err := s.store.UpsertRecord(ctx, Record{
		StudentID:  req.StudentID,
		StaffID:    req.StaffID,
		ScheduleID: sch.ID,
		ClassDate:  sch.Date,
		Status:     req.Status,
	}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	metrics.RecordsWrittenTotal.WithLabelValues(string(req.Status)).Inc()

	present, err := s.store.CountPresent(ctx, req.StaffID, sch.Date)
	if err != nil {
		return fmt.Errorf("count present: %w", err)
	}
	if err := s.store.SaveHistory(ctx, &History{
		ScheduleID:      sch.ID,
		ClassDate:       sch.Date,
		StaffID:         req.StaffID,
		StartTime:       sch.StartTime,
		EndTime:         sch.EndTime,
		AttendanceTaken: true,
		TotalPresent:    present,
	}); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("write history: %w", err)
	}

	if _, err := s.reconcile(ctx, sch); err != nil {
		return err
	}
	return nil
}

// AuthorizeAdmin checks pin against the global admin PIN.
func (s *Service) AuthorizeAdmin(pin string) error {
	if !pinMatches(s.adminPIN, pin) {
		return ErrInvalidAdminPIN
	}
	return nil
}

func (s *Service) adminUpdate(ctx context.Context, req UpdateRequest) error {
	if err := s.AuthorizeAdmin(req.PIN); err != nil {
		return err
	}

	date := ""
	if req.ScheduleID != "" {
		sch, err := s.openSchedule(ctx, req.ScheduleID)
		if err != nil {
			return err
		}
		date = sch.Date
	} else {
		d, err := s.normalizeDate(req.ClassDate)
		if err != nil {
			return invalid(err.Error())
		}
		date = d
	}
	if err := s.requireStudent(ctx, req.StudentID); err != nil {
		return err
	}

	n, err := s.store.OverrideStatus(ctx, req.StudentID, req.ScheduleID, date, req.Status)
	if err != nil {
		return fmt.Errorf("override status: %w", err)
	}
	if n == 0 {
		if err := s.store.UpsertRecord(ctx, Record{
			StudentID:  req.StudentID,
			ScheduleID: req.ScheduleID,
			ClassDate:  date,
			Status:     req.Status,
		}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	metrics.RecordsWrittenTotal.WithLabelValues(string(req.Status)).Inc()
	return nil
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// institution-local calendar date.
func (s *Service) normalizeDate(v string) (string, error) {
	v = strings.TrimSpace(v)
	if d, err := time.Parse(timewindow.DateLayout, v); err == nil {
		return d.Format(timewindow.DateLayout), nil
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.In(s.loc).Format(timewindow.DateLayout), nil
	}
	return "", fmt.Errorf("classDate %q: expected YYYY-MM-DD", v)
}

// SubmitRoll records a staff member's full roll: listed students present,
// every other roster student absent. A staff member can submit once per schedule.
func (s *Service) SubmitRoll(ctx context.Context, req RollRequest) (res RollResult, err error) {
	defer func() { observe("roll", err) }()

	if req.StaffID == "" {
		return res, invalid("staffId is required")
	}
	if req.ScheduleID == "" {
		return res, invalid("scheduleId is required")
	}
	if _, err := s.authorizeStaff(ctx, req.StaffID, req.PIN); err != nil {
		return res, err
	}
	sch, err := s.openSchedule(ctx, req.ScheduleID)
	if err != nil {
		return res, err
	}

	// One roll per staff per date covers this schedule and any other on the day.
	already, err := s.store.HistoryOn(ctx, sch.Date, req.StaffID)
	if err != nil {
		return res, fmt.Errorf("load history: %w", err)
	}
	if already != nil {
		return res, ErrAlreadySubmitted
	}

	allIDs, err := s.roster.StudentIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("load roster: %w", err)
	}
	known := make(map[string]bool, len(allIDs))
	for _, id := range allIDs {
		known[id] = true
	}
	present := make(map[string]bool, len(req.PresentStudentIDs))
	for _, id := range req.PresentStudentIDs {
		if !known[id] {
			return res, invalid(fmt.Sprintf("unknown student id %q", id))
		}
		present[id] = true
	}

	recs := make([]Record, 0, len(allIDs))
	for _, id := range allIDs {
		status := StatusAbsent
		if present[id] {
			status = StatusPresent
			res.Present++
		} else {
			res.Absent++
		}
		recs = append(recs, Record{
			StudentID:  id,
			StaffID:    req.StaffID,
			ScheduleID: sch.ID,
			ClassDate:  sch.Date,
			Status:     status,
		})
	}
	if err := insertRecords(ctx, s.store, recs); err != nil {
		return RollResult{}, fmt.Errorf("write roll: %w", err)
	}

	if err := s.store.CreateHistory(ctx, &History{
		ScheduleID:      sch.ID,
		ClassDate:       sch.Date,
		StaffID:         req.StaffID,
		StartTime:       sch.StartTime,
		EndTime:         sch.EndTime,
		AttendanceTaken: true,
		TotalPresent:    res.Present,
	}); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return RollResult{}, ErrAlreadySubmitted
		}
		return RollResult{}, fmt.Errorf("write history: %w", err)
	}

	publish(ctx, s.events, s.log, EventRollSubmitted, RollEvent{
		ScheduleID: sch.ID,
		StaffID:    req.StaffID,
		Date:       sch.Date,
		Present:    res.Present,
		Absent:     res.Absent,
	})

	res.Retired, err = s.reconcile(ctx, sch)
	if err != nil {
		return res, err
	}
	return res, nil
}

// expectedStaff returns the staff a schedule waits for: its explicit list, or
// the whole staff roster when the list is empty.
func expectedStaff(ctx context.Context, dir roster.Directory, sch *Schedule) ([]string, error) {
	if len(sch.StaffIDs) > 0 {
		return sch.StaffIDs, nil
	}
	ids, err := dir.StaffIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	return ids, nil
}

// reconcile retires sch once every expected staff member has a history row.
// Two submissions may both observe completion; the delete is idempotent.
func (s *Service) reconcile(ctx context.Context, sch *Schedule) (bool, error) {
	expected, err := expectedStaff(ctx, s.roster, sch)
	if err != nil {
		return false, err
	}
	if len(expected) == 0 {
		return false, nil
	}
	submitted, err := s.store.SubmittedStaffIDs(ctx, sch.ID)
	if err != nil {
		return false, fmt.Errorf("load submissions: %w", err)
	}
	done := make(map[string]bool, len(submitted))
	for _, id := range submitted {
		done[id] = true
	}
	for _, id := range expected {
		if !done[id] {
			return false, nil
		}
	}

	deleted, err := s.store.DeleteSchedule(ctx, sch.ID)
	if err != nil {
		return false, fmt.Errorf("retire schedule: %w", err)
	}
	if deleted {
		metrics.SchedulesRetiredTotal.WithLabelValues("reconciled").Inc()
		s.log.Info().Str("schedule_id", sch.ID).Str("date", sch.Date).Msg("schedule retired, all staff submitted")
		publish(ctx, s.events, s.log, EventScheduleRetired, RetiredEvent{ScheduleID: sch.ID, Date: sch.Date, Reason: "reconciled"})
	}
	return true, nil
}

func observe(kind string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrBeforeStart), errors.Is(err, ErrExpired):
		outcome = "timing"
	case errors.Is(err, ErrInvalidPIN), errors.Is(err, ErrInvalidAdminPIN):
		outcome = "unauthorized"
	case errors.Is(err, ErrAlreadySubmitted):
		outcome = "duplicate"
	case IsValidation(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	metrics.SubmissionsTotal.WithLabelValues(kind, outcome).Inc()
}

// PendingSchedules lists the live schedules staffID can still submit for: none
// on a date the staff member has already submitted. A throttled expiry sweep
// runs first.
func (s *Service) PendingSchedules(ctx context.Context, staffID string) ([]Schedule, error) {
	if s.sweeper != nil {
		s.sweeper.MaybeSweep(ctx)
	}
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	if staffID == "" {
		return schedules, nil
	}
	locked, err := s.store.LockedDates(ctx, staffID)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(locked))
	for _, d := range locked {
		skip[d] = true
	}
	out := make([]Schedule, 0, len(schedules))
	for _, sch := range schedules {
		if !skip[sch.Date] {
			out = append(out, sch)
		}
	}
	return out, nil
}

// History returns history rows, optionally for one staff member, after a
// throttled sweep.
func (s *Service) History(ctx context.Context, staffID string) ([]History, error) {
	if s.sweeper != nil {
		s.sweeper.MaybeSweep(ctx)
	}
	return s.store.ListHistory(ctx, staffID)
}

// PresentOn returns the ids and roster entries of students present on date.
func (s *Service) PresentOn(ctx context.Context, date string, f PresentFilter) ([]string, []roster.Student, error) {
	date, err := s.normalizeDate(date)
	if err != nil {
		return nil, nil, invalid(err.Error())
	}
	ids, err := s.store.PresentStudentIDs(ctx, date, f)
	if err != nil {
		return nil, nil, err
	}
	students, err := s.roster.StudentsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return ids, students, nil
}

// Summary builds the roll-call summary for date.
func (s *Service) Summary(ctx context.Context, date string, f PresentFilter) (report.Summary, error) {
	_, students, err := s.PresentOn(ctx, date, f)
	if err != nil {
		return report.Summary{}, err
	}
	date, _ = s.normalizeDate(date)
	return report.BuildSummary(date, students), nil
}

// AttendanceDates returns every date with ledger activity.
func (s *Service) AttendanceDates(ctx context.Context) ([]string, error) {
	return s.store.RecordDates(ctx)
}

// Matrix is the per-student history over every known date.
type Matrix struct {
	Records       []report.StudentHistory `json:"records"`
	AllDates      []string                `json:"allDates"`
	ScheduleDates []string                `json:"scheduleDates"`
}

// StudentMatrix builds the attendance matrix for one class section (or all).
// Dates come from the ledger, live schedules and retired-schedule history.
func (s *Service) StudentMatrix(ctx context.Context, classSection string) (Matrix, error) {
	students, err := s.roster.Students(ctx, classSection)
	if err != nil {
		return Matrix{}, err
	}
	recs, err := s.store.ListRecords(ctx)
	if err != nil {
		return Matrix{}, err
	}
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return Matrix{}, err
	}
	hist, err := s.store.ListHistory(ctx, "")
	if err != nil {
		return Matrix{}, err
	}

	marks := make([]report.Mark, 0, len(recs))
	recordDates := make([]string, 0, len(recs))
	for _, r := range recs {
		marks = append(marks, report.Mark{StudentID: r.StudentID, Date: r.ClassDate, Present: r.Status == StatusPresent})
		recordDates = append(recordDates, r.ClassDate)
	}
	schedDates := make([]string, 0, len(schedules))
	for _, sch := range schedules {
		schedDates = append(schedDates, sch.Date)
	}
	histDates := make([]string, 0, len(hist))
	for _, h := range hist {
		histDates = append(histDates, h.ClassDate)
	}

	dates := report.Dates(schedDates, histDates, recordDates)
	return Matrix{
		Records:       report.Matrix(students, marks, dates),
		AllDates:      report.Dates(recordDates),
		ScheduleDates: dates,
	}, nil
}
