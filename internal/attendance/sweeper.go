package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/roster"
	"rollcall/internal/timewindow"
)

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	Location *time.Location
	// Throttle gates MaybeSweep; nil means every call sweeps.
	Throttle Throttle
	Events   Publisher
	Now      func() time.Time
}

// Sweeper backfills absences for expired schedules and retires them.
type Sweeper struct {
	store    Store
	roster   roster.Directory
	loc      *time.Location
	throttle Throttle
	events   Publisher
	now      func() time.Time
	log      zerolog.Logger
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Expired    int `json:"expired"`
	Retired    int `json:"retired"`
	Backfilled int `json:"backfilled"`
	Failed     int `json:"failed"`
}

// NewSweeper creates a sweeper.
func NewSweeper(store Store, dir roster.Directory, opts SweeperOptions) *Sweeper {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		store:    store,
		roster:   dir,
		loc:      opts.Location,
		throttle: opts.Throttle,
		events:   opts.Events,
		now:      opts.Now,
		log:      logging.WithComponent("sweeper"),
	}
}

// MaybeSweep runs a sweep when the throttle admits one. Errors are logged; the
// caller's request never fails because of the sweep.
func (s *Sweeper) MaybeSweep(ctx context.Context) bool {
	if s.throttle != nil && !s.throttle.Allow(ctx, s.now()) {
		return false
	}
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
	}
	return true
}

// Sweep processes every expired schedule. A failure on one schedule is logged
// and does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SweepDuration)
	metrics.SweepRunsTotal.Inc()

	var res SweepResult
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		metrics.SweepFailuresTotal.WithLabelValues("list").Inc()
		return res, fmt.Errorf("list schedules: %w", err)
	}

	now := s.now()
	var studentIDs []string
	for i := range schedules {
		sch := &schedules[i]
		w, err := timewindow.For(sch.Date, sch.StartTime, sch.EndTime, s.loc)
		if err != nil {
			s.log.Warn().Err(err).Str("schedule_id", sch.ID).Msg("skipping schedule with unreadable window")
			continue
		}
		if w.Phase(now) != timewindow.Expired {
			continue
		}
		res.Expired++

		if studentIDs == nil {
			if studentIDs, err = s.roster.StudentIDs(ctx); err != nil {
				metrics.SweepFailuresTotal.WithLabelValues("roster").Inc()
				return res, fmt.Errorf("load roster: %w", err)
			}
			if studentIDs == nil {
				studentIDs = []string{}
			}
		}

		n, err := s.backfill(ctx, sch, studentIDs)
		res.Backfilled += n
		if err != nil {
			res.Failed++
			metrics.SweepFailuresTotal.WithLabelValues("backfill").Inc()
			s.log.Error().Err(err).Str("schedule_id", sch.ID).Msg("backfill failed, schedule kept for next sweep")
			continue
		}

		if _, err := s.store.DeleteSchedule(ctx, sch.ID); err != nil {
			res.Failed++
			metrics.SweepFailuresTotal.WithLabelValues("delete").Inc()
			s.log.Error().Err(err).Str("schedule_id", sch.ID).Msg("retire expired schedule failed")
			continue
		}
		res.Retired++
		metrics.SchedulesRetiredTotal.WithLabelValues("expired").Inc()
		publish(ctx, s.events, s.log, EventScheduleRetired, RetiredEvent{ScheduleID: sch.ID, Date: sch.Date, Reason: "expired"})
	}

	if res.Expired > 0 {
		s.log.Info().Int("expired", res.Expired).Int("retired", res.Retired).
			Int("backfilled", res.Backfilled).Int("failed", res.Failed).Msg("sweep finished")
	}
	publish(ctx, s.events, s.log, EventSweepCompleted, res)
	return res, nil
}

// backfill writes Absent records and an untaken history row for every
// expected staff member who never submitted. It returns the staff backfilled.
func (s *Sweeper) backfill(ctx context.Context, sch *Schedule, studentIDs []string) (int, error) {
	expected, err := expectedStaff(ctx, s.roster, sch)
	if err != nil {
		return 0, err
	}
	submitted, err := s.store.SubmittedStaffIDs(ctx, sch.ID)
	if err != nil {
		return 0, fmt.Errorf("load submissions: %w", err)
	}
	done := make(map[string]bool, len(submitted))
	for _, id := range submitted {
		done[id] = true
	}

	n := 0
	for _, staffID := range expected {
		if done[staffID] {
			continue
		}
		// A roll on another schedule that day already holds the date lock.
		prior, err := s.store.HistoryOn(ctx, sch.Date, staffID)
		if err != nil {
			return n, fmt.Errorf("load history for %s: %w", staffID, err)
		}
		if prior != nil {
			continue
		}
		recs := make([]Record, 0, len(studentIDs))
		for _, id := range studentIDs {
			recs = append(recs, Record{
				StudentID:  id,
				StaffID:    staffID,
				ScheduleID: sch.ID,
				ClassDate:  sch.Date,
				Status:     StatusAbsent,
			})
		}
		if err := insertRecords(ctx, s.store, recs); err != nil {
			return n, fmt.Errorf("absent records for %s: %w", staffID, err)
		}
		if err := s.store.CreateHistory(ctx, &History{
			ScheduleID: sch.ID,
			ClassDate:  sch.Date,
			StaffID:    staffID,
			StartTime:  sch.StartTime,
			EndTime:    sch.EndTime,
		}); err != nil {
			if err := ignoreDuplicate(err); err != nil {
				return n, fmt.Errorf("history for %s: %w", staffID, err)
			}
		}
		n++
	}
	return n, nil
}
