package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rollcall/internal/timewindow"
)

// ScheduleRequest creates a class session.
type ScheduleRequest struct {
	Date      string   `json:"date"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	StaffIDs  []string `json:"staffIds"`
}

func normalizeClock(v string) (string, error) {
	h, m, _, err := timewindow.ParseClock(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// CreateSchedule validates and stores a new session. Only one session may
// start at a given date and time.
func (s *Service) CreateSchedule(ctx context.Context, req ScheduleRequest) (*Schedule, error) {
	if req.Date == "" || req.StartTime == "" || req.EndTime == "" {
		return nil, invalid("date, startTime and endTime are required")
	}
	date, err := s.normalizeDate(req.Date)
	if err != nil {
		return nil, invalid(err.Error())
	}
	start, err := normalizeClock(req.StartTime)
	if err != nil {
		return nil, invalid(err.Error())
	}
	end, err := normalizeClock(req.EndTime)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if _, err := timewindow.For(date, start, end, s.loc); err != nil {
		return nil, invalid(err.Error())
	}

	var staffIDs []string
	seen := make(map[string]bool)
	for _, id := range req.StaffIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		st, err := s.roster.Staff(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load staff: %w", err)
		}
		if st == nil {
			return nil, invalid(fmt.Sprintf("unknown staff id %q", id))
		}
		staffIDs = append(staffIDs, id)
	}

	sch := &Schedule{Date: date, StartTime: start, EndTime: end, StaffIDs: staffIDs}
	if err := s.store.CreateSchedule(ctx, sch); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, ErrScheduleExists
		}
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.log.Info().Str("schedule_id", sch.ID).Str("date", sch.Date).
		Str("start", sch.StartTime).Str("end", sch.EndTime).Msg("schedule created")
	return sch, nil
}

// UpcomingSchedules lists live schedules dated today or later.
func (s *Service) UpcomingSchedules(ctx context.Context) ([]Schedule, error) {
	all, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	today := timewindow.Today(s.now(), s.loc)
	out := make([]Schedule, 0, len(all))
	for _, sch := range all {
		if sch.Date >= today {
			out = append(out, sch)
		}
	}
	return out, nil
}

// SchedulesOn lists live schedules on date.
func (s *Service) SchedulesOn(ctx context.Context, date string) ([]Schedule, error) {
	d, err := s.normalizeDate(date)
	if err != nil {
		return nil, invalid(err.Error())
	}
	all, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	var out []Schedule
	for _, sch := range all {
		if sch.Date == d {
			out = append(out, sch)
		}
	}
	return out, nil
}

// CancelSchedule removes a live schedule without touching records or history.
func (s *Service) CancelSchedule(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if !deleted {
		return ErrScheduleNotFound
	}
	s.log.Info().Str("schedule_id", id).Msg("schedule cancelled")
	return nil
}

// Now returns the service clock in the institution's zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}
