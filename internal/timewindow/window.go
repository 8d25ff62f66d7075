// Package timewindow decides whether an instant falls before, within or after a
// class session. Schedule dates and clock times are always read in the
// institution's fixed UTC offset, never in the process's local zone.
package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Phase is the position of an instant relative to a session window.
type Phase int

const (
	Upcoming Phase = iota
	Active
	Expired
)

func (p Phase) String() string {
	switch p {
	case Upcoming:
		return "upcoming"
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

const (
	DateLayout = "2006-01-02"
	// ClockLayout is the canonical HH:MM form stored on schedules.
	ClockLayout = "15:04"
)

var (
	// ErrBeforeStart rejects a submission made before the session starts.
	ErrBeforeStart = errors.New("attendance can only be taken after the start time")
	// ErrExpired rejects a submission made after the session ends.
	ErrExpired = errors.New("attendance time has expired")
)

// ParseOffset turns "+05:30", "-04:00", "+0530" or "UTC" into a fixed zone.
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "UTC") || s == "Z" {
		return time.UTC, nil
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("offset %q: must start with + or -", s)
	}
	rest := strings.ReplaceAll(s[1:], ":", "")
	if len(rest) != 2 && len(rest) != 4 {
		return nil, fmt.Errorf("offset %q: expected HH or HH:MM", s)
	}
	hours, err := strconv.Atoi(rest[:2])
	if err != nil {
		return nil, fmt.Errorf("offset %q: %w", s, err)
	}
	minutes := 0
	if len(rest) == 4 {
		if minutes, err = strconv.Atoi(rest[2:]); err != nil {
			return nil, fmt.Errorf("offset %q: %w", s, err)
		}
	}
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("offset %q: out of range", s)
	}
	secs := sign * (hours*3600 + minutes*60)
	return time.FixedZone("UTC"+s, secs), nil
}

// ParseClock validates an HH:MM (or HH:MM:SS) clock string and returns hours,
// minutes and seconds.
func ParseClock(clock string) (int, int, int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("time %q: expected HH:MM", clock)
	}
	vals := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, 0, 0, fmt.Errorf("time %q: expected HH:MM", clock)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// Instant converts a local calendar date and clock time, read in loc, into an
// absolute instant.
func Instant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: expected YYYY-MM-DD", date)
	}
	h, m, s, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, loc), nil
}

// Window is the absolute [Start, End] span of one session.
type Window struct {
	Start time.Time
	End   time.Time
}

// For builds the window of a session held on date between start and end.
func For(date, start, end string, loc *time.Location) (Window, error) {
	from, err := Instant(date, start, loc)
	if err != nil {
		return Window{}, err
	}
	to, err := Instant(date, end, loc)
	if err != nil {
		return Window{}, err
	}
	if !to.After(from) {
		return Window{}, fmt.Errorf("end time %s must be after start time %s", end, start)
	}
	return Window{Start: from, End: to}, nil
}

// Phase classifies now against the window. Both bounds are inclusive.
func (w Window) Phase(now time.Time) Phase {
	switch {
	case now.Before(w.Start):
		return Upcoming
	case now.After(w.End):
		return Expired
	default:
		return Active
	}
}

// Check returns nil when now is inside the window and the matching timing error otherwise.
func (w Window) Check(now time.Time) error {
	switch w.Phase(now) {
	case Upcoming:
		return ErrBeforeStart
	case Expired:
		return ErrExpired
	}
	return nil
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
