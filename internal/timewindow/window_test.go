package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		secs    int
		wantErr bool
	}{
		{in: "+05:30", secs: 5*3600 + 30*60},
		{in: "+0530", secs: 5*3600 + 30*60},
		{in: "-04:00", secs: -4 * 3600},
		{in: "+02", secs: 2 * 3600},
		{in: "UTC", secs: 0},
		{in: "", secs: 0},
		{in: "05:30", wantErr: true},
		{in: "+5:3", wantErr: true},
		{in: "+15:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			loc, err := ParseOffset(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, off := time.Date(2024, 3, 1, 0, 0, 0, 0, loc).Zone()
			assert.Equal(t, tt.secs, off)
		})
	}
}

func TestInstantUsesInstitutionOffset(t *testing.T) {
	ist, err := ParseOffset("+05:30")
	require.NoError(t, err)

	got, err := Instant("2024-03-01", "09:00", ist)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 3, 30, 0, 0, time.UTC), got.UTC())
}

func TestInstantRejectsMalformedInput(t *testing.T) {
	_, err := Instant("01/03/2024", "09:00", time.UTC)
	assert.Error(t, err)

	_, err = Instant("2024-03-01", "9am", time.UTC)
	assert.Error(t, err)

	_, err = Instant("2024-03-01", "24:00", time.UTC)
	assert.Error(t, err)
}

func TestWindowPhase(t *testing.T) {
	ist, err := ParseOffset("+05:30")
	require.NoError(t, err)
	w, err := For("2024-03-01", "09:00", "10:00", ist)
	require.NoError(t, err)

	at := func(clock string) time.Time {
		ts, err := Instant("2024-03-01", clock, ist)
		require.NoError(t, err)
		return ts
	}

	tests := []struct {
		name  string
		now   time.Time
		phase Phase
		err   error
	}{
		{name: "one minute early", now: at("08:59"), phase: Upcoming, err: ErrBeforeStart},
		{name: "exact start", now: at("09:00"), phase: Active},
		{name: "inside", now: at("09:01"), phase: Active},
		{name: "exact end", now: at("10:00"), phase: Active},
		{name: "one minute late", now: at("10:01"), phase: Expired, err: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.phase, w.Phase(tt.now))
			assert.ErrorIs(t, w.Check(tt.now), tt.err)
		})
	}
}

func TestWindowIndependentOfObserverZone(t *testing.T) {
	ist, err := ParseOffset("+05:30")
	require.NoError(t, err)
	w, err := For("2024-03-01", "09:00", "10:00", ist)
	require.NoError(t, err)

	// 03:45 UTC is 09:15 IST; the same instant seen from New York must agree.
	now := time.Date(2024, 3, 1, 3, 45, 0, 0, time.UTC)
	ny := time.FixedZone("EST", -5*3600)

	assert.Equal(t, Active, w.Phase(now))
	assert.Equal(t, Active, w.Phase(now.In(ny)))
}

func TestForRejectsInvertedWindow(t *testing.T) {
	_, err := For("2024-03-01", "10:00", "09:00", time.UTC)
	assert.Error(t, err)

	_, err = For("2024-03-01", "10:00", "10:00", time.UTC)
	assert.Error(t, err)
}

func TestToday(t *testing.T) {
	ist, err := ParseOffset("+05:30")
	require.NoError(t, err)

	// 20:00 UTC on Feb 29 is already Mar 1 in IST.
	now := time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01", Today(now, ist))
	assert.Equal(t, "2024-02-29", Today(now, time.UTC))
}
