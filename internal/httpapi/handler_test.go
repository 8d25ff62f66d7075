package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
)

var ist = time.FixedZone("UTC+05:30", 5*3600+30*60)

type testServer struct {
	router *gin.Engine
	store  *attendance.MemoryStore
	sweeps *queue.InMemory
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := roster.NewMemory()
	dir.PutStudent(roster.Student{ID: "A", Name: "Arun", ClassSection: "A", Year: "3", Gender: "male", Rank: "SUO"})
	dir.PutStudent(roster.Student{ID: "B", Name: "Bina", ClassSection: "A", Year: "2", Gender: "female", Rank: "CDT"})
	dir.PutStudent(roster.Student{ID: "C", Name: "Chetan", ClassSection: "B", Year: "1", Gender: "male", Rank: "CDT"})
	dir.PutStaff(roster.Staff{ID: "s1", Name: "One", PIN: "1111"})
	dir.PutStaff(roster.Staff{ID: "s2", Name: "Two", PIN: "2222"})

	now := time.Date(2024, 3, 1, 9, 30, 0, 0, ist)
	store := attendance.NewMemoryStore()
	svc := attendance.NewService(store, dir, attendance.Options{
		Location: ist,
		AdminPIN: "1945",
		Now:      func() time.Time { return now },
	})
	sweeps := queue.NewInMemory(4)
	h := New(svc, sweeps, checks)
	return &testServer{
		router: NewRouter(h, RouterOptions{}),
		store:  store,
		sweeps: sweeps,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) createSchedule(t *testing.T, start, end string, staff ...string) string {
	t.Helper()
	w, out := s.do(t, http.MethodPost, "/schedule", gin.H{
		"date": "2024-03-01", "startTime": start, "endTime": end, "staffIds": staff,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return out["schedule"].(map[string]any)["id"].(string)
}

func TestCreateScheduleConflict(t *testing.T) {
	s := newTestServer(t, nil)
	s.createSchedule(t, "09:00", "10:00", "s1")

	w, out := s.do(t, http.MethodPost, "/schedule", gin.H{"date": "2024-03-01", "startTime": "09:00", "endTime": "11:00"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, out["message"])

	w, _ = s.do(t, http.MethodPost, "/schedule", gin.H{"date": "2024-03-01", "startTime": "25:00", "endTime": "26:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = s.do(t, http.MethodGet, "/schedule", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["schedules"], 1)
	assert.NotEmpty(t, out["serverTime"])
}

func TestBulkSubmission(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createSchedule(t, "09:00", "10:00", "s1", "s2")

	body := gin.H{"scheduleId": id, "classDate": "2024-03-01", "presentStudentIds": []string{"A", "B"}, "pin": "1111", "staffId": "s1"}
	w, out := s.do(t, http.MethodPost, "/attendance/bulk", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Attendance submitted successfully", out["message"])
	assert.Equal(t, float64(2), out["present"])
	assert.Equal(t, float64(1), out["absent"])

	w, out = s.do(t, http.MethodPost, "/attendance/bulk", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "you have already submitted", out["message"])

	body["staffId"], body["pin"] = "s2", "0000"
	w, _ = s.do(t, http.MethodPost, "/attendance/bulk", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body["staffId"] = "nobody"
	w, _ = s.do(t, http.MethodPost, "/attendance/bulk", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, out = s.do(t, http.MethodGet, "/attendance/present/2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"A", "B"}, out["presentStudentIds"])
	assert.Len(t, out["students"], 2)

	w, out = s.do(t, http.MethodGet, "/attendance/schedule?staffId=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, out["schedules"])

	w, out = s.do(t, http.MethodGet, "/attendance/schedule?staffId=s2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["schedules"], 1)
}

func TestBulkTimingErrors(t *testing.T) {
	s := newTestServer(t, nil)
	later := s.createSchedule(t, "10:00", "11:00", "s1")
	earlier := s.createSchedule(t, "08:00", "09:00", "s1")

	for id, msg := range map[string]string{
		later:   "attendance can only be taken after the start time",
		earlier: "attendance time has expired",
	} {
		w, out := s.do(t, http.MethodPost, "/attendance/bulk", gin.H{"scheduleId": id, "pin": "1111", "staffId": "s1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msg, out["message"])
	}

	recs, err := s.store.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAdminUpdate(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodPatch, "/attendance/update", gin.H{"studentId": "A", "classDate": "2024-02-28", "status": "Present", "pin": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/attendance/update", gin.H{"studentId": "A", "status": "Present", "pin": "1945"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out := s.do(t, http.MethodPatch, "/attendance/update", gin.H{"studentId": "A", "classDate": "2024-02-28", "status": "Present", "pin": "1945"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Attendance updated successfully", out["message"])

	w, out = s.do(t, http.MethodGet, "/attendance/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"2024-02-28"}, out["dates"])

	w, out = s.do(t, http.MethodGet, "/attendance/summary/2024-02-28", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, out["text"], "SUO - Arun")

	w, out = s.do(t, http.MethodGet, "/attendance?classSection=a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["records"], 2)
}

func TestScheduleHistoryAndCancel(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createSchedule(t, "09:00", "10:00", "s1", "s2")

	w, _ := s.do(t, http.MethodPost, "/attendance/bulk", gin.H{"scheduleId": id, "pin": "1111", "staffId": "s1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, out := s.do(t, http.MethodGet, "/schedule/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	groups := out["schedules"].([]any)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].(map[string]any)["staff"], 1)

	w, out = s.do(t, http.MethodGet, "/attendance/schedule/history?staffId=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, out["byStaff"], "s1")

	w, _ = s.do(t, http.MethodGet, "/schedule/2024-03-01", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/schedule/2024-03-09", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/schedule/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/schedule/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestSweep(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodPost, "/schedule/sweep", gin.H{"pin": "1111"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/schedule/sweep", gin.H{"pin": "1945"})
	require.Equal(t, http.StatusAccepted, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := s.sweeps.Consume(ctx)
	require.NoError(t, err)
	select {
	case m := <-msgs:
		assert.Equal(t, queue.TypeSweepRequested, m.Type)
	case <-time.After(time.Second):
		t.Fatal("no sweep request queued")
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"db":    func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	})
	w, out := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, true, out["db"])
	assert.Equal(t, false, out["redis"])

	s = newTestServer(t, nil)
	w, _ = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", attendance.ErrExpired), http.StatusBadRequest},
		{attendance.ErrBeforeStart, http.StatusBadRequest},
		{attendance.ErrAlreadySubmitted, http.StatusBadRequest},
		{attendance.ErrInvalidPIN, http.StatusUnauthorized},
		{attendance.ErrInvalidAdminPIN, http.StatusUnauthorized},
		{attendance.ErrScheduleNotFound, http.StatusNotFound},
		{attendance.ErrStudentNotFound, http.StatusNotFound},
		{attendance.ErrScheduleExists, http.StatusConflict},
		{queue.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
