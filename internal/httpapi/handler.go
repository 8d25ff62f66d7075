// Package httpapi exposes the attendance core over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the attendance endpoints.
type Handler struct {
	svc    *attendance.Service
	sweeps attendance.Publisher
	checks map[string]HealthCheck
}

// New creates a handler. sweeps receives on-demand sweep requests; checks
// are reported by /healthz.
func New(svc *attendance.Service, sweeps attendance.Publisher, checks map[string]HealthCheck) *Handler {
	return &Handler{svc: svc, sweeps: sweeps, checks: checks}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Submissions ----------

type updateRequest struct {
	StudentID  string `json:"studentId"`
	ClassDate  string `json:"classDate"`
	Status     string `json:"status"`
	PIN        string `json:"pin"`
	ScheduleID string `json:"scheduleId"`
	StaffID    string `json:"staffId"`
}

// UpdateAttendance sets one student's status, as staff or as admin.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	err := h.svc.UpdateOne(c.Request.Context(), attendance.UpdateRequest{
		StudentID:  req.StudentID,
		ClassDate:  req.ClassDate,
		Status:     attendance.Status(req.Status),
		PIN:        req.PIN,
		ScheduleID: req.ScheduleID,
		StaffID:    req.StaffID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance updated successfully"})
}

type bulkRequest struct {
	ScheduleID        string   `json:"scheduleId"`
	ClassDate         string   `json:"classDate"`
	PresentStudentIDs []string `json:"presentStudentIds"`
	PIN               string   `json:"pin"`
	StaffID           string   `json:"staffId"`
}

// SubmitRoll records a staff member's full roll for a schedule.
func (h *Handler) SubmitRoll(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.svc.SubmitRoll(c.Request.Context(), attendance.RollRequest{
		ScheduleID:        req.ScheduleID,
		ClassDate:         req.ClassDate,
		PresentStudentIDs: req.PresentStudentIDs,
		PIN:               req.PIN,
		StaffID:           req.StaffID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Attendance submitted successfully",
		"present": res.Present,
		"absent":  res.Absent,
		"retired": res.Retired,
	})
}

// ---------- Schedules ----------

// PendingSchedules lists the schedules a staff member can still submit for.
func (h *Handler) PendingSchedules(c *gin.Context) {
	schedules, err := h.svc.PendingSchedules(c.Request.Context(), c.Query("staffId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": nonNil(schedules), "serverTime": h.svc.Now()})
}

// CreateSchedule adds a class session.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req attendance.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	sch, err := h.svc.CreateSchedule(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Schedule created successfully", "schedule": sch})
}

// UpcomingSchedules lists schedules from today on.
func (h *Handler) UpcomingSchedules(c *gin.Context) {
	schedules, err := h.svc.UpcomingSchedules(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": nonNil(schedules), "serverTime": h.svc.Now()})
}

// SchedulesOn lists the schedules of one date.
func (h *Handler) SchedulesOn(c *gin.Context) {
	schedules, err := h.svc.SchedulesOn(c.Request.Context(), c.Param("date"))
	if err != nil {
		fail(c, err)
		return
	}
	if len(schedules) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "no schedule found for this date"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// CancelSchedule deletes a live schedule.
func (h *Handler) CancelSchedule(c *gin.Context) {
	if err := h.svc.CancelSchedule(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}

type sweepRequest struct {
	PIN string `json:"pin"`
}

// RequestSweep queues an unthrottled expiry sweep.
func (h *Handler) RequestSweep(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.svc.AuthorizeAdmin(req.PIN); err != nil {
		fail(c, err)
		return
	}
	if h.sweeps == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "sweep queue not configured"})
		return
	}
	if err := h.sweeps.Publish(c.Request.Context(), queue.Message{Type: queue.TypeSweepRequested}); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Sweep requested"})
}

// ---------- History ----------

// StaffHistory returns history rows grouped by staff member.
func (h *Handler) StaffHistory(c *gin.Context) {
	rows, err := h.svc.History(c.Request.Context(), c.Query("staffId"))
	if err != nil {
		fail(c, err)
		return
	}
	byStaff := make(map[string][]attendance.History)
	for _, r := range rows {
		byStaff[r.StaffID] = append(byStaff[r.StaffID], r)
	}
	c.JSON(http.StatusOK, gin.H{"history": nonNil(rows), "byStaff": byStaff})
}

type scheduleHistory struct {
	ScheduleID string               `json:"scheduleId"`
	ClassDate  string               `json:"classDate"`
	StartTime  string               `json:"startTime"`
	EndTime    string               `json:"endTime"`
	Staff      []attendance.History `json:"staff"`
}

// ScheduleHistory returns history rows grouped by schedule.
func (h *Handler) ScheduleHistory(c *gin.Context) {
	rows, err := h.svc.History(c.Request.Context(), "")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": groupBySchedule(rows)})
}

func groupBySchedule(rows []attendance.History) []scheduleHistory {
	index := make(map[string]int)
	out := []scheduleHistory{}
	for _, r := range rows {
		i, ok := index[r.ScheduleID]
		if !ok {
			i = len(out)
			index[r.ScheduleID] = i
			out = append(out, scheduleHistory{
				ScheduleID: r.ScheduleID,
				ClassDate:  r.ClassDate,
				StartTime:  r.StartTime,
				EndTime:    r.EndTime,
			})
		}
		out[i].Staff = append(out[i].Staff, r)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].ClassDate != out[b].ClassDate {
			return out[a].ClassDate > out[b].ClassDate
		}
		return out[a].StartTime < out[b].StartTime
	})
	return out
}

// ---------- Reports ----------

func filterFrom(c *gin.Context) attendance.PresentFilter {
	return attendance.PresentFilter{StaffID: c.Query("staffId"), ScheduleID: c.Query("scheduleId")}
}

// PresentOn returns the students present on a date.
func (h *Handler) PresentOn(c *gin.Context) {
	ids, students, err := h.svc.PresentOn(c.Request.Context(), c.Param("date"), filterFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":              c.Param("date"),
		"presentStudentIds": nonNil(ids),
		"students":          nonNil(students),
	})
}

// Summary returns the roll-call summary of a date, structured and as text.
func (h *Handler) Summary(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context(), c.Param("date"), filterFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum, "text": sum.Text()})
}

// AttendanceDates lists every date with attendance activity.
func (h *Handler) AttendanceDates(c *gin.Context) {
	dates, err := h.svc.AttendanceDates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": nonNil(dates)})
}

// StudentMatrix returns the per-student attendance history.
func (h *Handler) StudentMatrix(c *gin.Context) {
	m, err := h.svc.StudentMatrix(c.Request.Context(), c.Query("classSection"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
