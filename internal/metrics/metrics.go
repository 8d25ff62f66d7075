// Package metrics holds the Prometheus collectors for roll submission,
// schedule retirement and expiry sweeps.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_submissions_total",
			Help: "Attendance submissions by kind (single, roll, admin) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	RecordsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_records_written_total",
			Help: "Attendance records written by status",
		},
		[]string{"status"},
	)

	SchedulesRetiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_schedules_retired_total",
			Help: "Schedules retired by reason (reconciled, expired)",
		},
		[]string{"reason"},
	)

	SweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rollcall_sweep_runs_total",
			Help: "Expiry sweeps executed",
		},
	)

	SweepFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_sweep_failures_total",
			Help: "Isolated sweep failures by stage",
		},
		[]string{"stage"},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollcall_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(RecordsWrittenTotal)
	prometheus.MustRegister(SchedulesRetiredTotal)
	prometheus.MustRegister(SweepRunsTotal)
	prometheus.MustRegister(SweepFailuresTotal)
	prometheus.MustRegister(SweepDuration)
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds into h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
