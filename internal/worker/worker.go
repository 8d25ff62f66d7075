// Package worker consumes the event queue: it runs requested sweeps and
// records lifecycle events in the log.
package worker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"rollcall/internal/attendance"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
)

// Sweeper runs an unthrottled expiry sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (attendance.SweepResult, error)
}

// Worker drains a queue until its context ends.
type Worker struct {
	q       queue.Queue
	sweeper Sweeper
	log     zerolog.Logger
}

// New creates a worker.
func New(q queue.Queue, sweeper Sweeper) *Worker {
	return &Worker{q: q, sweeper: sweeper, log: logging.WithComponent("worker")}
}

// Run blocks until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info().Msg("worker started, waiting for messages")
	for msg := range messages {
		w.Handle(ctx, msg)
	}
	w.log.Info().Msg("worker stopped")
	return nil
}

// Handle processes one message.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) {
	switch msg.Type {
	case queue.TypeSweepRequested:
		res, err := w.sweeper.Sweep(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("requested sweep failed")
			return
		}
		w.log.Info().Int("expired", res.Expired).Int("retired", res.Retired).
			Int("backfilled", res.Backfilled).Int("failed", res.Failed).Msg("requested sweep done")

	case attendance.EventRollSubmitted:
		var ev attendance.RollEvent
		if !w.decode(msg, &ev) {
			return
		}
		w.log.Info().Str("schedule_id", ev.ScheduleID).Str("staff_id", ev.StaffID).Str("date", ev.Date).
			Int("present", ev.Present).Int("absent", ev.Absent).Msg("roll submitted")

	case attendance.EventScheduleRetired:
		var ev attendance.RetiredEvent
		if !w.decode(msg, &ev) {
			return
		}
		w.log.Info().Str("schedule_id", ev.ScheduleID).Str("date", ev.Date).Str("reason", ev.Reason).Msg("schedule retired")

	case attendance.EventSweepCompleted:
		var res attendance.SweepResult
		if !w.decode(msg, &res) {
			return
		}
		w.log.Debug().Int("expired", res.Expired).Int("retired", res.Retired).Msg("sweep completed")

	default:
		w.log.Warn().Str("type", msg.Type).Msg("unknown message type")
	}
}

func (w *Worker) decode(msg queue.Message, v any) bool {
	if err := json.Unmarshal(msg.Body, v); err != nil {
		w.log.Warn().Err(err).Str("type", msg.Type).Msg("malformed event")
		return false
	}
	return true
}
