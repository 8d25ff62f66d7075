package attendance

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"rollcall/internal/queue"
)

// Lifecycle event types published on the work queue.
const (
	EventRollSubmitted   = "roll.submitted"
	EventScheduleRetired = "schedule.retired"
	EventSweepCompleted  = "sweep.completed"
)

// Publisher is the part of a queue the core writes lifecycle events to.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// RetiredEvent is the payload of EventScheduleRetired.
type RetiredEvent struct {
	ScheduleID string `json:"scheduleId"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
}

// RollEvent is the payload of EventRollSubmitted.
type RollEvent struct {
	ScheduleID string `json:"scheduleId"`
	StaffID    string `json:"staffId"`
	Date       string `json:"date"`
	Present    int    `json:"present"`
	Absent     int    `json:"absent"`
}

// publish is best effort: a lost event never fails the operation that caused it.
func publish(ctx context.Context, p Publisher, logger zerolog.Logger, typ string, payload any) {
	if p == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn().Err(err).Str("event", typ).Msg("encode event failed")
		return
	}
	if err := p.Publish(ctx, queue.Message{Type: typ, Body: body}); err != nil {
		logger.Warn().Err(err).Str("event", typ).Msg("publish event failed")
	}
}
