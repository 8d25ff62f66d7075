package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (attendance.SweepResult, error) {
	s.calls.Add(1)
	return attendance.SweepResult{Expired: 1, Retired: 1}, s.err
}

func TestRunHandlesSweepRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(8)
	sw := &countingSweeper{}
	w := New(q, sw)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: attendance.EventScheduleRetired, Body: []byte(`{"scheduleId":"x"}`)}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeSweepRequested}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeSweepRequested}))

	assert.Eventually(t, func() bool { return sw.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestHandleToleratesBadInput(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	w := New(queue.NewInMemory(1), sw)
	ctx := context.Background()

	w.Handle(ctx, queue.Message{Type: attendance.EventRollSubmitted, Body: []byte("{not json")})
	w.Handle(ctx, queue.Message{Type: "mystery"})
	w.Handle(ctx, queue.Message{Type: queue.TypeSweepRequested})
	assert.Equal(t, int32(1), sw.calls.Load())
}

// chattySweeper publishes more events than the queue holds, the way a large
// sweep does when it shares the worker's in-memory queue.
type chattySweeper struct {
	q     queue.Queue
	count int
}

func (s *chattySweeper) Sweep(ctx context.Context) (attendance.SweepResult, error) {
	for i := 0; i < s.count; i++ {
		_ = s.q.Publish(ctx, queue.Message{Type: attendance.EventScheduleRetired, Body: []byte(`{}`)})
	}
	return attendance.SweepResult{Expired: s.count, Retired: s.count}, nil
}

func TestSweepPublishingIntoOwnQueueDoesNotBlock(t *testing.T) {
	q := queue.NewInMemory(2)
	w := New(q, &chattySweeper{q: q, count: 10})

	done := make(chan struct{})
	go func() {
		w.Handle(context.Background(), queue.Message{Type: queue.TypeSweepRequested})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep blocked on its own queue")
	}
}
