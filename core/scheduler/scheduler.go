// Package scheduler provides the deferral hook used to coalesce field change
// notifications. Work deferred during one scheduling quantum runs together
// when the quantum ends, which is an explicit call to Flush.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scheduler defers work to the end of the current scheduling quantum.
type Scheduler interface {
	Defer(fn func()) *Task
}

// Task is a unit of deferred work.
type Task struct {
	fn       func()
	canceled atomic.Bool
}

// Cancel prevents the task from running. Canceling a task that already ran
// is a no-op.
func (t *Task) Cancel() {
	if t != nil {
		t.canceled.Store(true)
	}
}

// Canceled reports whether Cancel was called.
func (t *Task) Canceled() bool {
	return t.canceled.Load()
}

// Queue is a FIFO scheduler. Tasks deferred while a flush is running are held
// for the next flush, so a task that defers more work never starves the caller.
type Queue struct {
	mu    sync.Mutex
	tasks []*Task
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Defer appends fn to the queue.
func (q *Queue) Defer(fn func()) *Task {
	t := &Task{fn: fn}

	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return t
}

// Pending returns the number of queued tasks, canceled ones included.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Ready is signaled whenever work is deferred.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Flush runs the tasks queued before the call, in order, on the calling
// goroutine. It returns how many tasks ran.
func (q *Queue) Flush() int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	ran := 0
	for _, t := range tasks {
		if t.Canceled() {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

// Drain flushes until no work is left. Bounded by maxRounds to stop runaway
// handlers that keep rescheduling themselves; maxRounds <= 0 means unbounded.
func (q *Queue) Drain(maxRounds int) int {
	total := 0
	for round := 0; maxRounds <= 0 || round < maxRounds; round++ {
		if q.Pending() == 0 {
			break
		}
		total += q.Flush()
	}
	return total
}

// Run flushes the queue every time work is deferred until ctx is done. Use it
// when a single goroutine owns every model bound to this queue.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.ready:
			q.Flush()
		}
	}
}
