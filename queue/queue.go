// Package queue runs dispatch jobs off the caller's path.
//
// A Scheduler accepts a Job and runs it. Inline runs jobs on the caller's
// goroutine; Pool runs them on a fixed set of workers behind a bounded buffer
// and retries a job with exponential backoff only when the job itself
// returns an error. Event dispatch jobs report destination failures through
// their outcomes and never return one.
package queue

import (
	"context"
	"errors"

	"github.com/pithecene-io/relay/log"
)

// Job is a unit of background work. A non-nil error asks the scheduler to
// retry; jobs must therefore be safe to run more than once.
type Job func(ctx context.Context) error

// Scheduler accepts jobs for execution.
type Scheduler interface {
	// Schedule hands job to the scheduler. A nil error means the job was
	// accepted, not that it succeeded.
	Schedule(ctx context.Context, job Job) error
}

var (
	// ErrQueueFull is returned when the buffer has no room.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("queue closed")
)

// Inline runs every job synchronously, exactly once.
type Inline struct {
	Logger *log.Logger
}

// Schedule runs job and waits for it. Job errors are logged, not returned;
// only a done context prevents the job from running.
func (s Inline) Schedule(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := job(ctx); err != nil {
		s.Logger.Warn("inline job failed", map[string]any{"error": err.Error()})
	}
	return nil
}

var (
	_ Scheduler = Inline{}
	_ Scheduler = (*Pool)(nil)
)
