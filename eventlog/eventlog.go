// Package eventlog is the front door for emitting events.
//
// LogEvent validates caller input, resolves defaults and hands the record
// to a queue.Scheduler; the scheduled job runs the dispatch pipeline.
// Validation failures are returned synchronously and nothing is scheduled.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/relay/dispatch"
	"github.com/pithecene-io/relay/log"
	"github.com/pithecene-io/relay/metrics"
	"github.com/pithecene-io/relay/queue"
	"github.com/pithecene-io/relay/types"
)

// Option configures a Client.
type Option func(*Client)

// WithMetrics counts logged and rejected events on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the clock used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client logs events.
type Client struct {
	pipeline  *dispatch.Pipeline
	scheduler queue.Scheduler
	logger    *log.Logger
	metrics   *metrics.Collector
	defaults  types.Defaults
	now       func() time.Time
}

// New creates a client. The default app name comes from the pipeline's
// configuration.
func New(pipeline *dispatch.Pipeline, scheduler queue.Scheduler, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		pipeline:  pipeline,
		scheduler: scheduler,
		logger:    logger,
		defaults:  types.Defaults{AppName: pipeline.Config().AppName},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build validates in and returns the resolved record without dispatching.
func (c *Client) Build(in types.Input) (*types.Record, error) {
	rec, err := types.NewRecord(in, c.defaults, c.now())
	if err != nil {
		c.metrics.IncEventRejected()
		fields := map[string]any{"event_name": in.EventName, "error": err.Error()}
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			fields["field"] = ve.Field
		}
		c.logger.Warn("event rejected", fields)
		return nil, err
	}
	return rec, nil
}

// LogEvent validates in and schedules its dispatch.
// Returns a *types.ValidationError for invalid input, or the scheduler's
// error when the job could not be accepted.
func (c *Client) LogEvent(ctx context.Context, in types.Input) (*types.Record, error) {
	rec, err := c.Build(in)
	if err != nil {
		return nil, err
	}

	if err := c.scheduler.Schedule(ctx, c.job(rec)); err != nil {
		c.logger.Error("event not scheduled", map[string]any{
			"record_id":  rec.ID,
			"event_name": rec.EventName,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("eventlog: schedule: %w", err)
	}

	c.metrics.IncEventLogged()
	return rec, nil
}

// Send validates in and dispatches it on the caller's goroutine.
func (c *Client) Send(ctx context.Context, in types.Input) (*types.Record, dispatch.Result, error) {
	rec, err := c.Build(in)
	if err != nil {
		return nil, dispatch.Result{}, err
	}
	c.metrics.IncEventLogged()
	return rec, c.pipeline.Dispatch(ctx, rec), nil
}

// job dispatches rec once. Destination failures are already logged and
// counted by the pipeline; they never fail the job, so a retrying scheduler
// does not re-send the event.
func (c *Client) job(rec *types.Record) queue.Job {
	return func(ctx context.Context) error {
		res := c.pipeline.Dispatch(ctx, rec)
		if n := res.Count(dispatch.StateFailed); n > 0 {
			c.logger.Warn("event dispatched with failed destinations", map[string]any{
				"record_id":  rec.ID,
				"event_name": rec.EventName,
				"failed":     n,
			})
		}
		return nil
	}
}
