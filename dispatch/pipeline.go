// Package dispatch fans a record out to its destinations.
//
// For every destination in the effective list the pipeline resolves an
// adapter through the Factory and runs its Capture inside an isolation
// boundary: errors and panics are recovered, each call is bounded by a
// timeout, and an optional per-destination circuit breaker fast-fails
// destinations that keep failing. Every destination ends in exactly one
// terminal Outcome. Dispatch itself never returns an error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
	"github.com/pithecene-io/relay/metrics"
	"github.com/pithecene-io/relay/types"
)

// ErrPanic wraps a panic recovered from a destination.
var ErrPanic = errors.New("destination panicked")

// State is the terminal state of one destination.
type State string

const (
	// StateSkipped means no instance was built (see Outcome.SkipReason).
	StateSkipped State = "skipped"
	// StateCompleted means Capture returned without error.
	StateCompleted State = "completed"
	// StateFailed means Capture errored, panicked, timed out or was
	// rejected by an open circuit breaker.
	StateFailed State = "failed"
)

// Outcome is the result for one destination.
type Outcome struct {
	Destination string             `json:"destination" yaml:"destination"`
	State       State              `json:"state" yaml:"state"`
	Accepted    bool               `json:"accepted" yaml:"accepted"`
	SkipReason  adapter.SkipReason `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs  int64              `json:"duration_ms" yaml:"duration_ms"`

	// Err is the failure cause when State is StateFailed.
	Err error `json:"-" yaml:"-"`
}

// Result holds one Outcome per destination, in effective list order.
type Result struct {
	RecordID string    `json:"record_id" yaml:"record_id"`
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`
}

// Count returns how many outcomes are in state s.
func (r Result) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// Delivered returns how many destinations accepted the record.
func (r Result) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == StateCompleted && o.Accepted {
			n++
		}
	}
	return n
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// Pipeline dispatches records. Safe for concurrent use.
type Pipeline struct {
	cfg      *config.Config
	factory  *adapter.Factory
	logger   *log.Logger
	metrics  *metrics.Collector
	breakers *breakers
	timeout  time.Duration
	parallel int
}

// New creates a pipeline over registry. Defaults are applied to cfg.
func New(cfg *config.Config, registry *adapter.Registry, logger *log.Logger, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg = cfg.WithDefaults()

	p := &Pipeline{
		cfg:      cfg,
		factory:  adapter.NewFactory(registry, logger),
		logger:   logger,
		breakers: newBreakers(cfg.Dispatch.Breaker, logger),
		timeout:  cfg.Dispatch.Timeout.Duration,
		parallel: cfg.Dispatch.Parallel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Destinations returns the effective destination list for rec:
// rec.Destinations when non-nil, otherwise the configured list.
func (p *Pipeline) Destinations(rec *types.Record) []string {
	if rec != nil && rec.Destinations != nil {
		return config.NormalizeNames(rec.Destinations)
	}
	return p.cfg.Destinations
}

// Dispatch delivers rec to every destination in its effective list and
// returns once each has reached a terminal state.
func (p *Pipeline) Dispatch(ctx context.Context, rec *types.Record) Result {
	names := p.Destinations(rec)
	res := Result{RecordID: rec.ID, Outcomes: make([]Outcome, len(names))}
	p.metrics.IncEventDispatched()

	if p.parallel <= 1 || len(names) <= 1 {
		for i, name := range names {
			res.Outcomes[i] = p.deliver(ctx, name, rec)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.parallel)
		for i, name := range names {
			g.Go(func() error {
				res.Outcomes[i] = p.deliver(ctx, name, rec)
				return nil
			})
		}
		_ = g.Wait()
	}

	p.logger.Debug("dispatch complete", map[string]any{
		"record_id":    rec.ID,
		"event_name":   rec.EventName,
		"destinations": len(names),
		"delivered":    res.Delivered(),
		"skipped":      res.Count(StateSkipped),
		"failed":       res.Count(StateFailed),
	})
	return res
}

// BreakerState reports the circuit breaker state of destination
// ("closed", "half-open" or "open"). Always "closed" when disabled.
func (p *Pipeline) BreakerState(destination string) string {
	return p.breakers.state(config.NormalizeName(destination)).String()
}

// deliver runs one destination to a terminal outcome.
func (p *Pipeline) deliver(ctx context.Context, name string, rec *types.Record) (out Outcome) {
	out.Destination = name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = p.fail(out, rec, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		out.DurationMs = time.Since(start).Milliseconds()
	}()

	a, reason := p.factory.Build(name, p.cfg)
	if a == nil {
		out.State = StateSkipped
		out.SkipReason = reason
		p.metrics.IncSkipped(name)
		return out
	}

	accepted, err := p.breakers.execute(name, func() (bool, error) {
		return p.capture(ctx, a, rec.Clone())
	})
	if err != nil {
		return p.fail(out, rec, err)
	}

	out.State = StateCompleted
	out.Accepted = accepted
	if accepted {
		p.metrics.IncDelivered(name)
	} else {
		p.metrics.IncDeclined(name)
	}
	return out
}

func (p *Pipeline) fail(out Outcome, rec *types.Record, err error) Outcome {
	out.State = StateFailed
	out.Accepted = false
	out.SkipReason = adapter.SkipNone
	out.Err = err
	out.Error = err.Error()

	p.logger.Error("destination capture failed", map[string]any{
		"destination": out.Destination,
		"record_id":   rec.ID,
		"event_name":  rec.EventName,
		"error_type":  fmt.Sprintf("%T", err),
		"error":       err.Error(),
	})
	p.metrics.IncFailed(out.Destination)
	return out
}

type captureResult struct {
	accepted bool
	err      error
}

// capture runs a.Capture in its own goroutine under the dispatch timeout.
// The pipeline stops waiting at the deadline even if the adapter ignores
// its context. The adapter is closed once Capture returns.
func (p *Pipeline) capture(ctx context.Context, a adapter.Adapter, rec *types.Record) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan captureResult, 1)
	go func() {
		var res captureResult
		defer func() {
			if r := recover(); r != nil {
				res = captureResult{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
			closeAdapter(a)
			done <- res
		}()
		res.accepted, res.err = a.Capture(ctx, rec)
	}()

	select {
	case res := <-done:
		return res.accepted, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.accepted, res.err
		default:
		}
		return false, fmt.Errorf("capture: %w", ctx.Err())
	}
}

func closeAdapter(a adapter.Adapter) {
	c, ok := a.(io.Closer)
	if !ok {
		return
	}
	defer func() { _ = recover() }()
	_ = c.Close()
}
