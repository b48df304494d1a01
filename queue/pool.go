package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
)

// Backoff bounds for retries.
const (
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 10 * time.Second
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the number of concurrent workers (default 4).
	Workers int
	// Capacity is the number of jobs that may wait (default 256).
	Capacity int
	// MaxAttempts is the total attempts per job, first run included (default 3).
	MaxAttempts int
	// BaseBackoff is the delay before the first retry; it doubles per retry
	// up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Logger      *log.Logger
}

// PoolConfigFrom maps the queue section of cfg.
func PoolConfigFrom(cfg config.QueueConfig, logger *log.Logger) PoolConfig {
	return PoolConfig{
		Workers:     cfg.Workers,
		Capacity:    cfg.Capacity,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	}
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Scheduled int64
	Succeeded int64
	Retried   int64
	// Exhausted counts jobs that failed on every attempt.
	Exhausted int64
}

// Pool runs jobs on a fixed set of workers.
//
// Thread safety:
//   - mu guards closed and is held for reading while enqueueing, so Close
//     never closes the channel under a concurrent send
//   - statsMu guards the counters
type Pool struct {
	cfg    PoolConfig
	logger *log.Logger
	jobs   chan Job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	statsMu sync.Mutex
	stats   Stats
}

// NewPool starts a pool. Zero config fields take defaults.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultQueueWorkers
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = config.DefaultQueueCapacity
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = config.DefaultQueueMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.BaseBackoff)
	}

	p := &Pool{
		cfg:    cfg,
		logger: cfg.Logger,
		jobs:   make(chan Job, cfg.Capacity),
	}
	p.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go p.worker()
	}
	return p
}

// Schedule enqueues job without blocking.
// The job runs detached from ctx cancellation but keeps its values.
func (p *Pool) Schedule(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	detached := context.WithoutCancel(ctx)
	select {
	case p.jobs <- func(context.Context) error { return job(detached) }:
		p.bump(func(s *Stats) { s.Scheduled++ })
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs, then waits until every queued job has run
// to completion (retries included).
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

// run executes job up to MaxAttempts times.
func (p *Pool) run(job Job) {
	ctx := context.Background()
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			p.bump(func(s *Stats) { s.Retried++ })
			time.Sleep(p.backoff(attempt))
		}

		lastErr = p.safeRun(ctx, job)
		if lastErr == nil {
			p.bump(func(s *Stats) { s.Succeeded++ })
			return
		}

		p.logger.Warn("job attempt failed", map[string]any{
			"attempt":      attempt,
			"max_attempts": p.cfg.MaxAttempts,
			"error":        lastErr.Error(),
		})
	}

	p.bump(func(s *Stats) { s.Exhausted++ })
	p.logger.Error("job failed after retries", map[string]any{
		"attempts": p.cfg.MaxAttempts,
		"error":    lastErr.Error(),
	})
}

// backoff returns the delay before attempt (2-based).
func (p *Pool) backoff(attempt int) time.Duration {
	shift := attempt - 2
	if shift >= 30 {
		return p.cfg.MaxBackoff
	}
	d := p.cfg.BaseBackoff << uint(shift)
	if d <= 0 || d > p.cfg.MaxBackoff {
		return p.cfg.MaxBackoff
	}
	return d
}

func (p *Pool) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}

func (p *Pool) bump(fn func(*Stats)) {
	p.statsMu.Lock()
	fn(&p.stats)
	p.statsMu.Unlock()
}
