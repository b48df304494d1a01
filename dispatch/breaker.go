package dispatch

import (
	"sync"

	"github.com/sony/gobreaker"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
)

// breakers holds one circuit breaker per destination name.
// A nil *breakers disables breaking.
type breakers struct {
	cfg    config.BreakerConfig
	logger *log.Logger

	mu  sync.RWMutex
	set map[string]*gobreaker.CircuitBreaker
}

func newBreakers(cfg config.BreakerConfig, logger *log.Logger) *breakers {
	if !cfg.Enabled {
		return nil
	}
	return &breakers{
		cfg:    cfg,
		logger: logger,
		set:    make(map[string]*gobreaker.CircuitBreaker),
	}
}

// get returns the breaker for destination, creating it on first use.
func (b *breakers) get(destination string) *gobreaker.CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.set[destination]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok = b.set[destination]; ok {
		return cb
	}

	threshold := b.cfg.ConsecutiveFailures
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        destination,
		MaxRequests: 1,
		Timeout:     b.cfg.OpenTimeout.Duration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed", map[string]any{
				"destination": name,
				"from":        from.String(),
				"to":          to.String(),
			})
		},
	})
	b.set[destination] = cb
	return cb
}

// execute runs fn through the destination's breaker. Declines count as
// successes; only errors trip the breaker.
func (b *breakers) execute(destination string, fn func() (bool, error)) (bool, error) {
	if b == nil {
		return fn()
	}
	res, err := b.get(destination).Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return false, err
	}
	accepted, _ := res.(bool)
	return accepted, nil
}

// state reports the breaker state for destination; closed when none exists.
func (b *breakers) state(destination string) gobreaker.State {
	if b == nil {
		return gobreaker.StateClosed
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cb, ok := b.set[destination]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
