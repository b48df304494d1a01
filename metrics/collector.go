// Package metrics provides in-process delivery counters.
//
// The Collector accumulates counters for the lifetime of a process. It is a
// leaf package with no internal dependencies: destination names are plain
// strings.
package metrics

import (
	"maps"
	"slices"
	"sync"
)

// DestinationCounts holds the per-destination outcome counters.
type DestinationCounts struct {
	Delivered int64
	Declined  int64
	Skipped   int64
	Failed    int64
}

// Total returns the number of dispatches that reached this destination name.
func (d DestinationCounts) Total() int64 {
	return d.Delivered + d.Declined + d.Skipped + d.Failed
}

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Front door
	EventsLogged   int64
	EventsRejected int64

	// Pipeline
	EventsDispatched int64
	Destinations     map[string]DestinationCounts
}

// DestinationNames returns the destination keys in sorted order.
func (s Snapshot) DestinationNames() []string {
	return slices.Sorted(maps.Keys(s.Destinations))
}

// Collector accumulates metrics.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	eventsLogged     int64
	eventsRejected   int64
	eventsDispatched int64
	destinations     map[string]*DestinationCounts
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{destinations: make(map[string]*DestinationCounts)}
}

// --- Front door ---

// IncEventLogged records an accepted log call.
func (c *Collector) IncEventLogged() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsLogged++
	c.mu.Unlock()
}

// IncEventRejected records a log call that failed validation.
func (c *Collector) IncEventRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsRejected++
	c.mu.Unlock()
}

// --- Pipeline ---

// IncEventDispatched records one pipeline run over a record.
func (c *Collector) IncEventDispatched() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDispatched++
	c.mu.Unlock()
}

// IncDelivered records an accepted capture.
func (c *Collector) IncDelivered(destination string) {
	c.bump(destination, func(d *DestinationCounts) { d.Delivered++ })
}

// IncDeclined records a capture the destination declined.
func (c *Collector) IncDeclined(destination string) {
	c.bump(destination, func(d *DestinationCounts) { d.Declined++ })
}

// IncSkipped records a destination that produced no instance.
func (c *Collector) IncSkipped(destination string) {
	c.bump(destination, func(d *DestinationCounts) { d.Skipped++ })
}

// IncFailed records a capture that errored, panicked or timed out.
func (c *Collector) IncFailed(destination string) {
	c.bump(destination, func(d *DestinationCounts) { d.Failed++ })
}

func (c *Collector) bump(destination string, inc func(*DestinationCounts)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destinations == nil {
		c.destinations = make(map[string]*DestinationCounts)
	}
	d, ok := c.destinations[destination]
	if !ok {
		d = &DestinationCounts{}
		c.destinations[destination] = d
	}
	inc(d)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Destinations: map[string]DestinationCounts{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dests := make(map[string]DestinationCounts, len(c.destinations))
	for name, d := range c.destinations {
		dests[name] = *d
	}

	return Snapshot{
		EventsLogged:     c.eventsLogged,
		EventsRejected:   c.eventsRejected,
		EventsDispatched: c.eventsDispatched,
		Destinations:     dests,
	}
}
