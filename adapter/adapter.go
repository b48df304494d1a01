// Package adapter defines the destination adapter boundary.
//
// A destination is registered under a name as a Kind. The Factory turns a
// Kind plus configuration into an Adapter instance for a single dispatch;
// the Adapter transforms a record into the destination's wire request and
// performs the call.
package adapter

import (
	"context"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
	"github.com/pithecene-io/relay/types"
)

// Deps carries process-level collaborators handed to FromConfig.
type Deps struct {
	Logger *log.Logger
}

// Kind describes one destination implementation.
type Kind interface {
	// Available reports whether cfg holds every credential the destination
	// requires. Must be pure: no I/O.
	Available(cfg *config.Config) bool

	// FromConfig constructs an instance from configuration only.
	// Only called when Available is true; errors mean the configuration is
	// present but unusable (e.g. an unparsable URL).
	FromConfig(cfg *config.Config, deps Deps) (Adapter, error)
}

// Adapter delivers records to one destination.
// Implementations must treat rec as read-only.
type Adapter interface {
	// Capture performs the destination call.
	// Returns (true, nil) on acknowledged success and (false, nil) when the
	// destination declines the record under its own rules. A non-nil error
	// reports an unexpected transport or API failure.
	// Must respect context cancellation and deadlines.
	Capture(ctx context.Context, rec *types.Record) (bool, error)
}

// Whitelister is implemented by adapters that accept an event-name
// whitelist. The Factory fills it from configuration.
type Whitelister interface {
	SetWhitelist(events []string)
}
