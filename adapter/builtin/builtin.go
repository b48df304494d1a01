// Package builtin registers the destinations shipped with relay.
package builtin

import (
	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/adapter/archive"
	"github.com/pithecene-io/relay/adapter/centralapi"
	"github.com/pithecene-io/relay/adapter/klaviyo"
	"github.com/pithecene-io/relay/adapter/posthog"
	"github.com/pithecene-io/relay/adapter/redis"
)

// Names lists the built-in destinations in registration order.
var Names = []string{
	centralapi.Name,
	posthog.Name,
	klaviyo.Name,
	redis.Name,
	archive.Name,
}

// Register adds every built-in destination to r.
func Register(r *adapter.Registry) {
	r.Register(centralapi.Name, centralapi.Kind{})
	r.Register(posthog.Name, posthog.Kind{})
	r.Register(klaviyo.Name, klaviyo.Kind{})
	r.Register(redis.Name, redis.Kind{})
	r.Register(archive.Name, archive.Kind{})
}

// NewRegistry returns a registry holding every built-in destination.
func NewRegistry() *adapter.Registry {
	r := adapter.NewRegistry()
	Register(r)
	return r
}
