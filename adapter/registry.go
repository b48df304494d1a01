package adapter

import (
	"sync"

	"github.com/pithecene-io/relay/config"
)

// Registry maps destination names to Kinds.
// It is safe for concurrent use, but is expected to be populated at startup
// and only read while dispatching.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// Register maps name to kind. Registering an existing name replaces the
// previous kind and keeps its position in All. A nil kind is ignored.
func (r *Registry) Register(name string, kind Kind) {
	if kind == nil {
		return
	}
	name = config.NormalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[name]; !exists {
		r.order = append(r.order, name)
	}
	r.kinds[name] = kind
}

// Get returns the kind registered under name.
func (r *Registry) Get(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[config.NormalizeName(name)]
	return kind, ok
}

// Registered reports whether name has a kind.
func (r *Registry) Registered(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// All returns registered names in registration order.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Reset removes every registration.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = make(map[string]Kind)
	r.order = nil
}
