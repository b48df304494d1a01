package adapter

// Whitelist is embedded by adapters to implement Whitelister.
// The zero value accepts every event.
type Whitelist struct {
	allowed map[string]struct{}
}

// SetWhitelist replaces the accepted event names.
// An empty slice removes the restriction.
func (w *Whitelist) SetWhitelist(events []string) {
	if len(events) == 0 {
		w.allowed = nil
		return
	}
	w.allowed = make(map[string]struct{}, len(events))
	for _, e := range events {
		w.allowed[e] = struct{}{}
	}
}

// Allows reports whether eventName passes the whitelist.
func (w *Whitelist) Allows(eventName string) bool {
	if len(w.allowed) == 0 {
		return true
	}
	_, ok := w.allowed[eventName]
	return ok
}
