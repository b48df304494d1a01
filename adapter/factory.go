package adapter

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
)

// SkipReason explains why the Factory produced no instance.
type SkipReason string

const (
	// SkipNone means an instance was built.
	SkipNone SkipReason = ""
	// SkipUnknown means no kind is registered under the name.
	SkipUnknown SkipReason = "unknown_adapter"
	// SkipNotConfigured means the destination lacks required credentials.
	SkipNotConfigured SkipReason = "not_configured"
	// SkipInvalidConfig means construction failed on present configuration.
	SkipInvalidConfig SkipReason = "invalid_config"
)

// Factory builds adapter instances from a registry and configuration.
// It is the single place where "destination not usable" becomes "skip".
type Factory struct {
	registry *Registry
	logger   *log.Logger
}

// NewFactory creates a factory over registry.
func NewFactory(registry *Registry, logger *log.Logger) *Factory {
	return &Factory{registry: registry, logger: logger}
}

// Build resolves name and constructs an instance.
// Returns a nil Adapter and the reason when the destination cannot be used;
// it never panics or errors on misconfiguration. A panic raised by a kind
// while checking availability or constructing is reported as
// SkipInvalidConfig.
func (f *Factory) Build(name string, cfg *config.Config) (a Adapter, reason SkipReason) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("destination configuration unusable", map[string]any{
				"destination": name,
				"error":       fmt.Sprintf("panic: %v", r),
			})
			a, reason = nil, SkipInvalidConfig
		}
	}()

	kind, ok := f.registry.Get(name)
	if !ok {
		f.logger.Warn("unknown adapter", map[string]any{"destination": name})
		return nil, SkipUnknown
	}

	if !kind.Available(cfg) {
		f.logger.Debug("destination not configured", map[string]any{"destination": name})
		return nil, SkipNotConfigured
	}

	a, err := kind.FromConfig(cfg, Deps{Logger: f.logger.With(map[string]any{"destination": name})})
	if err == nil && a == nil {
		err = errors.New("constructor returned no adapter")
	}
	if err != nil {
		f.logger.Error("destination configuration unusable", map[string]any{
			"destination": name,
			"error":       err.Error(),
		})
		return nil, SkipInvalidConfig
	}

	if w, ok := a.(Whitelister); ok {
		w.SetWhitelist(cfg.Whitelist(name))
	}

	return a, SkipNone
}
