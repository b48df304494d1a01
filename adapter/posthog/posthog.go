// Package posthog implements the analytics-stream destination.
//
// Each record becomes one capture message (distinct_id, event, properties,
// optional timestamp). The adapter enqueues it on a Transport and flushes
// immediately; nothing is batched across records. The production transport
// is the posthog-go client, whose failure callback is the delivery error hook.
package posthog

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/types"
)

// Name is the registry name of this destination.
const Name = "posthog"

// UnknownDistinctID is used when a record carries no subject identifier.
const UnknownDistinctID = "unknown"

// customerPrefix is prepended to every customer_info key in properties.
const customerPrefix = "customer_"

// Message is a single capture call.
type Message struct {
	DistinctID string         `json:"distinct_id"`
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
	// Timestamp is nil when the record carries none.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Transport queues and delivers capture messages.
// Delivery failures are reported through the transport's own error hook.
type Transport interface {
	Enqueue(msg Message)
	Flush(ctx context.Context)
}

// Adapter maps records to capture messages.
type Adapter struct {
	adapter.Whitelist

	transport Transport
}

// New creates an adapter over transport.
func New(transport Transport) *Adapter {
	return &Adapter{transport: transport}
}

// Capture enqueues rec and flushes the transport synchronously.
// Returns true once both calls return; transport failures do not change
// the result.
func (a *Adapter) Capture(ctx context.Context, rec *types.Record) (bool, error) {
	if !a.Allows(rec.EventName) {
		return false, nil
	}
	a.transport.Enqueue(BuildMessage(rec))
	a.transport.Flush(ctx)
	return true, nil
}

// Close closes the transport if it holds resources.
func (a *Adapter) Close() error {
	if c, ok := a.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BuildMessage maps rec to a capture message. It is a pure function of rec.
func BuildMessage(rec *types.Record) Message {
	msg := Message{
		DistinctID: DistinctID(rec),
		Event:      rec.EventName,
		Properties: BuildProperties(rec),
	}
	if !rec.Timestamp.IsZero() {
		ts := rec.Timestamp
		msg.Timestamp = &ts
	}
	return msg
}

// DistinctID picks the first non-empty of customer_identifier, external_id
// and customer_info.id, falling back to UnknownDistinctID.
func DistinctID(rec *types.Record) string {
	if id := strings.TrimSpace(rec.CustomerIdentifier); id != "" {
		return id
	}
	if id := strings.TrimSpace(rec.ExternalID); id != "" {
		return id
	}
	if id, ok := rec.Info("id"); ok {
		return id
	}
	return UnknownDistinctID
}

// BuildProperties flattens rec into capture properties.
// Later sources win on key collisions: base fields, then payload, then
// prefixed customer_info. Nil values are dropped.
func BuildProperties(rec *types.Record) map[string]any {
	props := make(map[string]any, 4+len(rec.Payload)+len(rec.CustomerInfo))
	props["app_name"] = rec.AppName
	props["event_type"] = rec.EventType
	props["event_value"] = rec.EventValue
	props["customer_identifier"] = rec.CustomerIdentifier

	for k, v := range rec.Payload {
		props[k] = v
	}
	for k, v := range rec.CustomerInfo {
		props[customerPrefix+k] = v
	}

	for k, v := range props {
		if v == nil {
			delete(props, k)
		}
	}
	return props
}

// Kind registers the analytics-stream destination.
type Kind struct{}

// Available reports whether a project API key is configured.
func (Kind) Available(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.PostHog.ProjectAPIKey) != ""
}

// FromConfig builds an Adapter backed by an SDKTransport.
func (Kind) FromConfig(cfg *config.Config, deps adapter.Deps) (adapter.Adapter, error) {
	transport, err := NewSDKTransport(TransportConfig{
		Host:    cfg.PostHog.Host,
		APIKey:  cfg.PostHog.ProjectAPIKey,
		Timeout: cfg.PostHog.Timeout.Duration,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return New(transport), nil
}

// Verify Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter     = (*Adapter)(nil)
	_ adapter.Whitelister = (*Adapter)(nil)
	_ adapter.Kind        = Kind{}
)
