// Package klaviyo implements the CRM metric destination.
//
// A record becomes one event-create request: the subject profile is built
// from an allow-list of customer_info fields, the event name is mapped to a
// metric name, and only metric-specific payload keys are forwarded.
// Records without an email are declined. Every internal failure is logged
// and reported as a decline; Capture never returns an error.
package klaviyo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
	"github.com/pithecene-io/relay/types"
)

// Name is the registry name of this destination.
const Name = "klaviyo"

// Metric names for mapped events.
const (
	MetricInstall        = "Install"
	MetricUninstall      = "Uninstall"
	MetricActivated      = "Activated"
	MetricConnectionLost = "Connection Lost"
)

// metricNames maps internal event names to metric names.
var metricNames = map[string]string{
	"app_installed":    MetricInstall,
	"app_uninstalled":  MetricUninstall,
	"user_acquisition": MetricActivated,
	"connection_lost":  MetricConnectionLost,
}

// metricPayloadKeys lists the payload keys forwarded per metric.
// Metrics without an entry (Install, unmapped names) forward none.
var metricPayloadKeys = map[string][]string{
	MetricActivated:      {"app_plan", "plan_value"},
	MetricUninstall:      {"app_plan", "plan_value"},
	MetricConnectionLost: {"app_plan", "plan_value"},
}

// Client performs the event-create call.
type Client interface {
	CreateEvent(ctx context.Context, req *EventRequest) error
}

// Adapter maps records to event-create requests.
type Adapter struct {
	adapter.Whitelist

	client Client
	logger *log.Logger
	now    func() time.Time
}

// New creates an adapter over client.
func New(client Client, logger *log.Logger) *Adapter {
	return &Adapter{client: client, logger: logger, now: time.Now}
}

// Capture sends rec as a metric event.
// Returns false without error when the record has no email, misses the
// whitelist, or when building or sending the request fails.
func (a *Adapter) Capture(ctx context.Context, rec *types.Record) (ok bool, _ error) {
	if !a.Allows(rec.EventName) {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("klaviyo error", map[string]any{
				"event_name": rec.EventName,
				"error":      fmt.Sprintf("panic: %v", r),
			})
			ok = false
		}
	}()

	req, hasEmail := BuildRequest(rec, a.now())
	if !hasEmail {
		a.logger.Warn("klaviyo: missing email in customer_info, skipping event", map[string]any{
			"event_name": rec.EventName,
		})
		return false, nil
	}

	if err := a.client.CreateEvent(ctx, req); err != nil {
		a.logger.Error("klaviyo error", map[string]any{
			"event_name": rec.EventName,
			"metric":     req.Data.Attributes.Metric.Data.Attributes.Name,
			"error_type": fmt.Sprintf("%T", err),
			"error":      err.Error(),
		})
		return false, nil
	}
	return true, nil
}

// Close closes the client if it holds resources.
func (a *Adapter) Close() error {
	if c, ok := a.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// MetricName maps an event name to its metric name.
// Unmapped names pass through unchanged.
func MetricName(eventName string) string {
	if m, ok := metricNames[eventName]; ok {
		return m
	}
	return eventName
}

// BuildRequest composes the event-create body for rec.
// Returns false when customer_info carries no email.
func BuildRequest(rec *types.Record, now time.Time) (*EventRequest, bool) {
	email, ok := rec.Info("email")
	if !ok {
		return nil, false
	}

	metric := MetricName(rec.EventName)
	ts := FormatTimestamp(rec.Timestamp, now)

	profile := BuildProfile(rec.CustomerInfo)
	profile["email"] = email

	return &EventRequest{
		Data: EventData{
			Type: "event",
			Attributes: EventAttributes{
				Profile: ProfileEnvelope{Data: ProfileData{
					Type:       "profile",
					Attributes: profile,
				}},
				Metric: MetricEnvelope{Data: MetricData{
					Type:       "metric",
					Attributes: MetricAttributes{Name: metric},
				}},
				Properties: BuildProperties(rec, metric, ts),
				Time:       ts,
			},
		},
	}, true
}

// BuildProfile maps the allow-listed customer_info fields to profile
// attributes. When first or last name is missing it is derived from the
// owner (or shop_owner) full name: first token, and last token when there
// is more than one.
func BuildProfile(info map[string]any) map[string]any {
	profile := make(map[string]any, 4)

	first, hasFirst := types.ScalarString(info["first_name"])
	last, hasLast := types.ScalarString(info["last_name"])

	if !hasFirst || !hasLast {
		owner, hasOwner := types.ScalarString(info["owner"])
		if !hasOwner {
			owner, hasOwner = types.ScalarString(info["shop_owner"])
		}
		if hasOwner {
			names := strings.Fields(owner)
			if !hasFirst && len(names) > 0 {
				first, hasFirst = names[0], true
			}
			if !hasLast && len(names) > 1 {
				last, hasLast = names[len(names)-1], true
			}
		}
	}

	if hasFirst {
		profile["first_name"] = first
	}
	if hasLast {
		profile["last_name"] = last
	}
	if phone, ok := types.ScalarString(info["phone"]); ok {
		profile["phone_number"] = phone
	}
	if id, ok := types.ScalarString(info["id"]); ok {
		profile["external_id"] = id
	}
	return profile
}

// BuildProperties returns the base event properties plus the payload keys
// allowed for metric.
func BuildProperties(rec *types.Record, metric, changedAt string) map[string]any {
	props := map[string]any{
		"app_name":     rec.AppName,
		"changed_at":   changedAt,
		"initiated_by": "user",
		"shop_domain":  rec.CustomerIdentifier,
	}
	for _, key := range metricPayloadKeys[metric] {
		if v, ok := rec.Payload[key]; ok {
			props[key] = v
		}
	}
	return props
}

// FormatTimestamp renders ts (or now when ts is zero) as UTC RFC 3339.
func FormatTimestamp(ts, now time.Time) string {
	if ts.IsZero() {
		ts = now
	}
	return ts.UTC().Format(time.RFC3339)
}

// Kind registers the CRM metric destination.
type Kind struct{}

// Available reports whether a private API key is configured.
func (Kind) Available(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.Klaviyo.PrivateAPIKey) != ""
}

// FromConfig builds an Adapter backed by an HTTPClient.
func (Kind) FromConfig(cfg *config.Config, deps adapter.Deps) (adapter.Adapter, error) {
	client, err := NewHTTPClient(ClientConfig{
		Host:     cfg.Klaviyo.Host,
		APIKey:   cfg.Klaviyo.PrivateAPIKey,
		Revision: cfg.Klaviyo.Revision,
		Timeout:  cfg.Klaviyo.Timeout.Duration,
	})
	if err != nil {
		return nil, err
	}
	return New(client, deps.Logger), nil
}

// Verify Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter     = (*Adapter)(nil)
	_ adapter.Whitelister = (*Adapter)(nil)
	_ adapter.Kind        = Kind{}
)
