// Package types defines core domain types for relay.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRecord is the sentinel wrapped by every ValidationError.
var ErrInvalidRecord = errors.New("invalid record")

// ValidationError reports a required record field that was missing or blank.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s is required", e.Field)
}

// Unwrap allows errors.Is(err, ErrInvalidRecord).
func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// Input carries caller-supplied event fields before validation and defaulting.
// Zero values mean "not supplied".
type Input struct {
	AppName            string
	EventName          string
	EventType          string
	EventValue         any
	CustomerIdentifier string
	CustomerInfo       map[string]any
	Payload            map[string]any
	Timestamp          time.Time
	ExternalID         string
	// Destinations overrides the configured destination list when non-nil.
	Destinations []string
}

// Defaults are process-wide values merged into an Input when the caller
// leaves the corresponding field empty.
type Defaults struct {
	AppName string
}

// Record is a validated event flowing through the dispatch pipeline.
// Records are treated as immutable once built; use Clone before handing
// one to code that may modify it.
type Record struct {
	ID                 string         `json:"id" msgpack:"id"`
	AppName            string         `json:"app_name" msgpack:"app_name"`
	EventName          string         `json:"event_name" msgpack:"event_name"`
	EventType          string         `json:"event_type" msgpack:"event_type"`
	EventValue         any            `json:"event_value" msgpack:"event_value"`
	CustomerIdentifier string         `json:"customer_identifier" msgpack:"customer_identifier"`
	CustomerInfo       map[string]any `json:"customer_info" msgpack:"customer_info"`
	Payload            map[string]any `json:"payload" msgpack:"payload"`
	Timestamp          time.Time      `json:"timestamp" msgpack:"timestamp"`
	ExternalID         string         `json:"external_id,omitempty" msgpack:"external_id,omitempty"`
	Destinations       []string       `json:"destinations,omitempty" msgpack:"destinations,omitempty"`
}

// NewRecord validates in, applies defaults and returns a complete Record.
// now is used when in.Timestamp is zero.
//
// This is the single point where optional fields are resolved. A nil error
// guarantees AppName, EventName, EventType and CustomerIdentifier are
// non-blank and that CustomerInfo and Payload are non-nil.
func NewRecord(in Input, defaults Defaults, now time.Time) (*Record, error) {
	if isBlank(in.EventName) {
		return nil, &ValidationError{Field: "event_name"}
	}
	if isBlank(in.EventType) {
		return nil, &ValidationError{Field: "event_type"}
	}
	if isBlank(in.CustomerIdentifier) {
		return nil, &ValidationError{Field: "customer_identifier"}
	}

	appName := in.AppName
	if isBlank(appName) {
		appName = defaults.AppName
	}
	if isBlank(appName) {
		return nil, &ValidationError{Field: "app_name"}
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}

	rec := &Record{
		ID:                 uuid.NewString(),
		AppName:            appName,
		EventName:          in.EventName,
		EventType:          in.EventType,
		EventValue:         in.EventValue,
		CustomerIdentifier: in.CustomerIdentifier,
		CustomerInfo:       copyMap(in.CustomerInfo),
		Payload:            copyMap(in.Payload),
		Timestamp:          ts,
		ExternalID:         in.ExternalID,
	}
	if in.Destinations != nil {
		rec.Destinations = slices.Clone(in.Destinations)
	}
	return rec, nil
}

// Clone returns a copy whose maps and slices are independent of r.
// Map values are scalars, so a shallow map copy is sufficient.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.CustomerInfo = copyMap(r.CustomerInfo)
	c.Payload = copyMap(r.Payload)
	if r.Destinations != nil {
		c.Destinations = slices.Clone(r.Destinations)
	}
	return &c
}

// Info returns the customer_info value for key as a non-empty string.
func (r *Record) Info(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	return ScalarString(r.CustomerInfo[key])
}

// ScalarString renders a scalar map value as a string.
// Returns false for nil values and blank strings.
func ScalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		if isBlank(val) {
			return "", false
		}
		return val, true
	case fmt.Stringer:
		s := val.String()
		return s, !isBlank(s)
	default:
		return fmt.Sprint(val), true
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
