// Package track turns attribute changes on a model into settings_change
// events.
//
// Each changed attribute outside the excluded set becomes one event named
// after the attribute (or "<table>.<attribute>" when prefixed), with the new
// value as event_value and {from, to} as payload. Subject fields come from
// the owning account through the configured attribute mappings.
package track

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/types"
)

// DefaultExcluded lists attributes that never produce events.
var DefaultExcluded = []string{"updated_at", "created_at", "id", "shop_id"}

// EventLogger accepts events; *eventlog.Client implements it.
type EventLogger interface {
	LogEvent(ctx context.Context, in types.Input) (*types.Record, error)
}

// Subject exposes the attributes of the account that owns a tracked model.
type Subject interface {
	Attribute(name string) (any, bool)
}

// Attributes is a map-backed Subject.
type Attributes map[string]any

// Attribute returns the named value.
func (a Attributes) Attribute(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Change is one attribute transition.
type Change struct {
	Attribute string
	From      any
	To        any
}

// Diff returns the attributes whose values differ between before and after,
// sorted by name. Attributes missing on one side compare as nil.
func Diff(before, after map[string]any) []Change {
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	var changes []Change
	for _, k := range slices.Sorted(maps.Keys(keys)) {
		from, to := before[k], after[k]
		if !reflect.DeepEqual(from, to) {
			changes = append(changes, Change{Attribute: k, From: from, To: to})
		}
	}
	return changes
}

// Options configures a Tracker for one model type.
type Options struct {
	// Table is the model's table name, used when Prefix is set.
	Table string
	// Prefix names events "<table>.<attribute>".
	Prefix bool
	// TrackCreates emits events for attributes set at creation.
	TrackCreates bool
	// Exclude adds attributes to DefaultExcluded.
	Exclude []string
}

// Tracker emits settings_change events for one model type.
type Tracker struct {
	events   EventLogger
	mappings config.AttributeMappings
	opts     Options
	excluded map[string]struct{}
}

// New creates a tracker. Mappings come from cfg with defaults applied.
func New(events EventLogger, cfg *config.Config, opts Options) *Tracker {
	if cfg == nil {
		cfg = &config.Config{}
	}
	excluded := make(map[string]struct{}, len(DefaultExcluded)+len(opts.Exclude))
	for _, name := range DefaultExcluded {
		excluded[name] = struct{}{}
	}
	for _, name := range opts.Exclude {
		excluded[name] = struct{}{}
	}
	return &Tracker{
		events:   events,
		mappings: cfg.WithDefaults().AttributeMappings,
		opts:     opts,
		excluded: excluded,
	}
}

// EventName returns the event name for attribute.
func (t *Tracker) EventName(attribute string) string {
	if t.opts.Prefix && t.opts.Table != "" {
		return t.opts.Table + "." + attribute
	}
	return attribute
}

// Excluded reports whether attribute is never tracked.
func (t *Tracker) Excluded(attribute string) bool {
	_, ok := t.excluded[attribute]
	return ok
}

// Track emits one event per tracked change on an update.
// Every change is attempted; failures are joined into the returned error.
func (t *Tracker) Track(ctx context.Context, subject Subject, changes []Change) ([]*types.Record, error) {
	var (
		recs []*types.Record
		errs []error
	)
	for _, ch := range changes {
		if t.Excluded(ch.Attribute) {
			continue
		}
		rec, err := t.events.LogEvent(ctx, t.input(subject, ch))
		if err != nil {
			errs = append(errs, fmt.Errorf("track %s: %w", ch.Attribute, err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errors.Join(errs...)
}

// TrackCreate is Track for a newly created model. It emits nothing unless
// TrackCreates is set.
func (t *Tracker) TrackCreate(ctx context.Context, subject Subject, changes []Change) ([]*types.Record, error) {
	if !t.opts.TrackCreates {
		return nil, nil
	}
	return t.Track(ctx, subject, changes)
}

func (t *Tracker) input(subject Subject, ch Change) types.Input {
	in := types.Input{
		EventName:  t.EventName(ch.Attribute),
		EventType:  types.EventTypeSettingsChange,
		EventValue: ch.To,
		Payload:    map[string]any{"from": ch.From, "to": ch.To},
		CustomerInfo: map[string]any{
			"name":  t.lookup(subject, t.mappings.Name),
			"email": t.lookup(subject, t.mappings.Email),
			"owner": t.lookup(subject, t.mappings.Owner),
		},
	}
	if domain, ok := types.ScalarString(t.lookup(subject, t.mappings.Domain)); ok {
		in.CustomerIdentifier = domain
	}
	return in
}

func (t *Tracker) lookup(subject Subject, name string) any {
	if subject == nil {
		return nil
	}
	v, _ := subject.Attribute(name)
	return v
}
