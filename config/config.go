package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults applied by WithDefaults.
const (
	DefaultDispatchTimeout     = 15 * time.Second
	DefaultDestinationTimeout  = 10 * time.Second
	DefaultBreakerFailures     = 5
	DefaultBreakerOpenTimeout  = 30 * time.Second
	DefaultQueueWorkers        = 4
	DefaultQueueCapacity       = 256
	DefaultQueueMaxAttempts    = 3
	DefaultPostHogHost         = "https://eu.i.posthog.com"
	DefaultKlaviyoHost         = "https://a.klaviyo.com"
	DefaultKlaviyoRevision     = "2024-10-15"
	DefaultRedisChannel        = "relay:events"
	DefaultRedisFormat         = "json"
	DefaultArchiveContentType  = "application/json"
	defaultAttributeMapDomain  = "myshopify_domain"
	defaultAttributeMapName    = "name"
	defaultAttributeMapEmail   = "email"
	defaultAttributeMapOwner   = "shop_owner"
)

// Config represents a relay.yaml configuration file.
// It is built once at startup and read concurrently by every dispatch.
type Config struct {
	// AppName is the default app name for records that do not set one.
	AppName string `yaml:"app_name"`
	// Destinations is the ordered fan-out list used when a record carries
	// no override.
	Destinations []string `yaml:"destinations"`

	CentralAPI CentralAPIConfig `yaml:"central_api"`
	PostHog    PostHogConfig    `yaml:"posthog"`
	Klaviyo    KlaviyoConfig    `yaml:"klaviyo"`
	Redis      RedisConfig      `yaml:"redis"`
	Archive    ArchiveConfig    `yaml:"archive"`

	// Whitelists maps a destination name to the event names it accepts.
	// Destinations without an entry accept every event.
	Whitelists map[string][]string `yaml:"whitelists,omitempty"`
	// AttributeMappings names the subject attributes used by change tracking.
	AttributeMappings AttributeMappings `yaml:"attribute_mappings"`

	Dispatch DispatchConfig `yaml:"dispatch"`
	Queue    QueueConfig    `yaml:"queue"`
}

// CentralAPIConfig configures the central event API destination.
type CentralAPIConfig struct {
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	Timeout   Duration `yaml:"timeout,omitempty"`
}

// PostHogConfig configures the analytics-stream destination.
type PostHogConfig struct {
	Host          string   `yaml:"host"`
	ProjectAPIKey string   `yaml:"project_api_key"`
	Timeout       Duration `yaml:"timeout,omitempty"`
}

// KlaviyoConfig configures the CRM metric destination.
type KlaviyoConfig struct {
	Host          string   `yaml:"host"`
	PrivateAPIKey string   `yaml:"private_api_key"`
	Revision      string   `yaml:"revision"`
	Timeout       Duration `yaml:"timeout,omitempty"`
}

// RedisConfig configures the pub/sub destination.
type RedisConfig struct {
	// URL format: redis://[:password@]host:port[/db]
	URL     string   `yaml:"url"`
	Channel string   `yaml:"channel,omitempty"`
	Format  string   `yaml:"format,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// ArchiveConfig configures the S3 archive destination.
type ArchiveConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AttributeMappings maps subject roles to attribute names on the tracked model.
type AttributeMappings struct {
	Domain string `yaml:"domain"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Owner  string `yaml:"owner"`
}

// DispatchConfig tunes the dispatch pipeline.
type DispatchConfig struct {
	// Parallel is the max concurrent destination captures (<=1 is sequential).
	Parallel int `yaml:"parallel"`
	// Timeout bounds each destination capture.
	Timeout Duration      `yaml:"timeout,omitempty"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the optional per-destination circuit breaker.
type BreakerConfig struct {
	Enabled             bool     `yaml:"enabled"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	OpenTimeout         Duration `yaml:"open_timeout,omitempty"`
}

// QueueConfig configures the in-process background scheduler.
type QueueConfig struct {
	Workers     int `yaml:"workers"`
	Capacity    int `yaml:"capacity"`
	MaxAttempts int `yaml:"max_attempts"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// WithDefaults returns a copy of c with unset tunables filled in and
// destination names normalised. Credentials are never defaulted.
func (c Config) WithDefaults() *Config {
	out := c
	out.Destinations = NormalizeNames(c.Destinations)

	if c.Whitelists != nil {
		out.Whitelists = make(map[string][]string, len(c.Whitelists))
		for name, events := range c.Whitelists {
			out.Whitelists[NormalizeName(name)] = events
		}
	}

	if out.PostHog.Host == "" {
		out.PostHog.Host = DefaultPostHogHost
	}
	if out.Klaviyo.Host == "" {
		out.Klaviyo.Host = DefaultKlaviyoHost
	}
	if out.Klaviyo.Revision == "" {
		out.Klaviyo.Revision = DefaultKlaviyoRevision
	}
	if out.Redis.Channel == "" {
		out.Redis.Channel = DefaultRedisChannel
	}
	if out.Redis.Format == "" {
		out.Redis.Format = DefaultRedisFormat
	}

	if out.AttributeMappings.Domain == "" {
		out.AttributeMappings.Domain = defaultAttributeMapDomain
	}
	if out.AttributeMappings.Name == "" {
		out.AttributeMappings.Name = defaultAttributeMapName
	}
	if out.AttributeMappings.Email == "" {
		out.AttributeMappings.Email = defaultAttributeMapEmail
	}
	if out.AttributeMappings.Owner == "" {
		out.AttributeMappings.Owner = defaultAttributeMapOwner
	}

	if out.Dispatch.Timeout.Duration <= 0 {
		out.Dispatch.Timeout.Duration = DefaultDispatchTimeout
	}
	if out.Dispatch.Breaker.ConsecutiveFailures == 0 {
		out.Dispatch.Breaker.ConsecutiveFailures = DefaultBreakerFailures
	}
	if out.Dispatch.Breaker.OpenTimeout.Duration <= 0 {
		out.Dispatch.Breaker.OpenTimeout.Duration = DefaultBreakerOpenTimeout
	}

	if out.Queue.Workers <= 0 {
		out.Queue.Workers = DefaultQueueWorkers
	}
	if out.Queue.Capacity <= 0 {
		out.Queue.Capacity = DefaultQueueCapacity
	}
	if out.Queue.MaxAttempts <= 0 {
		out.Queue.MaxAttempts = DefaultQueueMaxAttempts
	}
	return &out
}

// Validate reports structural problems. Missing credentials are not errors:
// a destination without credentials is simply not available.
func (c *Config) Validate() error {
	var errs []error
	if c.Dispatch.Parallel < 0 {
		errs = append(errs, fmt.Errorf("dispatch.parallel must be >= 0, got %d", c.Dispatch.Parallel))
	}
	switch c.Redis.Format {
	case "", "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("redis.format must be json or msgpack, got %q", c.Redis.Format))
	}
	seen := make(map[string]struct{}, len(c.Destinations))
	for _, name := range c.Destinations {
		n := NormalizeName(name)
		if n == "" {
			errs = append(errs, errors.New("destinations: empty destination name"))
			continue
		}
		if _, dup := seen[n]; dup {
			errs = append(errs, fmt.Errorf("destinations: %q listed more than once", n))
		}
		seen[n] = struct{}{}
	}
	return errors.Join(errs...)
}

// Whitelist returns the accepted event names for a destination, or nil.
func (c *Config) Whitelist(destination string) []string {
	if c == nil || c.Whitelists == nil {
		return nil
	}
	return c.Whitelists[NormalizeName(destination)]
}

// NormalizeName trims and lowercases a destination name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeNames normalises names and drops blanks, preserving order.
func NormalizeNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = NormalizeName(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ParseDestinations splits a comma-separated list such as
// "central_api, posthog,klaviyo" into normalised names.
func ParseDestinations(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeNames(strings.Split(s, ","))
}
