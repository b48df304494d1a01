// Package redis implements the Redis pub/sub destination.
//
// Each record is PUBLISHed once to a configurable channel, encoded as JSON
// or msgpack. Publishing never retries: a failed publish is reported to the
// dispatch pipeline as an error.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/types"
)

// Name is the registry name of this destination.
const Name = "redis"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// Encoding formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: relay:events).
	Channel string
	// Format is json (default) or msgpack.
	Format string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
}

// Adapter publishes records via Redis PUBLISH.
type Adapter struct {
	adapter.Whitelist

	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid, or the format is unknown.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = config.DefaultRedisChannel
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	switch cfg.Format {
	case "":
		cfg.Format = FormatJSON
	case FormatJSON, FormatMsgpack:
	default:
		return nil, fmt.Errorf("redis adapter: unknown format %q", cfg.Format)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Encode renders rec, stamped with the envelope version, in the configured
// wire format.
func (a *Adapter) Encode(rec *types.Record) ([]byte, error) {
	env := types.NewEnvelope(rec)
	if a.config.Format == FormatMsgpack {
		return msgpack.Marshal(env)
	}
	return json.Marshal(env)
}

// Capture publishes rec to the configured channel.
// Returns false without error on a whitelist miss.
func (a *Adapter) Capture(ctx context.Context, rec *types.Record) (bool, error) {
	if !a.Allows(rec.EventName) {
		return false, nil
	}

	body, err := a.Encode(rec)
	if err != nil {
		return false, fmt.Errorf("redis: encode record: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if err := a.client.Publish(publishCtx, a.config.Channel, body).Err(); err != nil {
		return false, fmt.Errorf("redis: publish: %w", err)
	}
	return true, nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Kind registers the pub/sub destination.
type Kind struct{}

// Available reports whether a Redis URL is configured.
func (Kind) Available(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.Redis.URL) != ""
}

// FromConfig builds an Adapter from the redis section.
func (Kind) FromConfig(cfg *config.Config, _ adapter.Deps) (adapter.Adapter, error) {
	return New(Config{
		URL:     cfg.Redis.URL,
		Channel: cfg.Redis.Channel,
		Format:  cfg.Redis.Format,
		Timeout: cfg.Redis.Timeout.Duration,
	})
}

// Verify Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter     = (*Adapter)(nil)
	_ adapter.Whitelister = (*Adapter)(nil)
	_ adapter.Kind        = Kind{}
)
