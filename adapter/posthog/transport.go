package posthog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	phclient "github.com/posthog/posthog-go"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
)

// DefaultTimeout bounds the wait for response headers on each upload.
const DefaultTimeout = 10 * time.Second

// TransportConfig configures the SDK transport.
type TransportConfig struct {
	// Host is the ingestion host (default: EU cloud).
	Host   string
	APIKey string
	// Timeout bounds the wait for response headers (default 10s).
	Timeout time.Duration
	// Logger receives delivery failures and SDK diagnostics.
	Logger *log.Logger
}

// SDKTransport delivers capture messages through the posthog-go client.
// The client is single-use: Flush closes it, which blocks until every
// enqueued message was delivered or reported to the failure callback.
type SDKTransport struct {
	client   phclient.Client
	endpoint string
	logger   *log.Logger

	closeOnce sync.Once
}

// NewSDKTransport creates a transport. Returns an error if the API key is
// empty or the host is not an absolute URL.
func NewSDKTransport(cfg TransportConfig) (*SDKTransport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("posthog transport requires a project API key")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = config.DefaultPostHogHost
	}
	if u, err := url.Parse(host); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("posthog transport: invalid host %q", cfg.Host)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.ResponseHeaderTimeout = cfg.Timeout

	client, err := phclient.NewWithConfig(cfg.APIKey, phclient.Config{
		Endpoint:  host,
		Transport: rt,
		Logger:    sdkLogger{sugar: cfg.Logger.Sugar().With("destination", Name)},
		Callback:  callback{logger: cfg.Logger},
	})
	if err != nil {
		return nil, fmt.Errorf("posthog transport: %w", err)
	}

	return &SDKTransport{
		client:   client,
		endpoint: host,
		logger:   cfg.Logger,
	}, nil
}

// Endpoint returns the ingestion host.
func (t *SDKTransport) Endpoint() string {
	return t.endpoint
}

// Enqueue hands msg to the client. Rejections are logged.
func (t *SDKTransport) Enqueue(msg Message) {
	if err := t.client.Enqueue(toCapture(msg)); err != nil {
		t.logger.Error("posthog error", map[string]any{
			"event": msg.Event,
			"error": err.Error(),
		})
	}
}

// Flush closes the client and waits for delivery, or until ctx is done.
func (t *SDKTransport) Flush(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.shutdown()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.logger.Warn("posthog flush abandoned", map[string]any{
			"error": ctx.Err().Error(),
		})
	}
}

// Close flushes the client if Flush has not already done so.
func (t *SDKTransport) Close() error {
	t.shutdown()
	return nil
}

func (t *SDKTransport) shutdown() {
	t.closeOnce.Do(func() { _ = t.client.Close() })
}

// toCapture maps msg onto the SDK message. A nil timestamp leaves the
// SDK to stamp the enqueue time.
func toCapture(msg Message) phclient.Capture {
	c := phclient.Capture{
		DistinctId: msg.DistinctID,
		Event:      msg.Event,
		Properties: phclient.Properties(msg.Properties),
	}
	if msg.Timestamp != nil {
		c.Timestamp = *msg.Timestamp
	}
	return c
}

// callback is the client's delivery hook.
type callback struct {
	logger *log.Logger
}

func (callback) Success(phclient.APIMessage) {}

func (c callback) Failure(m phclient.APIMessage, err error) {
	fields := map[string]any{"error": err.Error()}
	if capture, ok := m.(phclient.CaptureInApi); ok {
		fields["event"] = capture.Event
		fields["distinct_id"] = capture.DistinctId
	}
	c.logger.Error("posthog error", fields)
}

// sdkLogger routes client diagnostics into relay's logger.
type sdkLogger struct {
	sugar *log.SugaredLogger
}

func (l sdkLogger) Logf(format string, args ...any) {
	l.sugar.Debugf("posthog: "+format, args...)
}

func (l sdkLogger) Errorf(format string, args ...any) {
	l.sugar.Warnf("posthog: "+format, args...)
}

var (
	_ Transport         = (*SDKTransport)(nil)
	_ phclient.Callback = callback{}
	_ phclient.Logger   = sdkLogger{}
)
