package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/iox"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// EventsPath is the event-create endpoint, relative to the host.
const EventsPath = "/api/events/"

const contentType = "application/vnd.api+json"

// EventRequest is the JSON:API body of an event-create call.
type EventRequest struct {
	Data EventData `json:"data"`
}

// EventData is the top-level resource object.
type EventData struct {
	Type       string          `json:"type"`
	Attributes EventAttributes `json:"attributes"`
}

// EventAttributes carries the profile, metric, properties and time.
type EventAttributes struct {
	Profile    ProfileEnvelope `json:"profile"`
	Metric     MetricEnvelope  `json:"metric"`
	Properties map[string]any  `json:"properties"`
	Time       string          `json:"time"`
}

// ProfileEnvelope wraps the profile resource.
type ProfileEnvelope struct {
	Data ProfileData `json:"data"`
}

// ProfileData is the profile resource.
type ProfileData struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// MetricEnvelope wraps the metric resource.
type MetricEnvelope struct {
	Data MetricData `json:"data"`
}

// MetricData is the metric resource.
type MetricData struct {
	Type       string           `json:"type"`
	Attributes MetricAttributes `json:"attributes"`
}

// MetricAttributes names the metric.
type MetricAttributes struct {
	Name string `json:"name"`
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	Host     string
	APIKey   string
	Revision string
	Timeout  time.Duration
}

// HTTPClient calls the events API.
type HTTPClient struct {
	config   ClientConfig
	endpoint string
	client   *http.Client
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// NewHTTPClient creates a client. Returns an error if the API key is empty
// or the host is not an absolute URL.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("klaviyo client requires a private API key")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = config.DefaultKlaviyoHost
	}
	if u, err := url.Parse(host); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("klaviyo client: invalid host %q", cfg.Host)
	}
	if cfg.Revision == "" {
		cfg.Revision = config.DefaultKlaviyoRevision
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPClient{
		config:   cfg,
		endpoint: host + EventsPath,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// CreateEvent posts req. Any non-2xx response is a *StatusError.
func (c *HTTPClient) CreateEvent(ctx context.Context, req *EventRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Klaviyo-API-Key "+c.config.APIKey)
	httpReq.Header.Set("revision", c.config.Revision)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentType)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: iox.Snippet(resp.Body, 4096)}
	}
	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ Client = (*HTTPClient)(nil)
