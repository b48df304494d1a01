// Package centralapi implements the central event API destination.
//
// Records are POSTed as {"event": <record>} to <base_url>/api/v1/events,
// authenticated with X-API-Key and X-API-Secret headers.
package centralapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/iox"
	"github.com/pithecene-io/relay/types"
)

// Name is the registry name of this destination.
const Name = "central_api"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// EventsPath is appended to the configured base URL.
const EventsPath = "/api/v1/events"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Config configures the central API adapter.
type Config struct {
	// BaseURL is the API root, e.g. https://events.example.com (required).
	BaseURL   string
	APIKey    string
	APISecret string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
}

// Adapter posts records to the central event API.
type Adapter struct {
	adapter.Whitelist

	config   Config
	endpoint string
	client   *http.Client
}

// New creates a central API adapter from the given config.
// Returns an error if the base URL is empty or not absolute.
func New(cfg Config) (*Adapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("central api adapter requires a base URL")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("central api adapter: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{
		config:   cfg,
		endpoint: base + EventsPath,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.Code, e.Status)
}

type requestBody struct {
	Event *types.Record `json:"event"`
}

// CreateEvent posts rec and returns the decoded response body.
// Any non-2xx response is a *StatusError.
func (a *Adapter) CreateEvent(ctx context.Context, rec *types.Record) (any, error) {
	body, err := json.Marshal(requestBody{Event: rec})
	if err != nil {
		return nil, fmt.Errorf("central api: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("central api: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", a.config.APIKey)
	req.Header.Set("X-API-Secret", a.config.APISecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("central api: request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("central api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("central api: decode response: %w", err)
	}
	return parsed, nil
}

// Capture posts rec. Transport and status failures are returned as errors.
func (a *Adapter) Capture(ctx context.Context, rec *types.Record) (bool, error) {
	if !a.Allows(rec.EventName) {
		return false, nil
	}
	if _, err := a.CreateEvent(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// Kind registers the central API destination.
type Kind struct{}

// Available reports whether a base URL is configured.
func (Kind) Available(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.CentralAPI.BaseURL) != ""
}

// FromConfig builds an Adapter from cfg.CentralAPI.
func (Kind) FromConfig(cfg *config.Config, _ adapter.Deps) (adapter.Adapter, error) {
	return New(Config{
		BaseURL:   cfg.CentralAPI.BaseURL,
		APIKey:    cfg.CentralAPI.APIKey,
		APISecret: cfg.CentralAPI.APISecret,
		Timeout:   cfg.CentralAPI.Timeout.Duration,
	})
}

// Verify Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter     = (*Adapter)(nil)
	_ adapter.Whitelister = (*Adapter)(nil)
	_ adapter.Kind        = Kind{}
)
