package cmd

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/relay/adapter/builtin"
	"github.com/pithecene-io/relay/cli/render"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/dispatch"
	"github.com/pithecene-io/relay/eventlog"
	"github.com/pithecene-io/relay/queue"
	"github.com/pithecene-io/relay/types"
)

// SendResponse is the response for the send command.
type SendResponse struct {
	RecordID  string             `json:"record_id" yaml:"record_id"`
	EventName string             `json:"event_name" yaml:"event_name"`
	Delivered int                `json:"delivered" yaml:"delivered"`
	Outcomes  []dispatch.Outcome `json:"outcomes" yaml:"outcomes"`
}

// SendCommand returns the send command.
// Delivery failures are reported in the output and do not change the exit
// code; invalid input and configuration exit 1.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Build one event and dispatch it to its destinations",
		Flags: append(ConfigFlags(),
			&cli.StringFlag{
				Name:     "event-name",
				Aliases:  []string{"n"},
				Usage:    "Event name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "event-type",
				Aliases: []string{"t"},
				Usage:   "Event type (e.g. user_acquisition, settings_change)",
			},
			&cli.StringFlag{
				Name:  "customer",
				Usage: "Customer identifier (e.g. shop domain)",
			},
			&cli.StringFlag{
				Name:  "app-name",
				Usage: "App name (defaults to app_name from config)",
			},
			&cli.StringFlag{
				Name:  "value",
				Usage: "Event value; numbers and booleans are parsed",
			},
			&cli.StringSliceFlag{
				Name:  "info",
				Usage: "Customer info entry as key=value (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "payload",
				Usage: "Payload entry as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "destinations",
				Usage: "Comma-separated destinations overriding the configured list",
			},
			&cli.StringFlag{
				Name:  "timestamp",
				Usage: "Event time as RFC 3339 (defaults to now)",
			},
			&cli.StringFlag{
				Name:  "external-id",
				Usage: "Caller-supplied correlation id",
			},
		),
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger, err := newLogger(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = logger.Sync() }()

	in, err := inputFromFlags(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	pipeline := dispatch.New(cfg, builtin.NewRegistry(), logger)
	client := eventlog.New(pipeline, queue.Inline{Logger: logger}, logger)

	rec, res, err := client.Send(c.Context, in)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRecord) {
			return cli.Exit(err.Error(), 1)
		}
		return err
	}

	if r.Format() == render.FormatTable {
		return r.Render(res.Outcomes)
	}
	return r.Render(SendResponse{
		RecordID:  rec.ID,
		EventName: rec.EventName,
		Delivered: res.Delivered(),
		Outcomes:  res.Outcomes,
	})
}

// inputFromFlags maps command flags onto an event input.
func inputFromFlags(c *cli.Context) (types.Input, error) {
	in := types.Input{
		AppName:            c.String("app-name"),
		EventName:          c.String("event-name"),
		EventType:          c.String("event-type"),
		CustomerIdentifier: c.String("customer"),
		ExternalID:         c.String("external-id"),
	}

	if c.IsSet("value") {
		in.EventValue = parseScalar(c.String("value"))
	}

	var err error
	if in.CustomerInfo, err = parsePairs(c.StringSlice("info")); err != nil {
		return in, fmt.Errorf("--info: %w", err)
	}
	if in.Payload, err = parsePairs(c.StringSlice("payload")); err != nil {
		return in, fmt.Errorf("--payload: %w", err)
	}

	if c.IsSet("destinations") {
		// An explicit empty list dispatches nowhere.
		in.Destinations = config.ParseDestinations(c.String("destinations"))
		if in.Destinations == nil {
			in.Destinations = []string{}
		}
	}

	if ts := c.String("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return in, fmt.Errorf("--timestamp: %w", err)
		}
		in.Timestamp = t
	}

	return in, nil
}

// parsePairs turns key=value entries into a map. Nil when pairs is empty.
func parsePairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = parseScalar(v)
	}
	return out, nil
}

// parseScalar interprets s as a bool, integer or finite float when it
// parses as one, and as a string otherwise.
func parseScalar(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return s
}
