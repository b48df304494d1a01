package cmd

import (
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/adapter/builtin"
	"github.com/pithecene-io/relay/cli/render"
	"github.com/pithecene-io/relay/config"
)

// Destination statuses.
const (
	StatusActive        = "active"
	StatusNotConfigured = "not_configured"
	StatusAvailable     = "available"
	StatusInactive      = "inactive"
	StatusUnknown       = "unknown_adapter"
)

// DestinationRow describes one destination.
type DestinationRow struct {
	Name       string   `json:"name" yaml:"name"`
	Registered bool     `json:"registered" yaml:"registered"`
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Available  bool     `json:"available" yaml:"available"`
	Whitelist  []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Status     string   `json:"status" yaml:"status"`
}

// DestinationsCommand returns the destinations command.
// It reads configuration only; no destination is contacted.
func DestinationsCommand() *cli.Command {
	return &cli.Command{
		Name:   "destinations",
		Usage:  "List destinations and whether they are enabled and configured",
		Flags:  ConfigFlags(),
		Action: destinationsAction,
	}
}

func destinationsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return r.Render(ListDestinations(builtin.NewRegistry(), cfg))
}

// ListDestinations reports every registered destination in registration
// order, followed by configured names that have no registration.
func ListDestinations(registry *adapter.Registry, cfg *config.Config) []DestinationRow {
	rows := make([]DestinationRow, 0, len(registry.All()))
	for _, name := range registry.All() {
		kind, _ := registry.Get(name)
		row := DestinationRow{
			Name:       name,
			Registered: true,
			Enabled:    slices.Contains(cfg.Destinations, name),
			Available:  kind.Available(cfg),
			Whitelist:  cfg.Whitelist(name),
		}
		row.Status = destinationStatus(row)
		rows = append(rows, row)
	}

	for _, name := range cfg.Destinations {
		if registry.Registered(name) {
			continue
		}
		rows = append(rows, DestinationRow{Name: name, Enabled: true, Status: StatusUnknown})
	}
	return rows
}

func destinationStatus(row DestinationRow) string {
	switch {
	case row.Enabled && row.Available:
		return StatusActive
	case row.Enabled:
		return StatusNotConfigured
	case row.Available:
		return StatusAvailable
	default:
		return StatusInactive
	}
}
