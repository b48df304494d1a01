// Package cmd provides CLI commands for the relay binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/log"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "relay.yaml"

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// ConfigFlag points at a relay.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to relay.yaml",
		EnvVars: []string{"RELAY_CONFIG"},
		Value:   DefaultConfigPath,
	}

	// LogLevelFlag sets the minimum diagnostic level written to stderr.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Diagnostic log level: debug, info, warn, error",
		Value: "warn",
	}
)

// OutputFlags returns the flags shared by every command that renders.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
	}
}

// ConfigFlags returns the flags for commands that read relay.yaml.
func ConfigFlags() []cli.Flag {
	return append(OutputFlags(), ConfigFlag, LogLevelFlag)
}

// loadConfig reads --config. A missing default file yields an empty
// configuration; a missing explicit file is an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if !c.IsSet("config") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return (config.Config{}).WithDefaults(), nil
		}
	}
	return config.Load(path)
}

// newLogger builds the diagnostic logger on the app's error writer.
func newLogger(c *cli.Context, cfg *config.Config) (*log.Logger, error) {
	level, err := zapcore.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	return log.NewLoggerTo(log.Context{Service: "relay", AppName: cfg.AppName}, w, level), nil
}
