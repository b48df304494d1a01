package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/relay/cli/render"
	"github.com/pithecene-io/relay/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version  string `json:"version" yaml:"version"`
	Envelope string `json:"envelope_version" yaml:"envelope_version"`
	Commit   string `json:"commit" yaml:"commit"`
}

// VersionCommand returns the version command.
// It reads no configuration and contacts no destination.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  OutputFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return r.Render(VersionResponse{
			Version:  types.Version,
			Envelope: types.EnvelopeVersion,
			Commit:   commit,
		})
	}
}
