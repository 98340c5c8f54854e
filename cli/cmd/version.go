package cmd

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rtkrelay/cli/render"
	"github.com/pithecene-io/rtkrelay/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Protocol int    `json:"protocol" yaml:"protocol"`
}

// Fields implements render.Record.
func (v VersionResponse) Fields() []render.Field {
	return []render.Field{
		{Label: "Version", Value: v.Version},
		{Label: "Commit", Value: v.Commit},
		{Label: "Protocol", Value: strconv.Itoa(v.Protocol)},
	}
}

// VersionCommand returns the version command.
// It must not contact a relay.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		return r.Render(VersionResponse{
			Version:  types.Version,
			Commit:   commit,
			Protocol: types.ProtocolVersion,
		})
	}
}
