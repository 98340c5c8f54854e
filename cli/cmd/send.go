package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rtkrelay/cli/render"
	"github.com/pithecene-io/rtkrelay/client"
)

// Exit codes for send.
const (
	exitSuccess     = 0
	exitRemoteError = 1
	exitTransport   = 2
)

// SendResponse is the rendered result of a successful send.
type SendResponse struct {
	Solution   string    `json:"solution" yaml:"solution"`
	Date       string    `json:"date,omitempty" yaml:"date,omitempty"`
	Time       string    `json:"time,omitempty" yaml:"time,omitempty"`
	Columns    []float64 `json:"columns,omitempty" yaml:"columns,omitempty"`
	BytesSent  int64     `json:"bytes_sent" yaml:"bytes_sent"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`
}

// Fields implements render.Record.
func (r SendResponse) Fields() []render.Field {
	fields := []render.Field{{Label: "Solution", Value: r.Solution}}
	if r.Date != "" {
		fields = append(fields, render.Field{Label: "Epoch", Value: r.Date + " " + r.Time})
	}
	return append(fields,
		render.Field{Label: "Bytes sent", Value: strconv.FormatInt(r.BytesSent, 10)},
		render.Field{Label: "Duration", Value: (time.Duration(r.DurationMs) * time.Millisecond).String()},
	)
}

// SendCommand returns the send command.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send observation files to a relay and print the solution",
		ArgsUsage: "<rover.obs> <base.obs> [extra...]",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "addr", Usage: "Relay address (host:port)", Required: true},
			&cli.DurationFlag{Name: "timeout", Usage: "Deadline for the whole exchange", Value: client.DefaultTimeout},
			&cli.BoolFlag{Name: "legacy-errors", Usage: "Accept unframed error replies from protocol version 1 servers"},
		),
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for send command", exitTransport)
	}
	if c.NArg() < 2 {
		return cli.Exit("rover and base observation files required", exitTransport)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitTransport)
	}

	opts := []client.Option{client.WithTimeout(c.Duration("timeout"))}
	if c.Bool("legacy-errors") {
		opts = append(opts, client.WithLegacyErrors())
	}
	cl := client.New(c.String("addr"), opts...)

	if isStderrTTY() {
		fmt.Fprintf(os.Stderr, "sending %d files to %s\n", c.NArg(), c.String("addr"))
	}

	res, err := cl.Send(context.Background(), c.Args().Slice()...)
	if err != nil {
		return cli.Exit(err.Error(), sendExitCode(err))
	}
	if err := r.Render(newSendResponse(res)); err != nil {
		return cli.Exit(err.Error(), exitTransport)
	}
	return nil
}

// sendExitCode maps a send failure to the exit code contract.
func sendExitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case client.IsRemote(err):
		return exitRemoteError
	default:
		return exitTransport
	}
}

func newSendResponse(res *client.Result) SendResponse {
	resp := SendResponse{
		Solution:   res.Solution,
		BytesSent:  res.Bytes,
		DurationMs: res.Duration.Milliseconds(),
	}
	// Unparseable lines are still returned verbatim.
	if sol, err := client.ParseSolution(res.Solution); err == nil {
		resp.Date = sol.Date
		resp.Time = sol.Time
		resp.Columns = sol.Columns
	}
	return resp
}
