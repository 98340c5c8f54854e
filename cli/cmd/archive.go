package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rtkrelay/cli/render"
	"github.com/pithecene-io/rtkrelay/cli/tui"
	"github.com/pithecene-io/rtkrelay/lode"
)

// archiveQueryTimeout bounds one read-only archive query.
const archiveQueryTimeout = 30 * time.Second

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// recentSessions is the number of sessions kept in the stats summary.
const recentSessions = 20

// StatsCommand returns the stats command.
// Stats returns aggregated, derived facts from the session archive.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated session statistics from the archive",
		Flags: append(append(TUIReadOnlyFlags(), ArchiveReadFlags()...),
			&cli.StringFlag{Name: "day", Usage: "Restrict to one day (YYYY-MM-DD)"},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := validateDay(c.String("day")); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	recs, err := querySessions(c)
	if err != nil && !errors.Is(err, lode.ErrNoSessionsFound) {
		return err
	}
	summary := lode.Summarize(recs, recentSessions)

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsSessions, summary)
	}
	if r.Format() == render.FormatTable {
		return r.Render(summaryView(summary))
	}
	return r.Render(summary)
}

// ListCommand returns the list command.
// List returns thin per-session rows, not inspect-level detail.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List archived sessions",
		Flags: append(append(ReadOnlyFlags(), ArchiveReadFlags()...),
			&cli.StringFlag{Name: "day", Usage: "Restrict to one day (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "outcome", Usage: "Filter by outcome status (e.g. success, fetch_error)"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of sessions to return, newest first (0 = no limit)"},
		),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list command", 1)
	}
	if err := validateDay(c.String("day")); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	recs, err := querySessions(c)
	if err != nil && !errors.Is(err, lode.ErrNoSessionsFound) {
		return err
	}
	rows := filterSessions(recs, c.String("outcome"), c.Int("limit"))

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(rows) > listWarningThreshold && c.Int("limit") == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(rows))
	}

	if r.Format() == render.FormatTable {
		return r.Render(sessionRows(rows))
	}
	return r.Render(rows)
}

// InspectCommand returns the inspect command.
// Inspect returns a deep view of a single archived session.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect an archived session by ID",
		ArgsUsage: "<session-id>",
		Flags:     append(TUIReadOnlyFlags(), ArchiveReadFlags()...),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session-id required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveQueryTimeout)
	defer cancel()

	archive, err := openReadArchive(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	detail, err := archive.Inspect(ctx, c.Args().First())
	if err != nil {
		if errors.Is(err, lode.ErrNoSessionsFound) {
			return cli.Exit(fmt.Sprintf("session not found: %s", c.Args().First()), 1)
		}
		return fmt.Errorf("failed to read archive: %w", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSession, detail)
	}
	if r.Format() == render.FormatTable {
		return r.Render(sessionDetail{detail})
	}
	return r.Render(detail)
}

func querySessions(c *cli.Context) ([]*lode.SessionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveQueryTimeout)
	defer cancel()

	archive, err := openReadArchive(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return lode.QuerySessions(ctx, archive.Dataset(), c.String("day"))
}

func validateDay(day string) error {
	if day == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return fmt.Errorf("invalid --day %q (want YYYY-MM-DD)", day)
	}
	return nil
}

// filterSessions keeps records with the given outcome (all if empty) and
// returns them newest first, truncated to limit when limit > 0.
func filterSessions(recs []*lode.SessionRecord, outcome string, limit int) []*lode.SessionRecord {
	out := make([]*lode.SessionRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if outcome != "" && recs[i].Outcome != outcome {
			continue
		}
		out = append(out, recs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// summaryView renders a Summary as label/value lines.
type summaryView lode.Summary

func (s summaryView) Fields() []render.Field {
	fields := []render.Field{
		{Label: "Sessions", Value: strconv.Itoa(s.Sessions)},
		{Label: "Succeeded", Value: strconv.Itoa(s.Succeeded)},
		{Label: "Failed", Value: strconv.Itoa(s.Failed)},
		{Label: "Bytes received", Value: strconv.FormatInt(s.BytesReceived, 10)},
		{Label: "Avg duration", Value: (time.Duration(s.AvgDurationMs) * time.Millisecond).String()},
	}
	for _, status := range sortedKeys(s.ByOutcome) {
		fields = append(fields, render.Field{
			Label: "  " + status,
			Value: strconv.Itoa(s.ByOutcome[status]),
		})
	}
	if s.LastSolution != "" {
		fields = append(fields, render.Field{Label: "Last solution", Value: s.LastSolution})
	}
	return fields
}

// sessionRows renders records one per row.
type sessionRows []*lode.SessionRecord

func (rows sessionRows) Header() []string {
	return []string{"SESSION", "STARTED", "OUTCOME", "FILES", "BYTES", "DURATION"}
}

func (rows sessionRows) Rows() [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.SessionID,
			r.StartedAt,
			r.Outcome,
			strconv.Itoa(len(r.Files)),
			strconv.FormatInt(r.BytesReceived, 10),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
		}
	}
	return out
}

// sessionDetail renders one session and its sidecars as label/value lines.
type sessionDetail struct {
	*lode.SessionDetail
}

func (d sessionDetail) Fields() []render.Field {
	r := d.Record
	fields := []render.Field{
		{Label: "Session", Value: r.SessionID},
		{Label: "Remote", Value: r.RemoteAddr},
		{Label: "Started", Value: r.StartedAt},
		{Label: "Outcome", Value: r.Outcome},
	}
	if r.Stage != "" {
		fields = append(fields, render.Field{Label: "Stage", Value: r.Stage})
	}
	if r.Message != "" {
		fields = append(fields, render.Field{Label: "Message", Value: r.Message})
	}
	if r.ObservationDate != "" {
		fields = append(fields, render.Field{Label: "Observed", Value: r.ObservationDate})
	}
	if r.NavSource != "" {
		fields = append(fields, render.Field{Label: "Nav source", Value: r.NavSource})
	}
	for _, f := range r.Files {
		fields = append(fields, render.Field{
			Label: "  " + f.Name,
			Value: strconv.FormatInt(f.Size, 10) + " bytes",
		})
	}
	if r.Solution != "" {
		fields = append(fields, render.Field{Label: "Solution", Value: r.Solution})
	}
	fields = append(fields, render.Field{
		Label: "Duration",
		Value: (time.Duration(r.DurationMs) * time.Millisecond).String(),
	})
	if m := d.Manifest; m != nil {
		fields = append(fields,
			render.Field{Label: "Manifest written", Value: m.WrittenAt.UTC().Format(time.RFC3339)},
			render.Field{Label: "Manifest files", Value: strconv.Itoa(len(m.Files))},
		)
	}
	if d.SolutionFile != "" {
		fields = append(fields, render.Field{Label: "Solution file", Value: d.SolutionFile})
	}
	return fields
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
