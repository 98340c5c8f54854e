package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/rtkrelay/lode"
)

// maxTableRows bounds the visible rows of the recent-sessions table.
const maxTableRows = 12

// StatsModel shows archive totals and a scrollable list of recent sessions.
type StatsModel struct {
	summary  lode.Summary
	table    table.Model
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a stats model.
func NewStatsModel(s lode.Summary) StatsModel {
	columns := []table.Column{
		{Title: "Session", Width: 32},
		{Title: "Day", Width: 10},
		{Title: "Outcome", Width: 14},
		{Title: "Files", Width: 5},
		{Title: "Duration", Width: 9},
	}
	rows := make([]table.Row, 0, len(s.Recent))
	for _, r := range s.Recent {
		rows = append(rows, table.Row{
			r.SessionID,
			r.Day,
			r.Outcome,
			fmt.Sprintf("%d", len(r.Files)),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
		})
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dim).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(accent).Bold(true)

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		// The height includes the header row.
		table.WithHeight(min(max(len(rows), 1), maxTableRows)+1),
	)
	t.SetStyles(styles)

	return StatsModel{summary: s, table: t}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.summary

	var b strings.Builder
	b.WriteString(th.heading.Render("Session Statistics"))
	b.WriteString("\n\n")

	avg := time.Duration(s.AvgDurationMs) * time.Millisecond
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		th.tile("Sessions", fmt.Sprintf("%d", s.Sessions), accent),
		th.tile("Succeeded", fmt.Sprintf("%d", s.Succeeded), good),
		th.tile("Failed", fmt.Sprintf("%d", s.Failed), bad),
		th.tile("Avg duration", avg.String(), caution),
	))
	b.WriteString("\n\n")

	if len(s.ByOutcome) > 0 {
		outcomes := make([]string, 0, len(s.ByOutcome))
		for o := range s.ByOutcome {
			outcomes = append(outcomes, o)
		}
		sort.Strings(outcomes)
		for _, o := range outcomes {
			b.WriteString(th.key.Render(o))
			b.WriteString(th.outcome(o).Render(fmt.Sprintf("%d", s.ByOutcome[o])))
			b.WriteString("\n")
		}
	}
	if s.LastSolution != "" {
		b.WriteString(th.row("last solution", s.LastSolution))
	}

	if len(s.Recent) > 0 {
		b.WriteString("\n")
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString(th.footer.Render("↑/↓ scroll • q quit"))
	return b.String()
}
