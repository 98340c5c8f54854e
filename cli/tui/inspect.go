package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/rtkrelay/lode"
)

// InspectModel shows one archived session and its sidecars.
type InspectModel struct {
	detail   *lode.SessionDetail
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates an inspect model.
func NewInspectModel(detail *lode.SessionDetail) InspectModel {
	return InspectModel{detail: detail}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	r := m.detail.Record

	var b strings.Builder
	b.WriteString(th.heading.Render("Session " + r.SessionID))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value != "" {
			b.WriteString(th.row(label, value))
		}
	}

	b.WriteString(th.key.Render("Outcome:"))
	b.WriteString(th.outcome(r.Outcome).Render(r.Outcome))
	b.WriteString("\n")
	field("Stage:", r.Stage)
	field("Message:", r.Message)
	field("Remote:", r.RemoteAddr)
	field("Started:", r.StartedAt)
	field("Duration:", (time.Duration(r.DurationMs) * time.Millisecond).String())
	field("Observation day:", r.ObservationDate)
	field("Nav source:", r.NavSource)
	field("Bytes received:", fmt.Sprintf("%d", r.BytesReceived))
	field("Solution:", r.Solution)

	if len(r.Files) > 0 {
		b.WriteString("\n")
		b.WriteString(th.key.Render("Files:"))
		b.WriteString("\n")
		for i, f := range r.Files {
			fmt.Fprintf(&b, "  %d. %s (%d bytes)\n", i+1, f.Name, f.Size)
		}
	}

	if mf := m.detail.Manifest; mf != nil {
		b.WriteString("\n")
		b.WriteString(th.key.Render("Manifest:"))
		b.WriteString("\n")
		field("  written:", mf.WrittenAt.UTC().Format(time.RFC3339))
		field("  outcome:", mf.Outcome)
		field("  files:", fmt.Sprintf("%d", len(mf.Files)))
	}
	field("Solution file:", m.detail.SolutionFile)

	b.WriteString(th.footer.Render("Press q or Ctrl+C to quit"))
	return b.String()
}
