// Package tui provides Bubble Tea views for rtkrelay's read-only commands.
// Views are opt-in (--tui) and render the same payloads as json/table/yaml.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/rtkrelay/lode"
)

// View types.
const (
	ViewStatsSessions  = "stats_sessions"
	ViewInspectSession = "inspect_session"
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Run starts the TUI for viewType. data must be the payload the non-TUI
// output renders: lode.Summary for stats, *lode.SessionDetail for inspect.
func Run(viewType string, data any) error {
	model, err := newModel(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// RenderStatic renders a view once without starting a program.
func RenderStatic(viewType string, data any) (string, error) {
	model, err := newModel(viewType, data)
	if err != nil {
		return "", err
	}
	return model.View(), nil
}

func newModel(viewType string, data any) (tea.Model, error) {
	if !IsTUISupported(viewType) {
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	switch viewType {
	case ViewStatsSessions:
		s, ok := data.(lode.Summary)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected data type %T", viewType, data)
		}
		return NewStatsModel(s), nil
	default:
		detail, ok := data.(*lode.SessionDetail)
		if !ok || detail == nil || detail.Record == nil {
			return nil, fmt.Errorf("%s: unexpected data type %T", viewType, data)
		}
		return NewInspectModel(detail), nil
	}
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStatsSessions, ViewInspectSession}
}
