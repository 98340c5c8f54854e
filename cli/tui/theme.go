package tui

import "github.com/charmbracelet/lipgloss"

// Adaptive colors pick a shade readable on both light and dark terminals.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#0B5394", Dark: "#6FA8DC"}
	good    = lipgloss.AdaptiveColor{Light: "#38761D", Dark: "#93C47D"}
	caution = lipgloss.AdaptiveColor{Light: "#B45F06", Dark: "#F6B26B"}
	bad     = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#E06666"}
	dim     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	text    = lipgloss.AdaptiveColor{Light: "#111111", Dark: "#EEEEEE"}
)

// theme groups the styles shared by the views.
type theme struct {
	heading lipgloss.Style
	key     lipgloss.Style
	val     lipgloss.Style
	footer  lipgloss.Style
	card    lipgloss.Style
}

var th = theme{
	heading: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(accent),
	key:     lipgloss.NewStyle().Foreground(dim).Width(20),
	val:     lipgloss.NewStyle().Foreground(text),
	footer:  lipgloss.NewStyle().Italic(true).Foreground(dim).MarginTop(1),
	card: lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		PaddingLeft(1).
		MarginRight(2).
		Width(16),
}

// outcomeColor maps a session outcome to its display color.
func outcomeColor(outcome string) lipgloss.TerminalColor {
	switch outcome {
	case "success":
		return good
	case "timeout", "no_solution":
		return caution
	case "":
		return text
	default:
		return bad
	}
}

func (t theme) outcome(outcome string) lipgloss.Style {
	return t.val.Foreground(outcomeColor(outcome))
}

// row renders one "key value" line.
func (t theme) row(label, value string) string {
	return t.key.Render(label) + t.val.Render(value) + "\n"
}

// tile renders a figure above its caption with a colored left rule.
func (t theme) tile(caption, figure string, color lipgloss.TerminalColor) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(figure),
		t.key.UnsetWidth().Render(caption),
	)
	return t.card.BorderForeground(color).Render(body)
}
