package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/rtkrelay/lode"
)

func testSummary() lode.Summary {
	recs := []*lode.SessionRecord{
		{SessionID: "sess-1", Day: "2026-02-04", Outcome: "success", Solution: "2025/10/18 12:00:00.000 35.1 139.2", DurationMs: 1200,
			Files: []lode.FileRecord{{Name: "rover.obs", Size: 10}, {Name: "base.obs", Size: 20}}},
		{SessionID: "sess-2", Day: "2026-02-04", Outcome: "fetch_error", DurationMs: 300},
	}
	return lode.Summarize(recs, 10)
}

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewStatsSessions, true},
		{ViewInspectSession, true},
		{"stats_runs", false},
		{"send", false},
		{"version", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	for _, v := range SupportedTUIViews() {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("send", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func TestRun_WrongDataType(t *testing.T) {
	if err := Run(ViewStatsSessions, "not a summary"); err == nil {
		t.Error("expected error for wrong data type")
	}
	if err := Run(ViewInspectSession, &lode.SessionDetail{}); err == nil {
		t.Error("expected error for detail without record")
	}
	if err := Run(ViewInspectSession, testSummary().Recent[0]); err == nil {
		t.Error("expected error for bare record")
	}
}

func TestStatsView(t *testing.T) {
	out, err := RenderStatic(ViewStatsSessions, testSummary())
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	for _, want := range []string{"Session Statistics", "Sessions", "Succeeded", "fetch_error", "sess-1", "sess-2", "35.1 139.2"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats view missing %q:\n%s", want, out)
		}
	}
}

func TestStatsView_Empty(t *testing.T) {
	out, err := RenderStatic(ViewStatsSessions, lode.Summarize(nil, 10))
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	if !strings.Contains(out, "Session Statistics") {
		t.Errorf("empty stats view = %q", out)
	}
}

func TestStatsModel_Quit(t *testing.T) {
	m := NewStatsModel(testSummary())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestInspectView(t *testing.T) {
	rec := testSummary().Recent[1] // sess-1, newest first
	detail := &lode.SessionDetail{
		Record: rec,
		Manifest: &lode.Manifest{
			SessionID: rec.SessionID,
			Files:     rec.Files,
			Outcome:   rec.Outcome,
			WrittenAt: time.Date(2026, 2, 4, 10, 31, 0, 0, time.UTC),
		},
		SolutionFile: rec.Solution,
	}
	out, err := RenderStatic(ViewInspectSession, detail)
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	for _, want := range []string{"Session sess-1", "success", "rover.obs", "base.obs", "1.2s", "Manifest:", "2026-02-04T10:31:00Z", "Solution file:"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect view missing %q:\n%s", want, out)
		}
	}
}

func TestOutcomeColor(t *testing.T) {
	tests := []struct {
		outcome string
		want    lipgloss.TerminalColor
	}{
		{"success", good},
		{"timeout", caution},
		{"no_solution", caution},
		{"fetch_error", bad},
		{"", text},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			if got := outcomeColor(tt.outcome); got != tt.want {
				t.Errorf("outcomeColor(%q) = %v, want %v", tt.outcome, got, tt.want)
			}
			if got := th.outcome(tt.outcome).Render(tt.outcome); !strings.Contains(got, tt.outcome) {
				t.Errorf("outcome(%q).Render = %q", tt.outcome, got)
			}
		})
	}
}
