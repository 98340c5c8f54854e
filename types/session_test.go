package types //nolint:revive // types is a valid package name

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionMeta_UniqueIDs(t *testing.T) {
	now := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
	a := NewSessionMeta("10.0.0.1:5000", now)
	b := NewSessionMeta("10.0.0.1:5001", now)

	if a.SessionID == b.SessionID {
		t.Fatalf("session IDs collide: %q", a.SessionID)
	}
	if !strings.HasPrefix(a.SessionID, "sess-") {
		t.Errorf("SessionID = %q, want sess- prefix", a.SessionID)
	}
}

func TestSessionMeta_Day(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	meta := SessionMeta{SessionID: "s", StartedAt: time.Date(2025, 10, 19, 1, 0, 0, 0, loc)}
	if got := meta.Day(); got != "2025-10-18" {
		t.Errorf("Day() = %q, want 2025-10-18", got)
	}
}

func TestOutcomeStatus_IsSuccess(t *testing.T) {
	if !OutcomeSuccess.IsSuccess() {
		t.Error("OutcomeSuccess.IsSuccess() = false")
	}
	if OutcomeComputeError.IsSuccess() {
		t.Error("OutcomeComputeError.IsSuccess() = true")
	}
}
