// Package adapter defines the notification boundary for finished sessions.
//
// Adapters publish session completion notifications to downstream systems.
// The server owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// EventTypeSessionCompleted is the only event type published.
const EventTypeSessionCompleted = "session_completed"

// FileInfo describes one received unit.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// SessionCompletedEvent is the payload published when a session finishes.
type SessionCompletedEvent struct {
	ContractVersion string     `json:"contract_version"`
	EventType       string     `json:"event_type"` // always "session_completed"
	SessionID       string     `json:"session_id"`
	RemoteAddr      string     `json:"remote_addr"`
	Day             string     `json:"day"`
	Outcome         string     `json:"outcome"` // success, fetch_error, etc.
	Stage           string     `json:"stage,omitempty"`
	Message         string     `json:"message,omitempty"`
	Solution        string     `json:"solution,omitempty"`
	StoragePath     string     `json:"storage_path,omitempty"`
	Timestamp       string     `json:"timestamp"` // ISO 8601
	Files           []FileInfo `json:"files"`
	BytesReceived   int64      `json:"bytes_received"`
	DurationMs      int64      `json:"duration_ms"`
}

// Adapter publishes session completion events to a downstream system.
type Adapter interface {
	// Publish sends a session completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
