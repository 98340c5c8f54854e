// Package types defines core domain types for the rtkrelay server and client.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"sync/atomic"
	"time"
)

// sessionSeq disambiguates session IDs minted within the same nanosecond.
var sessionSeq atomic.Uint64

// SessionMeta identifies one client connection handled by the server.
type SessionMeta struct {
	// SessionID is unique per accepted connection.
	SessionID string `json:"session_id"`
	// RemoteAddr is the peer address as reported by the listener.
	RemoteAddr string `json:"remote_addr"`
	// StartedAt is when the connection was accepted.
	StartedAt time.Time `json:"started_at"`
}

// NewSessionMeta mints session metadata for a freshly accepted connection.
func NewSessionMeta(remoteAddr string, now time.Time) SessionMeta {
	return SessionMeta{
		SessionID:  fmt.Sprintf("sess-%d-%d", now.UnixNano(), sessionSeq.Add(1)),
		RemoteAddr: remoteAddr,
		StartedAt:  now,
	}
}

// Day returns the UTC partition day (YYYY-MM-DD) of the session start.
func (m *SessionMeta) Day() string {
	return m.StartedAt.UTC().Format("2006-01-02")
}

// OutcomeStatus classifies how a session ended.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates a solution line was returned.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeTransferError indicates the envelope could not be received.
	OutcomeTransferError OutcomeStatus = "transfer_error"
	// OutcomeDateError indicates the observation date could not be read.
	OutcomeDateError OutcomeStatus = "date_error"
	// OutcomeFetchError indicates the navigation data could not be fetched.
	OutcomeFetchError OutcomeStatus = "fetch_error"
	// OutcomeComputeError indicates the positioning computation failed.
	OutcomeComputeError OutcomeStatus = "compute_error"
	// OutcomeNoSolution indicates the computation produced no solution line.
	OutcomeNoSolution OutcomeStatus = "no_solution"
	// OutcomeTimeout indicates a configured deadline expired.
	OutcomeTimeout OutcomeStatus = "timeout"
	// OutcomeInternalError indicates a server-side failure unrelated to the input.
	OutcomeInternalError OutcomeStatus = "internal_error"
)

// IsSuccess reports whether the status is OutcomeSuccess.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeSuccess
}

// SessionOutcome is the final outcome of a session.
type SessionOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `json:"status"`
	// Stage is the session stage that failed; empty on success.
	Stage string `json:"stage,omitempty"`
	// Message is the human-readable description sent to the client.
	Message string `json:"message"`
}
