package lode

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/rtkrelay/session"
	"github.com/pithecene-io/rtkrelay/types"
)

// RecordKindSession is the record_kind discriminator of session records.
const RecordKindSession = "session"

// FileRecord describes a received unit.
type FileRecord struct {
	Name string `json:"name" msgpack:"name" yaml:"name"`
	Size int64  `json:"size" msgpack:"size" yaml:"size"`
}

// SessionRecord is the storage format of one finished session.
type SessionRecord struct {
	// Record discriminator
	RecordKind string `json:"record_kind" yaml:"record_kind"`

	ContractVersion string       `json:"contract_version" yaml:"contract_version"`
	ProtocolVersion int          `json:"protocol_version" yaml:"protocol_version"`
	SessionID       string       `json:"session_id" yaml:"session_id"`
	RemoteAddr      string       `json:"remote_addr" yaml:"remote_addr"`
	StartedAt       string       `json:"started_at" yaml:"started_at"`
	Outcome         string       `json:"outcome" yaml:"outcome"`
	Stage           string       `json:"stage,omitempty" yaml:"stage,omitempty"`
	Message         string       `json:"message,omitempty" yaml:"message,omitempty"`
	Solution        string       `json:"solution,omitempty" yaml:"solution,omitempty"`
	ObservationDate string       `json:"observation_date,omitempty" yaml:"observation_date,omitempty"`
	NavSource       string       `json:"nav_source,omitempty" yaml:"nav_source,omitempty"`
	Files           []FileRecord `json:"files" yaml:"files"`
	BytesReceived   int64        `json:"bytes_received" yaml:"bytes_received"`
	DurationMs      int64        `json:"duration_ms" yaml:"duration_ms"`

	// Partition key (session_id and outcome above are also partition keys)
	Day string `json:"day" yaml:"day"`
}

// Manifest is the msgpack sidecar summarizing a session's inputs.
type Manifest struct {
	SessionID       string       `json:"session_id" msgpack:"session_id" yaml:"session_id"`
	Files           []FileRecord `json:"files" msgpack:"files" yaml:"files"`
	ObservationDate string       `json:"observation_date,omitempty" msgpack:"observation_date,omitempty" yaml:"observation_date,omitempty"`
	NavSource       string       `json:"nav_source,omitempty" msgpack:"nav_source,omitempty" yaml:"nav_source,omitempty"`
	Outcome         string       `json:"outcome" msgpack:"outcome" yaml:"outcome"`
	Stage           string       `json:"stage,omitempty" msgpack:"stage,omitempty" yaml:"stage,omitempty"`
	WrittenAt       time.Time    `json:"written_at" msgpack:"written_at" yaml:"written_at"`
}

// Validate checks the partition keys.
func (r *SessionRecord) Validate() error {
	switch {
	case r == nil:
		return errors.New("session record is nil")
	case r.SessionID == "":
		return errors.New("session record: session_id is required")
	case r.Day == "":
		return errors.New("session record: day is required")
	case r.Outcome == "":
		return errors.New("session record: outcome is required")
	}
	return nil
}

// RecordFromResult converts a finished session into its storage record.
func RecordFromResult(r *session.Result) *SessionRecord {
	rec := &SessionRecord{
		RecordKind:      RecordKindSession,
		ContractVersion: types.ContractVersion,
		ProtocolVersion: types.ProtocolVersion,
		SessionID:       r.Meta.SessionID,
		RemoteAddr:      r.Meta.RemoteAddr,
		StartedAt:       r.Meta.StartedAt.UTC().Format(time.RFC3339Nano),
		Outcome:         string(r.Outcome.Status),
		Stage:           r.Outcome.Stage,
		Solution:        r.Solution,
		NavSource:       r.NavSource,
		Files:           fileRecords(r.Files),
		BytesReceived:   r.BytesReceived,
		DurationMs:      r.Duration.Milliseconds(),
		Day:             r.Meta.Day(),
	}
	if !r.Outcome.Status.IsSuccess() {
		rec.Message = r.Outcome.Message
	}
	if !r.ObservationDate.IsZero() {
		rec.ObservationDate = r.ObservationDate.Format(time.DateOnly)
	}
	return rec
}

// ManifestFromResult builds the manifest sidecar for a finished session.
func ManifestFromResult(r *session.Result, now time.Time) *Manifest {
	m := &Manifest{
		SessionID: r.Meta.SessionID,
		Files:     fileRecords(r.Files),
		NavSource: r.NavSource,
		Outcome:   string(r.Outcome.Status),
		Stage:     r.Outcome.Stage,
		WrittenAt: now.UTC(),
	}
	if !r.ObservationDate.IsZero() {
		m.ObservationDate = r.ObservationDate.Format(time.DateOnly)
	}
	return m
}

func fileRecords(files []session.StagedFile) []FileRecord {
	out := make([]FileRecord, len(files))
	for i, f := range files {
		out[i] = FileRecord{Name: f.Name, Size: f.Size}
	}
	return out
}

// toMap converts the record to the map form written through the dataset
// codec; Hive partitioning reads the partition keys from it.
func (r *SessionRecord) toMap() map[string]any {
	files := make([]any, len(r.Files))
	for i, f := range r.Files {
		files[i] = map[string]any{"name": f.Name, "size": f.Size}
	}
	m := map[string]any{
		"record_kind":      r.RecordKind,
		"contract_version": r.ContractVersion,
		"protocol_version": r.ProtocolVersion,
		"session_id":       r.SessionID,
		"remote_addr":      r.RemoteAddr,
		"started_at":       r.StartedAt,
		"outcome":          r.Outcome,
		"files":            files,
		"bytes_received":   r.BytesReceived,
		"duration_ms":      r.DurationMs,
		"day":              r.Day,
	}
	for k, v := range map[string]string{
		"stage":            r.Stage,
		"message":          r.Message,
		"solution":         r.Solution,
		"observation_date": r.ObservationDate,
		"nav_source":       r.NavSource,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// recordFromMap decodes a record read back through the dataset codec.
func recordFromMap(m map[string]any) (*SessionRecord, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("re-encode record: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}
