package lode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrNoSessionsFound is returned when no session record matches a query.
var ErrNoSessionsFound = errors.New("no session records found")

// QuerySessions returns all session records, oldest first. A non-empty day
// (YYYY-MM-DD) restricts the result to that partition.
func QuerySessions(ctx context.Context, ds lode.Dataset, day string) ([]*SessionRecord, error) {
	return querySessions(ctx, ds, "day", day)
}

// FindSession returns the record of one session.
func FindSession(ctx context.Context, ds lode.Dataset, sessionID string) (*SessionRecord, error) {
	recs, err := querySessions(ctx, ds, "session_id", sessionID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: session %s", ErrNoSessionsFound, sessionID)
	}
	return recs[len(recs)-1], nil
}

func querySessions(ctx context.Context, ds lode.Dataset, key, value string) ([]*SessionRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var out []*SessionRecord
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, key, value) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		// Manifest path filtering is a coarse pre-filter; record fields
		// are authoritative.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindSession {
				continue
			}
			if value != "" && m[key] != value {
				continue
			}
			rec, err := recordFromMap(m)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt < out[j].StartedAt })
	return out, nil
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so sess-1 does not match sess-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// Summary aggregates session records.
type Summary struct {
	Sessions      int              `json:"sessions" yaml:"sessions"`
	Succeeded     int              `json:"succeeded" yaml:"succeeded"`
	Failed        int              `json:"failed" yaml:"failed"`
	ByOutcome     map[string]int   `json:"by_outcome" yaml:"by_outcome"`
	BytesReceived int64            `json:"bytes_received" yaml:"bytes_received"`
	AvgDurationMs int64            `json:"avg_duration_ms" yaml:"avg_duration_ms"`
	Days          map[string]int   `json:"days" yaml:"days"`
	LastSolution  string           `json:"last_solution,omitempty" yaml:"last_solution,omitempty"`
	Recent        []*SessionRecord `json:"-" yaml:"-"`
}

// Summarize aggregates records (expected oldest first). The last n records
// are kept in Recent, newest first.
func Summarize(recs []*SessionRecord, n int) Summary {
	s := Summary{ByOutcome: map[string]int{}, Days: map[string]int{}}
	var totalMs int64
	for _, r := range recs {
		s.Sessions++
		s.ByOutcome[r.Outcome]++
		s.Days[r.Day]++
		s.BytesReceived += r.BytesReceived
		totalMs += r.DurationMs
		if r.Outcome == "success" {
			s.Succeeded++
			s.LastSolution = r.Solution
		} else {
			s.Failed++
		}
	}
	if s.Sessions > 0 {
		s.AvgDurationMs = totalMs / int64(s.Sessions)
	}
	for i := len(recs) - 1; i >= 0 && len(s.Recent) < n; i-- {
		s.Recent = append(s.Recent, recs[i])
	}
	return s
}
