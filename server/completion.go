package server

import (
	"context"
	"time"

	"github.com/pithecene-io/rtkrelay/adapter"
	"github.com/pithecene-io/rtkrelay/lode"
	"github.com/pithecene-io/rtkrelay/log"
	"github.com/pithecene-io/rtkrelay/metrics"
	"github.com/pithecene-io/rtkrelay/session"
	"github.com/pithecene-io/rtkrelay/types"
)

// DefaultCompletionTimeout bounds archiving plus publishing of one session.
const DefaultCompletionTimeout = 30 * time.Second

// Completion archives finished sessions and publishes a
// session_completed event for each. Archive and Adapter are optional.
type Completion struct {
	Archive *lode.Archive
	Adapter adapter.Adapter
	Metrics *metrics.Collector
	Logger  *log.Logger
	// Timeout bounds the whole pipeline per session; zero means
	// DefaultCompletionTimeout.
	Timeout time.Duration

	now func() time.Time
}

// Hook returns the pipeline as a CompletionHook.
func (c *Completion) Hook() CompletionHook {
	return c.Run
}

// Run archives r and publishes its event. Failures are logged and counted.
func (c *Completion) Run(ctx context.Context, r *session.Result) {
	logger := c.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithSession(&r.Meta)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var storagePath string
	if c.Archive != nil {
		path, err := c.Archive.Write(ctx, lode.RecordFromResult(r), lode.ManifestFromResult(r, c.clock()))
		c.Metrics.ArchiveWrite(err == nil)
		if err != nil {
			logger.Error("archive write failed", map[string]any{"error": err.Error()})
		} else {
			storagePath = path
		}
	}

	if c.Adapter != nil {
		err := c.Adapter.Publish(ctx, CompletedEvent(r, storagePath, c.clock()))
		c.Metrics.AdapterPublish(err == nil)
		if err != nil {
			logger.Error("adapter publish failed", map[string]any{"error": err.Error()})
		}
	}
}

func (c *Completion) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// CompletedEvent builds the session_completed payload for r.
func CompletedEvent(r *session.Result, storagePath string, now time.Time) *adapter.SessionCompletedEvent {
	files := make([]adapter.FileInfo, len(r.Files))
	for i, f := range r.Files {
		files[i] = adapter.FileInfo{Name: f.Name, Size: f.Size}
	}
	ev := &adapter.SessionCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypeSessionCompleted,
		SessionID:       r.Meta.SessionID,
		RemoteAddr:      r.Meta.RemoteAddr,
		Day:             r.Meta.Day(),
		Outcome:         string(r.Outcome.Status),
		Stage:           r.Outcome.Stage,
		Solution:        r.Solution,
		StoragePath:     storagePath,
		Timestamp:       now.UTC().Format(time.RFC3339),
		Files:           files,
		BytesReceived:   r.BytesReceived,
		DurationMs:      r.Duration.Milliseconds(),
	}
	if !r.Outcome.Status.IsSuccess() {
		ev.Message = r.Outcome.Message
	}
	return ev
}
