// Package metrics provides process-wide session metrics for the relay server.
//
// The Collector accumulates counters across all sessions served by one
// process. It is a leaf package with no internal dependencies; session
// statuses are recorded as plain strings.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsSucceeded int64
	SessionsFailed    int64
	SessionsInFlight  int64
	FailedByStatus    map[string]int64

	// Transfer
	BytesReceived int64
	FilesReceived int64

	// Stages
	NavFetchSuccess int64
	NavFetchFailure int64
	ComputeSuccess  int64
	ComputeFailure  int64

	// Sinks
	ArchiveWriteSuccess   int64
	ArchiveWriteFailure   int64
	AdapterPublishSuccess int64
	AdapterPublishFailure int64

	// TotalDuration is the summed wall time of finished sessions.
	TotalDuration time.Duration

	// Dimensions (informational, set at construction)
	ListenAddr     string
	StorageBackend string
	Adapter        string
}

// Collector accumulates session metrics.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsSucceeded int64
	sessionsFailed    int64
	sessionsInFlight  int64
	failedByStatus    map[string]int64

	bytesReceived int64
	filesReceived int64

	navFetchSuccess int64
	navFetchFailure int64
	computeSuccess  int64
	computeFailure  int64

	archiveWriteSuccess   int64
	archiveWriteFailure   int64
	adapterPublishSuccess int64
	adapterPublishFailure int64

	totalDuration time.Duration

	listenAddr     string
	storageBackend string
	adapter        string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend and adapter may be empty when the sink is disabled.
func NewCollector(listenAddr, storageBackend, adapter string) *Collector {
	return &Collector{
		failedByStatus: make(map[string]int64),
		listenAddr:     listenAddr,
		storageBackend: storageBackend,
		adapter:        adapter,
	}
}

// --- Session lifecycle ---

// SessionStarted records an accepted session.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.sessionsInFlight++
	c.mu.Unlock()
}

// SessionFinished records the end of a session with its outcome status.
// An empty status or "success" counts as a success.
func (c *Collector) SessionFinished(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionsInFlight--
	c.totalDuration += d
	if status == "" || status == "success" {
		c.sessionsSucceeded++
		return
	}
	c.sessionsFailed++
	c.failedByStatus[status]++
}

// AddReceived records one received file of n bytes.
func (c *Collector) AddReceived(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesReceived++
	c.bytesReceived += n
	c.mu.Unlock()
}

// --- Stages ---

// NavFetch records a navigation fetch result.
func (c *Collector) NavFetch(ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if ok {
		c.navFetchSuccess++
	} else {
		c.navFetchFailure++
	}
	c.mu.Unlock()
}

// Compute records a computation result.
func (c *Collector) Compute(ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if ok {
		c.computeSuccess++
	} else {
		c.computeFailure++
	}
	c.mu.Unlock()
}

// --- Sinks ---

// ArchiveWrite records an archive write result (per session).
func (c *Collector) ArchiveWrite(ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if ok {
		c.archiveWriteSuccess++
	} else {
		c.archiveWriteFailure++
	}
	c.mu.Unlock()
}

// AdapterPublish records an adapter publish result.
func (c *Collector) AdapterPublish(ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if ok {
		c.adapterPublishSuccess++
	} else {
		c.adapterPublishFailure++
	}
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := make(map[string]int64, len(c.failedByStatus))
	for k, v := range c.failedByStatus {
		failed[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsSucceeded: c.sessionsSucceeded,
		SessionsFailed:    c.sessionsFailed,
		SessionsInFlight:  c.sessionsInFlight,
		FailedByStatus:    failed,

		BytesReceived: c.bytesReceived,
		FilesReceived: c.filesReceived,

		NavFetchSuccess: c.navFetchSuccess,
		NavFetchFailure: c.navFetchFailure,
		ComputeSuccess:  c.computeSuccess,
		ComputeFailure:  c.computeFailure,

		ArchiveWriteSuccess:   c.archiveWriteSuccess,
		ArchiveWriteFailure:   c.archiveWriteFailure,
		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		TotalDuration: c.totalDuration,

		ListenAddr:     c.listenAddr,
		StorageBackend: c.storageBackend,
		Adapter:        c.adapter,
	}
}
