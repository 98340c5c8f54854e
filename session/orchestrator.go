package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pithecene-io/rtkrelay/log"
	"github.com/pithecene-io/rtkrelay/metrics"
	"github.com/pithecene-io/rtkrelay/nav"
	"github.com/pithecene-io/rtkrelay/rinex"
	"github.com/pithecene-io/rtkrelay/types"
	"github.com/pithecene-io/rtkrelay/wire"
)

// Default timeouts.
const (
	DefaultReadTimeout    = 2 * time.Minute
	DefaultFetchTimeout   = time.Minute
	DefaultComputeTimeout = 5 * time.Minute
	DefaultWriteTimeout   = 30 * time.Second
)

// minUnits is the rover plus the base observation file.
const minUnits = 2

// solutionFile is the name of the computation output inside the staging dir.
const solutionFile = "solution.pos"

// Bounds on discarding an envelope rejected before it was fully read.
const (
	drainLimit   = 64 << 20
	drainTimeout = 2 * time.Second
)

// unknownErrorMessage replaces an empty failure message.
const unknownErrorMessage = "unknown error"

// Config configures session handling. Zero timeouts disable the deadline.
type Config struct {
	// StagingDir is the parent of per-session staging directories
	// (os.TempDir when empty).
	StagingDir string
	// MaxUnits bounds the envelope unit count (wire.DefaultMaxUnits if 0).
	MaxUnits int

	ReadTimeout    time.Duration
	FetchTimeout   time.Duration
	ComputeTimeout time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		MaxUnits:       wire.DefaultMaxUnits,
		ReadTimeout:    DefaultReadTimeout,
		FetchTimeout:   DefaultFetchTimeout,
		ComputeTimeout: DefaultComputeTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// Result summarizes a finished session. All staged files are already
// removed when Handle returns it.
type Result struct {
	Meta    types.SessionMeta
	Outcome types.SessionOutcome
	// Files lists received units (names and sizes only).
	Files []StagedFile
	// ObservationDate is the rover's first-observation day, if resolved.
	ObservationDate time.Time
	// NavSource is where the navigation file came from, if fetched.
	NavSource     string
	BytesReceived int64
	// Solution is the solution line without the trailing newline.
	Solution string
	Duration time.Duration
	// Err is the session failure, nil on success.
	Err error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// Orchestrator drives sessions from envelope receipt to cleanup.
// It is safe for concurrent use; each Handle call owns its own resources.
type Orchestrator struct {
	cfg      Config
	fetcher  nav.Fetcher
	computer Computer
	logger   *log.Logger
	metrics  *metrics.Collector
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config, fetcher nav.Fetcher, computer Computer, opts ...Option) *Orchestrator {
	if cfg.MaxUnits <= 0 {
		cfg.MaxUnits = wire.DefaultMaxUnits
	}
	o := &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		computer: computer,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle serves one session on conn and closes it. It never panics on
// client input and always sends at most one response.
func (o *Orchestrator) Handle(ctx context.Context, conn net.Conn, meta types.SessionMeta) *Result {
	start := time.Now()
	logger := o.logger.WithSession(&meta)
	result := &Result{Meta: meta}

	o.metrics.SessionStarted()
	logger.Info("session started", nil)

	// Cancellation unblocks any pending connection I/O.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})

	res, err := NewResources(o.cfg.StagingDir, meta.SessionID)
	if err != nil {
		err = newError(StageReceiving, ErrInternal, err)
	} else {
		err = o.process(ctx, conn, res, result, logger)
	}

	o.respond(conn, result, err, logger)
	if receiveFailed(err) && ctx.Err() == nil {
		// Unread client data at close would reset the connection and
		// discard the reply before the client reads it.
		drainInput(conn)
	}

	stop()
	o.cleanup(conn, res, logger)

	result.Duration = time.Since(start)
	if res != nil {
		result.Files = stripPaths(res.Files)
	}
	o.metrics.SessionFinished(string(result.Outcome.Status), result.Duration)
	logger.Info("session finished", map[string]any{
		"status":         result.Outcome.Status,
		"stage":          result.Outcome.Stage,
		"bytes_received": result.BytesReceived,
		"duration_ms":    result.Duration.Milliseconds(),
	})
	return result
}

// process runs every stage up to and including extraction.
func (o *Orchestrator) process(ctx context.Context, conn net.Conn, res *Resources, result *Result, logger *log.Logger) error {
	if err := o.receive(conn, res, result); err != nil {
		return err
	}
	logger.Debug("files received", map[string]any{
		"files": len(res.Files),
		"bytes": result.BytesReceived,
	})

	date, err := rinex.ObservationDate(res.Files[0].Path)
	if err != nil {
		return newError(StageResolving, ErrDateExtraction, err)
	}
	result.ObservationDate = date

	navFile, err := o.fetch(ctx, date, res)
	if err != nil {
		return err
	}
	result.NavSource = navFile.Source
	logger.Debug("navigation data resolved", map[string]any{
		"date":   date.Format(time.DateOnly),
		"source": navFile.Source,
	})

	output := filepath.Join(res.Dir, solutionFile)
	res.Track(output)
	if err := o.compute(ctx, res, navFile.Path, output); err != nil {
		return err
	}

	solution, err := ExtractSolution(output)
	if err != nil {
		return newError(StageExtracting, ErrNoSolution, err)
	}
	result.Solution = solution
	return nil
}

// receive stages every unit of the envelope. All units are read before
// the unit-count minimum is checked, so the client is never interrupted
// mid-transfer by a semantic error.
func (o *Orchestrator) receive(conn net.Conn, res *Resources, result *Result) error {
	if o.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(o.cfg.ReadTimeout))
	}

	er := wire.NewEnvelopeReader(conn, o.cfg.MaxUnits)
	if _, err := er.ReadCount(); err != nil {
		return newError(StageReceiving, ErrTransfer, err)
	}

	for {
		var (
			staged  *countingFile
			openErr error
		)
		_, err := er.Next(func(h wire.FileHeader) (io.Writer, error) {
			f, err := res.Create(h.Name)
			if err != nil {
				openErr = err
				return nil, err
			}
			staged = &countingFile{f: f}
			return staged, nil
		})
		if staged != nil {
			closeErr := staged.f.Close()
			res.Commit(staged.n)
			result.BytesReceived += staged.n
			if err == nil && closeErr != nil {
				err = closeErr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if openErr != nil {
				return newError(StageReceiving, ErrInternal, err)
			}
			return newError(StageReceiving, ErrTransfer, err)
		}
		o.metrics.AddReceived(staged.n)
	}

	_ = conn.SetReadDeadline(time.Time{})

	if len(res.Files) < minUnits {
		return newError(StageReceiving, ErrTransfer,
			fmt.Errorf("need rover and base observation files, got %d file(s)", len(res.Files)))
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, date time.Time, res *Resources) (*nav.File, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	f, err := o.fetcher.Fetch(ctx, date, res.Dir)
	o.metrics.NavFetch(err == nil)
	if err != nil {
		return nil, newError(StageResolving, ErrFetch, err)
	}
	res.Track(f.Path)
	return f, nil
}

func (o *Orchestrator) compute(ctx context.Context, res *Resources, navPath, output string) error {
	ctx, cancel := withTimeout(ctx, o.cfg.ComputeTimeout)
	defer cancel()

	extra := make([]string, 0, len(res.Files)-minUnits)
	for _, f := range res.Files[minUnits:] {
		extra = append(extra, f.Path)
	}

	cr, err := o.computer.Compute(ctx, ComputeRequest{
		Rover:  res.Files[0].Path,
		Base:   res.Files[1].Path,
		Nav:    navPath,
		Extra:  extra,
		Output: output,
	})
	if err == nil && cr.ExitCode != 0 {
		err = computeFailure(cr)
	}
	o.metrics.Compute(err == nil)
	if err != nil {
		return newError(StageComputing, ErrCompute, err)
	}
	return nil
}

// respond writes exactly one response and records the outcome.
// Write failures are logged only.
func (o *Orchestrator) respond(conn net.Conn, result *Result, err error, logger *log.Logger) {
	if o.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(o.cfg.WriteTimeout))
	}

	var writeErr error
	if err == nil {
		result.Outcome = types.SessionOutcome{Status: types.OutcomeSuccess, Message: "solution sent"}
		writeErr = wire.WriteSuccess(conn, []byte(result.Solution+"\n"))
	} else {
		result.Err = err
		result.Outcome = outcomeFor(err)
		logger.Warn("session failed", map[string]any{
			"status": result.Outcome.Status,
			"stage":  result.Outcome.Stage,
			"error":  result.Outcome.Message,
		})
		writeErr = wire.WriteFailure(conn, result.Outcome.Message)
	}
	if writeErr != nil {
		logger.Warn("failed to send response", map[string]any{
			"error":  writeErr.Error(),
			"status": result.Outcome.Status,
		})
	}
}

// cleanup closes the connection and removes all session artifacts.
// Failures are logged and swallowed.
func (o *Orchestrator) cleanup(conn net.Conn, res *Resources, logger *log.Logger) {
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug("close connection", map[string]any{"error": err.Error()})
	}
	if err := res.Release(); err != nil {
		logger.Warn("failed to remove session files", map[string]any{
			"error": err.Error(),
			"dir":   res.Dir,
		})
	}
}

// receiveFailed reports whether err ended the session while the envelope
// may still be in flight.
func receiveFailed(err error) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Stage == StageReceiving
}

// drainInput half-closes conn and discards pending input, bounded by
// drainLimit bytes and drainTimeout.
func drainInput(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.CopyN(io.Discard, conn, drainLimit)
}

func outcomeFor(err error) types.SessionOutcome {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = unknownErrorMessage
	}
	var serr *Error
	if errors.As(err, &serr) {
		return types.SessionOutcome{Status: serr.Status(), Stage: serr.Stage.String(), Message: msg}
	}
	return types.SessionOutcome{Status: types.OutcomeInternalError, Message: msg}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func stripPaths(files []StagedFile) []StagedFile {
	out := make([]StagedFile, len(files))
	for i, f := range files {
		out[i] = StagedFile{Name: f.Name, Size: f.Size}
	}
	return out
}

// countingFile counts bytes written to a staged file.
type countingFile struct {
	f *os.File
	n int64
}

func (c *countingFile) Write(p []byte) (int, error) {
	n, err := c.f.Write(p)
	c.n += int64(n)
	return n, err
}
