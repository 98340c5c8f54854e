// Package server accepts relay connections and hands each one to a
// session handler.
//
// Sessions run one goroutine per connection, bounded by
// Config.MaxConcurrent. With MaxConcurrent 1 the server serves strictly one
// session at a time. Canceling the Serve context closes the listener and
// waits for in-flight sessions; it does not interrupt them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pithecene-io/rtkrelay/log"
	"github.com/pithecene-io/rtkrelay/session"
	"github.com/pithecene-io/rtkrelay/types"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":9999"

// Accept retry backoff bounds for temporary errors.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Config configures the acceptor.
type Config struct {
	// Addr is the TCP listen address used by ListenAndServe.
	Addr string
	// MaxConcurrent bounds concurrently served sessions (minimum 1).
	MaxConcurrent int
}

// SessionHandler serves one connection. It must close conn.
type SessionHandler interface {
	Handle(ctx context.Context, conn net.Conn, meta types.SessionMeta) *session.Result
}

// CompletionHook runs after a session has finished and its connection is
// closed. Hooks never affect the client response.
type CompletionHook func(ctx context.Context, r *session.Result)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHooks appends completion hooks, run in order.
func WithHooks(hooks ...CompletionHook) Option {
	return func(s *Server) { s.hooks = append(s.hooks, hooks...) }
}

// Server is the connection acceptor.
type Server struct {
	cfg     Config
	handler SessionHandler
	logger  *log.Logger
	hooks   []CompletionHook
	now     func() time.Time
}

// New creates a server.
func New(cfg Config, handler SessionHandler, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  log.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on cfg.Addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then closes ln and
// waits for in-flight sessions. It returns nil after a cancel-initiated
// shutdown and an error if accepting fails permanently.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer func() { _ = ln.Close() }()

	// Sessions outlive the accept loop so shutdown drains them.
	sessionCtx := context.WithoutCancel(ctx)

	slots := make(chan struct{}, s.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("listening", map[string]any{
		"addr":           ln.Addr().String(),
		"max_concurrent": s.cfg.MaxConcurrent,
	})

	var backoff time.Duration
	for {
		// A slot is taken before Accept so a saturated server leaves
		// connections in the listen backlog.
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			s.logger.Info("shutting down", nil)
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			<-slots
			if ctx.Err() != nil {
				s.logger.Info("shutting down", nil)
				return nil
			}
			if !isTemporary(err) {
				return fmt.Errorf("accept: %w", err)
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("accept failed, retrying", map[string]any{
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		meta := types.NewSessionMeta(conn.RemoteAddr().String(), s.now())
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := s.handler.Handle(sessionCtx, conn, meta)
			<-slots
			s.complete(sessionCtx, result)
		}()
	}
}

func (s *Server) complete(ctx context.Context, r *session.Result) {
	if r == nil {
		return
	}
	for _, hook := range s.hooks {
		hook(ctx, r)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(d*2, maxAcceptBackoff)
}

// isTemporary reports whether an accept error is worth retrying.
func isTemporary(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var ne interface{ Temporary() bool }
	if errors.As(err, &ne) && ne.Temporary() {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
