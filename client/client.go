// Package client is the sending side of the relay protocol: it streams
// observation files to a server and decodes the single response.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pithecene-io/rtkrelay/iox"
	"github.com/pithecene-io/rtkrelay/wire"
)

// DefaultTimeout bounds one whole exchange, including server-side
// computation.
const DefaultTimeout = 10 * time.Minute

// earlyReplyTimeout bounds the wait for a reply after a failed send.
const earlyReplyTimeout = 5 * time.Second

// Result is a successful exchange.
type Result struct {
	// Solution is the returned solution line without trailing newline.
	Solution string
	// Bytes is the number of content bytes sent.
	Bytes int64
	// Duration is the wall time from dial to response.
	Duration time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the deadline of one exchange. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLegacyErrors accepts the unframed error replies of protocol
// version 1 servers.
func WithLegacyErrors() Option {
	return func(c *Client) { c.legacyErrors = true }
}

// WithMaxUnits rejects requests with more units than the server accepts.
func WithMaxUnits(n int) Option {
	return func(c *Client) { c.maxUnits = n }
}

// Client sends envelopes to one server address.
type Client struct {
	addr         string
	timeout      time.Duration
	legacyErrors bool
	maxUnits     int
	dialer       net.Dialer
}

// New creates a client for addr (host:port).
func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr:     addr,
		timeout:  DefaultTimeout,
		maxUnits: wire.DefaultMaxUnits,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send streams the files at paths, rover first and base second, and waits
// for the solution. Each unit is named after the file's base name.
//
// A failure reported by the server is returned as *wire.RemoteError; any
// other error is a local, transport or protocol failure.
func (c *Client) Send(ctx context.Context, paths ...string) (*Result, error) {
	if err := c.checkCount(len(paths)); err != nil {
		return nil, err
	}

	units := make([]wire.FileSource, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		defer iox.DiscardClose(f)

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		units = append(units, wire.FileSource{
			Name:   filepath.Base(p),
			Size:   uint64(info.Size()),
			Reader: f,
		})
	}
	return c.SendUnits(ctx, units...)
}

// SendUnits sends already opened units.
func (c *Client) SendUnits(ctx context.Context, units ...wire.FileSource) (*Result, error) {
	if err := c.checkCount(len(units)); err != nil {
		return nil, err
	}

	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.addr, err)
	}
	defer iox.DiscardClose(conn)

	// Expiry or cancellation unblocks pending I/O.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	opts := wire.ReadOptions{LegacyErrors: c.legacyErrors}
	if err := wire.WriteEnvelope(conn, units...); err != nil {
		// The server may have rejected the envelope early and replied.
		if ctx.Err() == nil {
			if remote := c.earlyReply(conn, opts); remote != nil {
				return nil, remote
			}
		}
		return nil, c.ioError(ctx, "send envelope", err)
	}

	resp, err := wire.ReadResponse(conn, opts)
	if err != nil {
		return nil, c.ioError(ctx, "read response", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var sent int64
	for _, u := range units {
		sent += int64(u.Size)
	}
	return &Result{
		Solution: string(bytes.TrimRight(resp.Payload, "\r\n")),
		Bytes:    sent,
		Duration: time.Since(start),
	}, nil
}

// earlyReply returns the server's failure reply after an interrupted send,
// or nil when none can be read.
func (c *Client) earlyReply(conn net.Conn, opts wire.ReadOptions) error {
	_ = conn.SetReadDeadline(time.Now().Add(earlyReplyTimeout))
	resp, err := wire.ReadResponse(conn, opts)
	if err != nil || resp.OK {
		return nil
	}
	return resp.Err()
}

func (c *Client) checkCount(n int) error {
	if n == 0 {
		return errors.New("no files to send")
	}
	if c.maxUnits > 0 && n > c.maxUnits {
		return fmt.Errorf("too many files: %d (limit %d)", n, c.maxUnits)
	}
	return nil
}

// ioError attributes an I/O failure to the context when it expired first.
func (c *Client) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, errors.Join(ctxErr, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRemote reports whether err is a failure reported by the server.
func IsRemote(err error) bool {
	var re *wire.RemoteError
	return errors.As(err, &re)
}
