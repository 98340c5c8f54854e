package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/rtkrelay/nav"
	"github.com/pithecene-io/rtkrelay/types"
	"github.com/pithecene-io/rtkrelay/wire"
)

const roverObs = `     3.04           OBSERVATION DATA    M                   RINEX VERSION / TYPE
ROVR                                                        MARKER NAME
  2025    10    18    12     0    0.0000000     GPS         TIME OF FIRST OBS
                                                            END OF HEADER
> 2025 10 18 12 00  0.0000000  0 12
`

const baseObs = `     3.04           OBSERVATION DATA    M                   RINEX VERSION / TYPE
BASE                                                        MARKER NAME
  2025    10    18    11    59   30.0000000     GPS         TIME OF FIRST OBS
                                                            END OF HEADER
`

const posFile = `% program   : RNX2RTKP ver.2.4.3
% pos mode  : kinematic
%  GPST                  latitude(deg) longitude(deg)  height(m)
2025 10 18 11:59:59 1.000 2.000 3.0
2025 10 18 12:00:00 1.234 5.678 100.0

`

const wantSolution = "2025 10 18 12:00:00 1.234 5.678 100.0"

// fakeFetcher writes a navigation file into the staging directory.
type fakeFetcher struct {
	err   error
	calls int
	date  time.Time
	dir   string
}

func (f *fakeFetcher) Fetch(_ context.Context, date time.Time, dir string) (*nav.File, error) {
	f.calls++
	f.date = date
	f.dir = dir
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(dir, nav.LocalName(date))
	if err := os.WriteFile(path, []byte("nav\n"), 0o600); err != nil {
		return nil, err
	}
	return &nav.File{Path: path, Date: date, Source: "fake://" + nav.ArchivePath(date)}, nil
}

// computeFunc adapts a function to Computer.
type computeFunc func(ctx context.Context, req ComputeRequest) (*ComputeResult, error)

func (f computeFunc) Compute(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	return f(ctx, req)
}

// writingComputer writes content to the requested output.
func writingComputer(content string) computeFunc {
	return func(_ context.Context, req ComputeRequest) (*ComputeResult, error) {
		if err := os.WriteFile(req.Output, []byte(content), 0o600); err != nil {
			return nil, err
		}
		return &ComputeResult{}, nil
	}
}

func unit(name, content string) wire.FileUnit {
	return wire.FileUnit{Name: name, Content: []byte(content)}
}

// exchange runs one session over a pipe, sending units and decoding the
// response.
func exchange(t *testing.T, o *Orchestrator, units ...wire.FileUnit) (*Result, wire.Response, error) {
	t.Helper()
	return exchangeRaw(t, o, func(w io.Writer) error {
		sources := make([]wire.FileSource, len(units))
		for i, u := range units {
			sources[i] = wire.SourceFromUnit(u)
		}
		return wire.WriteEnvelope(w, sources...)
	})
}

func exchangeRaw(t *testing.T, o *Orchestrator, send func(io.Writer) error) (*Result, wire.Response, error) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })

	done := make(chan *Result, 1)
	go func() {
		meta := types.NewSessionMeta("pipe", time.Now())
		done <- o.Handle(context.Background(), serverConn, meta)
	}()

	if err := send(clientConn); err != nil {
		t.Logf("send: %v", err)
	}
	resp, err := wire.ReadResponse(clientConn, wire.ReadOptions{})
	_ = clientConn.Close()

	select {
	case r := <-done:
		return r, resp, err
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish")
		return nil, resp, err
	}
}

func newTestOrchestrator(t *testing.T, fetcher nav.Fetcher, computer Computer) (*Orchestrator, string) {
	t.Helper()
	staging := t.TempDir()
	cfg := DefaultConfig()
	cfg.StagingDir = staging
	return NewOrchestrator(cfg, fetcher, computer), staging
}

func assertNoLeftovers(t *testing.T, staging string) {
	t.Helper()
	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("leftover staging entry %q", e.Name())
	}
}

func assertFailure(t *testing.T, resp wire.Response, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.OK {
		t.Fatalf("expected failure response, got payload %q", resp.Payload)
	}
	var remote *wire.RemoteError
	if !errors.As(resp.Err(), &remote) {
		t.Fatalf("Err() = %v, want *wire.RemoteError", resp.Err())
	}
	return resp.Message
}

func describe(files []StagedFile) string {
	return fmt.Sprintf("%+v", files)
}
