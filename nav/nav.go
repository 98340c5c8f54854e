// Package nav resolves the broadcast navigation (BRDC ephemeris) file for an
// observation day.
//
// Fetchers download the daily merged IGS BRDC file from a remote archive
// into a caller-owned directory, decompress it, and always remove the
// intermediate compressed artifact.
package nav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pithecene-io/rtkrelay/iox"
)

// File is a decompressed navigation file on local disk.
type File struct {
	// Path is the local path of the decompressed RINEX navigation file.
	Path string
	// Date is the UTC day the file covers.
	Date time.Time
	// Source identifies where the file came from (URL or s3:// key).
	Source string
}

// Fetcher resolves the navigation file for a calendar date into dir.
// The returned file is owned by the caller; dir must already exist.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time, dir string) (*File, error)
}

// BRDCName returns the archive file name of the daily merged BRDC file,
// e.g. BRDC00IGS_R_20252910000_01D_MN.rnx.gz.
func BRDCName(date time.Time) string {
	d := date.UTC()
	return fmt.Sprintf("BRDC00IGS_R_%04d%03d0000_01D_MN.rnx.gz", d.Year(), d.YearDay())
}

// ArchivePath returns the archive-relative path: <yyyy>/<doy>/<name>.
func ArchivePath(date time.Time) string {
	d := date.UTC()
	return fmt.Sprintf("%04d/%03d/%s", d.Year(), d.YearDay(), BRDCName(d))
}

// LocalName returns the RINEX 2 style local file name, e.g. brdc2910.25n.
func LocalName(date time.Time) string {
	d := date.UTC()
	return fmt.Sprintf("brdc%03d0.%02dn", d.YearDay(), d.Year()%100)
}

// opener opens the compressed archive object for reading.
type opener func(ctx context.Context) (io.ReadCloser, error)

// download streams the compressed object into dir, decompresses it next to
// it and removes the compressed copy on every path. A partially written
// output is removed on failure.
func download(ctx context.Context, date time.Time, dir, source string, open opener) (*File, error) {
	gzPath := filepath.Join(dir, LocalName(date)+".gz")
	outPath := filepath.Join(dir, LocalName(date))
	defer func() { _ = iox.Remove(gzPath) }()

	body, err := open(ctx)
	if err != nil {
		return nil, err
	}
	err = writeFile(gzPath, body)
	iox.DiscardClose(body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", source, err)
	}

	if err := gunzipFile(gzPath, outPath); err != nil {
		_ = iox.Remove(outPath)
		return nil, fmt.Errorf("decompress %s: %w", source, err)
	}

	return &File{Path: outPath, Date: date.UTC(), Source: source}, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		iox.DiscardClose(f)
		return err
	}
	return f.Close()
}

// FallbackFetcher tries each fetcher in order and returns the first success.
type FallbackFetcher []Fetcher

// Fetch implements Fetcher.
func (f FallbackFetcher) Fetch(ctx context.Context, date time.Time, dir string) (*File, error) {
	if len(f) == 0 {
		return nil, errors.New("no navigation fetchers configured")
	}
	var errs []error
	for _, fetcher := range f {
		file, err := fetcher.Fetch(ctx, date, dir)
		if err == nil {
			return file, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
