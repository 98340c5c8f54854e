package nav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pithecene-io/rtkrelay/iox"
)

// DefaultArchiveURL is the BKG IGS BRDC archive root.
const DefaultArchiveURL = "https://igs.bkg.bund.de/root_ftp/IGS/BRDC"

// DefaultHTTPTimeout is the default per-request timeout.
const DefaultHTTPTimeout = 60 * time.Second

// HTTPFetcher downloads BRDC files from an HTTP(S) archive laid out as
// <base>/<yyyy>/<doy>/<name>.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL (DefaultArchiveURL if empty).
// A nil client gets DefaultHTTPTimeout.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// URL returns the archive URL of the BRDC file for date.
func (f *HTTPFetcher) URL(date time.Time) string {
	return f.baseURL + "/" + ArchivePath(date)
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, date time.Time, dir string) (*File, error) {
	url := f.URL(date)
	return download(ctx, date, dir, url, func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("nav: create request: %w", err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("nav: GET %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			iox.DiscardClose(resp.Body)
			return nil, fmt.Errorf("nav: GET %s: status %d", url, resp.StatusCode)
		}
		return resp.Body, nil
	})
}

var _ Fetcher = (*HTTPFetcher)(nil)
