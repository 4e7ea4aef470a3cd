// Package scraper fetches listing pages from job boards and parses them
// into raw listings.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 20 * time.Second
	maxBodyBytes   = 10 << 20 // 10 MB
)

// FetchError is returned for any page that could not be retrieved: transport
// failures, timeouts and non-200 responses alike. It is page-scoped.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrUnexpectedStatus is wrapped by a FetchError carrying a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Page is a successfully fetched listing page.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) (*Page, error)
}

// HTTPFetcher fetches pages over HTTP with a fixed user agent.
type HTTPFetcher struct {
	userAgent string
	client    *http.Client
}

// NewHTTPFetcher constructs a fetcher whose requests each time out after
// timeout (20s when zero).
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// Fetch GETs url. Extra headers are applied before the user agent, which
// always wins.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Page{URL: url, StatusCode: resp.StatusCode, Body: body}, nil
}
