package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	httpTimeout = 30 * time.Second

	// maxBodyBytes bounds how much of an upstream response is read. Catalog
	// pages are small and plugin jars rarely exceed a few tens of megabytes;
	// the cap keeps a misbehaving upstream from exhausting memory.
	maxBodyBytes = 256 << 20
)

var (
	// ErrNotFound is returned when the upstream has no resource at the URL.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures: timeouts, connection
	// errors, and non-2xx statuses other than 404.
	ErrNetwork = errors.New("network error")
)

// Fetcher is the transport capability consumed by the core: fetch the bytes
// at a URL or fail. Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches over plain HTTP(S) with a shared User-Agent and
// automatic retry on transient failures.
type HTTPFetcher struct {
	client     *http.Client
	userAgent  string
	retryDelay time.Duration
}

// NewHTTPFetcher creates a Fetcher with a standard timeout. The userAgent
// identifies this tool to upstream sites; scraped sources in particular
// expect a stable, honest UA.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:     &http.Client{Timeout: httpTimeout},
		userAgent:  userAgent,
		retryDelay: time.Second,
	}
}

// Fetch retrieves the body at url. 5xx responses and connection errors are
// retried with bounded exponential backoff; a 404 maps to [ErrNotFound]
// immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := Retry(ctx, DefaultAttempts, f.retryDelay, func() error {
		var err error
		body, err = f.fetchOnce(ctx, url)
		return err
	})
	return body, err
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
