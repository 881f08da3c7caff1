package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrTooLarge is returned when the response body exceeds the configured byte limit
var ErrTooLarge = errors.New("response body exceeds size limit")

// StatusError reports a non-2xx upstream response
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code on download: %d", e.StatusCode)
}

// Result is the body of a successful fetch plus the upstream content type
type Result struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads images with a single GET request, without retries
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewFetcher creates a fetcher; a zero timeout or maxBytes disables that limit
func NewFetcher(client *http.Client, timeout time.Duration, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client:   client,
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

// Fetch returns the byte content of the resource at url
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error executing request: %w", err)
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", "url", url, "error", cerr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{StatusCode: res.StatusCode}
	}

	if f.maxBytes > 0 && res.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("declared length %s: %w", humanize.Bytes(uint64(res.ContentLength)), ErrTooLarge)
	}

	body := io.Reader(res.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(res.Body, f.maxBytes+1)
	}
	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if f.maxBytes > 0 && int64(len(buf)) > f.maxBytes {
		return nil, fmt.Errorf("body larger than %s: %w", humanize.Bytes(uint64(f.maxBytes)), ErrTooLarge)
	}

	slog.Debug("fetched image",
		"url", url,
		"size", humanize.Bytes(uint64(len(buf))),
		"content_type", res.Header.Get("Content-Type"),
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Data:        buf,
		ContentType: res.Header.Get("Content-Type"),
	}, nil
}

// IsTimeout reports whether err was caused by a deadline or network timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
