// Package fetch performs the crawler's HTTP requests: paced GETs for media
// and retried page loads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corpix/uarand"
	"golang.org/x/time/rate"
)

// RandomUserAgent makes every request carry a freshly picked browser
// User-Agent.
const RandomUserAgent = "random"

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "blogmirror/1.0 (+https://github.com/runnerr0/blogmirror)"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Client issues GET requests spaced by a shared rate limiter.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient wraps httpClient. Consecutive requests are at least delay apart;
// a zero delay disables pacing.
func NewClient(httpClient *http.Client, delay time.Duration, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &Client{
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
	}
}

// Get fetches url. The caller must close the response body. When timeout is
// positive it bounds the wait for response headers and every subsequent
// pause in the body stream.
func (c *Client) Get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, cancel)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.agent())

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if timer != nil {
		resp.Body = &idleTimeoutBody{ReadCloser: resp.Body, timer: timer, timeout: timeout, cancel: cancel}
	} else {
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

func (c *Client) agent() string {
	if c.userAgent == RandomUserAgent {
		return uarand.GetRandom()
	}
	return c.userAgent
}

// idleTimeoutBody cancels the request when no data arrives for timeout.
type idleTimeoutBody struct {
	io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	cancel  context.CancelFunc
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.timer.Reset(b.timeout)
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
