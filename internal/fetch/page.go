package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/runnerr0/blogmirror/internal/dom"
)

// DefaultRetryDelay is the pause before re-fetching a page whose body was cut
// short.
const DefaultRetryDelay = 5 * time.Second

// PageFetcher loads archive pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (dom.Node, error)
}

// Pages fetches and parses archive pages, retrying forever when the
// connection drops while the body is being read.
type Pages struct {
	client     *Client
	retryDelay time.Duration
	log        *slog.Logger
}

// NewPages returns a page fetcher using client.
func NewPages(client *Client, retryDelay time.Duration, log *slog.Logger) *Pages {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pages{client: client, retryDelay: retryDelay, log: log}
}

// FetchPage GETs url and parses it. Only truncated reads are retried; every
// other failure is returned as is.
func (p *Pages) FetchPage(ctx context.Context, url string) (dom.Node, error) {
	var root dom.Node

	err := retry.Do(ctx, retry.NewConstant(p.retryDelay), func(ctx context.Context) error {
		resp, err := p.client.Get(ctx, url, 0)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if IsTruncatedRead(err) {
				p.log.Warn("error reading the page, retrying",
					slog.String("url", url),
					slog.Duration("delay", p.retryDelay),
					slog.Any("error", err),
				)
				return retry.RetryableError(err)
			}
			return err
		}

		root, err = dom.Parse(bytes.NewReader(body), resp.Header.Get("Content-Type"))
		return err
	})
	if err != nil {
		return nil, err
	}

	return root, nil
}

// IsTruncatedRead reports whether err means the peer closed the connection
// before the full body arrived.
func IsTruncatedRead(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET)
}

var _ PageFetcher = (*Pages)(nil)
