package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/runnerr0/blogmirror/internal/fetch"
	"github.com/runnerr0/blogmirror/internal/page"
)

// Summary counts what a walk did, also when it stopped early.
type Summary struct {
	Pages     int
	Posts     int
	Downloads int
}

// Walker follows the older-posts links of an archive from its first page
// until the last one, handing every post to a Processor.
type Walker struct {
	pages fetch.PageFetcher
	dates page.DateParser
	proc  *Processor
	out   io.Writer
	log   *slog.Logger
}

// NewWalker wires a walker. Progress lines go to out; nil discards them.
func NewWalker(pages fetch.PageFetcher, dates page.DateParser, proc *Processor, out io.Writer, log *slog.Logger) *Walker {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Walker{pages: pages, dates: dates, proc: proc, out: out, log: log}
}

// Walk mirrors every page reachable from startURL. Pages go in navigation
// order, date groups in document order and posts oldest first within their
// group. It stops at the first page that cannot be fetched, at an
// *AbortError from the processor, or when ctx is done; the returned Summary
// covers the work finished before that.
func (w *Walker) Walk(ctx context.Context, startURL string) (Summary, error) {
	var sum Summary
	seen := make(map[string]bool)

	for url := startURL; url != ""; {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if seen[url] {
			w.log.Warn("older-posts link loops back, stopping", slog.String("url", url))
			break
		}
		seen[url] = true

		fmt.Fprintf(w.out, "\nScraping %s\n\n", url)

		root, err := w.pages.FetchPage(ctx, url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			return sum, fmt.Errorf("fetch page %s: %w", url, err)
		}
		sum.Pages++

		res := page.Parse(root, url, w.dates)
		for _, err := range res.Skipped {
			w.log.Warn("skipping unreadable markup", slog.String("url", url), slog.Any("error", err))
		}
		w.log.Debug("page parsed",
			slog.String("url", url),
			slog.Int("groups", len(res.Groups)),
			slog.String("next", res.Next))

		for _, group := range res.Groups {
			n := len(group.Posts)
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return sum, err
				}

				ordinal := i + 1
				post := group.Posts[n-1-i]

				fmt.Fprintf(w.out, "\n%s (%d)\n\n", group.Date.Format("2006/01/02"), ordinal)

				written, err := w.proc.Process(ctx, post, ordinal, n)
				sum.Downloads += written
				if err != nil {
					return sum, err
				}
				sum.Posts++
			}
		}

		url = res.Next
	}

	return sum, nil
}

// IsAbort reports whether err stopped a fail-fast run.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}
