// Package mirror walks a paginated blog archive and mirrors every post into a
// dated folder tree.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/runnerr0/blogmirror/internal/download"
	"github.com/runnerr0/blogmirror/internal/media"
	"github.com/runnerr0/blogmirror/internal/page"
)

// ManifestName is the per-post text file.
const ManifestName = "000.txt"

const manifestRule = "----------"

// Policy decides what a failed download does to the run.
type Policy string

const (
	// FailFast aborts the run on the first failed download.
	FailFast Policy = "fail-fast"
	// BestEffort logs failed downloads and moves on.
	BestEffort Policy = "best-effort"
)

// ParsePolicy accepts "fail-fast" and "best-effort".
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case FailFast, BestEffort:
		return p, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// AbortError stops a fail-fast run. It wraps the *download.Error that caused
// it.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string {
	return "download failed: " + e.Err.Error()
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Fetcher downloads one media reference; see download.Engine.
type Fetcher interface {
	Fetch(ctx context.Context, ref media.Ref, destFolder string, opts ...download.FetchOption) download.Outcome
}

// Recorder is told about every file a run writes.
type Recorder interface {
	Record(ctx context.Context, ref media.Ref, out download.Outcome) error
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	// Destination is the root of the mirrored tree.
	Destination string
	Policy      Policy
	// Recorder may be nil.
	Recorder Recorder
	// Progress receives the human-readable progress lines. Nil discards them.
	Progress io.Writer
	Logger   *slog.Logger
}

// Processor writes one post: its folder, its manifest and its media.
type Processor struct {
	fs       afero.Fs
	engine   Fetcher
	dest     string
	policy   Policy
	recorder Recorder
	out      io.Writer
	log      *slog.Logger
}

func NewProcessor(fs afero.Fs, engine Fetcher, opts ProcessorOptions) *Processor {
	p := &Processor{
		fs:       fs,
		engine:   engine,
		dest:     opts.Destination,
		policy:   opts.Policy,
		recorder: opts.Recorder,
		out:      opts.Progress,
		log:      opts.Logger,
	}
	if p.policy == "" {
		p.policy = FailFast
	}
	if p.out == nil {
		p.out = io.Discard
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Folder returns dest/YYYY/MM/DD, plus /<ordinal> when the date holds more
// than one post.
func (p *Processor) Folder(post page.Post, ordinal, groupSize int) string {
	folder := filepath.Join(p.dest, post.Date.Format("2006"), post.Date.Format("01"), post.Date.Format("02"))
	if groupSize > 1 {
		folder = filepath.Join(folder, strconv.Itoa(ordinal))
	}
	return folder
}

// Process mirrors post, the ordinal-th (1-based, oldest first) of groupSize
// posts sharing its date, and returns how many media files it wrote. Under
// FailFast the first failed download returns an *AbortError.
func (p *Processor) Process(ctx context.Context, post page.Post, ordinal, groupSize int) (int, error) {
	folder := p.Folder(post, ordinal, groupSize)
	if err := p.fs.MkdirAll(folder, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", folder, err)
	}

	manifest := filepath.Join(folder, ManifestName)
	if err := afero.WriteFile(p.fs, manifest, []byte(Manifest(post)), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", manifest, err)
	}

	refs, skipped := media.Resolve(post.Body)
	for _, err := range skipped {
		p.log.Warn("skipping media", slog.String("folder", folder), slog.Any("error", err))
		fmt.Fprintf(p.out, "skipped %v in %s\n", err, folder)
	}
	total := len(refs) + len(skipped)

	written := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		announce := download.WithAnnounce(func(path string) {
			fmt.Fprintf(p.out, "↓ %d/%d § %d/%d · ¶ %s > %s\n",
				ref.Ordinal, total, ordinal, groupSize, ref.SourceURL, path)
		})

		out := p.engine.Fetch(ctx, ref, folder, announce)
		switch out.Status {
		case download.StatusWritten:
			written++
			p.record(ctx, ref, out)
		case download.StatusSkipped:
		case download.StatusFailed:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, ctxErr
			}
			p.log.Error("media download failed",
				slog.String("url", ref.SourceURL),
				slog.String("path", out.Path),
				slog.Any("error", out.Err))
			fmt.Fprintf(p.out, "%v\n", out.Err)
			if p.policy == FailFast {
				return written, &AbortError{Err: out.Err}
			}
		}
	}
	return written, nil
}

func (p *Processor) record(ctx context.Context, ref media.Ref, out download.Outcome) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, ref, out); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn("ledger write failed", slog.String("path", out.Path), slog.Any("error", err))
	}
}

// Manifest renders the text of 000.txt for post.
func Manifest(post page.Post) string {
	date := post.Date.Format("2006-01-02")
	if post.HasTime {
		date = post.Published.Format("2006-01-02 15:04")
	}

	var body []string
	if post.Body != nil {
		body = post.Body.Strings()
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(date)
	b.WriteString("\n")
	b.WriteString(manifestRule)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(body, "\n\n"))
	return b.String()
}
