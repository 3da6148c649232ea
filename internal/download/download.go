// Package download saves resolved media references to disk, skipping items a
// previous run already stored.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/runnerr0/blogmirror/internal/media"
	"github.com/runnerr0/blogmirror/internal/naming"
	"github.com/runnerr0/blogmirror/internal/video"
)

// DefaultImageExtension is used when a response's content type maps to
// nothing.
const DefaultImageExtension = ".jpg"

// partSuffix marks a file that is still being streamed.
const partSuffix = ".part"

var (
	imageCandidates = []string{".jpg", ".jpeg", ".png"}
	videoCandidates = []string{".avi", ".mp4", ".mov", ".webm"}
)

// Failure reasons.
var (
	ErrDownloadImage = errors.New("download image")
	ErrWriteImage    = errors.New("write image")
	ErrDownloadVideo = errors.New("download video")
)

// Error describes a failed media download.
type Error struct {
	// Reason is one of ErrDownloadImage, ErrWriteImage or ErrDownloadVideo.
	Reason error
	URL    string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s > %s: %v", e.Reason, e.URL, e.Path, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Reason, e.Err}
}

// Status classifies an Outcome.
type Status int

const (
	StatusSkipped Status = iota
	StatusWritten
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusWritten:
		return "written"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of one Fetch.
type Outcome struct {
	Status Status
	// Path is the file written, the file that caused a skip, or the intended
	// target on failure.
	Path  string
	Bytes int64
	// Err is set only for StatusFailed and is always a *Error.
	Err error
}

// Getter performs GET requests; see fetch.Client.
type Getter interface {
	Get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error)
}

// Config holds the engine's limits.
type Config struct {
	MaxPathLength int
	// MediaTimeout bounds the wait for image response headers and every stall
	// in the body.
	MediaTimeout time.Duration
	Video        video.Options
}

// Engine downloads media references.
type Engine struct {
	fs     afero.Fs
	http   Getter
	videos video.Retriever
	cfg    Config
	log    *slog.Logger
}

// NewEngine builds an engine writing to fs.
func NewEngine(fs afero.Fs, getter Getter, videos video.Retriever, cfg Config, log *slog.Logger) *Engine {
	if cfg.MaxPathLength <= 0 {
		cfg.MaxPathLength = naming.DefaultMaxPathLength
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{fs: fs, http: getter, videos: videos, cfg: cfg, log: log}
}

// FetchOption customizes a single Fetch.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	announce func(path string)
}

// WithAnnounce registers fn to be called with the target path right before
// the network transfer starts. Skipped items are never announced.
func WithAnnounce(fn func(path string)) FetchOption {
	return func(o *fetchOptions) {
		o.announce = fn
	}
}

// TargetPath returns where ref is stored inside destFolder.
func (e *Engine) TargetPath(ref media.Ref, destFolder string) string {
	name := naming.Sanitize(ref.Title, ref.Ordinal, ref.Extension, destFolder, e.cfg.MaxPathLength)
	return filepath.Join(destFolder, name)
}

// Fetch stores ref in destFolder unless an earlier copy exists.
func (e *Engine) Fetch(ctx context.Context, ref media.Ref, destFolder string, opts ...FetchOption) Outcome {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	fullPath := e.TargetPath(ref, destFolder)

	if existing, ok := e.existing(fullPath, ref); ok {
		e.log.Debug("media already present", slog.String("url", ref.SourceURL), slog.String("path", existing))
		return Outcome{Status: StatusSkipped, Path: existing}
	}

	if o.announce != nil {
		o.announce(fullPath)
	}

	if ref.Kind == media.KindVideo {
		return e.fetchVideo(ctx, ref, fullPath)
	}
	return e.fetchImage(ctx, ref, fullPath)
}

// existing looks for a non-empty earlier download of ref under fullPath or
// fullPath with its extension swapped for one of the known alternatives.
func (e *Engine) existing(fullPath string, ref media.Ref) (string, bool) {
	candidates := imageCandidates
	if ref.Kind == media.KindVideo {
		candidates = videoCandidates
	}

	base := strings.TrimSuffix(fullPath, ref.Extension)
	paths := make([]string, 0, len(candidates)+1)
	paths = append(paths, fullPath)
	for _, ext := range candidates {
		paths = append(paths, base+ext)
	}

	for _, p := range paths {
		info, err := e.fs.Stat(p)
		if err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return p, true
		}
	}

	if ref.Extension == "" {
		return e.guessedSibling(fullPath)
	}
	return "", false
}

// guessedSibling finds fullPath plus any extension, which is how images
// named after their Content-Type are stored.
func (e *Engine) guessedSibling(fullPath string) (string, bool) {
	dir, stem := filepath.Split(fullPath)
	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return "", false
	}
	for _, info := range entries {
		name := info.Name()
		if !strings.HasPrefix(name, stem+".") || strings.HasSuffix(name, partSuffix) {
			continue
		}
		if filepath.Ext(name) != name[len(stem):] {
			continue
		}
		if info.Mode().IsRegular() && info.Size() > 0 {
			return filepath.Join(dir, name), true
		}
	}
	return "", false
}

func (e *Engine) fetchImage(ctx context.Context, ref media.Ref, fullPath string) Outcome {
	resp, err := e.http.Get(ctx, ref.SourceURL, e.cfg.MediaTimeout)
	if err != nil {
		return failed(ErrDownloadImage, ref, fullPath, err)
	}
	defer resp.Body.Close()

	if ref.Extension == "" {
		fullPath += GuessExtension(resp.Header.Get("Content-Type"))
	}

	n, err := e.writeFile(fullPath, resp.Body)
	if err != nil {
		return failed(ErrWriteImage, ref, fullPath, err)
	}

	return Outcome{Status: StatusWritten, Path: fullPath, Bytes: n}
}

// writeFile streams r into a temporary sibling of path and renames it into
// place once complete.
func (e *Engine) writeFile(path string, r io.Reader) (int64, error) {
	tmp := path + partSuffix

	f, err := e.fs.Create(tmp)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = e.fs.Remove(tmp)
		return n, err
	}

	if err := e.fs.Rename(tmp, path); err != nil {
		_ = e.fs.Remove(tmp)
		return n, err
	}
	return n, nil
}

func (e *Engine) fetchVideo(ctx context.Context, ref media.Ref, fullPath string) Outcome {
	if e.videos == nil {
		return failed(ErrDownloadVideo, ref, fullPath, errors.New("no video retriever configured"))
	}

	template := strings.TrimSuffix(fullPath, ref.Extension)
	if err := e.videos.Retrieve(ctx, ref.SourceURL, template, e.cfg.Video); err != nil {
		return failed(ErrDownloadVideo, ref, fullPath, err)
	}

	out := Outcome{Status: StatusWritten, Path: fullPath}
	if p, ok := e.existing(fullPath, ref); ok {
		out.Path = p
		if info, err := e.fs.Stat(p); err == nil {
			out.Bytes = info.Size()
		}
	}
	return out
}

func failed(reason error, ref media.Ref, path string, err error) Outcome {
	return Outcome{
		Status: StatusFailed,
		Path:   path,
		Err:    &Error{Reason: reason, URL: ref.SourceURL, Path: path, Err: err},
	}
}

// GuessExtension maps a Content-Type header value to a file extension,
// falling back to DefaultImageExtension.
func GuessExtension(contentType string) string {
	if contentType == "" {
		return DefaultImageExtension
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultImageExtension
	}

	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return DefaultImageExtension
}
