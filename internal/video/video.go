// Package video retrieves hosted videos into local muxed files.
package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Options tune a single retrieval.
type Options struct {
	// Format is the stream selector, e.g. "bestvideo+bestaudio/best".
	Format string
	// MergeFormat is the container the streams are muxed into.
	MergeFormat   string
	SocketTimeout time.Duration
	Quiet         bool
}

// Retriever downloads the video behind pageURL. template is the output path
// without extension; the retriever appends the container extension.
type Retriever interface {
	Retrieve(ctx context.Context, pageURL, template string, opts Options) error
}

// YTDLP drives the yt-dlp executable.
type YTDLP struct {
	Binary string
}

// NewYTDLP returns a retriever running binary, or "yt-dlp" from PATH when
// binary is empty.
func NewYTDLP(binary string) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{Binary: binary}
}

// Retrieve runs yt-dlp and returns its stderr tail on failure.
func (y *YTDLP) Retrieve(ctx context.Context, pageURL, template string, opts Options) error {
	cmd := exec.CommandContext(ctx, y.Binary, y.Args(pageURL, template, opts)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", y.Binary, err, lastLine(msg))
		}
		return fmt.Errorf("%s: %w", y.Binary, err)
	}
	return nil
}

// Args builds the yt-dlp command line.
func (y *YTDLP) Args(pageURL, template string, opts Options) []string {
	format := opts.Format
	if format == "" {
		format = "bestvideo+bestaudio/best"
	}
	merge := opts.MergeFormat
	if merge == "" {
		merge = "mp4"
	}

	args := []string{
		"--format", format,
		"--merge-output-format", merge,
		"--output", template + ".%(ext)s",
		"--no-playlist",
	}
	if opts.SocketTimeout > 0 {
		secs := int(opts.SocketTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, "--socket-timeout", strconv.Itoa(secs))
	}
	if opts.Quiet {
		args = append(args, "--quiet", "--no-warnings")
	}

	return append(args, "--", pageURL)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

var _ Retriever = (*YTDLP)(nil)
