package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	goflags "github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/runnerr0/blogmirror/internal/video"
)

// ErrDestinationMissing is returned when the destination directory does not
// exist. Nothing is fetched in that case.
var ErrDestinationMissing = errors.New("destination path does not exist")

// deps are the outside-world collaborators of a run.
type deps struct {
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	http   *http.Client
	// videos overrides the yt-dlp retriever built from config.
	videos video.Retriever
	loc    *time.Location
}

func defaultDeps() deps {
	return deps{
		stdout: os.Stdout,
		stderr: os.Stderr,
		fs:     afero.NewOsFs(),
		http:   &http.Client{},
		loc:    time.Local,
	}
}

// buildParser constructs the go-flags parser for the root command.
func buildParser(opts *Options) *goflags.Parser {
	parser := goflags.NewParser(opts, goflags.Default)
	parser.Name = "blogmirror"
	parser.Usage = "[OPTIONS] <url> <destination>"
	parser.LongDescription = "Mirror a Blogger archive into a dated folder tree: one folder per post " +
		"holding its text and every embedded image and video."
	return parser
}

// Run is the main entry point using os.Args.
func Run(ctx context.Context, version string) error {
	return RunWithArgs(ctx, version, nil)
}

// RunWithArgs parses args (or os.Args if nil) and mirrors the archive.
func RunWithArgs(ctx context.Context, version string, args []string) error {
	return runWithDeps(ctx, version, args, defaultDeps())
}

func runWithDeps(ctx context.Context, version string, args []string, d deps) error {
	if args == nil {
		args = os.Args[1:]
	}

	// --version must work without the required positional arguments.
	for _, arg := range args {
		if arg == "--version" {
			fmt.Fprintf(d.stdout, "blogmirror %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	var opts Options
	if _, err := buildParser(&opts).ParseArgs(args); err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}

	m := &mirrorCommand{opts: &opts, version: version, deps: d}
	return m.execute(ctx)
}

// ExitCode maps the error returned by Run to a process exit status. An
// interrupt is a normal way to stop and exits 0.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}
