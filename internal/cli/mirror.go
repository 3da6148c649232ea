package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/runnerr0/blogmirror/internal/config"
	"github.com/runnerr0/blogmirror/internal/download"
	"github.com/runnerr0/blogmirror/internal/fetch"
	"github.com/runnerr0/blogmirror/internal/logger"
	"github.com/runnerr0/blogmirror/internal/media"
	"github.com/runnerr0/blogmirror/internal/mirror"
	"github.com/runnerr0/blogmirror/internal/page"
	"github.com/runnerr0/blogmirror/internal/storage"
	"github.com/runnerr0/blogmirror/internal/video"
)

// mirrorCommand mirrors one archive into a destination directory.
type mirrorCommand struct {
	opts    *Options
	version string
	deps    deps
}

func (c *mirrorCommand) execute(ctx context.Context) error {
	cfg, err := c.resolveConfig()
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	log, err := logger.Setup(c.deps.stderr, level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	// Path limits are measured on the absolute path.
	dest, err := filepath.Abs(c.opts.Args.Destination)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if ok, err := isDir(c.deps, dest); err != nil || !ok {
		fmt.Fprintln(c.deps.stdout, "Destination path does not exist")
		return fmt.Errorf("%s: %w", dest, ErrDestinationMissing)
	}

	policy, err := mirror.ParsePolicy(cfg.Download.Policy)
	if err != nil {
		return err
	}

	var (
		ledger   *storage.SQLiteStore
		run      *storage.Run
		recorder mirror.Recorder
	)
	if cfg.Ledger.Enabled {
		ledger, err = storage.Open(ctx, ledgerPath(dest, cfg.Ledger.File))
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()

		run, err = ledger.StartRun(ctx, c.opts.Args.URL, dest)
		if err != nil {
			return err
		}
		recorder = &ledgerRecorder{store: ledger, runID: run.ID}
		log = log.With(slog.String("run", run.ID))
	}

	walker := c.buildWalker(cfg, policy, dest, recorder, log)

	log.Info("mirroring archive",
		slog.String("url", c.opts.Args.URL),
		slog.String("destination", dest),
		slog.String("policy", string(policy)))

	sum, walkErr := walker.Walk(ctx, c.opts.Args.URL)

	status := runStatus(walkErr)
	if run != nil {
		// The run is recorded even when ctx was canceled.
		finishCtx := context.WithoutCancel(ctx)
		if err := ledger.FinishRun(finishCtx, run.ID, status, int64(sum.Downloads)); err != nil {
			log.Warn("ledger update failed", slog.Any("error", err))
		} else if finished, err := ledger.GetRun(finishCtx, run.ID); err == nil {
			run = finished
		}
	}

	switch {
	case walkErr == nil:
		fmt.Fprint(c.progress(), "Done.\n\n")
	case errors.Is(walkErr, context.Canceled):
		fmt.Fprint(c.progress(), "\n\nCtrl+C. Bye.\n\n")
		return walkErr
	case mirror.IsAbort(walkErr):
		fmt.Fprintf(c.progress(), "\n\n%s\n\nDownload failed, shutting down. Bye.\n\n", oneLine(walkErr.Error()))
	default:
		log.Error("mirror stopped", slog.Any("error", walkErr))
	}

	s := summary{
		Version:     c.version,
		URL:         c.opts.Args.URL,
		Destination: dest,
		Status:      status,
		Summary:     sum,
	}
	if run != nil {
		s.Run = run
		s.LedgerPath = ledgerPath(dest, cfg.Ledger.File)
		if stats, err := ledger.GetStats(context.WithoutCancel(ctx)); err == nil {
			s.Ledger = stats
		} else {
			log.Warn("ledger stats unavailable", slog.Any("error", err))
		}
	}

	var printErr error
	if c.opts.JSON {
		printErr = printSummaryJSON(c.deps.stdout, s)
	} else {
		printSummaryHuman(c.deps.stdout, s)
	}

	if walkErr != nil {
		return walkErr
	}
	return printErr
}

// resolveConfig loads the config file and environment, then applies flags.
func (c *mirrorCommand) resolveConfig() (*config.Config, error) {
	cfg, err := config.Resolve(c.opts.Config)
	if err != nil {
		return nil, err
	}

	if c.opts.Policy != "" {
		cfg.Download.Policy = c.opts.Policy
	}
	if c.opts.MaxPath > 0 {
		cfg.Crawl.MaxPathLength = c.opts.MaxPath
	}
	if c.opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	if c.opts.NoLedger {
		cfg.Ledger.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *mirrorCommand) buildWalker(cfg *config.Config, policy mirror.Policy, dest string, recorder mirror.Recorder, log *slog.Logger) *mirror.Walker {
	client := fetch.NewClient(c.deps.http, cfg.Crawl.RequestDelay, cfg.Crawl.UserAgent)

	videos := c.deps.videos
	if videos == nil {
		videos = video.NewYTDLP(cfg.Video.Binary)
	}

	engine := download.NewEngine(c.deps.fs, client, videos, download.Config{
		MaxPathLength: cfg.Crawl.MaxPathLength,
		MediaTimeout:  cfg.Crawl.MediaTimeout,
		Video: video.Options{
			Format:        cfg.Video.Format,
			MergeFormat:   cfg.Video.MergeFormat,
			SocketTimeout: cfg.Video.SocketTimeout,
			Quiet:         true,
		},
	}, log)

	proc := mirror.NewProcessor(c.deps.fs, engine, mirror.ProcessorOptions{
		Destination: dest,
		Policy:      policy,
		Recorder:    recorder,
		Progress:    c.progress(),
		Logger:      log,
	})

	pages := fetch.NewPages(client, cfg.Crawl.PageRetryDelay, log)
	return mirror.NewWalker(pages, page.NewNaturalDates(c.deps.loc), proc, c.progress(), log)
}

// progress is where progress lines and banners go. With --json stdout is
// reserved for the summary document.
func (c *mirrorCommand) progress() io.Writer {
	if c.opts.JSON {
		return c.deps.stderr
	}
	return c.deps.stdout
}

// ledgerRecorder stores every written media file under the current run.
type ledgerRecorder struct {
	store storage.Store
	runID string
}

func (r *ledgerRecorder) Record(ctx context.Context, ref media.Ref, out download.Outcome) error {
	return r.store.RecordMedia(ctx, &storage.MediaRecord{
		RunID:     r.runID,
		Kind:      string(ref.Kind),
		SourceURL: ref.SourceURL,
		Path:      out.Path,
		Bytes:     out.Bytes,
	})
}

func runStatus(err error) storage.RunStatus {
	switch {
	case err == nil:
		return storage.RunCompleted
	case errors.Is(err, context.Canceled):
		return storage.RunInterrupted
	default:
		return storage.RunFailed
	}
}

func oneLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
