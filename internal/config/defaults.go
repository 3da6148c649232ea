package config

import (
	"time"

	"github.com/runnerr0/blogmirror/internal/fetch"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			MaxPathLength:  200,
			PageRetryDelay: 5 * time.Second,
			RequestDelay:   100 * time.Millisecond,
			MediaTimeout:   10 * time.Second,
			UserAgent:      fetch.DefaultUserAgent,
		},
		Download: DownloadConfig{
			Policy: PolicyFailFast,
		},
		Video: VideoConfig{
			Binary:        "yt-dlp",
			Format:        "bestvideo+bestaudio/best",
			MergeFormat:   "mp4",
			SocketTimeout: 10 * time.Second,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			File:    ".blogmirror.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
