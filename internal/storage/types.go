package storage

import "time"

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one invocation of the crawler against an archive.
type Run struct {
	ID          string
	SourceURL   string
	Destination string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Status      RunStatus
	Downloads   int64
}

// MediaRecord is a media file written during a run.
type MediaRecord struct {
	RunID        string
	Kind         string // "image", "video"
	SourceURL    string
	Path         string
	Bytes        int64
	DownloadedAt time.Time
}

// Stats holds aggregate statistics about the ledger.
type Stats struct {
	TotalRuns     int64
	CompletedRuns int64
	TotalMedia    int64
	TotalBytes    int64
	LastRun       *Run
	Kinds         []KindCount
}

// KindCount pairs a media kind with its file count.
type KindCount struct {
	Kind  string
	Count int64
}
