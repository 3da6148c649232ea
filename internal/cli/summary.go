package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/runnerr0/blogmirror/internal/mirror"
	"github.com/runnerr0/blogmirror/internal/storage"
)

// summary is what a run reports once the walk ends.
type summary struct {
	Version     string
	URL         string
	Destination string
	Status      storage.RunStatus
	mirror.Summary

	Run        *storage.Run
	LedgerPath string
	Ledger     *storage.Stats
}

// summaryJSON is the --json output structure.
type summaryJSON struct {
	Version     string      `json:"version"`
	RunID       string      `json:"run_id,omitempty"`
	URL         string      `json:"url"`
	Destination string      `json:"destination"`
	Status      string      `json:"status"`
	StartedAt   string      `json:"started_at,omitempty"`
	FinishedAt  string      `json:"finished_at,omitempty"`
	Pages       int         `json:"pages"`
	Posts       int         `json:"posts"`
	Downloads   int         `json:"downloads"`
	Ledger      *ledgerJSON `json:"ledger,omitempty"`
}

type ledgerJSON struct {
	Path          string          `json:"path"`
	TotalRuns     int64           `json:"total_runs"`
	CompletedRuns int64           `json:"completed_runs"`
	TotalMedia    int64           `json:"total_media"`
	TotalBytes    int64           `json:"total_bytes"`
	LastRunAt     string          `json:"last_run_at,omitempty"`
	Kinds         []kindCountJSON `json:"kinds"`
}

type kindCountJSON struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

func printSummaryHuman(w io.Writer, s summary) {
	fmt.Fprintf(w, "Downloaded %s files (%s posts, %s pages)\n",
		formatNumber(int64(s.Downloads)), formatNumber(int64(s.Posts)), formatNumber(int64(s.Pages)))

	if s.Ledger == nil {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:           %s (%s)\n", s.Run.ID, runTiming(s.Run))
	fmt.Fprintf(w, "Ledger:        %s\n", s.LedgerPath)
	fmt.Fprintf(w, "Runs:          %s (%s completed)\n", formatNumber(s.Ledger.TotalRuns), formatNumber(s.Ledger.CompletedRuns))
	fmt.Fprintf(w, "Media:         %s (%s)\n", formatNumber(s.Ledger.TotalMedia), formatBytes(s.Ledger.TotalBytes))
	for _, k := range s.Ledger.Kinds {
		fmt.Fprintf(w, "  %-12s %s\n", k.Kind, formatNumber(k.Count))
	}
	fmt.Fprintln(w)
}

func printSummaryJSON(w io.Writer, s summary) error {
	out := summaryJSON{
		Version:     s.Version,
		URL:         s.URL,
		Destination: s.Destination,
		Status:      string(s.Status),
		Pages:       s.Pages,
		Posts:       s.Posts,
		Downloads:   s.Downloads,
	}

	if s.Run != nil {
		out.RunID = s.Run.ID
		out.StartedAt = s.Run.StartedAt.UTC().Format(time.RFC3339)
		if !s.Run.FinishedAt.IsZero() {
			out.FinishedAt = s.Run.FinishedAt.UTC().Format(time.RFC3339)
		}
	}

	if s.Ledger != nil {
		l := &ledgerJSON{
			Path:          s.LedgerPath,
			TotalRuns:     s.Ledger.TotalRuns,
			CompletedRuns: s.Ledger.CompletedRuns,
			TotalMedia:    s.Ledger.TotalMedia,
			TotalBytes:    s.Ledger.TotalBytes,
			Kinds:         make([]kindCountJSON, len(s.Ledger.Kinds)),
		}
		if s.Ledger.LastRun != nil {
			l.LastRunAt = s.Ledger.LastRun.StartedAt.UTC().Format(time.RFC3339)
		}
		for i, k := range s.Ledger.Kinds {
			l.Kinds[i] = kindCountJSON{Kind: k.Kind, Count: k.Count}
		}
		out.Ledger = l
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runTiming renders "completed, 1.2s" from the ledger's view of run.
func runTiming(run *storage.Run) string {
	if run.FinishedAt.IsZero() {
		return string(run.Status)
	}
	return fmt.Sprintf("%s, %s", run.Status, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}
