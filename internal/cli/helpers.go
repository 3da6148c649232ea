package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// isDir reports whether path is an existing directory on d.fs.
func isDir(d deps, path string) (bool, error) {
	return afero.DirExists(d.fs, path)
}

// ledgerPath resolves the ledger file name against the destination root.
func ledgerPath(dest, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dest, file)
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteString(",")
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
