// Package naming turns media titles into on-disk filenames.
package naming

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultMaxPathLength is the longest full path a media file may have before
// its title is replaced by a digest.
const DefaultMaxPathLength = 200

// extraChars are kept in titles alongside letters and digits.
const extraChars = " -_."

// Sanitize builds the filename for the media item at ordinal inside
// destFolder. The result is "NNN_<title><ext>"; when destFolder plus the
// unprefixed name would exceed maxPathLen, the title is replaced by the MD5
// hex digest of rawTitle.
func Sanitize(rawTitle string, ordinal int, ext, destFolder string, maxPathLen int) string {
	name := Clean(rawTitle) + ext

	if maxPathLen > 0 && len(filepath.Join(destFolder, name)) > maxPathLen {
		name = Digest(rawTitle) + ext
	}

	return fmt.Sprintf("%03d_%s", ordinal, name)
}

// Clean strips every character outside the filename whitelist and trims
// trailing whitespace.
func Clean(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(extraChars, r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// Digest returns the lowercase MD5 hex digest of s.
func Digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
