// Package pathutil provides path normalization and filename sanitization.
package pathutil

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts all path separators to forward slashes.
// Go's os.Open/os.Stat accept forward slashes on all platforms.
func NormalizePath(p string) string {
	return filepath.ToSlash(p)
}

// invalidNameChars are characters that cannot appear in file or folder
// names on at least one supported filesystem.
const invalidNameChars = `\/:*?"<>|`

// SanitizeName makes a string safe to use as a single path component:
// path-invalid characters become spaces, runs of whitespace collapse,
// and trailing dots and spaces are trimmed.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidNameChars, r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	return strings.TrimRight(cleaned, ". ")
}
