package importer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sideline/sideline/internal/pathutil"
	"github.com/sideline/sideline/internal/store"
)

// videoExtensions are the file types the importer recognizes as media.
var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".ts":   true,
	".wmv":  true,
	".mov":  true,
	".webm": true,
	".mpg":  true,
	".mpeg": true,
	".m2ts": true,
}

// IsVideoFile checks if a filename has a recognized video extension.
func IsVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// isSampleFile flags the small promo files release groups bundle.
func isSampleFile(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.Contains(lower, "sample") || strings.Contains(lower, "proof")
}

// MapRemotePath rewrites a download client's reported path into a local
// path using the mapping table. The host must match case-insensitively;
// among matching rows the longest remote prefix wins. Paths are compared
// with forward slashes. An unmapped path is returned unchanged.
func MapRemotePath(mappings []store.RemotePathMapping, host, remotePath string) string {
	normalized := pathutil.NormalizePath(remotePath)

	var best *store.RemotePathMapping
	bestLen := -1
	for i := range mappings {
		m := &mappings[i]
		if !strings.EqualFold(m.Host, host) {
			continue
		}
		prefix := ensureTrailingSlash(pathutil.NormalizePath(m.RemotePath))
		if !strings.HasPrefix(ensureTrailingSlash(normalized), prefix) {
			continue
		}
		if len(prefix) > bestLen {
			best = m
			bestLen = len(prefix)
		}
	}
	if best == nil {
		return remotePath
	}

	prefix := ensureTrailingSlash(pathutil.NormalizePath(best.RemotePath))
	rest := strings.TrimPrefix(ensureTrailingSlash(normalized), prefix)
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return filepath.FromSlash(strings.TrimSuffix(ensureTrailingSlash(best.LocalPath), "/"))
	}
	return filepath.FromSlash(ensureTrailingSlash(pathutil.NormalizePath(best.LocalPath)) + rest)
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// findPrimaryVideo resolves the media file to import: the path itself if
// it is a video file, otherwise the largest non-sample video file under
// it.
func findPrimaryVideo(path string) (string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}

	if !info.IsDir() {
		if !IsVideoFile(path) {
			return "", 0, ErrNoVideoFile
		}
		return path, info.Size(), nil
	}

	var bestPath string
	var bestSize int64
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsVideoFile(p) || isSampleFile(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > bestSize {
			bestPath = p
			bestSize = fi.Size()
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	if bestPath == "" {
		return "", 0, ErrNoVideoFile
	}
	return bestPath, bestSize, nil
}
