package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// placeFile lands the source file at dest. With hardlinks enabled it
// links and falls back to a copy on cross-device errors; otherwise it
// copies. Returns the mechanism used ("hardlink" or "copy").
func (s *Service) placeFile(source, dest string) (string, error) {
	if err := ensureDestDir(dest); err != nil {
		return "", err
	}

	if s.useHardlinks {
		if err := os.Link(source, dest); err == nil {
			return "hardlink", nil
		} else if !isCrossDeviceError(err) {
			s.logger.Debug().Err(err).Str("source", source).Msg("hardlink failed, copying")
		}
	}

	if err := copyFile(source, dest); err != nil {
		return "", err
	}
	return "copy", nil
}

// ensureDestDir creates the destination directory, inheriting the
// parent's permissions when it exists.
func ensureDestDir(destPath string) error {
	destDir := filepath.Dir(destPath)
	if info, err := os.Stat(destDir); err == nil && info.IsDir() {
		return nil
	}

	perm := os.FileMode(0o755)
	if parentInfo, err := os.Stat(filepath.Dir(destDir)); err == nil {
		perm = parentInfo.Mode().Perm()
	}
	if err := os.MkdirAll(destDir, perm); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	return nil
}

// copyFile copies through a temp file and renames so a crash cannot
// leave a partial file at the destination.
func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to flush destination: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize destination: %w", err)
	}
	return nil
}

// isCrossDeviceError checks for EXDEV-style failures.
func isCrossDeviceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "cross-device") || strings.Contains(msg, "not on the same disk")
}
