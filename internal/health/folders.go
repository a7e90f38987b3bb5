package health

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FolderChecker verifies that library and recording folders are usable.
type FolderChecker struct{}

// NewFolderChecker creates a new folder checker.
func NewFolderChecker() *FolderChecker {
	return &FolderChecker{}
}

// CheckFolderAccessible verifies that a path exists and is a directory.
func (c *FolderChecker) CheckFolderAccessible(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied: %s", path)
		}
		return fmt.Errorf("cannot access path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// CheckFolderWritable verifies that a directory is writable.
// This works cross-platform by attempting to create and delete a temp file.
func (c *FolderChecker) CheckFolderWritable(path string) error {
	tempFileName := fmt.Sprintf(".sideline_health_check_%s", uuid.New().String()[:8])
	tempPath := filepath.Join(path, tempFileName)

	file, err := os.Create(tempPath)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("folder is read-only: %s", path)
		}
		return fmt.Errorf("cannot write to folder: %w", err)
	}

	testData := []byte("health check")
	if _, err := file.Write(testData); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("cannot write data: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("cannot close file: %w", err)
	}

	if err := os.Remove(tempPath); err != nil {
		return fmt.Errorf("cannot remove test file: %w", err)
	}

	return nil
}

// CheckFolderHealth combines accessibility and writability checks.
// Returns (ok, message) where message describes the issue if not ok.
func (c *FolderChecker) CheckFolderHealth(path string) (bool, string) {
	if err := c.CheckFolderAccessible(path); err != nil {
		return false, err.Error()
	}

	if err := c.CheckFolderWritable(path); err != nil {
		return false, err.Error()
	}

	return true, ""
}
