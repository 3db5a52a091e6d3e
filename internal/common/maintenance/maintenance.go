package maintenance

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/travelguide-gtfs/internal/common/logger"
)

// DefaultTempRetention is how long a temp file may sit next to the
// snapshot before it is treated as left over from an interrupted write.
const DefaultTempRetention = time.Hour

// CleanupResult represents the result of a cleanup operation
type CleanupResult struct {
	Dir          string
	FilesDeleted int
	BytesFreed   int64
	Success      bool
	Error        string
}

// Maintenance removes files an interrupted snapshot write can leave behind.
type Maintenance struct {
	logger logger.Logger
}

// New creates a new Maintenance instance
func New(logger logger.Logger) *Maintenance {
	return &Maintenance{logger: logger}
}

// CleanupTempFiles deletes "<snapshot>.*.tmp" siblings of snapshotPath
// last modified more than olderThan before now. Younger files may belong
// to a write in progress and are kept.
func (m *Maintenance) CleanupTempFiles(snapshotPath string, olderThan time.Duration, now time.Time) (CleanupResult, error) {
	dir := filepath.Dir(snapshotPath)
	result := CleanupResult{Dir: dir}

	matches, err := filepath.Glob(filepath.Join(dir, filepath.Base(snapshotPath)+".*.tmp"))
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("listing temp files: %w", err)
	}

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			m.logger.Warn("Failed to inspect temp file", "path", path, "error", err)
			continue
		}
		if info.IsDir() || now.Sub(info.ModTime()) <= olderThan {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("Failed to remove temp file", "path", path, "error", err)
			continue
		}
		result.FilesDeleted++
		result.BytesFreed += info.Size()
	}

	result.Success = true
	if result.FilesDeleted > 0 {
		m.logger.Info("Removed leftover snapshot temp files",
			"dir", dir,
			"files_deleted", result.FilesDeleted,
			"bytes_freed", result.BytesFreed)
	}
	return result, nil
}
