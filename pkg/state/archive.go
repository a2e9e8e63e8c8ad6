package state

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProcessedDir is the archive root under the batch destination.
const ProcessedDir = "processed"

// ArchiveFiles relocates consumed batch files under a per-run-date
// subdirectory. Content is moved, never deleted. The returned map gives the
// archive path per batch name; a batch whose move failed maps to "" — the
// database is authoritative for the archived set, so a leftover file is only
// an audit blemish, and it is logged rather than failing the run.
func ArchiveFiles(baseDir string, paths []string, runAt time.Time, logger *slog.Logger) map[string]string {
	dated := filepath.Join(baseDir, ProcessedDir, runAt.Format("2006-01-02"))
	archived := make(map[string]string, len(paths))

	if err := os.MkdirAll(dated, 0750); err != nil {
		logger.Warn("failed to create archive directory", "dir", dated, "error", err)
		for _, p := range paths {
			archived[filepath.Base(p)] = ""
		}
		return archived
	}

	for _, path := range paths {
		name := filepath.Base(path)
		target := collisionFree(filepath.Join(dated, name))
		if err := os.Rename(path, target); err != nil {
			logger.Warn("failed to archive batch file", "batch", name, "error", err)
			archived[name] = ""
			continue
		}
		archived[name] = target
	}
	return archived
}

// collisionFree appends _1, _2, ... before the extension until the target
// does not exist.
func collisionFree(target string) string {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
