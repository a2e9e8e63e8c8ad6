// Package scan discovers unprocessed batch files in the structured export
// destination. Scanning is side-effect free and safe to repeat; archiving is
// pkg/state's job.
package scan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dtnitsch/deck-digest/models"
)

// ArchiveIndex answers whether a batch has already been consumed. The state
// store is authoritative; files left behind by a failed move are still
// excluded.
type ArchiveIndex interface {
	IsArchived(batchName string) (bool, error)
}

// Scanner lists fresh, unarchived batches.
type Scanner struct {
	dir      string
	window   time.Duration
	archived ArchiveIndex
	logger   *slog.Logger
}

func New(dir string, window time.Duration, archived ArchiveIndex, logger *slog.Logger) *Scanner {
	return &Scanner{dir: dir, window: window, archived: archived, logger: logger}
}

// Fresh returns batches modified within the freshness window relative to now
// and not present in the archive index, ordered oldest first. A batch that
// cannot be read is skipped and logged, never aborting the scan.
func (s *Scanner) Fresh(now time.Time) ([]models.Batch, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: failed to list %s: %w", s.dir, err)
	}

	cutoff := now.Add(-s.window)

	type candidate struct {
		name    string
		path    string
		modTime time.Time
	}
	var candidates []candidate

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable batch", "batch", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}

		archived, err := s.archived.IsArchived(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("scan: archive lookup for %s: %w", entry.Name(), err)
		}
		if archived {
			continue
		}

		candidates = append(candidates, candidate{
			name:    entry.Name(),
			path:    filepath.Join(s.dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.Before(candidates[j].modTime)
	})

	batches := make([]models.Batch, 0, len(candidates))
	for _, c := range candidates {
		batch, err := ReadBatch(c.path)
		if err != nil {
			s.logger.Warn("skipping unreadable batch", "batch", c.name, "error", err)
			continue
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
