package digest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FeedEntry is one digest in the static feed consumed by the status page.
type FeedEntry struct {
	GeneratedAt time.Time `json:"generated_at"`
	RecordCount int       `json:"record_count"`
	ChunkCount  int       `json:"chunk_count"`
	Summary     string    `json:"summary"`
	SourceFiles []string  `json:"source_files"`
}

type feedFile struct {
	Entries     []FeedEntry `json:"entries"`
	LastUpdated time.Time   `json:"last_updated"`
}

// UpdateFeed prepends an entry to the JSON feed at path, keeping at most
// maxEntries. A corrupt existing feed is regenerated rather than failing the
// run.
func UpdateFeed(path string, entry FeedEntry, maxEntries int) error {
	if path == "" {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 48
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("digest: failed to create feed directory: %w", err)
	}

	var feed feedFile
	if data, err := os.ReadFile(path); err == nil {
		// Best effort; unparseable content starts fresh.
		_ = json.Unmarshal(data, &feed)
	}

	feed.Entries = append([]FeedEntry{entry}, feed.Entries...)
	if len(feed.Entries) > maxEntries {
		feed.Entries = feed.Entries[:maxEntries]
	}
	feed.LastUpdated = entry.GeneratedAt

	data, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("digest: failed to marshal feed: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("digest: failed to write feed: %w", err)
	}
	return nil
}
