package scan

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dtnitsch/deck-digest/models"
)

// Header aliases accepted when reading a batch back. Batches may come from
// older exporter versions or hand-merged files, so lookups are forgiving.
var (
	idAliases       = []string{"tweet_id", "Tweet ID", "TweetId", "tweetId", "id"}
	textAliases     = []string{"tweet_text", "Tweet Text", "text", "content"}
	postedAliases   = []string{"posted_at", "Posted At (ISO)", "Posted At", "Posted at", "date", "Date"}
	capturedAliases = []string{"captured_at", "Captured At (ISO)", "Captured At"}
	authorAliases   = []string{"author", "Author", "name", "Screen Name"}
)

// ReadBatch parses one structured batch file into Records. Rows with no text
// are dropped, matching capture behavior.
func ReadBatch(path string) (models.Batch, error) {
	batch := models.Batch{Name: filepath.Base(path), Path: path}

	f, err := os.Open(path)
	if err != nil {
		return batch, fmt.Errorf("scan: failed to open batch: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(stripBOM(f))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return batch, fmt.Errorf("scan: failed to read header: %w", err)
	}
	cols := indexColumns(header)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return batch, fmt.Errorf("scan: malformed row in %s: %w", batch.Name, err)
		}

		rec := recordFromRow(cols, row)
		if rec.Text == "" {
			continue
		}
		batch.Records = append(batch.Records, rec)
	}

	return batch, nil
}

// columnIndex maps canonical field names to row positions.
type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[strings.TrimSpace(name)] = i
	}

	cols := make(columnIndex)
	resolve := func(field string, aliases []string) {
		for _, alias := range aliases {
			if i, ok := byName[alias]; ok {
				cols[field] = i
				return
			}
		}
	}

	resolve("id", idAliases)
	resolve("text", textAliases)
	resolve("posted_at", postedAliases)
	resolve("captured_at", capturedAliases)
	resolve("author", authorAliases)
	for _, plain := range []string{"column_title", "column_id", "column_position", "media_urls", "replies", "reposts", "likes", "language"} {
		resolve(plain, []string{plain})
	}
	return cols
}

func recordFromRow(cols columnIndex, row []string) models.Record {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	getInt := func(field string) int {
		n, _ := strconv.Atoi(get(field))
		return n
	}

	rec := models.Record{
		ID:             get("id"),
		Text:           get("text"),
		Author:         get("author"),
		PostedAt:       ParseTimestamp(get("posted_at")),
		CapturedAt:     ParseTimestamp(get("captured_at")),
		ColumnTitle:    get("column_title"),
		ColumnID:       get("column_id"),
		ColumnPosition: getInt("column_position"),
		Replies:        getInt("replies"),
		Reposts:        getInt("reposts"),
		Likes:          getInt("likes"),
		Language:       get("language"),
	}
	if media := get("media_urls"); media != "" {
		rec.MediaURLs = strings.Fields(media)
	}
	return rec
}

// ParseTimestamp parses an ISO-8601 timestamp, returning the zero time when
// the value is absent or malformed.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// stripBOM drops a leading UTF-8 byte-order marker so batches written with
// the encoding prefix parse cleanly.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(3); err == nil && lead[0] == 0xef && lead[1] == 0xbb && lead[2] == 0xbf {
		_, _ = br.Discard(3)
	}
	return br
}
