// Package export serializes capture results to batch files. Structured
// batches land in the base directory where the ingestion scanner finds them;
// plain-text fallbacks land in a separate pages/ subdirectory so they never
// enter the summarization pipeline.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/extract"
)

const (
	// PagesDir holds plain-text fallback captures, outside the scanner's view.
	PagesDir = "pages"

	// utf8BOM prefixes every batch for downstream encoding safety.
	utf8BOM = "\xef\xbb\xbf"

	maxBaseNameLen = 80
)

// Header is the stable column order of a structured batch.
var Header = []string{
	"tweet_id",
	"captured_at",
	"posted_at",
	"author",
	"tweet_text",
	"column_title",
	"column_id",
	"column_position",
	"media_urls",
	"replies",
	"reposts",
	"likes",
	"language",
}

// Writer owns the batch destination directories.
type Writer struct {
	baseDir string
}

// NewWriter ensures the destination directories exist.
func NewWriter(baseDir string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("export: base directory is required")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, PagesDir), 0750); err != nil {
		return nil, fmt.Errorf("export: failed to create destination: %w", err)
	}
	return &Writer{baseDir: baseDir}, nil
}

// BaseDir returns the structured batch destination.
func (w *Writer) BaseDir() string { return w.baseDir }

// WriteResult serializes one capture result. It returns the written path, or
// "" when the capture had no content to persist.
func (w *Writer) WriteResult(res *extract.Result, suggestedBase string) (string, error) {
	if res.Mode == models.OutputStructured && len(res.Records) > 0 {
		return w.writeCSV(res.Records, suggestedBase)
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", nil
	}
	return w.writeText(res, suggestedBase)
}

func (w *Writer) writeCSV(records []models.Record, suggestedBase string) (string, error) {
	path := filepath.Join(w.baseDir, DeriveFilename(suggestedBase, time.Now().UTC(), ".csv"))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("export: failed to create batch file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return "", fmt.Errorf("export: failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(f)
	cw.UseCRLF = true

	if err := cw.Write(Header); err != nil {
		return "", fmt.Errorf("export: failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(recordRow(rec)); err != nil {
			return "", fmt.Errorf("export: failed to write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("export: failed to flush batch: %w", err)
	}
	return path, nil
}

// writeText serializes the fallback payload as labeled sections, the same
// shape the CSV merge tool consumes.
func (w *Writer) writeText(res *extract.Result, suggestedBase string) (string, error) {
	path := filepath.Join(w.baseDir, PagesDir, DeriveFilename(suggestedBase, time.Now().UTC(), ".txt"))

	var sb strings.Builder
	sb.WriteString(utf8BOM)
	sb.WriteString("Title: " + res.Title + "\n")
	sb.WriteString("URL: " + res.SourceURL + "\n")
	sb.WriteString("Captured At: " + res.CapturedAt + "\n")
	sb.WriteString("\n")
	sb.WriteString(res.Text)
	sb.WriteString("\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		return "", fmt.Errorf("export: failed to write text capture: %w", err)
	}
	return path, nil
}

func recordRow(rec models.Record) []string {
	postedAt := ""
	if !rec.PostedAt.IsZero() {
		postedAt = rec.PostedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		rec.ID,
		rec.CapturedAt.UTC().Format(time.RFC3339),
		postedAt,
		rec.Author,
		rec.Text,
		rec.ColumnTitle,
		rec.ColumnID,
		strconv.Itoa(rec.ColumnPosition),
		strings.Join(rec.MediaURLs, " "),
		strconv.Itoa(rec.Replies),
		strconv.Itoa(rec.Reposts),
		strconv.Itoa(rec.Likes),
		rec.Language,
	}
}

var unsafeFilenameChar = regexp.MustCompile(`[\x00-\x1f\\/:*?"<>|]+`)

// DeriveFilename sanitizes a suggested base name and appends a capture
// timestamp for uniqueness.
func DeriveFilename(base string, at time.Time, ext string) string {
	cleaned := unsafeFilenameChar.ReplaceAllString(strings.TrimSpace(base), "_")
	cleaned = strings.Trim(cleaned, "._ ")
	if cleaned == "" {
		cleaned = "capture"
	}
	if len(cleaned) > maxBaseNameLen {
		cleaned = cleaned[:maxBaseNameLen]
	}
	return fmt.Sprintf("%s-%s%s", cleaned, at.Format("20060102-150405"), ext)
}
