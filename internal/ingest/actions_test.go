package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/state"
)

// memNotifier records deliveries.
type memNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
	err      error
}

func (n *memNotifier) Send(_ context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeBatch(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	content := "tweet_id,captured_at,tweet_text\r\n" + strings.Join(rows, "\r\n") + "\r\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func llmServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func alwaysSummarize(reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"` + reply + `"}}]}`))
	}
}

func pipelineConfig(t *testing.T, exportDir, llmURL string) *models.Config {
	t.Helper()
	return &models.Config{
		Capture: models.CaptureConfig{ExportDir: exportDir},
		Ingest:  models.IngestConfig{WindowMinutes: 60, StateDir: t.TempDir()},
		Summarizer: models.SummarizerConfig{
			BaseURL:    llmURL,
			APIKey:     "k",
			Model:      "m",
			ChunkChars: 8000,
			MaxRetries: 1,
			GroupLimit: 5,
		},
		Feed: models.FeedConfig{Path: filepath.Join(t.TempDir(), "feed.json"), MaxEntries: 10},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	exportDir := t.TempDir()
	now := time.Now().UTC().Format(time.RFC3339)
	writeBatch(t, exportDir, "one.csv",
		"1,"+now+",first post",
		"2,"+now+",second post")
	writeBatch(t, exportDir, "two.csv",
		"2,"+now+",second post",
		"3,"+now+",third post")

	server := llmServer(t, alwaysSummarize("the merged digest"))
	cfg := pipelineConfig(t, exportDir, server.URL)

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	notifier := &memNotifier{}
	if err := run(context.Background(), cfg, store, notifier, testLogger()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(notifier.bodies) != 1 {
		t.Fatalf("expected one delivery, got %d", len(notifier.bodies))
	}
	if notifier.bodies[0] != "the merged digest" {
		t.Errorf("body = %q", notifier.bodies[0])
	}
	if !strings.Contains(notifier.subjects[0], "3 posts") {
		t.Errorf("subject should carry the deduplicated count, got %q", notifier.subjects[0])
	}

	// Both batches archived in the database and moved on disk.
	for _, name := range []string{"one.csv", "two.csv"} {
		archived, err := store.IsArchived(name)
		if err != nil || !archived {
			t.Errorf("%s should be archived: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(exportDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should be moved out of the export dir", name)
		}
	}
	dated := filepath.Join(exportDir, state.ProcessedDir, time.Now().UTC().Format("2006-01-02"))
	if _, err := os.Stat(filepath.Join(dated, "one.csv")); err != nil {
		t.Errorf("archived file missing: %v", err)
	}

	if _, err := os.Stat(cfg.Feed.Path); err != nil {
		t.Errorf("feed not written: %v", err)
	}

	// A second run finds nothing and records a skip.
	if err := run(context.Background(), cfg, store, notifier, testLogger()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(notifier.bodies) != 1 {
		t.Errorf("already-consumed batches must not be re-summarized")
	}
}

func TestRun_NoBatchesRecordsSkip(t *testing.T) {
	server := llmServer(t, alwaysSummarize("unused"))
	cfg := pipelineConfig(t, t.TempDir(), server.URL)

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	notifier := &memNotifier{}
	if err := run(context.Background(), cfg, store, notifier, testLogger()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(notifier.bodies) != 0 {
		t.Error("nothing to summarize, nothing to send")
	}

	var count int
	if err := store.QueryRow("SELECT COUNT(*) FROM runs WHERE status = 'skipped'").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a skipped run, got %d", count)
	}
}

func TestRun_SummarizeFailureLeavesBatches(t *testing.T) {
	exportDir := t.TempDir()
	now := time.Now().UTC().Format(time.RFC3339)
	writeBatch(t, exportDir, "one.csv", "1,"+now+",a post")

	server := llmServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	cfg := pipelineConfig(t, exportDir, server.URL)

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	notifier := &memNotifier{}
	if err := run(context.Background(), cfg, store, notifier, testLogger()); err == nil {
		t.Fatal("a failed summarization must fail the run")
	}

	archived, err := store.IsArchived("one.csv")
	if err != nil {
		t.Fatalf("IsArchived: %v", err)
	}
	if archived {
		t.Error("failed runs must not archive their batches")
	}
	if _, statErr := os.Stat(filepath.Join(exportDir, "one.csv")); statErr != nil {
		t.Errorf("batch file must stay in place for the next run: %v", statErr)
	}
	if len(notifier.bodies) != 0 {
		t.Error("nothing may be delivered on failure")
	}

	var stage string
	if err := store.QueryRow("SELECT stage FROM runs WHERE status = 'failed'").Scan(&stage); err != nil {
		t.Fatalf("query: %v", err)
	}
	if stage != "summarize" {
		t.Errorf("failing stage = %q", stage)
	}

	status, err := store.CurrentStatus()
	if err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}
	if status.LastDigest != "" {
		t.Errorf("last digest must stay unchanged on failure, got %q", status.LastDigest)
	}
	if status.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", status.ConsecutiveFailures)
	}
}

func TestRun_DeliveryFailureLeavesBatches(t *testing.T) {
	exportDir := t.TempDir()
	now := time.Now().UTC().Format(time.RFC3339)
	writeBatch(t, exportDir, "one.csv", "1,"+now+",a post")

	server := llmServer(t, alwaysSummarize("a digest"))
	cfg := pipelineConfig(t, exportDir, server.URL)

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	notifier := &memNotifier{err: context.DeadlineExceeded}
	if err := run(context.Background(), cfg, store, notifier, testLogger()); err == nil {
		t.Fatal("a failed delivery must fail the run")
	}

	archived, _ := store.IsArchived("one.csv")
	if archived {
		t.Error("an undelivered digest must not consume its batches")
	}

	var stage string
	if err := store.QueryRow("SELECT stage FROM runs WHERE status = 'failed'").Scan(&stage); err != nil {
		t.Fatalf("query: %v", err)
	}
	if stage != "deliver" {
		t.Errorf("failing stage = %q", stage)
	}
}

func TestRun_ReleasesLockOnFailure(t *testing.T) {
	exportDir := t.TempDir()
	now := time.Now().UTC().Format(time.RFC3339)
	writeBatch(t, exportDir, "one.csv", "1,"+now+",a post")

	server := llmServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	cfg := pipelineConfig(t, exportDir, server.URL)

	store, err := state.Open(cfg.Ingest.StateDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	_ = run(context.Background(), cfg, store, &memNotifier{}, testLogger())

	ok, err := store.AcquireRunLock(time.Now(), 30*time.Minute)
	if err != nil {
		t.Fatalf("AcquireRunLock: %v", err)
	}
	if !ok {
		t.Error("the run lock must be released even when the run fails")
	}
}

func TestDominantLanguage(t *testing.T) {
	records := []models.Record{
		{Language: "en"}, {Language: "ja"}, {Language: "en"}, {Language: ""},
	}
	if got := dominantLanguage(records); got != "en" {
		t.Errorf("dominantLanguage = %q, want en", got)
	}
	if got := dominantLanguage(nil); got != "" {
		t.Errorf("dominantLanguage(nil) = %q", got)
	}
}
