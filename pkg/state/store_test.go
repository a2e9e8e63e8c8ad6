package state

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCommit_ArchivesAllBatches(t *testing.T) {
	store := openTestStore(t)
	startedAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	res := RunResult{
		StartedAt:   startedAt,
		BatchNames:  []string{"a.csv", "b.csv"},
		RecordCount: 12,
		ChunkCount:  2,
		Digest:      "the digest text",
	}
	if err := store.Commit(res, map[string]string{"a.csv": "/archive/a.csv"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	for _, name := range res.BatchNames {
		archived, err := store.IsArchived(name)
		if err != nil {
			t.Fatalf("IsArchived(%s): %v", name, err)
		}
		if !archived {
			t.Errorf("%s should be archived", name)
		}
	}

	status, err := store.CurrentStatus()
	if err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}
	if status.ArchivedCount != 2 {
		t.Errorf("ArchivedCount = %d, want 2", status.ArchivedCount)
	}
	if status.LastDigest != "the digest text" {
		t.Errorf("LastDigest = %q", status.LastDigest)
	}
	if !status.LastSuccessAt.Equal(startedAt) {
		t.Errorf("LastSuccessAt = %s", status.LastSuccessAt)
	}
}

func TestCommit_IdempotentArchiving(t *testing.T) {
	store := openTestStore(t)

	res := RunResult{StartedAt: time.Now(), BatchNames: []string{"a.csv"}}
	if err := store.Commit(res, nil); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	// A second run that somehow lists the same batch must not fail.
	if err := store.Commit(res, nil); err != nil {
		t.Fatalf("re-archiving the same batch must be a no-op: %v", err)
	}

	status, err := store.CurrentStatus()
	if err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}
	if status.ArchivedCount != 1 {
		t.Errorf("ArchivedCount = %d, want 1", status.ArchivedCount)
	}
}

func TestCommit_ResetsFailureCounter(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := store.RecordFailure(time.Now(), "summarize", errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	status, _ := store.CurrentStatus()
	if status.ConsecutiveFailures != 3 {
		t.Fatalf("ConsecutiveFailures = %d, want 3", status.ConsecutiveFailures)
	}

	if err := store.Commit(RunResult{StartedAt: time.Now(), BatchNames: []string{"a.csv"}}, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	status, _ = store.CurrentStatus()
	if status.ConsecutiveFailures != 0 {
		t.Errorf("a successful run must reset the counter, got %d", status.ConsecutiveFailures)
	}
}

func TestRecordFailure_LeavesArchiveUntouched(t *testing.T) {
	store := openTestStore(t)

	if err := store.RecordFailure(time.Now(), "deliver", errors.New("smtp down")); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	archived, err := store.IsArchived("pending.csv")
	if err != nil {
		t.Fatalf("IsArchived: %v", err)
	}
	if archived {
		t.Error("a failed run must not archive anything")
	}

	var count int
	if err := store.QueryRow("SELECT COUNT(*) FROM runs WHERE status = 'failed' AND stage = 'deliver'").Scan(&count); err != nil {
		t.Fatalf("query runs: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 failed run with its stage recorded, got %d", count)
	}
}

func TestRecordSkip(t *testing.T) {
	store := openTestStore(t)

	if err := store.RecordSkip(time.Now()); err != nil {
		t.Fatalf("RecordSkip: %v", err)
	}
	status, err := store.CurrentStatus()
	if err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("a skip is not a failure")
	}
	if !status.LastSuccessAt.IsZero() {
		t.Errorf("a skip is not a success either")
	}
}

func TestSetArchivedPaths(t *testing.T) {
	store := openTestStore(t)

	if err := store.Commit(RunResult{StartedAt: time.Now(), BatchNames: []string{"a.csv"}}, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := store.SetArchivedPaths(map[string]string{"a.csv": "/archive/2026-08-29/a.csv", "missing.csv": ""}); err != nil {
		t.Fatalf("SetArchivedPaths: %v", err)
	}

	var path string
	if err := store.QueryRow("SELECT archived_path FROM archived_batches WHERE batch_name = 'a.csv'").Scan(&path); err != nil {
		t.Fatalf("query: %v", err)
	}
	if path != "/archive/2026-08-29/a.csv" {
		t.Errorf("archived_path = %q", path)
	}
}

func TestRunLock(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	ok, err := store.AcquireRunLock(now, 30*time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed: ok=%v err=%v", ok, err)
	}

	ok, err = store.AcquireRunLock(now.Add(time.Minute), 30*time.Minute)
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Fatal("a live lock must not be re-acquired")
	}

	// A stale lock is taken over.
	ok, err = store.AcquireRunLock(now.Add(time.Hour), 30*time.Minute)
	if err != nil || !ok {
		t.Fatalf("stale lock should be taken over: ok=%v err=%v", ok, err)
	}

	if err := store.ReleaseRunLock(); err != nil {
		t.Fatalf("ReleaseRunLock: %v", err)
	}
	ok, err = store.AcquireRunLock(now.Add(time.Hour), 30*time.Minute)
	if err != nil || !ok {
		t.Fatalf("released lock should be re-acquirable: ok=%v err=%v", ok, err)
	}
}

func TestCaptureConfigRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, found, err := store.LoadCaptureConfig(); err != nil || found {
		t.Fatalf("fresh store should have no capture config: found=%v err=%v", found, err)
	}

	want := CaptureConfig{
		IntervalMinutes: 15,
		DelayMinutes:    1,
		Selectors:       []string{"article", "div.post"},
		OutputMode:      "auto",
	}
	if err := store.SaveCaptureConfig(want); err != nil {
		t.Fatalf("SaveCaptureConfig: %v", err)
	}

	got, found, err := store.LoadCaptureConfig()
	if err != nil || !found {
		t.Fatalf("LoadCaptureConfig: found=%v err=%v", found, err)
	}
	if got.IntervalMinutes != want.IntervalMinutes || got.OutputMode != want.OutputMode {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Selectors) != 2 || got.Selectors[0] != "article" {
		t.Errorf("selectors = %v", got.Selectors)
	}
}

func TestTouchCapture(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)

	if err := store.TouchCapture(at); err != nil {
		t.Fatalf("TouchCapture: %v", err)
	}
	status, err := store.CurrentStatus()
	if err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}
	if !status.LastCaptureAt.Equal(at) {
		t.Errorf("LastCaptureAt = %s, want %s", status.LastCaptureAt, at)
	}
}

func TestOpen_SchemaSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Commit(RunResult{StartedAt: time.Now(), BatchNames: []string{"a.csv"}}, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	store.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	archived, err := reopened.IsArchived("a.csv")
	if err != nil {
		t.Fatalf("IsArchived: %v", err)
	}
	if !archived {
		t.Error("archived set must survive reopening")
	}
}
