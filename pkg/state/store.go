package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	keyLastSuccessAt       = "last_success_at"
	keyLastDigest          = "last_digest"
	keyConsecutiveFailures = "consecutive_failures"
	keyLastCaptureAt       = "last_capture_at"
	keyCaptureConfig       = "capture_config"
	keyRunLock             = "run_lock"
)

// Status is the snapshot shown by the status command.
type Status struct {
	LastSuccessAt       time.Time
	LastCaptureAt       time.Time
	LastDigest          string
	ConsecutiveFailures int
	ArchivedCount       int
}

// IsArchived reports whether a batch has been consumed by a prior run.
func (s *Store) IsArchived(batchName string) (bool, error) {
	var one int
	err := s.QueryRow("SELECT 1 FROM archived_batches WHERE batch_name = ?", batchName).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state: archive lookup failed: %w", err)
	}
	return true, nil
}

// RunResult carries everything Commit records about a successful run.
type RunResult struct {
	StartedAt   time.Time
	BatchNames  []string
	RecordCount int
	ChunkCount  int
	Digest      string
}

// Commit records a successful run: all listed batches enter the archived set,
// the digest and timestamps land in pipeline state, and the failure counter
// resets. Everything happens in one transaction so a crash mid-commit leaves
// either all batches archived or none.
func (s *Store) Commit(res RunResult, archivedPaths map[string]string) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("state: failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (started_at, status, batch_count, record_count, chunk_count, digest)
		 VALUES (?, 'success', ?, ?, ?, ?)`,
		res.StartedAt.UTC(), len(res.BatchNames), res.RecordCount, res.ChunkCount, res.Digest,
	)
	if err != nil {
		return fmt.Errorf("state: failed to record run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("state: failed to resolve run id: %w", err)
	}

	for _, name := range res.BatchNames {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO archived_batches (batch_name, archived_path, run_id) VALUES (?, ?, ?)`,
			name, archivedPaths[name], runID,
		); err != nil {
			return fmt.Errorf("state: failed to archive %s: %w", name, err)
		}
	}

	at := res.StartedAt.UTC().Format(time.RFC3339)
	for key, value := range map[string]string{
		keyLastSuccessAt:       at,
		keyLastDigest:          res.Digest,
		keyConsecutiveFailures: "0",
	} {
		if err := setValueTx(tx, key, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: failed to commit run: %w", err)
	}
	return nil
}

// SetArchivedPaths records where archived batch files ended up on disk.
// Best effort bookkeeping after the commit; the archived set itself is
// already durable.
func (s *Store) SetArchivedPaths(paths map[string]string) error {
	for name, path := range paths {
		if path == "" {
			continue
		}
		if _, err := s.Exec("UPDATE archived_batches SET archived_path = ? WHERE batch_name = ?", path, name); err != nil {
			return fmt.Errorf("state: failed to record archive path for %s: %w", name, err)
		}
	}
	return nil
}

// RecordFailure records a failed run and bumps the consecutive-failure
// counter; archived batches are untouched so the next run retries them.
func (s *Store) RecordFailure(startedAt time.Time, stage string, runErr error) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("state: failed to begin failure record: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (started_at, status, stage, error) VALUES (?, 'failed', ?, ?)`,
		startedAt.UTC(), stage, runErr.Error(),
	); err != nil {
		return fmt.Errorf("state: failed to record failure: %w", err)
	}

	failures, err := getIntTx(tx, keyConsecutiveFailures)
	if err != nil {
		return err
	}
	if err := setValueTx(tx, keyConsecutiveFailures, strconv.Itoa(failures+1)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: failed to commit failure record: %w", err)
	}
	return nil
}

// RecordSkip notes a run that found nothing to do. Last-capture and failure
// counters are untouched.
func (s *Store) RecordSkip(startedAt time.Time) error {
	_, err := s.Exec(`INSERT INTO runs (started_at, status) VALUES (?, 'skipped')`, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("state: failed to record skip: %w", err)
	}
	return nil
}

// TouchCapture advances the capture-side last-run marker. It advances even
// for captures that produced no file.
func (s *Store) TouchCapture(at time.Time) error {
	return s.setValue(keyLastCaptureAt, at.UTC().Format(time.RFC3339))
}

// CaptureConfig is the scheduler configuration persisted across restarts.
type CaptureConfig struct {
	IntervalMinutes int      `json:"interval_minutes"`
	DelayMinutes    int      `json:"delay_minutes"`
	Selectors       []string `json:"selectors,omitempty"`
	OutputMode      string   `json:"output_mode"`
}

// SaveCaptureConfig persists the scheduler configuration.
func (s *Store) SaveCaptureConfig(cfg CaptureConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("state: failed to marshal capture config: %w", err)
	}
	return s.setValue(keyCaptureConfig, string(data))
}

// LoadCaptureConfig returns the persisted scheduler configuration, reporting
// whether one was found.
func (s *Store) LoadCaptureConfig() (CaptureConfig, bool, error) {
	var cfg CaptureConfig
	raw, ok, err := s.getValue(keyCaptureConfig)
	if err != nil || !ok {
		return cfg, false, err
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, false, fmt.Errorf("state: failed to parse capture config: %w", err)
	}
	return cfg, true, nil
}

// AcquireRunLock claims the single-active-ingestion lock. A stale lock older
// than ttl is taken over; a live lock returns false.
func (s *Store) AcquireRunLock(now time.Time, ttl time.Duration) (bool, error) {
	tx, err := s.Begin()
	if err != nil {
		return false, fmt.Errorf("state: failed to begin lock: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow("SELECT value FROM pipeline_state WHERE key = ?", keyRunLock).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("state: failed to read lock: %w", err)
	}
	if err == nil {
		held, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr == nil && now.UTC().Sub(held) < ttl {
			return false, nil
		}
	}

	if err := setValueTx(tx, keyRunLock, now.UTC().Format(time.RFC3339)); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("state: failed to take lock: %w", err)
	}
	return true, nil
}

// ReleaseRunLock drops the ingestion lock.
func (s *Store) ReleaseRunLock() error {
	_, err := s.Exec("DELETE FROM pipeline_state WHERE key = ?", keyRunLock)
	if err != nil {
		return fmt.Errorf("state: failed to release lock: %w", err)
	}
	return nil
}

// CurrentStatus assembles the status snapshot.
func (s *Store) CurrentStatus() (Status, error) {
	var status Status

	if raw, ok, err := s.getValue(keyLastSuccessAt); err != nil {
		return status, err
	} else if ok {
		status.LastSuccessAt, _ = time.Parse(time.RFC3339, raw)
	}
	if raw, ok, err := s.getValue(keyLastCaptureAt); err != nil {
		return status, err
	} else if ok {
		status.LastCaptureAt, _ = time.Parse(time.RFC3339, raw)
	}
	if raw, ok, err := s.getValue(keyLastDigest); err != nil {
		return status, err
	} else if ok {
		status.LastDigest = raw
	}
	if raw, ok, err := s.getValue(keyConsecutiveFailures); err != nil {
		return status, err
	} else if ok {
		status.ConsecutiveFailures, _ = strconv.Atoi(raw)
	}

	if err := s.QueryRow("SELECT COUNT(*) FROM archived_batches").Scan(&status.ArchivedCount); err != nil {
		return status, fmt.Errorf("state: failed to count archived batches: %w", err)
	}
	return status, nil
}

func (s *Store) setValue(key, value string) error {
	_, err := s.Exec(
		`INSERT INTO pipeline_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("state: failed to set %s: %w", key, err)
	}
	return nil
}

func setValueTx(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		`INSERT INTO pipeline_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("state: failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getValue(key string) (string, bool, error) {
	var value string
	err := s.QueryRow("SELECT value FROM pipeline_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state: failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func getIntTx(tx *sql.Tx, key string) (int, error) {
	var value string
	err := tx.QueryRow("SELECT value FROM pipeline_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("state: failed to get %s: %w", key, err)
	}
	n, _ := strconv.Atoi(value)
	return n, nil
}
