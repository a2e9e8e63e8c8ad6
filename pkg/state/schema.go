package state

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: every ingestion attempt with its terminal outcome
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    status TEXT NOT NULL,          -- success, failed, skipped
    stage TEXT,                    -- failing stage for failed runs
    error TEXT,
    batch_count INTEGER DEFAULT 0,
    record_count INTEGER DEFAULT 0,
    chunk_count INTEGER DEFAULT 0,
    digest TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

-- Archived batches: a batch listed here is never rescanned
CREATE TABLE IF NOT EXISTS archived_batches (
    batch_name TEXT PRIMARY KEY,
    archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    archived_path TEXT,
    run_id INTEGER,
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_archived_run ON archived_batches(run_id);

-- Pipeline state: small key-value facts shared by both sides
CREATE TABLE IF NOT EXISTS pipeline_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
