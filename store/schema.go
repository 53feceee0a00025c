package store

// Schema DDL. work_items mirrors the external link-discovery contract;
// stat_records stores the category-opaque record shape as JSON keyed by the
// natural key; run_attempts and run_status back the run tracker.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS work_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category TEXT NOT NULL,
    season TEXT NOT NULL,
    season_type TEXT NOT NULL,
    url TEXT NOT NULL,
    scraped INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (category, season, season_type)
);
CREATE INDEX IF NOT EXISTS idx_work_items_pending ON work_items (category, scraped);

CREATE TABLE IF NOT EXISTS stat_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category TEXT NOT NULL,
    natural_key TEXT NOT NULL,
    entity_id TEXT,
    season TEXT NOT NULL,
    season_type TEXT NOT NULL,
    fields TEXT NOT NULL,
    source_url TEXT NOT NULL,
    page_number INTEGER NOT NULL,
    scraped_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (category, natural_key)
);
CREATE INDEX IF NOT EXISTS idx_stat_records_season ON stat_records (category, season, season_type);

CREATE TABLE IF NOT EXISTS run_attempts (
    attempt_id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    season TEXT NOT NULL,
    season_type TEXT NOT NULL,
    url TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_run_attempts_category ON run_attempts (category, started_at);

CREATE TABLE IF NOT EXISTS run_status (
    category TEXT PRIMARY KEY,
    last_execution TEXT NOT NULL,
    last_url_scraped TEXT,
    is_running INTEGER NOT NULL DEFAULT 0
);
`
