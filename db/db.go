package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
	dedup_key      TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	trust          TEXT NOT NULL,
	obs_ts         TEXT NOT NULL,
	ingest_ts      TEXT NOT NULL,
	content        TEXT NOT NULL,
	cleaned_text   TEXT NOT NULL DEFAULT '',
	url            TEXT,
	author         TEXT,
	coords_json    TEXT,
	locations_json TEXT,
	verdict        TEXT NOT NULL,
	cluster_id     TEXT
);
CREATE INDEX IF NOT EXISTS idx_reports_cluster ON reports(cluster_id);
CREATE INDEX IF NOT EXISTS idx_reports_ingest ON reports(ingest_ts);

CREATE TABLE IF NOT EXISTS clusters (
	id                  TEXT PRIMARY KEY,
	state               TEXT NOT NULL,
	first_seen          TEXT NOT NULL,
	last_updated        TEXT NOT NULL,
	centroid_lat        REAL,
	centroid_lon        REAL,
	label               TEXT NOT NULL DEFAULT '',
	confidence          REAL NOT NULL DEFAULT 0,
	alerts_emitted_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_clusters_state ON clusters(state);
`

// Store is the durable persistence layer: reports, clusters, and alert
// markers. A single connection serializes writes; every exported
// operation is atomic.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	monitoring.Infof("store: opened %s", path)
	return &Store{db: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PurgeOlderThan deletes reports and clusters whose latest activity
// predates the cutoff. Alert history lives on the cluster row and goes
// with it.
func (s *Store) PurgeOlderThan(cutoff time.Time) error {
	ts := cutoff.UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec("DELETE FROM reports WHERE ingest_ts < ?", ts); err != nil {
		return &types.StoreError{Op: "purge reports", Err: err}
	}
	if _, err := s.db.Exec("DELETE FROM clusters WHERE last_updated < ?", ts); err != nil {
		return &types.StoreError{Op: "purge clusters", Err: err}
	}
	monitoring.Infof("store: purged data older than %s", ts)
	return nil
}
