package result

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    input TEXT NOT NULL,
    n_rows INTEGER NOT NULL,
    n_cols INTEGER NOT NULL,
    k INTEGER NOT NULL,
    temperature REAL NOT NULL,
    cooling REAL NOT NULL,
    max_iter INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    iterations INTEGER NOT NULL,
    accepted INTEGER NOT NULL,
    rejected INTEGER NOT NULL,
    final_temperature REAL NOT NULL,
    energy REAL NOT NULL,
    params TEXT,        -- JSON
    params_codec TEXT
);

CREATE TABLE IF NOT EXISTS assignments (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    row_idx INTEGER NOT NULL,
    name TEXT NOT NULL,
    cluster INTEGER NOT NULL,  -- 0-based
    PRIMARY KEY (run_id, row_idx)
);
CREATE INDEX IF NOT EXISTS idx_assignments_cluster ON assignments(run_id, cluster);
`

// InitSchema creates the tables if they do not exist and records the
// schema version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
