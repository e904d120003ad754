package result

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/anneal/codec"

	_ "modernc.org/sqlite" // SQLite driver
)

// Run is one recorded clustering run.
type Run struct {
	ID               int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Input            string
	Rows             int
	Cols             int
	K                int
	Temperature      float64
	Cooling          float64
	MaxIter          int
	Seed             uint64
	Iterations       int
	Accepted         uint64
	Rejected         uint64
	FinalTemperature float64
	Energy           float64
	Params           map[string]any
}

// Assignment is one row of a recorded run.
type Assignment struct {
	Row     int
	Name    string
	Cluster int
}

// SQLiteStore records runs in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	codec codec.Codec
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, codec: codec.Default}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores run and its assignment in one transaction and returns the
// new run id. names and clusters are indexed by row.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, names []string, clusters []int) (int64, error) {
	if len(names) != len(clusters) {
		return 0, fmt.Errorf("result: %d names for %d cluster ids", len(names), len(clusters))
	}

	var params []byte
	if run.Params != nil {
		var err error
		if params, err = s.codec.Marshal(run.Params); err != nil {
			return 0, fmt.Errorf("failed to encode run params: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, input, n_rows, n_cols, k, temperature, cooling,
			max_iter, seed, iterations, accepted, rejected, final_temperature, energy, params, params_codec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Input, run.Rows, run.Cols, run.K, run.Temperature, run.Cooling,
		run.MaxIter, int64(run.Seed), run.Iterations, int64(run.Accepted), int64(run.Rejected),
		run.FinalTemperature, run.Energy, nullString(params), s.codec.Name(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO assignments (run_id, row_idx, name, cluster) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare assignment insert: %w", err)
	}
	defer stmt.Close()

	for i, name := range names {
		if _, err := stmt.ExecContext(ctx, id, i, name, clusters[i]); err != nil {
			return 0, fmt.Errorf("failed to insert assignment for row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, input, n_rows, n_cols, k, temperature, cooling,
			max_iter, seed, iterations, accepted, rejected, final_temperature, energy, params, params_codec
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			seed              int64
			accepted          int64
			rejected          int64
			params, codecName sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Input, &r.Rows, &r.Cols, &r.K,
			&r.Temperature, &r.Cooling, &r.MaxIter, &seed, &r.Iterations, &accepted, &rejected,
			&r.FinalTemperature, &r.Energy, &params, &codecName); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Seed = uint64(seed)
		r.Accepted = uint64(accepted)
		r.Rejected = uint64(rejected)
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %d: bad started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("run %d: bad finished_at: %w", r.ID, err)
		}
		if params.Valid {
			c, ok := codec.ByName(codecName.String)
			if !ok {
				return nil, fmt.Errorf("run %d: unknown params codec %q", r.ID, codecName.String)
			}
			if err := c.Unmarshal([]byte(params.String), &r.Params); err != nil {
				return nil, fmt.Errorf("run %d: failed to decode params: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Assignments returns the rows of a run ordered by row index.
func (s *SQLiteStore) Assignments(ctx context.Context, runID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, name, cluster FROM assignments WHERE run_id = ? ORDER BY row_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.Row, &a.Name, &a.Cluster); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its assignments.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run %d: %w", runID, err)
	}
	return nil
}
