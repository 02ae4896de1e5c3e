package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/neuraxis/ctreport/internal/model"
)

// Store provides SQLite-based storage for run history.
//
// Design decision: We keep one database file per data directory rather than
// one per run. This keeps listing cheap and makes backup/restore a single
// file copy.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// RunRecord is one stored run as returned by listing queries. The full
// result is kept as JSON; the columns exist so listings do not need to
// parse it.
type RunRecord struct {
	// ID is the row identifier.
	ID int64 `json:"id"`

	// CreatedAt is when the row was written.
	CreatedAt time.Time `json:"created_at"`

	// Status is the run outcome.
	Status model.RunStatus `json:"status"`

	// Abnormal reports whether the diagnosis flagged the series.
	Abnormal bool `json:"abnormal"`

	// InstancesCollected and InstancesAnalyzed mirror the result counters.
	InstancesCollected int `json:"instances_collected"`
	InstancesAnalyzed  int `json:"instances_analyzed"`

	// FailureCount is the number of excluded inputs.
	FailureCount int `json:"failure_count"`
}

// Open opens or creates a run history store in dataDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dataDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dataDir, "ctreport.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("run history not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw prevents creating new files, mode=rwc
	// allows creation.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		status TEXT NOT NULL,
		abnormal INTEGER NOT NULL DEFAULT 0,
		instances_collected INTEGER NOT NULL DEFAULT 0,
		instances_analyzed INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		confidence_json TEXT,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists one completed run and returns its row ID. Failed and
// partially successful runs are stored the same way as clean ones so the
// history answers "what happened" in every case.
func (s *Store) SaveRun(ctx context.Context, result *model.PipelineResult) (int64, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize result: %w", err)
	}

	abnormal := 0
	var confidenceJSON []byte
	if result.Diagnosis != nil {
		if result.Diagnosis.Abnormal() {
			abnormal = 1
		}
		confidenceJSON, _ = json.Marshal(result.Diagnosis.ConfidenceScores) //nolint:errcheck,errchkjson // map[string]float64 cannot fail
	}

	query := `
	INSERT INTO runs (status, abnormal, instances_collected, instances_analyzed, failure_count, confidence_json, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		string(result.Status),
		abnormal,
		result.InstancesCollected,
		result.InstancesAnalyzed,
		len(result.Failures),
		string(confidenceJSON),
		string(resultJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs, newest first, at most limit rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT id, created_at, status, abnormal, instances_collected, instances_analyzed, failure_count
	FROM runs
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var createdAt string
		var abnormal int
		if err := rows.Scan(&r.ID, &createdAt, &r.Status, &abnormal,
			&r.InstancesCollected, &r.InstancesAnalyzed, &r.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = parseTimestamp(createdAt)
		r.Abnormal = abnormal != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRun retrieves one stored run result by row ID. Returns nil when the
// row does not exist.
func (s *Store) GetRun(ctx context.Context, id int64) (*model.PipelineResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT result_json FROM runs WHERE id = ?", id).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result model.PipelineResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse stored run: %w", err)
	}
	return &result, nil
}

// parseTimestamp handles the formats SQLite emits for DATETIME columns.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
