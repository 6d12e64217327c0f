package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/narrative-recall/internal/simulation"
	_ "modernc.org/sqlite" // SQLite driver
)

// DBFile is the database file name inside the store directory.
const DBFile = "recallsim.db"

// SQLiteRunStore implements RunStore using SQLite for persistence.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens or creates dir/recallsim.db.
func NewSQLiteRunStore(dir string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun inserts or replaces a run together with its events.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, res *simulation.Result) error {
	if res == nil || res.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", res.RunID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var logLikelihood sql.NullFloat64
	if res.Replay != nil {
		logLikelihood = sql.NullFloat64{Float64: res.LogLikelihood, Valid: true}
	}

	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// Replacing a run drops its old events through the cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, res.RunID); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", res.RunID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, model, seed, steps, stopped, log_likelihood, created_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.RunID, res.Scenario, string(res.Model), strconv.FormatUint(res.Seed, 10), res.Steps, boolToInt(res.Stopped),
		logLikelihood, createdAt.Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_events (run_id, type, position, item) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()
	for _, ev := range EventsOf(res) {
		if _, err := stmt.ExecContext(ctx, ev.RunID, ev.Type, ev.Position, ev.Item); err != nil {
			return fmt.Errorf("failed to insert %s event %d: %w", ev.Type, ev.Position, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the full result of a run.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*simulation.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	var res simulation.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &res, nil
}

// ListRuns returns run summaries newest first, optionally filtered by model.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, model string) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, r.model, r.seed, r.stopped, r.created_at,
		       (SELECT COUNT(*) FROM run_events e WHERE e.run_id = r.id AND e.type = ?)
		FROM runs r
		WHERE ? = '' OR r.model = ?
		ORDER BY r.created_at DESC, r.id
	`, simulation.EventRecall, model, model)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum       RunSummary
			seed      string
			stopped   int
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Scenario, &sum.Model, &seed, &stopped, &createdAt, &sum.Recalls); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sum.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse seed of run %s: %w", sum.ID, err)
		}
		sum.Stopped = stopped != 0
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			sum.CreatedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its events.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Events returns the study and recall events of a run.
func (s *SQLiteRunStore) Events(ctx context.Context, id string) ([]RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, type, position, item FROM run_events
		WHERE run_id = ?
		ORDER BY CASE type WHEN 'study' THEN 0 ELSE 1 END, position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of %s: %w", id, err)
	}
	defer rows.Close()

	var out []RunEvent
	for rows.Next() {
		var ev RunEvent
		if err := rows.Scan(&ev.RunID, &ev.Type, &ev.Position, &ev.Item); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
