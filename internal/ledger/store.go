// Package ledger keeps the run history in a local SQLite database.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/report"
)

// StatusRunning marks a run that has started but not finished.
const StatusRunning = "running"

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run is one ledger row.
type Run struct {
	ID           string                `json:"id"`
	Trigger      string                `json:"trigger"`
	CampaignFile string                `json:"campaign_file"`
	ContentHash  string                `json:"content_hash,omitempty"`
	CampaignID   string                `json:"campaign_id,omitempty"`
	Status       string                `json:"status"`
	FailedStage  string                `json:"failed_stage,omitempty"`
	Error        string                `json:"error,omitempty"`
	ReportPath   string                `json:"report_path,omitempty"`
	Stages       []report.StageOutcome `json:"stages,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at,omitempty"`
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Get(logging.CategoryLedger).Debug("Ledger opened at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trigger TEXT NOT NULL,
		campaign_file TEXT NOT NULL,
		content_hash TEXT,
		campaign_id TEXT,
		status TEXT NOT NULL,
		failed_stage TEXT,
		error TEXT,
		report_path TEXT,
		stages_json TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_file ON runs(campaign_file);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordStart inserts a run in the running state.
func (s *Store) RecordStart(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = StatusRunning

	_, err := s.db.Exec(`
		INSERT INTO runs (id, trigger, campaign_file, content_hash, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Trigger, run.CampaignFile, run.ContentHash, run.Status, run.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordFinish stores the outcome of a run previously passed to RecordStart.
func (s *Store) RecordFinish(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	stagesJSON, _ := json.Marshal(run.Stages)

	res, err := s.db.Exec(`
		UPDATE runs SET campaign_id = ?, status = ?, failed_stage = ?, error = ?,
			report_path = ?, stages_json = ?, finished_at = ?
		WHERE id = ?
	`, run.CampaignID, run.Status, run.FailedStage, run.Error,
		run.ReportPath, string(stagesJSON), run.FinishedAt.UnixMilli(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to record run finish: %w: %s", ErrNotFound, run.ID)
	}
	return nil
}

const selectRuns = `
	SELECT id, trigger, campaign_file, content_hash, campaign_id, status, failed_stage,
		error, report_path, stages_json, started_at, finished_at
	FROM runs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                                       Run
		hash, cid, stage, msg, path, stagesJSON sql.NullString
		started                                 int64
		finished                                sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Trigger, &r.CampaignFile, &hash, &cid, &r.Status, &stage,
		&msg, &path, &stagesJSON, &started, &finished); err != nil {
		return Run{}, err
	}
	r.ContentHash, r.CampaignID, r.FailedStage = hash.String, cid.String, stage.String
	r.Error, r.ReportPath = msg.String, path.String
	r.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		r.FinishedAt = time.UnixMilli(finished.Int64)
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		json.Unmarshal([]byte(stagesJSON.String), &r.Stages)
	}
	return r, nil
}

// Get returns one run by id.
func (s *Store) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRow(selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// HasProcessed reports whether a run was ever started for campaignFile.
func (s *Store) HasProcessed(campaignFile string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE campaign_file = ?`, campaignFile).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query processed files: %w", err)
	}
	return n > 0, nil
}

// MarkInterrupted closes out runs left in the running state by a previous
// process.
func (s *Store) MarkInterrupted() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE runs SET status = ?, error = 'interrupted', finished_at = ?
		WHERE status = ?
	`, string(report.StatusFailed), time.Now().UnixMilli(), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
