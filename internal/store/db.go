package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sms-decline-analysis/internal/model"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store persists runs and their results in SQLite.
type Store struct {
	db *sql.DB
}

// RunRecord is a persisted run
type RunRecord struct {
	ID        string         `json:"id"`
	Spec      *model.RunSpec `json:"spec,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// OutputFile is a persisted artifact of a run
type OutputFile struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		error_type TEXT,
		error_message TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS stage_progress (
		run_id TEXT,
		stage TEXT,
		status TEXT,
		records INTEGER,
		started_at DATETIME,
		ended_at DATETIME,
		duration_ms INTEGER,
		error_message TEXT,
		PRIMARY KEY (run_id, stage)
	);`,
	`CREATE TABLE IF NOT EXISTS run_metrics (
		run_id TEXT,
		position INTEGER,
		metric TEXT,
		pre REAL,
		post REAL,
		pct_change REAL,
		PRIMARY KEY (run_id, position)
	);`,
	`CREATE TABLE IF NOT EXISTS run_coefficients (
		run_id TEXT,
		position INTEGER,
		model TEXT,
		factor TEXT,
		coefficient REAL,
		std_error REAL,
		t_stat REAL,
		p_value REAL,
		sig TEXT,
		PRIMARY KEY (run_id, position)
	);`,
	`CREATE TABLE IF NOT EXISTS run_reports (
		run_id TEXT PRIMARY KEY,
		report TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS output_files (
		run_id TEXT,
		name TEXT,
		type TEXT,
		path TEXT,
		rows INTEGER,
		size INTEGER,
		created_at DATETIME,
		PRIMARY KEY (run_id, name)
	);`,
}

// Open connects to the database at dbPath and creates tables if missing.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection: keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a new pending run
func (s *Store) SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run
func (s *Store) SaveRunError(runID string, detail model.ErrorDetail) error {
	ts := detail.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO run_errors (run_id, stage, error_type, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, detail.Stage, detail.ErrorType, detail.Message, ts)
	return err
}

// SaveStageProgress upserts the latest state of a stage
func (s *Store) SaveStageProgress(runID string, sm model.StageMetrics) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO stage_progress
		(run_id, stage, status, records, started_at, ended_at, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, sm.StageName, sm.Status, sm.RecordsProcessed, sm.StartTime.UTC(), sm.EndTime.UTC(),
		sm.Duration.Milliseconds(), sm.Error)
	return err
}

// SaveResults stores the comparison table, coefficients, full report and
// output files of a run in one transaction. Saving again replaces the previous
// results; on error nothing is kept.
func (s *Store) SaveResults(runID string, rep *model.Report, files []model.ExportResult) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveReport(tx, runID, rep, reportJSON); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if err := saveOutputFiles(tx, runID, files); err != nil {
		return fmt.Errorf("save output files: %w", err)
	}
	return tx.Commit()
}

func saveReport(tx *sql.Tx, runID string, rep *model.Report, reportJSON []byte) error {
	for _, q := range []string{
		`DELETE FROM run_metrics WHERE run_id = ?`,
		`DELETE FROM run_coefficients WHERE run_id = ?`,
		`DELETE FROM run_reports WHERE run_id = ?`,
	} {
		if _, err := tx.Exec(q, runID); err != nil {
			return err
		}
	}

	for i, r := range rep.Comparison {
		if _, err := tx.Exec(`INSERT INTO run_metrics (run_id, position, metric, pre, post, pct_change) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i, r.Metric, r.Pre, r.Post, r.PctChange); err != nil {
			return err
		}
	}

	pos := 0
	for _, m := range rep.Models {
		for _, c := range m.Coefficients {
			if _, err := tx.Exec(`INSERT INTO run_coefficients
				(run_id, position, model, factor, coefficient, std_error, t_stat, p_value, sig)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, pos, m.Model, c.Factor, c.Estimate, c.StdError, c.TStat, c.PValue, c.Sig); err != nil {
				return err
			}
			pos++
		}
	}

	_, err := tx.Exec(`INSERT INTO run_reports (run_id, report) VALUES (?, ?)`, runID, string(reportJSON))
	return err
}

func saveOutputFiles(tx *sql.Tx, runID string, files []model.ExportResult) error {
	for _, f := range files {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO output_files (run_id, name, type, path, rows, size, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, f.Name, f.Type, f.Path, f.Rows, f.Size, f.Timestamp.UTC()); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns all runs with basic info, newest first
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	var specJSON string
	r := RunRecord{ID: runID}

	err := s.db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var spec model.RunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}
	r.Spec = &spec
	return &r, nil
}

// GetReport returns the stored report of a completed run.
func (s *Store) GetReport(runID string) (*model.Report, error) {
	var reportJSON string
	err := s.db.QueryRow(`SELECT report FROM run_reports WHERE run_id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rep model.Report
	if err := json.Unmarshal([]byte(reportJSON), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetComparison returns the pre/post table of a run in display order
func (s *Store) GetComparison(runID string) ([]model.ComparisonRow, error) {
	rows, err := s.db.Query(`SELECT metric, pre, post, pct_change FROM run_metrics WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ComparisonRow{}
	for rows.Next() {
		var r model.ComparisonRow
		if err := rows.Scan(&r.Metric, &r.Pre, &r.Post, &r.PctChange); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetCoefficients returns fitted coefficients of a run keyed by model name.
// An empty modelName returns every model.
func (s *Store) GetCoefficients(runID, modelName string) (map[string][]model.Coefficient, error) {
	rows, err := s.db.Query(`SELECT model, factor, coefficient, std_error, t_stat, p_value, sig
		FROM run_coefficients WHERE run_id = ? AND (? = '' OR model = ?) ORDER BY position`,
		runID, modelName, modelName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]model.Coefficient{}
	for rows.Next() {
		var name string
		var c model.Coefficient
		if err := rows.Scan(&name, &c.Factor, &c.Estimate, &c.StdError, &c.TStat, &c.PValue, &c.Sig); err != nil {
			return nil, err
		}
		out[name] = append(out[name], c)
	}
	return out, rows.Err()
}

// GetRunErrors returns errors recorded for a run, oldest first
func (s *Store) GetRunErrors(runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.Query(`SELECT stage, error_type, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ErrorDetail{}
	for rows.Next() {
		var e model.ErrorDetail
		if err := rows.Scan(&e.Stage, &e.ErrorType, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetStageProgress returns the latest state of each stage of a run
func (s *Store) GetStageProgress(runID string) ([]model.StageMetrics, error) {
	rows, err := s.db.Query(`SELECT stage, status, records, started_at, ended_at, duration_ms, error_message
		FROM stage_progress WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StageMetrics{}
	for rows.Next() {
		var sm model.StageMetrics
		var ms int64
		if err := rows.Scan(&sm.StageName, &sm.Status, &sm.RecordsProcessed, &sm.StartTime, &sm.EndTime, &ms, &sm.Error); err != nil {
			return nil, err
		}
		sm.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, sm)
	}
	return out, rows.Err()
}

// GetOutputFiles returns the artifacts of a run sorted by name
func (s *Store) GetOutputFiles(runID string) ([]OutputFile, error) {
	rows, err := s.db.Query(`SELECT name, type, path, rows, size, created_at FROM output_files WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OutputFile{}
	for rows.Next() {
		var f OutputFile
		if err := rows.Scan(&f.Name, &f.Type, &f.Path, &f.Rows, &f.Size, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"run_errors", "stage_progress", "run_metrics", "run_coefficients", "run_reports", "output_files"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
