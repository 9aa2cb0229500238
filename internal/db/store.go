// Package db provides database connectivity, migrations, and run
// persistence for geno.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/pipeline"
	"github.com/reachykit/geno/internal/validate"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Store persists runs, attempts, and stage events. It implements
// pipeline.Recorder.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateRun inserts the initial run record before the loop starts.
func (s *Store) CreateRun(ctx context.Context, run *pipeline.Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(run_id, created_at, request, status, reason, score, threshold)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339), run.Request.Text, "running", "", 0, run.Config.ScoreThreshold)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordEvent appends one stage transition to the run's timeline.
func (s *Store) RecordEvent(ctx context.Context, runID string, seq int, ev pipeline.StatusEvent) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `INSERT INTO events(run_id, seq, ts, stage, attempt, revision) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, seq, ts, ev.Stage, ev.Attempt, ev.Revision)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// RecordAttempt upserts one attempt. The controller commits each
// attempt once, after any evaluation has attached; the insert-or-replace
// keeps re-recording a seq idempotent for callers that retry.
func (s *Store) RecordAttempt(ctx context.Context, runID string, seq int, att pipeline.Attempt) error {
	reportJSON, err := marshalNullable(att.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	evalJSON, err := marshalNullable(att.Eval)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	var score any
	if att.Eval != nil {
		score = att.Eval.Score
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO attempts(run_id, seq, revision, provenance, code, report_json, eval_json, score)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, att.Artifact.Revision, att.Artifact.Provenance, att.Artifact.Code, reportJSON, evalJSON, score)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// FinishRun writes the terminal state of the run.
func (s *Store) FinishRun(ctx context.Context, run *pipeline.Run) error {
	var finalRevision, finalCode any
	if run.FinalArtifact != nil {
		finalRevision = run.FinalArtifact.Revision
		finalCode = run.FinalArtifact.Code
	}
	_, err := s.db.ExecContext(ctx, `UPDATE runs
		SET status=?, reason=?, score=?, correction_attempts=?, optimization_attempts=?,
		    evaluation_unavailable=?, final_revision=?, final_code=?, error=?, ended_at=?
		WHERE run_id=?`,
		run.Status, run.Reason, run.FinalScore, run.CorrectionAttempts, run.OptimizationAttempts,
		boolToInt(run.EvaluationUnavailable), finalRevision, finalCode, nullableString(run.Err),
		run.EndedAt.Format(time.RFC3339), run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// RunSummary is one row of the runs listing.
type RunSummary struct {
	ID                    string
	CreatedAt             string
	EndedAt               string
	Request               string
	Status                string
	Reason                string
	Score                 float64
	Threshold             float64
	CorrectionAttempts    int
	OptimizationAttempts  int
	EvaluationUnavailable bool
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, created_at, COALESCE(ended_at, ''), request, status, reason,
		score, threshold, correction_attempts, optimization_attempts, evaluation_unavailable
		FROM runs ORDER BY created_at DESC, run_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var unavailable int
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.EndedAt, &r.Request, &r.Status, &r.Reason,
			&r.Score, &r.Threshold, &r.CorrectionAttempts, &r.OptimizationAttempts, &unavailable); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.EvaluationUnavailable = unavailable != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// AttemptRecord is one stored attempt with its decoded report and
// evaluation, when present.
type AttemptRecord struct {
	Seq        int
	Revision   int
	Provenance string
	Code       string
	Report     *validate.Report
	Eval       *evaluate.Result
}

// EventRecord is one stored stage transition.
type EventRecord struct {
	Seq      int
	TS       string
	Stage    string
	Attempt  int
	Revision int
}

// RunDetail is a full stored run with its history.
type RunDetail struct {
	RunSummary
	FinalRevision int
	FinalCode     string
	Error         string
	Attempts      []AttemptRecord
	Events        []EventRecord
}

// GetRun loads one run with its attempts and events.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, created_at, COALESCE(ended_at, ''), request, status, reason,
		score, threshold, correction_attempts, optimization_attempts, evaluation_unavailable,
		COALESCE(final_revision, 0), COALESCE(final_code, ''), COALESCE(error, '')
		FROM runs WHERE run_id=?`, runID)
	var d RunDetail
	var unavailable int
	err := row.Scan(&d.ID, &d.CreatedAt, &d.EndedAt, &d.Request, &d.Status, &d.Reason,
		&d.Score, &d.Threshold, &d.CorrectionAttempts, &d.OptimizationAttempts, &unavailable,
		&d.FinalRevision, &d.FinalCode, &d.Error)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	d.EvaluationUnavailable = unavailable != 0

	if d.Attempts, err = s.runAttempts(ctx, runID); err != nil {
		return nil, err
	}
	if d.Events, err = s.runEvents(ctx, runID); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) runAttempts(ctx context.Context, runID string) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, revision, provenance, code, report_json, eval_json
		FROM attempts WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var reportJSON, evalJSON sql.NullString
		if err := rows.Scan(&a.Seq, &a.Revision, &a.Provenance, &a.Code, &reportJSON, &evalJSON); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if reportJSON.Valid {
			var rep validate.Report
			if err := json.Unmarshal([]byte(reportJSON.String), &rep); err != nil {
				return nil, fmt.Errorf("decode report: %w", err)
			}
			a.Report = &rep
		}
		if evalJSON.Valid {
			var res evaluate.Result
			if err := json.Unmarshal([]byte(evalJSON.String), &res); err != nil {
				return nil, fmt.Errorf("decode evaluation: %w", err)
			}
			a.Eval = &res
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

func (s *Store) runEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, ts, stage, attempt, revision
		FROM events WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.Seq, &e.TS, &e.Stage, &e.Attempt, &e.Revision); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// PruneRuns deletes runs older than the retention window, keeping at
// least keepLast of the most recent. It returns the number deleted.
func (s *Store) PruneRuns(ctx context.Context, olderThan time.Duration, keepLast int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?
		AND run_id NOT IN (SELECT run_id FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?)`,
		cutoff, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(n), nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *validate.Report:
		if t == nil {
			return nil, nil
		}
	case *evaluate.Result:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
