package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/structure"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("db: run not found")

// RunStatus is the outcome of a planned traversal.
type RunStatus string

const (
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// StairSpec is the stored description of a staircase.
type StairSpec struct {
	Steps   []stair.Step `json:"steps"`
	Landing float64      `json:"landing"`
	Exit    float64      `json:"exit"`
}

// SpecOf describes s for storage.
func SpecOf(s *stair.Stair) StairSpec {
	return StairSpec{Steps: s.Steps(), Landing: s.Landing(), Exit: s.Exit()}
}

// RunStep is one logged instruction.
type RunStep struct {
	Instruction structure.Instruction
	LeadWheel   int     // -1 for the final instruction
	Duration    float64 // seconds
}

// Run is a stored traversal.
type Run struct {
	ID         string
	Label      string
	CreatedAt  time.Time
	Dimensions structure.Dimensions
	Stair      StairSpec
	Status     RunStatus
	Error      string
	Elapsed    float64 // seconds
	Steps      []RunStep
}

// RecordRun stores r and its instruction log in one transaction and returns
// the run id. A new id is generated when r.ID is empty.
func (db *DB) RecordRun(r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	dims, err := json.Marshal(r.Dimensions)
	if err != nil {
		return "", fmt.Errorf("failed to encode dimensions: %w", err)
	}
	st, err := json.Marshal(r.Stair)
	if err != nil {
		return "", fmt.Errorf("failed to encode stair: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (
			run_id, label, created_at, dimensions, stair, status, error, iterations, elapsed_s
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Label, r.CreatedAt.UnixNano(), string(dims), string(st),
		string(r.Status), r.Error, len(r.Steps), r.Elapsed,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_instructions (run_id, seq, instruction, lead_wheel, duration_s) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare instruction insert: %w", err)
	}
	defer stmt.Close()
	for i, s := range r.Steps {
		in, err := json.Marshal(s.Instruction)
		if err != nil {
			return "", fmt.Errorf("failed to encode instruction %d: %w", i, err)
		}
		if _, err := stmt.Exec(r.ID, i, string(in), s.LeadWheel, s.Duration); err != nil {
			return "", fmt.Errorf("failed to insert instruction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return r.ID, nil
}

const runColumns = `run_id, label, created_at, dimensions, stair, status, error, elapsed_s`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r         Run
		createdAt int64
		dims, st  string
		status    string
	)
	if err := row.Scan(&r.ID, &r.Label, &createdAt, &dims, &st, &status, &r.Error, &r.Elapsed); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(dims), &r.Dimensions); err != nil {
		return nil, fmt.Errorf("run %s: failed to decode dimensions: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(st), &r.Stair); err != nil {
		return nil, fmt.Errorf("run %s: failed to decode stair: %w", r.ID, err)
	}
	return &r, nil
}

// GetRun returns the run with its instruction log.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT instruction, lead_wheel, duration_s FROM run_instructions WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s  RunStep
			in string
		)
		if err := rows.Scan(&in, &s.LeadWheel, &s.Duration); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(in), &s.Instruction); err != nil {
			return nil, fmt.Errorf("run %s: failed to decode instruction: %w", id, err)
		}
		r.Steps = append(r.Steps, s)
	}
	return r, rows.Err()
}

// ListRuns returns the most recent runs without their instruction logs,
// newest first. An empty label matches every run.
func (db *DB) ListRuns(label string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if label != "" {
		q += ` WHERE label = ?`
		args = append(args, label)
	}
	q += ` ORDER BY created_at DESC, run_id LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its instruction log.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM run_instructions WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete instructions: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}
