package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RunStatus is the outcome of one pipeline run.
type RunStatus string

const (
	RunOK          RunStatus = "ok"
	RunInvalid     RunStatus = "invalid"
	RunDiagnostics RunStatus = "diagnostics"
	RunUnsupported RunStatus = "unsupported"
	RunError       RunStatus = "error"
)

// RunDiagnostic is the stored form of one diagnostic or error.
type RunDiagnostic struct {
	Code    string `json:"code"`
	Module  string `json:"module,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// Run is one recorded check or lower invocation.
type Run struct {
	ID          string
	CircuitID   string
	CircuitHash string
	OptionsHash string
	Status      RunStatus
	Diagnostics []RunDiagnostic
	Cached      bool
	Seq         int64
}

// RecordRun appends a run and returns it with ID and Seq assigned.
// IDs are UUIDv7; ordering still uses seq only.
func (s *Store) RecordRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Run{}, fmt.Errorf("record run: %w", err)
		}
		r.ID = id.String()
	}

	diags, err := marshalDiagnostics(r.Diagnostics)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	if r.Seq, err = nextSeq(ctx, tx, "runs"); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, circuit_id, circuit_hash, options_hash, status, diagnostics, cached, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.CircuitID,
		r.CircuitHash,
		r.OptionsHash,
		string(r.Status),
		diags,
		r.Cached,
		r.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return r, nil
}

// ListRuns returns the runs of a circuit, or of every circuit when
// circuitID is empty.
// Ordered by seq ASC, id ASC COLLATE BINARY for determinism.
func (s *Store) ListRuns(ctx context.Context, circuitID string) ([]Run, error) {
	query := `
		SELECT id, circuit_id, circuit_hash, options_hash, status, diagnostics, cached, seq
		FROM runs`
	var args []any
	if circuitID != "" {
		query += ` WHERE circuit_id = ?`
		args = append(args, circuitID)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var status, diags string
	if err := rows.Scan(&r.ID, &r.CircuitID, &r.CircuitHash, &r.OptionsHash, &status, &diags, &r.Cached, &r.Seq); err != nil {
		return Run{}, err
	}
	r.Status = RunStatus(status)

	var err error
	if r.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
		return Run{}, err
	}
	return r, nil
}
