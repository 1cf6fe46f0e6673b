package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/yinglong/internal/ir"
)

// Artifact is one cached lowering result.
type Artifact struct {
	CircuitHash   string
	OptionsHash   string
	Verilog       string
	IRVersion     string
	EngineVersion string
	Seq           int64
}

// PutArtifact stores Verilog for (circuitHash, optionsHash).
// Uses ON CONFLICT DO NOTHING: the first text written for a key is kept,
// which is correct because lowering is deterministic.
func (s *Store) PutArtifact(ctx context.Context, circuitHash, optionsHash, verilog string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "artifacts")
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts
		(circuit_hash, options_hash, verilog, ir_version, engine_version, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		circuitHash,
		optionsHash,
		verilog,
		ir.IRVersion,
		ir.EngineVersion,
		seq,
	)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// GetArtifact returns the cached Verilog for (circuitHash, optionsHash).
// Artifacts written under another IR version are treated as missing.
func (s *Store) GetArtifact(ctx context.Context, circuitHash, optionsHash string) (string, bool, error) {
	a, ok, err := s.ReadArtifact(ctx, circuitHash, optionsHash)
	if err != nil || !ok {
		return "", false, err
	}
	if a.IRVersion != ir.IRVersion {
		return "", false, nil
	}
	return a.Verilog, true, nil
}

// ReadArtifact returns the full artifact row.
func (s *Store) ReadArtifact(ctx context.Context, circuitHash, optionsHash string) (Artifact, bool, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx, `
		SELECT circuit_hash, options_hash, verilog, ir_version, engine_version, seq
		FROM artifacts
		WHERE circuit_hash = ? AND options_hash = ?
	`, circuitHash, optionsHash).Scan(
		&a.CircuitHash,
		&a.OptionsHash,
		&a.Verilog,
		&a.IRVersion,
		&a.EngineVersion,
		&a.Seq,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, fmt.Errorf("read artifact: %w", err)
	}
	return a, true, nil
}

// ListArtifacts returns every artifact of a circuit.
// Ordered by seq ASC, options_hash ASC COLLATE BINARY for determinism.
func (s *Store) ListArtifacts(ctx context.Context, circuitHash string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT circuit_hash, options_hash, verilog, ir_version, engine_version, seq
		FROM artifacts
		WHERE circuit_hash = ?
		ORDER BY seq ASC, options_hash COLLATE BINARY ASC
	`, circuitHash)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.CircuitHash, &a.OptionsHash, &a.Verilog, &a.IRVersion, &a.EngineVersion, &a.Seq); err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}
