package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/yinglong/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// circuitSchema compiles the embedded schema into ctx and returns its
// #Circuit definition. Values from different contexts cannot be unified, so
// the schema is compiled into the caller's context.
func circuitSchema(ctx *cue.Context) (cue.Value, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compiling embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Circuit"))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("looking up #Circuit definition: %w", err)
	}
	return def, nil
}

// CompileCircuit converts a CUE value into a circuit. The value is unified
// with the embedded #Circuit schema first, so shape errors carry CUE source
// positions.
//
// The CUE value should be the circuit struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	c, err := CompileCircuit(v.LookupPath(cue.ParsePath("circuit")))
func CompileCircuit(v cue.Value) (*ir.Circuit, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "circuit", Message: "circuit value does not exist"}
	}

	def, err := circuitSchema(v.Context())
	if err != nil {
		return nil, err
	}
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc CircuitDoc
	if err := unified.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}
	return doc.Circuit()
}

// CompileCircuitSource compiles CUE source text. A top-level "circuit"
// field is used when present, otherwise the whole file is the circuit.
func CompileCircuitSource(filename string, src []byte) (*ir.Circuit, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if inner := v.LookupPath(cue.ParsePath("circuit")); inner.Exists() {
		v = inner
	}
	return CompileCircuit(v)
}

// CompileError represents a document error. Pos is set for CUE sources;
// Field is the document path of the offending value.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
