package verilog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/yinglong/internal/ir"
)

// UnsupportedConstructError reports an IR construct that has no lowering
// rule. It is a value, not an abort: the caller decides what to do.
type UnsupportedConstructError struct {
	// Construct names the offending variant or operator, e.g. "RegDef",
	// "SubField" or "bits".
	Construct string

	// Module is the module being lowered.
	Module string

	// Name is the identifier involved, when there is one.
	Name string

	// Pos is the position of the enclosing statement, when known.
	Pos *ir.PosInfo

	// Reason explains what is missing.
	Reason string
}

// Error implements the error interface.
func (e *UnsupportedConstructError) Error() string {
	var b strings.Builder
	if e.Pos != nil {
		fmt.Fprintf(&b, "%s: ", e.Pos)
	}
	fmt.Fprintf(&b, "unsupported construct %s in module %s", e.Construct, e.Module)
	if e.Name != "" {
		fmt.Fprintf(&b, " (%s)", e.Name)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// FatalPreconditionError reports that Lower was invoked on a circuit that is
// not fully type-checked. It indicates a driver bug, not bad user input.
type FatalPreconditionError struct {
	Module string
	// Names lists identifiers whose width is unresolved.
	Names  []string
	Reason string
}

// Error implements the error interface.
func (e *FatalPreconditionError) Error() string {
	msg := "lowering precondition violated: " + e.Reason
	if e.Module != "" {
		msg += " (module " + e.Module + ")"
	}
	if len(e.Names) > 0 {
		msg += ": " + strings.Join(e.Names, ", ")
	}
	return msg
}

// IsUnsupported returns true if err is an UnsupportedConstructError.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ue *UnsupportedConstructError
	return errors.As(err, &ue)
}

// IsPrecondition returns true if err is a FatalPreconditionError.
// Uses errors.As to handle wrapped errors.
func IsPrecondition(err error) bool {
	var pe *FatalPreconditionError
	return errors.As(err, &pe)
}
