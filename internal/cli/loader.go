package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/ir"
)

// Error code constants - unified across all CLI commands. Circuit
// validation (E1xx) and inference (E2xx, W2xx) codes pass through
// unchanged.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path not found
	ErrCodeUnknownFmt   = "E003" // Unknown circuit document extension
	ErrCodeDecodeFailed = "E004" // Document could not be decoded
	ErrCodeWriteFailed  = "E005" // File write error
	ErrCodeStoreFailed  = "E006" // Artifact store could not be opened or used
	ErrCodeUnsupported  = "E300" // Construct has no lowering rule
	ErrCodeTestFailed   = "E400" // One or more scenarios failed
)

// LoadError represents an error that occurred while loading a circuit
// document.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCircuit reads and decodes the circuit document at path.
func LoadCircuit(path string) (*ir.Circuit, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("circuit file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing circuit file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}
	if !compiler.IsCircuitFile(path) {
		return nil, &LoadError{Code: ErrCodeUnknownFmt, Message: fmt.Sprintf("unknown circuit format: %s (want one of %v)", path, compiler.Extensions)}
	}

	c, err := compiler.LoadFile(path)
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return c, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, path string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeDecodeFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", path, err),
	}
}

// outputLoadError reports a load failure. Load failures are command-level
// errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
		if loadErr.Pos.IsValid() {
			message = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), message)
		}
	}
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}
