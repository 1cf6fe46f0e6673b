package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/yinglong/internal/ir"
)

// Extensions lists the circuit document formats LoadFile understands.
var Extensions = []string{".json", ".yaml", ".yml", ".cue"}

// IsCircuitFile reports whether path has a circuit document extension.
func IsCircuitFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadFile reads a circuit document, choosing the decoder by extension.
func LoadFile(path string) (*ir.Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading circuit: %w", err)
	}
	return Decode(path, data)
}

// Decode decodes a circuit document whose format is named by the extension
// of filename.
func Decode(filename string, data []byte) (*ir.Circuit, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return DecodeJSON(data)
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".cue":
		return CompileCircuitSource(filename, data)
	default:
		return nil, fmt.Errorf("%s: unknown circuit format (want one of %s)",
			filename, strings.Join(Extensions, ", "))
	}
}
