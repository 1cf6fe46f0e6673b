package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/yinglong/internal/ir"
)

// marshalDiagnostics converts run diagnostics to canonical JSON TEXT for
// storage. Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalDiagnostics(diags []RunDiagnostic) (string, error) {
	list := make([]any, len(diags))
	for i, d := range diags {
		m := map[string]any{
			"code":    d.Code,
			"message": d.Message,
		}
		if d.Module != "" {
			m["module"] = d.Module
		}
		if d.Name != "" {
			m["name"] = d.Name
		}
		list[i] = m
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return string(data), nil
}

// unmarshalDiagnostics parses JSON TEXT written by marshalDiagnostics.
func unmarshalDiagnostics(data string) ([]RunDiagnostic, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var diags []RunDiagnostic
	if err := json.Unmarshal([]byte(data), &diags); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return diags, nil
}
