package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Accepted values: string, int, int64, bool, []any, map[string]any.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats and no null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		s, err := marshalCanonicalString(val)
		if err != nil {
			return err
		}
		buf.Write(s)
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			ks, err := marshalCanonicalString(k)
			if err != nil {
				return err
			}
			buf.Write(ks)
			buf.WriteByte(':')
			if err := marshalCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// CRITICAL: Go's default string comparison uses UTF-8 which produces DIFFERENT order.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; U+2028 and U+2029
// are emitted literally.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes that
// encoding/json emits back into literal characters. Escape pairs are
// consumed two bytes at a time so an escaped backslash followed by the
// text "u2028" is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// Canonical converts a circuit into plain values accepted by MarshalCanonical.
// Literal values are rendered as decimal strings; absent optional fields are
// omitted rather than encoded as null.
func Canonical(c *Circuit) map[string]any {
	modules := make([]any, len(c.Modules))
	for i := range c.Modules {
		modules[i] = canonicalModule(&c.Modules[i])
	}
	out := map[string]any{
		"id":      c.ID,
		"modules": modules,
	}
	putPos(out, c.Pos)
	return out
}

func canonicalModule(m *Module) map[string]any {
	ports := make([]any, len(m.Ports))
	for i, p := range m.Ports {
		port := map[string]any{
			"dir":  p.Dir.String(),
			"name": p.Bind.Name,
			"type": canonicalType(p.Bind.Type),
		}
		putPos(port, p.Pos)
		ports[i] = port
	}
	out := map[string]any{
		"id":    m.ID,
		"ports": ports,
		"body":  canonicalGroup(m.Body),
	}
	putPos(out, m.Pos)
	return out
}

func canonicalGroup(g StmtGroup) []any {
	out := make([]any, len(g))
	for i, s := range g {
		out[i] = canonicalStmt(s)
	}
	return out
}

func canonicalStmt(s Stmt) map[string]any {
	var out map[string]any
	switch raw := s.Raw.(type) {
	case WireDef:
		out = map[string]any{"wire": map[string]any{"name": raw.Bind.Name, "type": canonicalType(raw.Bind.Type)}}
	case RegDef:
		reg := map[string]any{
			"name":  raw.Bind.Name,
			"type":  canonicalType(raw.Bind.Type),
			"clock": canonicalExpr(raw.Clock),
		}
		if raw.Reset != nil {
			reg["reset"] = canonicalExpr(raw.Reset)
		}
		if raw.Init != nil {
			reg["init"] = canonicalExpr(raw.Init)
		}
		out = map[string]any{"reg": reg}
	case MemDef:
		out = map[string]any{"mem": map[string]any{
			"name":          raw.Name,
			"data":          canonicalType(raw.Data),
			"depth":         raw.Depth,
			"read_latency":  raw.ReadLatency,
			"write_latency": raw.WriteLatency,
			"readers":       stringsToAny(raw.Readers),
			"writers":       stringsToAny(raw.Writers),
		}}
	case Inst:
		out = map[string]any{"inst": map[string]any{"name": raw.Name, "value": canonicalExpr(raw.Value)}}
	case Node:
		out = map[string]any{"node": map[string]any{"name": raw.Name, "value": canonicalExpr(raw.Value)}}
	case Connect:
		out = map[string]any{"connect": map[string]any{"dst": canonicalExpr(raw.Dst), "src": canonicalExpr(raw.Src)}}
	case When:
		when := map[string]any{
			"cond": canonicalExpr(raw.Cond),
			"then": canonicalGroup(raw.Then),
		}
		if len(raw.Else) > 0 {
			when["else"] = canonicalGroup(raw.Else)
		}
		out = map[string]any{"when": when}
	case StmtGroup:
		out = map[string]any{"group": canonicalGroup(raw)}
	default:
		out = map[string]any{"unknown": fmt.Sprintf("%T", s.Raw)}
	}
	putPos(out, s.Pos)
	return out
}

func canonicalExpr(e Expr) map[string]any {
	switch x := e.(type) {
	case Literal:
		t := x.Type
		if t == nil {
			t = UInt(UnknownWidth)
		}
		return map[string]any{"lit": map[string]any{"type": t.String(), "value": x.value().String()}}
	case Ref:
		return map[string]any{"ref": x.Name}
	case SubField:
		return map[string]any{"subfield": map[string]any{"expr": canonicalExpr(x.Expr), "field": x.Field}}
	case SubIndex:
		return map[string]any{"subindex": map[string]any{"expr": canonicalExpr(x.Expr), "index": x.Index}}
	case SubAccess:
		return map[string]any{"subaccess": map[string]any{"expr": canonicalExpr(x.Expr), "index": canonicalExpr(x.Index)}}
	case Mux:
		return map[string]any{"mux": map[string]any{
			"cond": canonicalExpr(x.Cond),
			"then": canonicalExpr(x.Then),
			"else": canonicalExpr(x.Else),
		}}
	case DoPrim:
		args := make([]any, len(x.Args))
		for i, a := range x.Args {
			args[i] = canonicalExpr(a)
		}
		params := make([]any, len(x.Params))
		for i, p := range x.Params {
			params[i] = p
		}
		return map[string]any{"op": x.Op.String(), "args": args, "params": params}
	default:
		return map[string]any{"unknown": fmt.Sprintf("%T", e)}
	}
}

func canonicalType(t Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func putPos(m map[string]any, p *PosInfo) {
	if p == nil {
		return
	}
	m["pos"] = map[string]any{"file": p.File, "line": p.Line, "col": p.Col}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
