package ir

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"b": []any{1, "x"}, "a": false}, `{"a":false,"b":[1,"x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// UTF-16 order: 0xD800 (surrogate of U+10000) < 0xE000
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for name, v := range map[string]any{
		"nil":    nil,
		"float":  1.5,
		"struct": struct{}{},
		"nested": []any{map[string]any{"x": nil}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(v)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonicalStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no html escaping", "a<b>&c", `"a<b>&c"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator literal", "a\u2029b", "\"a\u2029b\""},
		{"escaped backslash kept", `\u2028`, `"\\u2028"`},
		{"control escaped", "a\nb", `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func sampleCircuit() *Circuit {
	return &Circuit{
		ID: "Adder",
		Modules: []Module{{
			ID: "add",
			Ports: []Port{
				{Dir: Input, Bind: Bind("a", UInt(32))},
				{Dir: Input, Bind: Bind("b", UInt(32))},
				{Dir: Output, Bind: Bind("c", UInt(UnknownWidth))},
			},
			Body: StmtGroup{
				{Raw: Node{Name: "c", Value: Prim(OpAdd, []Expr{R("a"), R("b")})}, Pos: &PosInfo{File: "add.fir", Line: 4, Col: 3}},
			},
		}},
	}
}

func TestCanonicalCircuitShape(t *testing.T) {
	result, err := MarshalCanonical(Canonical(sampleCircuit()))
	require.NoError(t, err)

	expected := `{"id":"Adder","modules":[{"body":[{"node":{"name":"c","value":{"args":[{"ref":"a"},{"ref":"b"}],"op":"add","params":[]}},` +
		`"pos":{"col":3,"file":"add.fir","line":4}}],"id":"add","ports":[` +
		`{"dir":"input","name":"a","type":"UInt<32>"},` +
		`{"dir":"input","name":"b","type":"UInt<32>"},` +
		`{"dir":"output","name":"c","type":"UInt"}]}]}`
	assert.Equal(t, expected, string(result))
}

func TestCanonicalCoversEveryStatement(t *testing.T) {
	c := &Circuit{ID: "all", Modules: []Module{{
		ID: "m",
		Body: StmtGroup{
			S(WireDef{Bind: Bind("w", UInt(4))}),
			S(RegDef{Bind: Bind("r", UInt(4)), Clock: R("clk"), Reset: R("rst"), Init: U(0, 4)}),
			S(MemDef{Name: "mem", Data: UInt(8), Depth: 16, ReadLatency: 1, Readers: []string{"r0"}}),
			S(Inst{Name: "i", Value: R("w")}),
			S(Connect{Dst: R("w"), Src: Literal{Type: SInt(8), Value: big.NewInt(-3)}}),
			S(When{Cond: R("s"), Then: StmtGroup{S(Connect{Dst: R("w"), Src: R("x")})}}),
			S(StmtGroup{S(Node{Name: "n", Value: Mux{Cond: R("s"), Then: R("a"), Else: R("b")}})}),
		},
	}}}

	result, err := MarshalCanonical(Canonical(c))
	require.NoError(t, err)

	s := string(result)
	for _, key := range []string{`"wire"`, `"reg"`, `"mem"`, `"inst"`, `"connect"`, `"when"`, `"group"`, `"mux"`, `"value":"-3"`, `"readers":["r0"]`, `"writers":[]`} {
		assert.Contains(t, s, key)
	}
	assert.Contains(t, s, `"when":{"cond":{"ref":"s"},"then":[`, "empty else branch is omitted")
}
