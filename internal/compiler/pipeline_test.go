package compiler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/ir"
	tu "github.com/roach88/yinglong/internal/testutil"
	"github.com/roach88/yinglong/internal/verilog"
)

type memCache struct {
	entries map[string]string
	gets    int
	puts    int
	err     error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (m *memCache) GetArtifact(_ context.Context, circuitHash, optionsHash string) (string, bool, error) {
	m.gets++
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.entries[circuitHash+"/"+optionsHash]
	return v, ok, nil
}

func (m *memCache) PutArtifact(_ context.Context, circuitHash, optionsHash, text string) error {
	m.puts++
	m.entries[circuitHash+"/"+optionsHash] = text
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineLowersAdder(t *testing.T) {
	p := New(WithLogger(quiet()))
	out, err := p.Lower(context.Background(), tu.AddCircuit(32))
	require.NoError(t, err)

	assert.Contains(t, out.Verilog, "assign c = a + b;")
	assert.False(t, out.Cached)
	assert.Len(t, out.CircuitHash, 64)
	assert.Len(t, out.OptionsHash, 64)
	require.NotNil(t, out.Checked)
	assert.Empty(t, out.Diagnostics.Errors())
}

func TestPipelineRefusesToLowerOnDiagnostics(t *testing.T) {
	p := New(WithLogger(quiet()))
	out, err := p.Lower(context.Background(), tu.Single(tu.UndeclaredModule(3)))
	require.Error(t, err)

	var de *infer.DiagnosticsError
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Diagnostics, 3)
	assert.Len(t, out.Diagnostics.WithCode(infer.CodeUndeclared), 3)
	assert.Empty(t, out.Verilog, "no partial Verilog")
	assert.Nil(t, out.Checked)
}

func TestPipelineValidationFirst(t *testing.T) {
	c := tu.AddCircuit(32)
	c.Modules[0].ID = ""

	out, err := New(WithLogger(quiet())).Check(c)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, ErrEmptyID, verrs[0].Code)
	assert.Empty(t, out.Diagnostics, "no module is left to type-check")
	assert.Nil(t, out.Checked)
}

func TestPipelineValidationKeepsUnrelatedDiagnostics(t *testing.T) {
	bad := ir.Module{
		ID:    "bad",
		Ports: []ir.Port{tu.In("a", ir.UInt(4))},
		Body:  ir.StmtGroup{ir.S(ir.WireDef{Bind: ir.Bind("w x", ir.UInt(4))})},
	}
	c := &ir.Circuit{ID: "Mixed", Modules: []ir.Module{bad, tu.UndeclaredModule(3)}}

	out, err := New(WithLogger(quiet())).Lower(context.Background(), c)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrInvalidIdentifier, verrs[0].Code)

	assert.Len(t, out.Diagnostics.WithCode(infer.CodeUndeclared), 3)
	for _, d := range out.Diagnostics {
		assert.Equal(t, "broken", d.Module, "the invalid module is not type-checked")
	}
	assert.Empty(t, out.Verilog)
	assert.Nil(t, out.Checked)
}

func TestPipelineCircuitLevelValidationSkipsInference(t *testing.T) {
	c := &ir.Circuit{ID: "", Modules: []ir.Module{tu.UndeclaredModule(2)}}

	out, err := New(WithLogger(quiet())).Check(c)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, ErrEmptyID, verrs[0].Code)
	assert.Empty(t, out.Diagnostics)
}

func TestPipelineAcceptsPortlessModule(t *testing.T) {
	m := ir.Module{
		ID:   "top",
		Body: ir.StmtGroup{ir.S(ir.Node{Name: "x", Value: ir.U(1, 4)})},
	}
	out, err := New(WithLogger(quiet())).Lower(context.Background(), tu.Single(m))
	require.NoError(t, err)
	assert.Equal(t, "module top(\n);\nwire [3:0] x;\nassign x = 4'd1;\nendmodule\n", out.Verilog)
}

func TestPipelineUnsupportedConstruct(t *testing.T) {
	_, err := New(WithLogger(quiet())).Lower(context.Background(), tu.Single(tu.CounterModule()))
	require.Error(t, err)
	assert.True(t, verilog.IsUnsupported(err))

	out, err := New(WithLogger(quiet()), WithLowerOptions(verilog.WithRegisters(true))).
		Lower(context.Background(), tu.Single(tu.CounterModule()))
	require.NoError(t, err)
	assert.Contains(t, out.Verilog, "always @(posedge clk) begin")
}

func TestPipelineCache(t *testing.T) {
	cache := newMemCache()
	p := New(WithLogger(quiet()), WithCache(cache))
	ctx := context.Background()

	first, err := p.Lower(ctx, tu.AddCircuit(32))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.puts)

	second, err := p.Lower(ctx, tu.AddCircuit(32))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Verilog, second.Verilog)
	assert.Equal(t, 1, cache.puts, "hits are not rewritten")

	// Different output-affecting options miss the cache.
	other := New(WithLogger(quiet()), WithCache(cache), WithLowerOptions(verilog.WithPositionComments(false)))
	third, err := other.Lower(ctx, tu.AddCircuit(32))
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotEqual(t, first.OptionsHash, third.OptionsHash)
}

func TestPipelineCacheError(t *testing.T) {
	cache := newMemCache()
	cache.err = errors.New("disk on fire")

	_, err := New(WithLogger(quiet()), WithCache(cache)).Lower(context.Background(), tu.AddCircuit(32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestOptionsHashIgnoresWorkers(t *testing.T) {
	a, err := New(WithLowerOptions(verilog.WithWorkers(1))).OptionsHash()
	require.NoError(t, err)
	b, err := New(WithLowerOptions(verilog.WithWorkers(16), verilog.WithParallelThreshold(2))).OptionsHash()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPipelineCircuitHashTracksContent(t *testing.T) {
	p := New(WithLogger(quiet()))
	a, err := p.Check(tu.AddCircuit(32))
	require.NoError(t, err)
	b, err := p.Check(tu.AddCircuit(ir.UnknownWidth))
	require.NoError(t, err)
	assert.NotEqual(t, a.CircuitHash, b.CircuitHash)
}
