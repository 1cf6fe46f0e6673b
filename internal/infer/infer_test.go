package infer

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/yinglong/internal/ir"
	tu "github.com/roach88/yinglong/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inferModule(t *testing.T, m ir.Module) *Result {
	t.Helper()
	return Infer(tu.Single(m), WithLogger(quietLogger()))
}

func widthOf(t *testing.T, r *Result, module, name string) int {
	t.Helper()
	env := r.Env.Module(module)
	require.NotNil(t, env, "module %s", module)
	b, ok := env.Lookup(name)
	require.True(t, ok, "binding %s.%s", module, name)
	require.True(t, b.Resolved(), "binding %s.%s unresolved", module, name)
	return int(b.Width())
}

func TestInferAddExplicitOutput(t *testing.T) {
	r := Infer(tu.AddCircuit(32), WithLogger(quietLogger()))

	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, 32, widthOf(t, r, "add", "c"), "explicit width needs no inference")

	checked, err := r.Checked()
	require.NoError(t, err)
	assert.True(t, checked.Env.Resolved())
}

func TestInferAddUnknownOutputIs33(t *testing.T) {
	r := Infer(tu.AddCircuit(ir.UnknownWidth), WithLogger(quietLogger()))

	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, 33, widthOf(t, r, "add", "c"))
}

func TestInferChainedNodes(t *testing.T) {
	r := inferModule(t, tu.ChainModule())

	require.Empty(t, r.Diagnostics)
	assert.Equal(t, 9, widthOf(t, r, "chain", "s"))
	assert.Equal(t, 10, widthOf(t, r, "chain", "d"))
	assert.Equal(t, 18, widthOf(t, r, "chain", "out"))

	names := make([]string, 0)
	for _, b := range r.Env.Module("chain").Bindings() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"a", "b", "out", "s", "d"}, names, "declaration order")
}

func TestInferSoundnessOnFixtures(t *testing.T) {
	modules := []ir.Module{
		tu.AddModule(32),
		tu.AddModule(ir.UnknownWidth),
		tu.ChainModule(),
		tu.MuxModule(),
		tu.CounterModule(),
	}
	for _, m := range modules {
		t.Run(m.ID, func(t *testing.T) {
			r := inferModule(t, m)
			require.False(t, r.Diagnostics.HasErrors(), "%v", r.Diagnostics)
			env := r.Env.Module(m.ID)
			assert.Empty(t, env.Unresolved())
			for _, b := range env.Bindings() {
				assert.GreaterOrEqual(t, int(b.Width()), 0, b.Name)
			}
		})
	}
}

func TestInferReportsEveryUndeclared(t *testing.T) {
	const n = 5
	r := inferModule(t, tu.UndeclaredModule(n))

	undeclared := r.Diagnostics.WithCode(CodeUndeclared)
	require.Len(t, undeclared, n, "every independent reference is reported")
	for i, d := range undeclared {
		assert.Equal(t, "broken", d.Module)
		assert.Equal(t, i+1, d.Pos.Line)
		assert.Contains(t, d.Name, "missing")
	}
	assert.Len(t, r.Diagnostics.Errors(), n, "poisoned nodes are not re-reported")
}

func TestInferUndeclaredInOneExpression(t *testing.T) {
	m := ir.Module{ID: "m", Body: ir.StmtGroup{
		ir.S(ir.Node{Name: "x", Value: ir.Prim(ir.OpAdd, []ir.Expr{ir.R("p"), ir.R("q")})}),
	}}
	r := inferModule(t, m)

	assert.Equal(t, []Code{CodeUndeclared, CodeUndeclared}, r.Diagnostics.Codes())
	assert.Equal(t, "p", r.Diagnostics[0].Name)
	assert.Equal(t, "q", r.Diagnostics[1].Name)
}

func TestInferForwardReference(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{tu.Out("o", ir.UInt(4))}, Body: ir.StmtGroup{
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("later")}),
		ir.S(ir.Node{Name: "later", Value: ir.U(1, 4)}),
	}}
	r := inferModule(t, m)

	require.Len(t, r.Diagnostics.Errors(), 1)
	d := r.Diagnostics.Errors()[0]
	assert.Equal(t, CodeUndeclared, d.Code)
	assert.Equal(t, "later", d.Name)
	assert.Contains(t, d.Message, "forward references")
}

func TestInferNestedScopeVisibility(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("s", ir.UInt(1)), tu.Out("o", ir.UInt(4))}, Body: ir.StmtGroup{
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.U(0, 4)}),
		ir.S(ir.When{Cond: ir.R("s"), Then: ir.StmtGroup{
			ir.S(ir.Node{Name: "inner", Value: ir.U(3, 4)}),
			ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("inner")}),
		}}),
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("inner")}),
	}}
	r := inferModule(t, m)

	errs := r.Diagnostics.Errors()
	require.Len(t, errs, 1, "visible inside the branch, not after it")
	assert.Equal(t, CodeUndeclared, errs[0].Code)
	assert.Contains(t, errs[0].Message, "nested scope")
}

func TestInferDuplicate(t *testing.T) {
	m := ir.Module{
		ID:    "m",
		Ports: []ir.Port{{Dir: ir.Input, Bind: ir.Bind("a", ir.UInt(1)), Pos: tu.Pos(1, 1)}},
		Body: ir.StmtGroup{
			{Raw: ir.WireDef{Bind: ir.Bind("a", ir.UInt(2))}, Pos: tu.Pos(2, 1)},
			ir.S(ir.StmtGroup{ir.S(ir.Node{Name: "n", Value: ir.U(0, 1)})}),
			ir.S(ir.Node{Name: "n", Value: ir.U(1, 1)}),
			ir.S(ir.Node{Name: "a", Value: ir.U(1, 1)}),
		},
	}
	r := inferModule(t, m)

	dups := r.Diagnostics.WithCode(CodeDuplicate)
	require.Len(t, dups, 3, "flat namespace across nested scopes")
	assert.Contains(t, dups[0].Message, "test.fir:1:1")
	assert.Equal(t, "wire", dups[0].Rule)
	assert.Equal(t, 2, r.Env.Module("m").Len(), "only a and n are bound")
}

func TestInferDuplicateModules(t *testing.T) {
	c := &ir.Circuit{ID: "c", Modules: []ir.Module{tu.AddModule(32), tu.AddModule(32)}}
	r := Infer(c, WithLogger(quietLogger()))

	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, CodeDuplicate, r.Diagnostics[0].Code)
	assert.Equal(t, "add", r.Diagnostics[0].Name)
}

func TestInferInvalidSinks(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("a", ir.UInt(4)), tu.Out("o", ir.UInt(4))}, Body: ir.StmtGroup{
		ir.S(ir.Node{Name: "n", Value: ir.R("a")}),
		ir.S(ir.Connect{Dst: ir.R("a"), Src: ir.U(1, 4)}),
		ir.S(ir.Connect{Dst: ir.R("n"), Src: ir.U(1, 4)}),
		ir.S(ir.Connect{Dst: ir.U(1, 4), Src: ir.R("a")}),
		ir.S(ir.Connect{Dst: ir.SubField{Expr: ir.R("o"), Field: "x"}, Src: ir.R("a")}),
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("a")}),
	}}
	r := inferModule(t, m)

	assert.Equal(t, []Code{CodeInvalidSink, CodeInvalidSink, CodeInvalidSink, CodeKindMismatch}, r.Diagnostics.Codes())
}

func TestInferKindMismatch(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{
		tu.In("clk", ir.Clock()),
		tu.In("a", ir.SInt(4)),
		tu.In("u", ir.UInt(4)),
		tu.Out("o", ir.UInt(4)),
	}, Body: ir.StmtGroup{
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("a")}),
		ir.S(ir.Node{Name: "x", Value: ir.Prim(ir.OpAdd, []ir.Expr{ir.R("a"), ir.R("u")})}),
		ir.S(ir.Node{Name: "y", Value: ir.Prim(ir.OpNot, []ir.Expr{ir.R("clk")})}),
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("u")}),
	}}
	r := inferModule(t, m)

	errs := r.Diagnostics.Errors()
	assert.Equal(t, []Code{CodeKindMismatch, CodeKindMismatch, CodeKindMismatch}, errs.Codes())
	assert.Equal(t, "add", errs[1].Rule, "the operator is named")
	assert.Equal(t, "not", errs[2].Rule)
}

func TestInferWhenConditionMustBeOneBit(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("s", ir.UInt(2)), tu.Out("o", ir.UInt(1))}, Body: ir.StmtGroup{
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.U(0, 1)}),
		ir.S(ir.When{Cond: ir.R("s"), Then: ir.StmtGroup{ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.U(1, 1)})}}),
		ir.S(ir.Node{Name: "m", Value: ir.Mux{Cond: ir.R("s"), Then: ir.U(1, 1), Else: ir.U(0, 1)}}),
	}}
	r := inferModule(t, m)

	errs := r.Diagnostics.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, CodeWidthMismatch, errs[0].Code)
	assert.Equal(t, "when", errs[0].Rule)
	assert.Equal(t, "mux", errs[1].Rule)
}

func TestInferWidthUniqueness(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{
		tu.In("a", ir.UInt(8)),
		tu.In("b", ir.UInt(16)),
		tu.In("n", ir.UInt(4)),
		tu.Out("o", ir.UInt(4)),
	}, Body: ir.StmtGroup{
		ir.S(ir.WireDef{Bind: ir.Bind("w", ir.UInt(ir.UnknownWidth))}),
		ir.S(ir.Connect{Dst: ir.R("w"), Src: ir.R("a")}),
		ir.S(ir.Connect{Dst: ir.R("w"), Src: ir.R("n")}),
		ir.S(ir.Connect{Dst: ir.R("w"), Src: ir.R("b")}),
		// explicit width wins: truncation is not an error
		ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.R("b")}),
	}}
	r := inferModule(t, m)

	errs := r.Diagnostics.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, CodeWidthMismatch, errs[0].Code)
	assert.Equal(t, "w", errs[0].Name)
	assert.Equal(t, 8, widthOf(t, r, "m", "w"), "first driver fixes the width")
}

func TestInferUnresolvedWidth(t *testing.T) {
	t.Run("use before resolution", func(t *testing.T) {
		m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("a", ir.UInt(4))}, Body: ir.StmtGroup{
			ir.S(ir.WireDef{Bind: ir.Bind("w", ir.UInt(ir.UnknownWidth))}),
			ir.S(ir.Node{Name: "x", Value: ir.R("w")}),
			ir.S(ir.Node{Name: "y", Value: ir.R("w")}),
			ir.S(ir.Connect{Dst: ir.R("w"), Src: ir.R("a")}),
		}}
		r := inferModule(t, m)

		assert.Equal(t, []Code{CodeUnresolvedWidth}, r.Diagnostics.Errors().Codes(), "reported once, then poisoned")
	})

	t.Run("never driven", func(t *testing.T) {
		m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("a", ir.UInt(ir.UnknownWidth))}}
		r := inferModule(t, m)

		require.Len(t, r.Diagnostics, 1)
		assert.Equal(t, CodeUnresolvedWidth, r.Diagnostics[0].Code)
		assert.Equal(t, []string{"a"}, r.Env.Module("m").Unresolved())
	})

	t.Run("self-referential register", func(t *testing.T) {
		m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("clk", ir.Clock())}, Body: ir.StmtGroup{
			ir.S(ir.RegDef{Bind: ir.Bind("r", ir.UInt(ir.UnknownWidth)), Clock: ir.R("clk")}),
			ir.S(ir.Connect{Dst: ir.R("r"), Src: ir.Prim(ir.OpAdd, []ir.Expr{ir.R("r"), ir.U(1, 1)})}),
		}}
		r := inferModule(t, m)

		assert.Equal(t, []Code{CodeUnresolvedWidth}, r.Diagnostics.Codes(), "no looping, one report")
	})
}

func TestInferRegisters(t *testing.T) {
	tests := []struct {
		name  string
		reg   ir.RegDef
		codes []Code
		width int
	}{
		{"ok", ir.RegDef{Bind: ir.Bind("r", ir.UInt(8)), Clock: ir.R("clk"), Reset: ir.R("rst"), Init: ir.U(0, 8)}, nil, 8},
		{"width from init", ir.RegDef{Bind: ir.Bind("r", ir.UInt(ir.UnknownWidth)), Clock: ir.R("clk"), Reset: ir.R("rst"), Init: ir.U(0, 6)}, nil, 6},
		{"init too wide", ir.RegDef{Bind: ir.Bind("r", ir.UInt(4)), Clock: ir.R("clk"), Reset: ir.R("rst"), Init: ir.U(0, 8)}, []Code{CodeWidthMismatch}, 4},
		{"clock not clock", ir.RegDef{Bind: ir.Bind("r", ir.UInt(4)), Clock: ir.R("rst")}, []Code{CodeKindMismatch}, 4},
		{"reset without init", ir.RegDef{Bind: ir.Bind("r", ir.UInt(4)), Clock: ir.R("clk"), Reset: ir.R("rst")}, []Code{CodeInvalidParameter}, 4},
		{"no clock", ir.RegDef{Bind: ir.Bind("r", ir.UInt(4))}, []Code{CodeInvalidParameter}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("clk", ir.Clock()), tu.In("rst", ir.UInt(1))}, Body: ir.StmtGroup{ir.S(tt.reg)}}
			r := inferModule(t, m)

			assert.Equal(t, tt.codes, r.Diagnostics.Codes())
			assert.Equal(t, tt.width, widthOf(t, r, "m", "r"))
		})
	}
}

func TestInferMemories(t *testing.T) {
	good := ir.MemDef{Name: "mem", Data: ir.UInt(8), Depth: 16, ReadLatency: 1, Readers: []string{"r"}, Writers: []string{"w"}}
	r := inferModule(t, ir.Module{ID: "m", Body: ir.StmtGroup{ir.S(good)}})
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, 8, widthOf(t, r, "m", "mem"))

	bad := ir.MemDef{Name: "mem", Data: ir.UInt(ir.UnknownWidth), Depth: 0, Readers: []string{"p"}, Writers: []string{"p"}}
	r = inferModule(t, ir.Module{ID: "m", Body: ir.StmtGroup{ir.S(bad)}})
	assert.Equal(t, []Code{CodeUnresolvedWidth, CodeInvalidParameter, CodeDuplicate}, r.Diagnostics.Codes())
}

func TestInferExpressionRules(t *testing.T) {
	tests := []struct {
		name    string
		expr    ir.Expr
		code    Code
		subject string
	}{
		{"subfield on ground", ir.SubField{Expr: ir.R("a"), Field: "x"}, CodeKindMismatch, "a"},
		{"subindex on ground", ir.SubIndex{Expr: ir.R("a"), Index: 0}, CodeKindMismatch, "a"},
		{"subaccess on ground", ir.SubAccess{Expr: ir.R("a"), Index: ir.U(0, 1)}, CodeKindMismatch, "a"},
		{"arity", ir.Prim(ir.OpAdd, []ir.Expr{ir.R("a")}), CodeArity, "x"},
		{"bits out of range", ir.Prim(ir.OpBits, []ir.Expr{ir.R("a")}, 9, 0), CodeWidthMismatch, "x"},
		{"negative uint literal", ir.U(-1, 4), CodeInvalidParameter, "x"},
		{"literal too wide", ir.U(16, 4), CodeWidthMismatch, "x"},
		{"clock literal", ir.Literal{Type: ir.Clock()}, CodeKindMismatch, "x"},
		{"mux branch kinds", ir.Mux{Cond: ir.U(1, 1), Then: ir.R("a"), Else: ir.SLit(1, 2)}, CodeKindMismatch, "x"},
		{"missing expression", nil, CodeArity, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.Module{ID: "m", Ports: []ir.Port{tu.In("a", ir.UInt(8))}, Body: ir.StmtGroup{
				ir.S(ir.Node{Name: "x", Value: tt.expr}),
			}}
			r := inferModule(t, m)

			assert.Equal(t, []Code{tt.code}, r.Diagnostics.Codes())
			require.Len(t, r.Diagnostics, 1)
			assert.Equal(t, tt.subject, r.Diagnostics[0].Name)
		})
	}
}

func TestInferWarnings(t *testing.T) {
	m := ir.Module{ID: "m", Ports: []ir.Port{
		tu.In("s", ir.UInt(1)),
		tu.In("z", ir.UInt(0)),
		tu.Out("o", ir.UInt(4)),
		tu.Out("p", ir.UInt(4)),
	}, Body: ir.StmtGroup{
		ir.S(ir.When{Cond: ir.R("s"),
			Then: ir.StmtGroup{ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.U(1, 4)}), ir.S(ir.Connect{Dst: ir.R("p"), Src: ir.U(1, 4)})},
			Else: ir.StmtGroup{ir.S(ir.Connect{Dst: ir.R("p"), Src: ir.U(2, 4)})},
		}),
	}}
	r := inferModule(t, m)

	assert.Equal(t, []Code{CodeZeroWidth, CodeNotFullyInitialized}, r.Diagnostics.Codes())
	assert.Equal(t, "o", r.Diagnostics[1].Name)
	assert.False(t, r.Diagnostics.HasErrors())

	checked, err := r.Checked()
	require.NoError(t, err, "warnings do not block lowering")
	assert.Len(t, checked.Warnings, 2)
}

func TestCheckedRefusesErrors(t *testing.T) {
	_, err := Check(tu.Single(tu.UndeclaredModule(2)), WithLogger(quietLogger()))
	require.Error(t, err)

	var de *DiagnosticsError
	require.True(t, errors.As(err, &de))
	assert.Len(t, de.Diagnostics, 2)
	assert.Contains(t, err.Error(), "2 errors")
}

func TestInferNilCircuit(t *testing.T) {
	r := Infer(nil, WithLogger(quietLogger()))
	assert.True(t, r.Diagnostics.HasErrors())
	_, err := r.Checked()
	assert.Error(t, err)
}

func TestInferDeterministicAcrossWorkers(t *testing.T) {
	c := tu.WideCircuit(40)
	c.Modules[7] = tu.UndeclaredModule(3)
	c.Modules[7].ID = "add7"
	c.Modules[31] = tu.UndeclaredModule(2)
	c.Modules[31].ID = "add31"

	seq := Infer(c, WithWorkers(1), WithLogger(quietLogger()))
	for i := 0; i < 5; i++ {
		par := Infer(c, WithWorkers(8), WithParallelThreshold(2), WithLogger(quietLogger()))
		assert.Equal(t, seq.Diagnostics, par.Diagnostics)
		assert.Equal(t, seq.Env, par.Env)
	}
	assert.Len(t, seq.Diagnostics, 5)
	assert.Equal(t, "add7", seq.Diagnostics[0].Module)
	assert.Equal(t, "add31", seq.Diagnostics[4].Module)
}

func TestTypeOfAgreesWithInference(t *testing.T) {
	r := inferModule(t, tu.ChainModule())
	env := r.Env.Module("chain")

	typ, err := TypeOf(env, ir.Prim(ir.OpCat, []ir.Expr{ir.R("d"), ir.R("a")}))
	require.NoError(t, err)
	out, _ := env.TypeOf("out")
	assert.Equal(t, out, typ)

	_, err = TypeOf(env, ir.R("nope"))
	var d Diagnostic
	require.True(t, errors.As(err, &d))
	assert.Equal(t, CodeUndeclared, d.Code)
}

func TestDiagnosticFormatting(t *testing.T) {
	d := Diagnostic{Code: CodeWidthMismatch, Module: "m", Name: "w", Pos: tu.Pos(3, 7), Rule: "connect", Message: "too wide"}
	assert.Equal(t, "test.fir:3:7: E210 WidthMismatch in module m (w) [connect]: too wide", d.Error())
	assert.Equal(t, CategoryType, d.Code.Category())
	assert.Equal(t, CategoryDeclaration, CodeInvalidSink.Category())
	assert.Equal(t, SeverityWarning, CodeZeroWidth.Severity())
	assert.Equal(t, "warning", CodeNotFullyInitialized.Severity().String())
}

func TestDiagnosticCodes(t *testing.T) {
	assert.Nil(t, Diagnostics(nil).Codes())
	assert.Nil(t, Infer(tu.AddCircuit(32), WithLogger(quietLogger())).Diagnostics.Codes())

	ds := Diagnostics{{Code: CodeUndeclared}, {Code: CodeZeroWidth}}
	assert.Equal(t, []Code{CodeUndeclared, CodeZeroWidth}, ds.Codes())
}
