package testutil

import (
	"fmt"

	"github.com/roach88/yinglong/internal/ir"
)

// Pos returns a position in file "test.fir".
func Pos(line, col int) *ir.PosInfo {
	return &ir.PosInfo{File: "test.fir", Line: line, Col: col}
}

// In and Out build ports without position info.
func In(name string, t ir.Type) ir.Port  { return ir.Port{Dir: ir.Input, Bind: ir.Bind(name, t)} }
func Out(name string, t ir.Type) ir.Port { return ir.Port{Dir: ir.Output, Bind: ir.Bind(name, t)} }

// Single wraps one module into a circuit of the same name.
func Single(m ir.Module) *ir.Circuit {
	return &ir.Circuit{ID: m.ID, Modules: []ir.Module{m}}
}

// AddModule is the canonical end-to-end module: c = a + b over two 32-bit
// inputs. outWidth is the declared width of c (ir.UnknownWidth to infer it).
func AddModule(outWidth ir.Width) ir.Module {
	return ir.Module{
		ID: "add",
		Ports: []ir.Port{
			In("a", ir.UInt(32)),
			In("b", ir.UInt(32)),
			Out("c", ir.UInt(outWidth)),
		},
		Body: ir.StmtGroup{
			ir.S(ir.Node{Name: "c", Value: ir.Prim(ir.OpAdd, []ir.Expr{ir.R("a"), ir.R("b")})}),
		},
	}
}

// AddCircuit is AddModule wrapped in circuit "Adder".
func AddCircuit(outWidth ir.Width) *ir.Circuit {
	return &ir.Circuit{ID: "Adder", Modules: []ir.Module{AddModule(outWidth)}}
}

// ChainModule declares inferred nodes that feed each other:
// s = a + b, d = s - a, out = cat(d, a).
func ChainModule() ir.Module {
	return ir.Module{
		ID: "chain",
		Ports: []ir.Port{
			In("a", ir.UInt(8)),
			In("b", ir.UInt(4)),
			Out("out", ir.UInt(ir.UnknownWidth)),
		},
		Body: ir.StmtGroup{
			ir.S(ir.Node{Name: "s", Value: ir.Prim(ir.OpAdd, []ir.Expr{ir.R("a"), ir.R("b")})}),
			ir.S(ir.Node{Name: "d", Value: ir.Prim(ir.OpSub, []ir.Expr{ir.R("s"), ir.R("a")})}),
			ir.S(ir.Connect{Dst: ir.R("out"), Src: ir.Prim(ir.OpCat, []ir.Expr{ir.R("d"), ir.R("a")})}),
		},
	}
}

// MuxModule drives out from a When/else over a wire, exercising the
// procedural path of lowering.
func MuxModule() ir.Module {
	return ir.Module{
		ID: "sel",
		Ports: []ir.Port{
			In("s", ir.UInt(1)),
			In("a", ir.UInt(8)),
			In("b", ir.UInt(8)),
			Out("out", ir.UInt(8)),
		},
		Body: ir.StmtGroup{
			ir.S(ir.WireDef{Bind: ir.Bind("w", ir.UInt(8))}),
			ir.S(ir.Connect{Dst: ir.R("w"), Src: ir.R("a")}),
			ir.S(ir.When{
				Cond: ir.R("s"),
				Then: ir.StmtGroup{ir.S(ir.Connect{Dst: ir.R("out"), Src: ir.R("w")})},
				Else: ir.StmtGroup{ir.S(ir.Connect{Dst: ir.R("out"), Src: ir.R("b")})},
			}),
		},
	}
}

// CounterModule is a register with synchronous reset incremented every
// cycle. The 9-bit sum truncates into the 8-bit register.
func CounterModule() ir.Module {
	return ir.Module{
		ID: "counter",
		Ports: []ir.Port{
			In("clk", ir.Clock()),
			In("rst", ir.UInt(1)),
			Out("count", ir.UInt(8)),
		},
		Body: ir.StmtGroup{
			ir.S(ir.RegDef{Bind: ir.Bind("r", ir.UInt(8)), Clock: ir.R("clk"), Reset: ir.R("rst"), Init: ir.U(0, 8)}),
			ir.S(ir.Connect{Dst: ir.R("r"), Src: ir.Prim(ir.OpAdd, []ir.Expr{ir.R("r"), ir.U(1, 8)})}),
			ir.S(ir.Connect{Dst: ir.R("count"), Src: ir.R("r")}),
		},
	}
}

// UndeclaredModule references n distinct undeclared names, one per statement.
func UndeclaredModule(n int) ir.Module {
	m := ir.Module{ID: "broken", Ports: []ir.Port{Out("o", ir.UInt(8))}}
	for i := 0; i < n; i++ {
		m.Body = append(m.Body, ir.Stmt{
			Raw: ir.Node{Name: fmt.Sprintf("n%d", i), Value: ir.R(fmt.Sprintf("missing%d", i))},
			Pos: Pos(i+1, 1),
		})
	}
	m.Body = append(m.Body, ir.S(ir.Connect{Dst: ir.R("o"), Src: ir.U(0, 8)}))
	return m
}

// WideCircuit returns n independent copies of AddModule named add0..addN-1,
// large enough to take the parallel path of pass.Map.
func WideCircuit(n int) *ir.Circuit {
	c := &ir.Circuit{ID: "Wide"}
	for i := 0; i < n; i++ {
		m := AddModule(ir.UnknownWidth)
		m.ID = fmt.Sprintf("add%d", i)
		c.Modules = append(c.Modules, m)
	}
	return c
}
