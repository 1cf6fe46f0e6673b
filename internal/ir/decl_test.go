package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectDeclarationsOrder(t *testing.T) {
	m := &Module{
		ID: "m",
		Ports: []Port{
			{Dir: Input, Bind: Bind("clk", Clock())},
			{Dir: Output, Bind: Bind("out", UInt(8))},
		},
		Body: StmtGroup{
			S(WireDef{Bind: Bind("w", UInt(8))}),
			S(When{
				Cond: R("s"),
				Then: StmtGroup{S(Node{Name: "t", Value: R("w")})},
				Else: StmtGroup{S(RegDef{Bind: Bind("r", UInt(8)), Clock: R("clk")})},
			}),
			S(StmtGroup{S(Inst{Name: "i", Value: R("w")})}),
			S(MemDef{Name: "mem", Data: UInt(8), Depth: 4}),
		},
	}

	r := CollectDeclarations(m)

	names := make([]string, len(r.Order))
	for i, d := range r.Order {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"clk", "out", "w", "t", "r", "i", "mem"}, names)
	assert.Empty(t, r.Redeclared)

	k, ok := r.Kind("r")
	require.True(t, ok)
	assert.Equal(t, DeclReg, k)
	assert.Contains(t, r.Nodes, "t")
	assert.Contains(t, r.Insts, "i")
	assert.Contains(t, r.Mems, "mem")
	assert.Contains(t, r.Ports, "clk")
}

func TestCollectDeclarationsDrivingNode(t *testing.T) {
	m := &Module{
		ID:    "m",
		Ports: []Port{{Dir: Output, Bind: Bind("c", UInt(8))}},
		Body:  StmtGroup{S(Node{Name: "c", Value: U(1, 8)})},
	}

	r := CollectDeclarations(m)
	assert.Len(t, r.Order, 1, "node over an output drives it")
	assert.Empty(t, r.Nodes)
	assert.Empty(t, r.Redeclared)
}

func TestCollectDeclarationsRedeclared(t *testing.T) {
	m := &Module{
		ID:    "m",
		Ports: []Port{{Dir: Input, Bind: Bind("a", UInt(1))}},
		Body: StmtGroup{
			S(WireDef{Bind: Bind("a", UInt(2))}),
			S(Node{Name: "a", Value: U(0, 1)}),
		},
	}

	r := CollectDeclarations(m)
	require.Len(t, r.Redeclared, 2)
	assert.Equal(t, DeclWire, r.Redeclared[0].Kind)
	assert.Equal(t, DeclNode, r.Redeclared[1].Kind)

	k, _ := r.Kind("a")
	assert.Equal(t, DeclInput, k, "first declaration wins")
}

func TestDeclKindWritable(t *testing.T) {
	for _, k := range []DeclKind{DeclOutput, DeclWire, DeclReg} {
		assert.True(t, k.Writable(), k.String())
	}
	for _, k := range []DeclKind{DeclInput, DeclMem, DeclInst, DeclNode} {
		assert.False(t, k.Writable(), k.String())
	}
}
