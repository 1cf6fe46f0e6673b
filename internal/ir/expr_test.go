package ir

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinWidth(t *testing.T) {
	tests := []struct {
		kind Kind
		v    int64
		want int
	}{
		{KindUInt, 0, 1},
		{KindUInt, 1, 1},
		{KindUInt, 2, 2},
		{KindUInt, 255, 8},
		{KindUInt, 256, 9},
		{KindSInt, 0, 1},
		{KindSInt, 1, 2},
		{KindSInt, -1, 1},
		{KindSInt, -2, 2},
		{KindSInt, -128, 8},
		{KindSInt, 127, 8},
		{KindSInt, -129, 9},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+big.NewInt(tt.v).String(), func(t *testing.T) {
			assert.Equal(t, tt.want, MinWidth(tt.kind, big.NewInt(tt.v)))
		})
	}
}

func TestLiteralType(t *testing.T) {
	assert.Equal(t, UInt(8), U(5, 8).LiteralType(), "explicit width is kept")
	assert.Equal(t, UInt(3), U(5, UnknownWidth).LiteralType())
	assert.Equal(t, SInt(4), SLit(-5, UnknownWidth).LiteralType())
	assert.Equal(t, UInt(1), Literal{}.LiteralType(), "zero-value literal is UInt(0)")
}

func TestExprString(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"ref", R("a"), "a"},
		{"literal", U(5, 8), "UInt<8>(5)"},
		{"prim", Prim(OpAdd, []Expr{R("a"), R("b")}), "add(a, b)"},
		{"prim params", Prim(OpBits, []Expr{R("x")}, 7, 4), "bits(x, 7, 4)"},
		{"mux", Mux{Cond: R("s"), Then: R("a"), Else: R("b")}, "mux(s, a, b)"},
		{"subfield", SubField{Expr: R("io"), Field: "in"}, "io.in"},
		{"subindex", SubIndex{Expr: R("v"), Index: 2}, "v[2]"},
		{"subaccess", SubAccess{Expr: R("v"), Index: R("i")}, "v[i]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestVariantNames(t *testing.T) {
	assert.Equal(t, "DoPrim", Prim(OpNot, []Expr{R("a")}).Variant())
	assert.Equal(t, "SubField", SubField{}.Variant())
	assert.Equal(t, "When", When{}.Variant())
	assert.Equal(t, "MemDef", MemDef{}.Variant())
	assert.Equal(t, "StmtGroup", StmtGroup{}.Variant())
}
