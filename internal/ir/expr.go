package ir

import (
	"fmt"
	"math/big"
	"strings"
)

// Expr is a sealed interface over expression variants.
type Expr interface {
	// Variant names the expression kind, e.g. "DoPrim".
	Variant() string

	String() string

	expr() // Sealed
}

// Literal is a constant with an intrinsic type. A literal declared with an
// unknown width takes the minimal width that holds Value.
type Literal struct {
	Type  Type
	Value *big.Int
}

// Ref names a declaration visible in the enclosing scope chain.
type Ref struct {
	Name string
}

// SubField selects a bundle field. Aggregates are not part of the core.
type SubField struct {
	Expr  Expr
	Field string
}

// SubIndex selects a vector element by constant index.
type SubIndex struct {
	Expr  Expr
	Index int
}

// SubAccess selects a vector element by dynamic index.
type SubAccess struct {
	Expr  Expr
	Index Expr
}

// Mux selects Then when Cond is 1, Else otherwise.
type Mux struct {
	Cond Expr
	Then Expr
	Else Expr
}

// DoPrim applies a primitive operator to operand expressions and integer
// parameters (shift amounts, slice bounds, pad widths).
type DoPrim struct {
	Op     Primop
	Args   []Expr
	Params []int
}

func (Literal) expr()   {}
func (Ref) expr()       {}
func (SubField) expr()  {}
func (SubIndex) expr()  {}
func (SubAccess) expr() {}
func (Mux) expr()       {}
func (DoPrim) expr()    {}

func (Literal) Variant() string   { return "Literal" }
func (Ref) Variant() string       { return "Ref" }
func (SubField) Variant() string  { return "SubField" }
func (SubIndex) Variant() string  { return "SubIndex" }
func (SubAccess) Variant() string { return "SubAccess" }
func (Mux) Variant() string       { return "Mux" }
func (DoPrim) Variant() string    { return "DoPrim" }

func (e Literal) String() string {
	t := "UInt"
	if e.Type != nil {
		t = e.Type.String()
	}
	return fmt.Sprintf("%s(%s)", t, e.value().String())
}

func (e Ref) String() string       { return e.Name }
func (e SubField) String() string  { return e.Expr.String() + "." + e.Field }
func (e SubIndex) String() string  { return fmt.Sprintf("%s[%d]", e.Expr, e.Index) }
func (e SubAccess) String() string { return fmt.Sprintf("%s[%s]", e.Expr, e.Index) }

func (e Mux) String() string {
	return fmt.Sprintf("mux(%s, %s, %s)", e.Cond, e.Then, e.Else)
}

func (e DoPrim) String() string {
	parts := make([]string, 0, len(e.Args)+len(e.Params))
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	for _, p := range e.Params {
		parts = append(parts, fmt.Sprintf("%d", p))
	}
	return fmt.Sprintf("%s(%s)", e.Op, strings.Join(parts, ", "))
}

func (e Literal) value() *big.Int {
	if e.Value == nil {
		return new(big.Int)
	}
	return e.Value
}

// LiteralType returns the literal's type with its width resolved. An unknown
// width is replaced by the minimal width that represents the value.
func (e Literal) LiteralType() Type {
	t := e.Type
	if t == nil {
		t = UInt(UnknownWidth)
	}
	if IsResolved(t) {
		return t
	}
	return WithWidth(t, MinWidth(t.Kind(), e.value()))
}

// MinWidth returns the fewest bits that represent v in the given kind.
// Zero needs one bit in either kind.
func MinWidth(k Kind, v *big.Int) int {
	if k == KindSInt {
		if v.Sign() < 0 {
			// -2^(n-1) is the most negative n-bit value
			m := new(big.Int).Neg(v)
			m.Sub(m, big.NewInt(1))
			return m.BitLen() + 1
		}
		return v.BitLen() + 1
	}
	if v.Sign() == 0 {
		return 1
	}
	return v.BitLen()
}

// U returns an unsigned literal of width w (UnknownWidth for minimal width).
func U(v int64, w Width) Literal {
	return Literal{Type: UInt(w), Value: big.NewInt(v)}
}

// SLit returns a signed literal of width w (UnknownWidth for minimal width).
func SLit(v int64, w Width) Literal {
	return Literal{Type: SInt(w), Value: big.NewInt(v)}
}

// R is a shorthand for a Ref expression.
func R(name string) Ref {
	return Ref{Name: name}
}

// Prim is a shorthand for constructing a DoPrim.
func Prim(op Primop, args []Expr, params ...int) DoPrim {
	return DoPrim{Op: op, Args: args, Params: params}
}
