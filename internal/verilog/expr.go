package verilog

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/ir"
)

// operand is a lowered expression.
type operand struct {
	text string
}

// atom marks text that needs no parentheses: identifiers, literals,
// concatenations and system calls.
func atom(s string) operand { return operand{text: s} }

type opForm int

const (
	formBinary opForm = iota
	formUnary
	formReduce
	formShift
	formDynShift
	formNeg
	formCat
	formSlice
	formPad
	formCast
	formCvt
)

// operator is one row of the lowering table. Every ir.Primop has exactly
// one row; result widths come from ir.InferPrimop through infer.TypeOf.
type operator struct {
	form   opForm
	symbol string
}

var operators = map[ir.Primop]operator{
	ir.OpAdd:     {form: formBinary, symbol: "+"},
	ir.OpSub:     {form: formBinary, symbol: "-"},
	ir.OpMul:     {form: formBinary, symbol: "*"},
	ir.OpDiv:     {form: formBinary, symbol: "/"},
	ir.OpRem:     {form: formBinary, symbol: "%"},
	ir.OpLt:      {form: formBinary, symbol: "<"},
	ir.OpLeq:     {form: formBinary, symbol: "<="},
	ir.OpGt:      {form: formBinary, symbol: ">"},
	ir.OpGeq:     {form: formBinary, symbol: ">="},
	ir.OpEq:      {form: formBinary, symbol: "=="},
	ir.OpNeq:     {form: formBinary, symbol: "!="},
	ir.OpPad:     {form: formPad},
	ir.OpAsUInt:  {form: formCast, symbol: "$unsigned"},
	ir.OpAsSInt:  {form: formCast, symbol: "$signed"},
	ir.OpAsClock: {form: formCast},
	ir.OpShl:     {form: formShift, symbol: "<<"},
	ir.OpShr:     {form: formShift, symbol: ">>"},
	ir.OpDshl:    {form: formDynShift, symbol: "<<"},
	ir.OpDshr:    {form: formDynShift, symbol: ">>"},
	ir.OpCvt:     {form: formCvt},
	ir.OpNeg:     {form: formNeg, symbol: "-"},
	ir.OpNot:     {form: formUnary, symbol: "~"},
	ir.OpAnd:     {form: formBinary, symbol: "&"},
	ir.OpOr:      {form: formBinary, symbol: "|"},
	ir.OpXor:     {form: formBinary, symbol: "^"},
	ir.OpAndr:    {form: formReduce, symbol: "&"},
	ir.OpOrr:     {form: formReduce, symbol: "|"},
	ir.OpXorr:    {form: formReduce, symbol: "^"},
	ir.OpCat:     {form: formCat},
	ir.OpBits:    {form: formSlice},
	ir.OpHead:    {form: formSlice},
	ir.OpTail:    {form: formSlice},
}

// temp is a net that holds one intermediate result at its inferred width.
// Names are derived from the owning statement's ordinal and the order of
// creation within it, so they do not depend on scheduling.
type temp struct {
	ord, seq int
	name     string
	typ      ir.Type
	text     string
	pos      *ir.PosInfo
}

// exprLowerer lowers the expressions of one statement.
//
// Verilog sizes an operator from its context, while the IR gives every
// primop result a fixed width. Operands of a primop or mux are therefore
// always identifiers or literals: a composite operand is bound to a temp
// first, and bind receives every temp created.
type exprLowerer struct {
	module string
	env    *infer.ModuleEnv
	pos    *ir.PosInfo

	prefix string
	ord    int
	seq    int
	bind   func(temp)
}

func (x *exprLowerer) unsupported(construct, name, format string, args ...any) error {
	return &UnsupportedConstructError{
		Construct: construct,
		Module:    x.module,
		Name:      name,
		Pos:       x.pos,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (x *exprLowerer) typeOf(e ir.Expr) (ir.Type, int, error) {
	t, err := infer.TypeOf(x.env, e)
	if err != nil {
		return nil, 0, &FatalPreconditionError{Module: x.module, Reason: "expression does not type-check: " + err.Error()}
	}
	w, _ := t.ResolvedWidth()
	return t, w, nil
}

func composite(e ir.Expr) bool {
	switch e.(type) {
	case ir.DoPrim, ir.Mux:
		return true
	}
	return false
}

// top lowers e as the value of a sink that is width bits wide. Narrowing
// is exact because every operand is at least as wide as its own value; a
// composite narrower than the sink is bound to a temp so the finished
// result is extended rather than its operands.
func (x *exprLowerer) top(e ir.Expr, width int) (string, error) {
	if composite(e) {
		_, w, err := x.typeOf(e)
		if err != nil {
			return "", err
		}
		if w < width {
			o, err := x.materialize(e)
			if err != nil {
				return "", err
			}
			return o.text, nil
		}
	}
	o, err := x.lower(e)
	if err != nil {
		return "", err
	}
	return o.text, nil
}

// operand lowers e for use inside a primop or mux.
func (x *exprLowerer) operand(e ir.Expr) (operand, error) {
	if composite(e) {
		return x.materialize(e)
	}
	return x.lower(e)
}

// named lowers e to something Verilog can part-select: a reference, or a
// temp holding any other value.
func (x *exprLowerer) named(e ir.Expr) (operand, error) {
	if _, ok := e.(ir.Ref); ok {
		return x.lower(e)
	}
	return x.materialize(e)
}

func (x *exprLowerer) materialize(e ir.Expr) (operand, error) {
	o, err := x.lower(e)
	if err != nil {
		return operand{}, err
	}
	t, w, err := x.typeOf(e)
	if err != nil {
		return operand{}, err
	}
	if w == 0 {
		return operand{}, x.unsupported("zero-width expression", "", "%s has zero width", e)
	}
	if x.bind == nil {
		return operand{}, x.unsupported(e.Variant(), "", "%s needs an intermediate net", e)
	}
	tmp := temp{
		ord:  x.ord,
		seq:  x.seq,
		name: fmt.Sprintf("%s%d_%d", x.prefix, x.ord, x.seq),
		typ:  t,
		text: o.text,
		pos:  x.pos,
	}
	x.seq++
	x.bind(tmp)
	return atom(tmp.name), nil
}

func (x *exprLowerer) lower(e ir.Expr) (operand, error) {
	switch v := e.(type) {
	case ir.Literal:
		return x.literal(v)
	case ir.Ref:
		_, w, err := x.typeOf(v)
		if err != nil {
			return operand{}, err
		}
		if w == 0 {
			return operand{}, x.unsupported("zero-width expression", v.Name, "%q has zero width", v.Name)
		}
		id, err := Ident(v.Name)
		if err != nil {
			return operand{}, x.unsupported("identifier", v.Name, "%v", err)
		}
		return atom(id), nil
	case ir.SubField, ir.SubIndex, ir.SubAccess:
		return operand{}, x.unsupported(e.Variant(), "", "aggregate access %s has no lowering", e)
	case ir.Mux:
		return x.mux(v)
	case ir.DoPrim:
		return x.prim(v)
	default:
		return operand{}, x.unsupported(fmt.Sprintf("%T", e), "", "unknown expression")
	}
}

func (x *exprLowerer) literal(v ir.Literal) (operand, error) {
	t, w, err := x.typeOf(v)
	if err != nil {
		return operand{}, err
	}
	if w == 0 {
		return operand{}, x.unsupported("zero-width expression", "", "literal %s has zero width", v)
	}
	val := v.Value
	if val == nil {
		val = new(big.Int)
	}
	if t.Kind() != ir.KindSInt {
		return atom(fmt.Sprintf("%d'd%s", w, val)), nil
	}
	if val.Sign() < 0 {
		return atom(fmt.Sprintf("(-%d'sd%s)", w, new(big.Int).Neg(val))), nil
	}
	return atom(fmt.Sprintf("%d'sd%s", w, val)), nil
}

// mux lowers a select. The condition of ?: is self-determined and one bit
// wide, so it stays inline.
func (x *exprLowerer) mux(v ir.Mux) (operand, error) {
	if _, _, err := x.typeOf(v); err != nil {
		return operand{}, err
	}
	cond, err := x.top(v.Cond, 1)
	if err != nil {
		return operand{}, err
	}
	then, err := x.operand(v.Then)
	if err != nil {
		return operand{}, err
	}
	els, err := x.operand(v.Else)
	if err != nil {
		return operand{}, err
	}
	return operand{text: fmt.Sprintf("(%s) ? %s : %s", cond, then.text, els.text)}, nil
}

func (x *exprLowerer) operands(args []ir.Expr) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		o, err := x.operand(arg)
		if err != nil {
			return nil, err
		}
		out[i] = o.text
	}
	return out, nil
}

func (x *exprLowerer) prim(v ir.DoPrim) (operand, error) {
	// Type the whole invocation first so rule violations surface as
	// precondition errors before any text is built.
	if _, _, err := x.typeOf(v); err != nil {
		return operand{}, err
	}
	op, ok := operators[v.Op]
	if !ok {
		return operand{}, x.unsupported(v.Op.String(), "", "operator has no lowering rule")
	}

	switch op.form {
	case formSlice:
		return x.slice(v)
	case formPad:
		return x.pad(v)
	}

	t, _, err := x.typeOf(v.Args[0])
	if err != nil {
		return operand{}, err
	}
	signed := t.Kind() == ir.KindSInt
	args, err := x.operands(v.Args)
	if err != nil {
		return operand{}, err
	}

	switch op.form {
	case formBinary:
		return operand{text: args[0] + " " + op.symbol + " " + args[1]}, nil

	case formUnary, formReduce:
		return operand{text: op.symbol + args[0]}, nil

	case formShift, formDynShift:
		symbol := op.symbol
		if signed && symbol == ">>" {
			symbol = ">>>"
		}
		amount := fmt.Sprintf("%d", v.Params[0])
		if op.form == formDynShift {
			amount = args[1]
		}
		return operand{text: args[0] + " " + symbol + " " + amount}, nil

	case formNeg:
		if signed {
			return operand{text: "-" + args[0]}, nil
		}
		return operand{text: "-{1'b0, " + args[0] + "}"}, nil

	case formCat:
		return atom("{" + strings.Join(args, ", ") + "}"), nil

	case formCast:
		if op.symbol == "" {
			return atom(args[0]), nil
		}
		return atom(op.symbol + "(" + args[0] + ")"), nil

	case formCvt:
		if signed {
			return atom(args[0]), nil
		}
		return atom("{1'b0, " + args[0] + "}"), nil
	}
	return operand{}, x.unsupported(v.Op.String(), "", "operator has no lowering rule")
}

// slice lowers bits, head and tail as a part-select of a named value.
func (x *exprLowerer) slice(v ir.DoPrim) (operand, error) {
	_, w, err := x.typeOf(v.Args[0])
	if err != nil {
		return operand{}, err
	}

	var hi, lo int
	switch v.Op {
	case ir.OpHead:
		hi, lo = w-1, w-v.Params[0]
	case ir.OpTail:
		hi, lo = w-v.Params[0]-1, 0
	default:
		hi, lo = v.Params[0], v.Params[1]
	}
	if hi < lo {
		return operand{}, x.unsupported("zero-width expression", "", "%s selects no bits", v)
	}

	if hi == w-1 && lo == 0 {
		return x.operand(v.Args[0])
	}
	a, err := x.named(v.Args[0])
	if err != nil {
		return operand{}, err
	}
	switch {
	case hi == lo:
		return atom(fmt.Sprintf("%s[%d]", a.text, hi)), nil
	default:
		return atom(fmt.Sprintf("%s[%d:%d]", a.text, hi, lo)), nil
	}
}

// pad zero- or sign-extends to the target width with a replication.
func (x *exprLowerer) pad(v ir.DoPrim) (operand, error) {
	t, w, err := x.typeOf(v.Args[0])
	if err != nil {
		return operand{}, err
	}
	k := v.Params[0] - w
	if k <= 0 {
		return x.operand(v.Args[0])
	}
	if t.Kind() != ir.KindSInt {
		a, err := x.operand(v.Args[0])
		if err != nil {
			return operand{}, err
		}
		return atom(fmt.Sprintf("{{%d{1'b0}}, %s}", k, a.text)), nil
	}

	a, err := x.named(v.Args[0])
	if err != nil {
		return operand{}, err
	}
	sign := a.text
	if w > 1 {
		sign = fmt.Sprintf("%s[%d]", a.text, w-1)
	}
	return atom(fmt.Sprintf("{{%d{%s}}, %s}", k, sign, a.text)), nil
}
