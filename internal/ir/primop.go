package ir

import (
	"fmt"
)

// Primop is the closed enumeration of primitive operators.
type Primop int

const (
	OpAdd Primop = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpEq
	OpNeq
	OpPad
	OpAsUInt
	OpAsSInt
	OpAsClock
	OpShl
	OpShr
	OpDshl
	OpDshr
	OpCvt
	OpNeg
	OpNot
	OpAnd
	OpOr
	OpXor
	OpAndr
	OpOrr
	OpXorr
	OpCat
	OpBits
	OpHead
	OpTail

	numPrimops
)

// MaxDshlAmountWidth bounds the shift-amount width of dshl, whose result
// width grows as 2^width.
const MaxDshlAmountWidth = 20

// MaxParameter bounds integer parameters (shl amounts, pad widths, bit
// indices) so that result widths cannot overflow int.
const MaxParameter = 1 << 24

// Rule error codes. They mirror the TypeError codes reported by inference.
const (
	RuleWidthMismatch    = "WidthMismatch"
	RuleKindMismatch     = "KindMismatch"
	RuleArity            = "Arity"
	RuleInvalidParameter = "InvalidParameter"
)

// RuleError reports an operator invocation that violates its width rule.
type RuleError struct {
	Op      Primop
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

type operandClass int

const (
	// numeric operands: UInt or SInt
	classNumeric operandClass = iota
	// any ground type including Clock
	classAny
)

// primopRule is one row of the width table.
type primopRule struct {
	name    string
	arity   int // -1: two or more
	params  int
	class   operandClass
	result  func(ts []Type, ws []int, ps []int) (Type, *RuleError)
	sameArg bool // all operands must share a kind
}

var primopRules = [numPrimops]primopRule{
	OpAdd: {name: "add", arity: 2, sameArg: true, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		return WithWidth(ts[0], max(ws[0], ws[1])+1), nil
	}},
	OpSub: {name: "sub", arity: 2, sameArg: true, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		return WithWidth(ts[0], max(ws[0], ws[1])+1), nil
	}},
	OpMul: {name: "mul", arity: 2, sameArg: true, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		return WithWidth(ts[0], ws[0]+ws[1]), nil
	}},
	OpDiv: {name: "div", arity: 2, sameArg: true, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		return WithWidth(ts[0], ws[0]), nil
	}},
	OpRem: {name: "rem", arity: 2, sameArg: true, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		return WithWidth(ts[0], min(ws[0], ws[1])), nil
	}},
	OpLt:  {name: "lt", arity: 2, sameArg: true, result: oneBit},
	OpLeq: {name: "leq", arity: 2, sameArg: true, result: oneBit},
	OpGt:  {name: "gt", arity: 2, sameArg: true, result: oneBit},
	OpGeq: {name: "geq", arity: 2, sameArg: true, result: oneBit},
	OpEq:  {name: "eq", arity: 2, sameArg: true, result: oneBit},
	OpNeq: {name: "neq", arity: 2, sameArg: true, result: oneBit},
	OpPad: {name: "pad", arity: 1, params: 1, result: func(ts []Type, ws, ps []int) (Type, *RuleError) {
		return WithWidth(ts[0], max(ws[0], ps[0])), nil
	}},
	OpAsUInt: {name: "asUInt", arity: 1, class: classAny, result: func(_ []Type, ws, _ []int) (Type, *RuleError) {
		return UInt(Width(ws[0])), nil
	}},
	OpAsSInt: {name: "asSInt", arity: 1, class: classAny, result: func(_ []Type, ws, _ []int) (Type, *RuleError) {
		return SInt(Width(ws[0])), nil
	}},
	OpAsClock: {name: "asClock", arity: 1, class: classAny, result: func(_ []Type, ws, _ []int) (Type, *RuleError) {
		if ws[0] != 1 {
			return nil, &RuleError{Op: OpAsClock, Code: RuleWidthMismatch, Message: fmt.Sprintf("operand must be 1 bit wide, got %d", ws[0])}
		}
		return Clock(), nil
	}},
	OpShl: {name: "shl", arity: 1, params: 1, result: func(ts []Type, ws, ps []int) (Type, *RuleError) {
		return WithWidth(ts[0], ws[0]+ps[0]), nil
	}},
	OpShr: {name: "shr", arity: 1, params: 1, result: func(ts []Type, ws, ps []int) (Type, *RuleError) {
		return WithWidth(ts[0], max(ws[0]-ps[0], 1)), nil
	}},
	OpDshl: {name: "dshl", arity: 2, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		if err := unsignedAmount(OpDshl, ts[1]); err != nil {
			return nil, err
		}
		if ws[1] > MaxDshlAmountWidth {
			return nil, &RuleError{Op: OpDshl, Code: RuleInvalidParameter, Message: fmt.Sprintf("shift amount width %d exceeds %d", ws[1], MaxDshlAmountWidth)}
		}
		return WithWidth(ts[0], ws[0]+(1<<ws[1])-1), nil
	}},
	OpDshr: {name: "dshr", arity: 2, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		if err := unsignedAmount(OpDshr, ts[1]); err != nil {
			return nil, err
		}
		return WithWidth(ts[0], ws[0]), nil
	}},
	OpCvt: {name: "cvt", arity: 1, result: func(ts []Type, ws, _ []int) (Type, *RuleError) {
		if ts[0].Kind() == KindUInt {
			return SInt(Width(ws[0] + 1)), nil
		}
		return SInt(Width(ws[0])), nil
	}},
	OpNeg: {name: "neg", arity: 1, result: func(_ []Type, ws, _ []int) (Type, *RuleError) {
		return SInt(Width(ws[0] + 1)), nil
	}},
	OpNot: {name: "not", arity: 1, result: func(_ []Type, ws, _ []int) (Type, *RuleError) {
		return UInt(Width(ws[0])), nil
	}},
	OpAnd:  {name: "and", arity: 2, sameArg: true, result: bitwise},
	OpOr:   {name: "or", arity: 2, sameArg: true, result: bitwise},
	OpXor:  {name: "xor", arity: 2, sameArg: true, result: bitwise},
	OpAndr: {name: "andr", arity: 1, result: oneBit},
	OpOrr:  {name: "orr", arity: 1, result: oneBit},
	OpXorr: {name: "xorr", arity: 1, result: oneBit},
	OpCat: {name: "cat", arity: -1, result: func(_ []Type, ws, _ []int) (Type, *RuleError) {
		sum := 0
		for _, w := range ws {
			sum += w
		}
		return UInt(Width(sum)), nil
	}},
	OpBits: {name: "bits", arity: 1, params: 2, result: func(_ []Type, ws, ps []int) (Type, *RuleError) {
		hi, lo := ps[0], ps[1]
		if lo < 0 || hi < lo {
			return nil, &RuleError{Op: OpBits, Code: RuleInvalidParameter, Message: fmt.Sprintf("require hi >= lo >= 0, got hi=%d lo=%d", hi, lo)}
		}
		if hi >= ws[0] {
			return nil, &RuleError{Op: OpBits, Code: RuleWidthMismatch, Message: fmt.Sprintf("hi=%d out of range for %d-bit operand", hi, ws[0])}
		}
		return UInt(Width(hi - lo + 1)), nil
	}},
	OpHead: {name: "head", arity: 1, params: 1, result: func(_ []Type, ws, ps []int) (Type, *RuleError) {
		n := ps[0]
		if n <= 0 {
			return nil, &RuleError{Op: OpHead, Code: RuleInvalidParameter, Message: fmt.Sprintf("head length must be positive, got %d", n)}
		}
		if n > ws[0] {
			return nil, &RuleError{Op: OpHead, Code: RuleWidthMismatch, Message: fmt.Sprintf("head length %d exceeds %d-bit operand", n, ws[0])}
		}
		return UInt(Width(n)), nil
	}},
	OpTail: {name: "tail", arity: 1, params: 1, result: func(_ []Type, ws, ps []int) (Type, *RuleError) {
		n := ps[0]
		if n > ws[0] {
			return nil, &RuleError{Op: OpTail, Code: RuleWidthMismatch, Message: fmt.Sprintf("tail length %d exceeds %d-bit operand", n, ws[0])}
		}
		return UInt(Width(ws[0] - n)), nil
	}},
}

func oneBit(_ []Type, _, _ []int) (Type, *RuleError) {
	return UInt(1), nil
}

func bitwise(_ []Type, ws, _ []int) (Type, *RuleError) {
	return UInt(Width(max(ws[0], ws[1]))), nil
}

func unsignedAmount(op Primop, t Type) *RuleError {
	if t.Kind() != KindUInt {
		return &RuleError{Op: op, Code: RuleKindMismatch, Message: fmt.Sprintf("shift amount must be UInt, got %s", t)}
	}
	return nil
}

// String returns the operator's IR name, e.g. "add".
func (op Primop) String() string {
	if op < 0 || op >= numPrimops {
		return fmt.Sprintf("Primop(%d)", int(op))
	}
	return primopRules[op].name
}

// Valid reports whether op is a member of the enumeration.
func (op Primop) Valid() bool {
	return op >= 0 && op < numPrimops
}

// Arity returns the operand count, or -1 for variadic operators (cat).
func (op Primop) Arity() int {
	return primopRules[op].arity
}

// NumParams returns the number of integer parameters the operator takes.
func (op Primop) NumParams() int {
	return primopRules[op].params
}

// Primops returns every operator in declaration order.
func Primops() []Primop {
	ops := make([]Primop, numPrimops)
	for i := range ops {
		ops[i] = Primop(i)
	}
	return ops
}

// ParsePrimop looks up an operator by its IR name.
func ParsePrimop(name string) (Primop, error) {
	for i, rule := range primopRules {
		if rule.name == name {
			return Primop(i), nil
		}
	}
	return 0, fmt.Errorf("unknown primop %q", name)
}

// InferPrimop applies the operator's width rule to resolved operand types
// and integer parameters. Every operand type must be resolved.
//
// This is the only width table in the repository: inference and lowering
// both call it, so the two passes cannot disagree on an operator.
func InferPrimop(op Primop, args []Type, params []int) (Type, error) {
	if !op.Valid() {
		return nil, &RuleError{Op: op, Code: RuleInvalidParameter, Message: "unknown operator"}
	}
	rule := primopRules[op]

	if rule.arity >= 0 && len(args) != rule.arity {
		return nil, &RuleError{Op: op, Code: RuleArity, Message: fmt.Sprintf("expected %d operand(s), got %d", rule.arity, len(args))}
	}
	if rule.arity < 0 && len(args) < 2 {
		return nil, &RuleError{Op: op, Code: RuleArity, Message: fmt.Sprintf("expected at least 2 operands, got %d", len(args))}
	}
	if len(params) != rule.params {
		return nil, &RuleError{Op: op, Code: RuleArity, Message: fmt.Sprintf("expected %d parameter(s), got %d", rule.params, len(params))}
	}
	for _, p := range params {
		if p < 0 {
			return nil, &RuleError{Op: op, Code: RuleInvalidParameter, Message: fmt.Sprintf("parameter must be non-negative, got %d", p)}
		}
		if p > MaxParameter {
			return nil, &RuleError{Op: op, Code: RuleInvalidParameter, Message: fmt.Sprintf("parameter %d exceeds %d", p, MaxParameter)}
		}
	}

	ws := make([]int, len(args))
	for i, t := range args {
		w, ok := t.ResolvedWidth()
		if !ok {
			return nil, &RuleError{Op: op, Code: RuleWidthMismatch, Message: fmt.Sprintf("operand %d has unresolved width", i)}
		}
		if rule.class == classNumeric && t.Kind() == KindClock {
			return nil, &RuleError{Op: op, Code: RuleKindMismatch, Message: fmt.Sprintf("operand %d must be UInt or SInt, got Clock", i)}
		}
		ws[i] = w
	}
	if rule.sameArg {
		for i := 1; i < len(args); i++ {
			if args[i].Kind() != args[0].Kind() {
				return nil, &RuleError{Op: op, Code: RuleKindMismatch, Message: fmt.Sprintf("operands must share a kind, got %s and %s", args[0], args[i])}
			}
		}
	}

	t, err := rule.result(args, ws, params)
	if err != nil {
		return nil, err
	}
	return t, nil
}
