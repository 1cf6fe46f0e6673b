package infer

import (
	"errors"
	"fmt"

	"github.com/roach88/yinglong/internal/ir"
)

// fault is an expression-level problem. The statement walker attaches module
// and position and turns it into a Diagnostic.
type fault struct {
	code Code
	name string
	rule string
	msg  string
}

// lookupFunc resolves a name to its type. A nil type with a nil fault means
// the name was poisoned by an earlier error and must not be reported again.
type lookupFunc func(name string) (ir.Type, *fault)

// typeExpr computes the type of e, collecting every fault found in its
// operands. The type is nil whenever any operand failed.
func typeExpr(e ir.Expr, lookup lookupFunc) (ir.Type, []fault) {
	switch x := e.(type) {
	case nil:
		return nil, []fault{{code: CodeArity, msg: "missing expression"}}
	case ir.Literal:
		return typeLiteral(x)
	case ir.Ref:
		t, f := lookup(x.Name)
		if f != nil {
			return nil, []fault{*f}
		}
		return t, nil
	case ir.SubField:
		return aggregate(x, x.Expr, nil, lookup)
	case ir.SubIndex:
		return aggregate(x, x.Expr, nil, lookup)
	case ir.SubAccess:
		return aggregate(x, x.Expr, x.Index, lookup)
	case ir.Mux:
		return typeMux(x, lookup)
	case ir.DoPrim:
		return typePrim(x, lookup)
	default:
		return nil, []fault{{code: CodeKindMismatch, msg: fmt.Sprintf("unsupported expression %T", e)}}
	}
}

func typeLiteral(x ir.Literal) (ir.Type, []fault) {
	if x.Type != nil && x.Type.Kind() == ir.KindClock {
		return nil, []fault{{code: CodeKindMismatch, rule: "literal", msg: "Clock literals are not allowed"}}
	}
	t := x.LiteralType()
	if x.Value != nil && x.Value.Sign() < 0 && t.Kind() == ir.KindUInt {
		return nil, []fault{{code: CodeInvalidParameter, rule: "literal", msg: fmt.Sprintf("UInt literal cannot be negative: %s", x.Value)}}
	}
	w, _ := t.ResolvedWidth()
	if x.Value != nil && x.Value.Sign() != 0 {
		if need := ir.MinWidth(t.Kind(), x.Value); need > w {
			return nil, []fault{{code: CodeWidthMismatch, rule: "literal", msg: fmt.Sprintf("value %s needs %d bits, declared %s", x.Value, need, t)}}
		}
	}
	return t, nil
}

func aggregate(e ir.Expr, inner, index ir.Expr, lookup lookupFunc) (ir.Type, []fault) {
	t, faults := typeExpr(inner, lookup)
	if index != nil {
		_, fs := typeExpr(index, lookup)
		faults = append(faults, fs...)
	}
	if t == nil {
		return nil, faults
	}
	name := ""
	if ref, ok := inner.(ir.Ref); ok {
		name = ref.Name
	}
	return nil, append(faults, fault{
		code: CodeKindMismatch,
		name: name,
		rule: e.Variant(),
		msg:  fmt.Sprintf("%s requires an aggregate operand, got ground type %s", e.Variant(), t),
	})
}

func typeMux(x ir.Mux, lookup lookupFunc) (ir.Type, []fault) {
	cond, faults := typeExpr(x.Cond, lookup)
	then, fs := typeExpr(x.Then, lookup)
	faults = append(faults, fs...)
	els, fs := typeExpr(x.Else, lookup)
	faults = append(faults, fs...)

	if cond != nil {
		if f := boolFault(cond, "mux"); f != nil {
			faults = append(faults, *f)
		}
	}
	if cond == nil || then == nil || els == nil || len(faults) > 0 {
		return nil, faults
	}
	if then.Kind() != els.Kind() {
		return nil, []fault{{code: CodeKindMismatch, rule: "mux", msg: fmt.Sprintf("branches must share a kind, got %s and %s", then, els)}}
	}
	tw, _ := then.ResolvedWidth()
	ew, _ := els.ResolvedWidth()
	return ir.WithWidth(then, max(tw, ew)), nil
}

func typePrim(x ir.DoPrim, lookup lookupFunc) (ir.Type, []fault) {
	var faults []fault
	args := make([]ir.Type, len(x.Args))
	complete := true
	for i, a := range x.Args {
		t, fs := typeExpr(a, lookup)
		faults = append(faults, fs...)
		if t == nil {
			complete = false
		}
		args[i] = t
	}
	if !complete {
		return nil, faults
	}

	t, err := ir.InferPrimop(x.Op, args, x.Params)
	if err != nil {
		var re *ir.RuleError
		if errors.As(err, &re) {
			return nil, append(faults, fault{code: ruleCode(re.Code), rule: x.Op.String(), msg: re.Message})
		}
		return nil, append(faults, fault{code: CodeInvalidParameter, rule: x.Op.String(), msg: err.Error()})
	}
	return t, faults
}

// boolFault checks that t is UInt<1>, the type of every condition.
func boolFault(t ir.Type, rule string) *fault {
	if t.Kind() != ir.KindUInt {
		return &fault{code: CodeKindMismatch, rule: rule, msg: fmt.Sprintf("condition must be UInt<1>, got %s", t)}
	}
	if w, _ := t.ResolvedWidth(); w != 1 {
		return &fault{code: CodeWidthMismatch, rule: rule, msg: fmt.Sprintf("condition must be 1 bit wide, got %s", t)}
	}
	return nil
}

// TypeOf derives the type of e within a checked module environment, applying
// exactly the rules Infer applies. The Verilog lowering engine calls it so the
// two passes share one operator algebra.
//
// The returned error is a Diagnostic describing the first problem found.
func TypeOf(env *ModuleEnv, e ir.Expr) (ir.Type, error) {
	if env == nil {
		return nil, errors.New("TypeOf: nil module environment")
	}
	lookup := func(name string) (ir.Type, *fault) {
		b, ok := env.Lookup(name)
		if !ok {
			return nil, &fault{code: CodeUndeclared, name: name, msg: "undeclared identifier"}
		}
		if !b.Resolved() {
			return nil, &fault{code: CodeUnresolvedWidth, name: name, msg: fmt.Sprintf("width of %s %q is unknown", b.Kind, name)}
		}
		return b.Type, nil
	}

	t, faults := typeExpr(e, lookup)
	if len(faults) > 0 {
		f := faults[0]
		return nil, Diagnostic{Code: f.code, Module: env.ID, Name: f.name, Rule: f.rule, Message: f.msg}
	}
	return t, nil
}
