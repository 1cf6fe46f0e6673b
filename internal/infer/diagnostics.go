package infer

import (
	"fmt"
	"strings"

	"github.com/roach88/yinglong/internal/ir"
)

// Code identifies a diagnostic. E-codes are errors, W-codes are warnings.
type Code string

const (
	// CodeUndeclared: reference to a name not visible at the point of use.
	CodeUndeclared Code = "E201"

	// CodeDuplicate: a name declared twice in the module namespace.
	CodeDuplicate Code = "E202"

	// CodeInvalidSink: a connect target that cannot be driven.
	CodeInvalidSink Code = "E203"

	// CodeWidthMismatch: a width conflicts with the width implied by a rule.
	CodeWidthMismatch Code = "E210"

	// CodeUnresolvedWidth: no constraint determines a width.
	CodeUnresolvedWidth Code = "E211"

	// CodeKindMismatch: operand or sink kinds disagree (UInt, SInt, Clock).
	CodeKindMismatch Code = "E212"

	// CodeArity: wrong number of operands or parameters.
	CodeArity Code = "E213"

	// CodeInvalidParameter: an out-of-range operator or declaration parameter.
	CodeInvalidParameter Code = "E214"

	// CodeZeroWidth: a zero-width binding. Legal but degenerate.
	CodeZeroWidth Code = "W220"

	// CodeNotFullyInitialized: an output or wire not driven on every path.
	CodeNotFullyInitialized Code = "W221"
)

// Category groups codes the way callers branch on them.
type Category string

const (
	CategoryDeclaration Category = "DeclarationError"
	CategoryType        Category = "TypeError"
	CategoryWarning     Category = "Warning"
)

// Severity decides whether a diagnostic blocks lowering.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

type codeInfo struct {
	name     string
	category Category
}

var codes = map[Code]codeInfo{
	CodeUndeclared:          {"Undeclared", CategoryDeclaration},
	CodeDuplicate:           {"Duplicate", CategoryDeclaration},
	CodeInvalidSink:         {"InvalidSink", CategoryDeclaration},
	CodeWidthMismatch:       {"WidthMismatch", CategoryType},
	CodeUnresolvedWidth:     {"UnresolvedWidth", CategoryType},
	CodeKindMismatch:        {"KindMismatch", CategoryType},
	CodeArity:               {"Arity", CategoryType},
	CodeInvalidParameter:    {"InvalidParameter", CategoryType},
	CodeZeroWidth:           {"ZeroWidth", CategoryWarning},
	CodeNotFullyInitialized: {"NotFullyInitialized", CategoryWarning},
}

// Name returns the short name of the code, e.g. "Undeclared".
func (c Code) Name() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return string(c)
}

// Category returns the code's category.
func (c Code) Category() Category {
	return codes[c].category
}

// Severity returns SeverityWarning for W-codes, SeverityError otherwise.
func (c Code) Severity() Severity {
	if strings.HasPrefix(string(c), "W") {
		return SeverityWarning
	}
	return SeverityError
}

// Diagnostic is one discovered problem, with enough context to locate it:
// the module, the identifier, the statement position and the operator or
// rule being evaluated.
type Diagnostic struct {
	Code    Code
	Module  string
	Name    string
	Pos     *ir.PosInfo
	Rule    string
	Message string
}

// Severity is shorthand for d.Code.Severity().
func (d Diagnostic) Severity() Severity {
	return d.Code.Severity()
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.Pos != nil {
		fmt.Fprintf(&b, "%s: ", d.Pos)
	}
	fmt.Fprintf(&b, "%s %s", d.Code, d.Code.Name())
	if d.Module != "" {
		fmt.Fprintf(&b, " in module %s", d.Module)
	}
	if d.Name != "" {
		fmt.Fprintf(&b, " (%s)", d.Name)
	}
	if d.Rule != "" {
		fmt.Fprintf(&b, " [%s]", d.Rule)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

// Diagnostics is an ordered collection: circuit-level diagnostics first,
// then each module's in module order, each in discovery order.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity() == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	return ds.filter(func(d Diagnostic) bool { return d.Severity() == SeverityError })
}

// Warnings returns the warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	return ds.filter(func(d Diagnostic) bool { return d.Severity() == SeverityWarning })
}

// WithCode returns the diagnostics carrying code.
func (ds Diagnostics) WithCode(code Code) Diagnostics {
	return ds.filter(func(d Diagnostic) bool { return d.Code == code })
}

// Codes returns the code of each diagnostic, in order, or nil when there
// are none.
func (ds Diagnostics) Codes() []Code {
	var out []Code
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func (ds Diagnostics) filter(keep func(Diagnostic) bool) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// ruleCode maps an ir.RuleError code onto a diagnostic code.
func ruleCode(code string) Code {
	switch code {
	case ir.RuleWidthMismatch:
		return CodeWidthMismatch
	case ir.RuleKindMismatch:
		return CodeKindMismatch
	case ir.RuleArity:
		return CodeArity
	default:
		return CodeInvalidParameter
	}
}
