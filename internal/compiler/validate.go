package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/yinglong/internal/ir"
)

// Validation error codes. They cover structure the IR types cannot rule
// out; typing and name resolution are inference's job. E105 (module without
// ports) is retired: a portless module is valid.
const (
	ErrEmptyID           = "E101" // circuit or module ID is empty
	ErrDuplicateModule   = "E102" // two modules share an ID
	ErrInvalidIdentifier = "E103" // identifier contains whitespace or control characters
	ErrNonNFCIdentifier  = "E104" // identifier is not in Unicode NFC form
	ErrNegativeWidth     = "E106" // explicit width below zero
	ErrMalformedPosition = "E107" // position without file, or line/col below 1
)

// ValidationError represents a structural validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`

	// module is 1 + the index of the module the error belongs to, or 0
	// for circuit-level errors.
	module int
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by the pipeline when Validate finds problems.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	switch len(es) {
	case 0:
		return "validation failed"
	case 1:
		return es[0].Error()
	default:
		return fmt.Sprintf("validation failed with %d errors; first: %s", len(es), es[0].Error())
	}
}

// Validate checks a circuit's structure before inference.
// Returns all errors found (does not fail-fast), in document order.
func Validate(c *ir.Circuit) []ValidationError {
	v := &validator{}
	if c == nil {
		v.add("circuit", ErrEmptyID, nil, "circuit is nil")
		return v.errs
	}

	if strings.TrimSpace(c.ID) == "" {
		v.add("id", ErrEmptyID, c.Pos, "circuit id is required and must be non-empty")
	} else {
		v.ident("id", c.ID, c.Pos)
	}
	v.pos("pos", c.Pos)

	seen := make(map[string]int)
	for i := range c.Modules {
		m := &c.Modules[i]
		path := fmt.Sprintf("modules[%d]", i)
		v.module = i + 1

		switch {
		case strings.TrimSpace(m.ID) == "":
			v.add(path+".id", ErrEmptyID, m.Pos, "module id is required and must be non-empty")
		default:
			if prev, dup := seen[m.ID]; dup {
				v.add(path+".id", ErrDuplicateModule, m.Pos, fmt.Sprintf("duplicate module id %q (first at modules[%d])", m.ID, prev))
			} else {
				seen[m.ID] = i
			}
			v.ident(path+".id", m.ID, m.Pos)
		}
		v.pos(path+".pos", m.Pos)

		for j, p := range m.Ports {
			pp := fmt.Sprintf("%s.ports[%d]", path, j)
			v.ident(pp+".name", p.Bind.Name, p.Pos)
			v.width(pp+".type", p.Bind.Type, p.Pos)
			v.pos(pp+".pos", p.Pos)
		}
		v.group(path+".body", m.Body)
	}
	return v.errs
}

type validator struct {
	errs   []ValidationError
	module int
}

func (v *validator) add(field, code string, pos *ir.PosInfo, msg string) {
	e := ValidationError{Field: field, Message: msg, Code: code, module: v.module}
	if pos != nil && pos.Line > 0 {
		e.Line = pos.Line
	}
	v.errs = append(v.errs, e)
}

func (v *validator) ident(field, name string, pos *ir.PosInfo) {
	if name == "" {
		v.add(field, ErrInvalidIdentifier, pos, "identifier is empty")
		return
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			v.add(field, ErrInvalidIdentifier, pos, fmt.Sprintf("identifier %q contains whitespace or control characters", name))
			return
		}
	}
	if !norm.NFC.IsNormalString(name) {
		v.add(field, ErrNonNFCIdentifier, pos, fmt.Sprintf("identifier %q is not NFC normalized", name))
	}
}

func (v *validator) width(field string, t ir.Type, pos *ir.PosInfo) {
	var w ir.Width
	switch x := t.(type) {
	case ir.UIntType:
		w = x.Width
	case ir.SIntType:
		w = x.Width
	default:
		return
	}
	if w < ir.UnknownWidth {
		v.add(field, ErrNegativeWidth, pos, fmt.Sprintf("width %d is negative", int(w)))
	}
}

func (v *validator) pos(field string, p *ir.PosInfo) {
	if p == nil {
		return
	}
	if p.File == "" || p.Line < 1 || p.Col < 1 {
		v.add(field, ErrMalformedPosition, nil, fmt.Sprintf("malformed position %s", p))
	}
}

func (v *validator) group(path string, g ir.StmtGroup) {
	for i, s := range g {
		sp := fmt.Sprintf("%s[%d]", path, i)
		v.pos(sp+".pos", s.Pos)
		v.expressions(sp, s.Raw, s.Pos)

		switch raw := s.Raw.(type) {
		case ir.WireDef:
			v.ident(sp+".wire.name", raw.Bind.Name, s.Pos)
			v.width(sp+".wire.type", raw.Bind.Type, s.Pos)
		case ir.RegDef:
			v.ident(sp+".reg.name", raw.Bind.Name, s.Pos)
			v.width(sp+".reg.type", raw.Bind.Type, s.Pos)
		case ir.MemDef:
			v.ident(sp+".mem.name", raw.Name, s.Pos)
			v.width(sp+".mem.data", raw.Data, s.Pos)
		case ir.Inst:
			v.ident(sp+".inst.name", raw.Name, s.Pos)
		case ir.Node:
			v.ident(sp+".node.name", raw.Name, s.Pos)
		case ir.When:
			v.group(sp+".when.then", raw.Then)
			v.group(sp+".when.else", raw.Else)
		case ir.StmtGroup:
			v.group(sp+".group", raw)
		}
	}
}

// expressions checks literal widths inside a statement's expressions.
func (v *validator) expressions(path string, raw ir.RawStmt, pos *ir.PosInfo) {
	var exprs []ir.Expr
	switch r := raw.(type) {
	case ir.RegDef:
		exprs = []ir.Expr{r.Clock, r.Reset, r.Init}
	case ir.Inst:
		exprs = []ir.Expr{r.Value}
	case ir.Node:
		exprs = []ir.Expr{r.Value}
	case ir.Connect:
		exprs = []ir.Expr{r.Dst, r.Src}
	case ir.When:
		exprs = []ir.Expr{r.Cond}
	}
	for _, e := range exprs {
		v.expr(path, e, pos)
	}
}

func (v *validator) expr(path string, e ir.Expr, pos *ir.PosInfo) {
	switch x := e.(type) {
	case ir.Literal:
		v.width(path, x.Type, pos)
	case ir.Ref:
		v.ident(path, x.Name, pos)
	case ir.DoPrim:
		for _, a := range x.Args {
			v.expr(path, a, pos)
		}
	case ir.Mux:
		v.expr(path, x.Cond, pos)
		v.expr(path, x.Then, pos)
		v.expr(path, x.Else, pos)
	case ir.SubField:
		v.expr(path, x.Expr, pos)
	case ir.SubIndex:
		v.expr(path, x.Expr, pos)
	case ir.SubAccess:
		v.expr(path, x.Expr, pos)
		v.expr(path, x.Index, pos)
	}
}

// validModules returns the modules of c that no error refers to, or nil
// when an error concerns the circuit as a whole.
func validModules(c *ir.Circuit, errs []ValidationError) []ir.Module {
	bad := make(map[int]bool)
	for _, e := range errs {
		if e.module == 0 {
			return nil
		}
		bad[e.module-1] = true
	}
	var out []ir.Module
	for i, m := range c.Modules {
		if !bad[i] {
			out = append(out, m)
		}
	}
	return out
}
