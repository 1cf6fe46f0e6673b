package infer

import (
	"fmt"

	"github.com/roach88/yinglong/internal/ir"
)

type moduleResult struct {
	env   *ModuleEnv
	diags Diagnostics
}

// symbol is the checker's mutable view of one declaration.
type symbol struct {
	decl     ir.Decl
	typ      ir.Type
	inferred bool // width fixed by the first driver
	poisoned bool // an error was already reported for it
}

// scope is one lexical level. Names are unique across the whole module;
// scopes only decide visibility.
type scope struct {
	parent *scope
	names  map[string]*symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]*symbol)}
}

func (s *scope) lookup(name string) *symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.names[name]; ok {
			return sym
		}
	}
	return nil
}

// nameSet tracks the sinks driven on the current control path.
type nameSet map[string]struct{}

func (s nameSet) clone() nameSet {
	out := make(nameSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

type checker struct {
	module *ir.Module
	all    map[string]*symbol
	order  []*symbol
	diags  Diagnostics
}

// checkModule walks one module exactly once, in declaration order.
func checkModule(m *ir.Module) moduleResult {
	c := &checker{module: m, all: make(map[string]*symbol)}
	root := newScope(nil)
	driven := make(nameSet)

	for _, p := range m.Ports {
		kind := ir.DeclInput
		if p.Dir == ir.Output {
			kind = ir.DeclOutput
		}
		c.declareTyped(root, p.Bind, kind, p.Pos)
	}
	c.group(m.Body, root, driven)
	c.finish(driven)

	bindings := make([]Binding, len(c.order))
	for i, sym := range c.order {
		bindings[i] = Binding{Name: sym.decl.Name, Kind: sym.decl.Kind, Type: sym.typ, Pos: sym.decl.Pos}
	}
	return moduleResult{env: newModuleEnv(m.ID, bindings), diags: c.diags}
}

func (c *checker) report(code Code, name string, pos *ir.PosInfo, rule, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Code:    code,
		Module:  c.module.ID,
		Name:    name,
		Pos:     pos,
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
	})
}

// declare adds name to the namespace and to sc. It returns nil and reports
// Duplicate when the name already exists anywhere in the module.
func (c *checker) declare(sc *scope, name string, kind ir.DeclKind, typ ir.Type, pos *ir.PosInfo) *symbol {
	if prev, ok := c.all[name]; ok {
		where := ""
		if prev.decl.Pos != nil {
			where = " at " + prev.decl.Pos.String()
		}
		c.report(CodeDuplicate, name, pos, kind.String(), "%q is already declared as %s%s", name, prev.decl.Kind, where)
		return nil
	}
	sym := &symbol{decl: ir.Decl{Name: name, Kind: kind, Pos: pos}, typ: typ}
	c.all[name] = sym
	c.order = append(c.order, sym)
	sc.names[name] = sym
	return sym
}

// declareTyped declares a binding whose type is written in the IR (ports,
// wires). A missing type poisons the name.
func (c *checker) declareTyped(sc *scope, b ir.TypeBind, kind ir.DeclKind, pos *ir.PosInfo) *symbol {
	sym := c.declare(sc, b.Name, kind, b.Type, pos)
	if sym != nil && b.Type == nil {
		c.report(CodeUnresolvedWidth, b.Name, pos, kind.String(), "%s %q has no type", kind, b.Name)
		sym.poisoned = true
	}
	return sym
}

// lookupIn resolves names through the scope chain of sc.
func (c *checker) lookupIn(sc *scope) lookupFunc {
	return func(name string) (ir.Type, *fault) {
		sym := sc.lookup(name)
		if sym == nil {
			msg := fmt.Sprintf("undeclared identifier %q (forward references are not supported)", name)
			if _, elsewhere := c.all[name]; elsewhere {
				msg = fmt.Sprintf("%q is declared in a nested scope that is not visible here", name)
			}
			return nil, &fault{code: CodeUndeclared, name: name, msg: msg}
		}
		if sym.poisoned {
			return nil, nil
		}
		if !ir.IsResolved(sym.typ) {
			sym.poisoned = true
			return nil, &fault{code: CodeUnresolvedWidth, name: name, msg: fmt.Sprintf("width of %s %q is not known at this use", sym.decl.Kind, name)}
		}
		return sym.typ, nil
	}
}

// expr types e in sc and reports its faults against the statement at pos.
// subject names the binding being defined, used when a fault has no name.
func (c *checker) expr(e ir.Expr, sc *scope, subject string, pos *ir.PosInfo) ir.Type {
	t, faults := typeExpr(e, c.lookupIn(sc))
	for _, f := range faults {
		name := f.name
		if name == "" {
			name = subject
		}
		c.report(f.code, name, pos, f.rule, "%s", f.msg)
	}
	return t
}

func (c *checker) requireBool(t ir.Type, subject, rule string, pos *ir.PosInfo) {
	if f := boolFault(t, rule); f != nil {
		c.report(f.code, subject, pos, f.rule, "%s", f.msg)
	}
}

func (c *checker) group(g ir.StmtGroup, sc *scope, driven nameSet) {
	for _, s := range g {
		c.stmt(s, sc, driven)
	}
}

func (c *checker) stmt(s ir.Stmt, sc *scope, driven nameSet) {
	switch raw := s.Raw.(type) {
	case ir.WireDef:
		c.declareTyped(sc, raw.Bind, ir.DeclWire, s.Pos)
	case ir.RegDef:
		c.regDef(raw, sc, s.Pos)
	case ir.MemDef:
		c.memDef(raw, sc, s.Pos)
	case ir.Inst:
		t := c.expr(raw.Value, sc, raw.Name, s.Pos)
		if sym := c.declare(sc, raw.Name, ir.DeclInst, t, s.Pos); sym != nil && t == nil {
			sym.poisoned = true
		}
	case ir.Node:
		if sym := sc.lookup(raw.Name); sym != nil && sym.decl.Kind.Writable() {
			c.drive(sym, raw.Value, sc, s.Pos, driven)
			return
		}
		t := c.expr(raw.Value, sc, raw.Name, s.Pos)
		if sym := c.declare(sc, raw.Name, ir.DeclNode, t, s.Pos); sym != nil && t == nil {
			sym.poisoned = true
		}
	case ir.Connect:
		c.connect(raw, sc, s.Pos, driven)
	case ir.When:
		c.when(raw, sc, s.Pos, driven)
	case ir.StmtGroup:
		c.group(raw, newScope(sc), driven)
	default:
		c.report(CodeKindMismatch, "", s.Pos, "", "unsupported statement %T", s.Raw)
	}
}

func (c *checker) connect(raw ir.Connect, sc *scope, pos *ir.PosInfo, driven nameSet) {
	ref, ok := raw.Dst.(ir.Ref)
	if !ok {
		switch raw.Dst.(type) {
		case ir.SubField, ir.SubIndex, ir.SubAccess:
			c.expr(raw.Dst, sc, "", pos)
		default:
			c.report(CodeInvalidSink, "", pos, "connect", "connect target must be a reference, got %s", exprString(raw.Dst))
		}
		c.expr(raw.Src, sc, "", pos)
		return
	}

	sym := sc.lookup(ref.Name)
	if sym == nil {
		_, f := c.lookupIn(sc)(ref.Name)
		c.report(f.code, ref.Name, pos, "connect", "%s", f.msg)
		c.expr(raw.Src, sc, ref.Name, pos)
		return
	}
	if !sym.decl.Kind.Writable() {
		c.report(CodeInvalidSink, ref.Name, pos, "connect", "cannot drive %s %q", sym.decl.Kind, ref.Name)
		c.expr(raw.Src, sc, ref.Name, pos)
		return
	}
	c.drive(sym, raw.Src, sc, pos, driven)
}

// drive checks src against the sink sym and records the sink as driven.
func (c *checker) drive(sym *symbol, src ir.Expr, sc *scope, pos *ir.PosInfo, driven nameSet) {
	t := c.expr(src, sc, sym.decl.Name, pos)
	driven[sym.decl.Name] = struct{}{}
	if t == nil || sym.poisoned {
		return
	}
	c.unify(sym, t, pos, "connect")
}

// unify constrains sym by a driver of type t.
//
// An unknown sink width is fixed by its first driver; a later driver wider
// than that inferred width is WidthMismatch. An explicit sink width always
// wins: wider drivers truncate and narrower ones extend.
func (c *checker) unify(sym *symbol, t ir.Type, pos *ir.PosInfo, rule string) {
	name := sym.decl.Name
	if sym.typ.Kind() != t.Kind() {
		c.report(CodeKindMismatch, name, pos, rule, "cannot drive %s %q of type %s from %s", sym.decl.Kind, name, sym.typ, t)
		return
	}
	tw, _ := t.ResolvedWidth()
	sw, known := sym.typ.ResolvedWidth()
	if !known {
		sym.typ = ir.WithWidth(sym.typ, tw)
		sym.inferred = true
		return
	}
	if sym.inferred && tw > sw {
		c.report(CodeWidthMismatch, name, pos, rule, "%q was inferred as %d bits from its first driver; this driver is %d bits wide", name, sw, tw)
	}
}

func (c *checker) when(raw ir.When, sc *scope, pos *ir.PosInfo, driven nameSet) {
	if t := c.expr(raw.Cond, sc, "", pos); t != nil {
		c.requireBool(t, "", "when", pos)
	}

	thenDriven := driven.clone()
	c.group(raw.Then, newScope(sc), thenDriven)
	elseDriven := driven.clone()
	c.group(raw.Else, newScope(sc), elseDriven)

	for name := range thenDriven {
		if _, ok := elseDriven[name]; ok {
			driven[name] = struct{}{}
		}
	}
}

func (c *checker) regDef(raw ir.RegDef, sc *scope, pos *ir.PosInfo) {
	name := raw.Bind.Name

	if raw.Clock == nil {
		c.report(CodeInvalidParameter, name, pos, "reg", "register %q has no clock", name)
	} else if clk := c.expr(raw.Clock, sc, name, pos); clk != nil && clk.Kind() != ir.KindClock {
		c.report(CodeKindMismatch, name, pos, "reg", "register clock must be Clock, got %s", clk)
	}

	if (raw.Reset == nil) != (raw.Init == nil) {
		c.report(CodeInvalidParameter, name, pos, "reg", "register %q must give reset and init together", name)
	}
	if raw.Reset != nil {
		if rst := c.expr(raw.Reset, sc, name, pos); rst != nil {
			c.requireBool(rst, name, "reg", pos)
		}
	}
	var initType ir.Type
	if raw.Init != nil {
		initType = c.expr(raw.Init, sc, name, pos)
	}

	sym := c.declareTyped(sc, raw.Bind, ir.DeclReg, pos)
	if sym == nil || sym.poisoned || initType == nil {
		return
	}
	if sym.typ.Kind() != initType.Kind() {
		c.report(CodeKindMismatch, name, pos, "reg", "register %q of type %s cannot be initialised from %s", name, sym.typ, initType)
		return
	}
	iw, _ := initType.ResolvedWidth()
	rw, known := sym.typ.ResolvedWidth()
	switch {
	case !known:
		sym.typ = ir.WithWidth(sym.typ, iw)
		sym.inferred = true
	case iw > rw:
		c.report(CodeWidthMismatch, name, pos, "reg", "init is %d bits wide but register %q is declared %s", iw, name, sym.typ)
	}
}

func (c *checker) memDef(raw ir.MemDef, sc *scope, pos *ir.PosInfo) {
	name := raw.Name
	bad := false

	switch {
	case raw.Data == nil || !ir.IsResolved(raw.Data):
		c.report(CodeUnresolvedWidth, name, pos, "mem", "memory %q needs a data type with a known width", name)
		bad = true
	case raw.Data.Kind() == ir.KindClock:
		c.report(CodeKindMismatch, name, pos, "mem", "memory %q cannot store Clock", name)
		bad = true
	}
	if raw.Depth <= 0 {
		c.report(CodeInvalidParameter, name, pos, "mem", "memory %q depth must be positive, got %d", name, raw.Depth)
	}
	if raw.ReadLatency < 0 || raw.WriteLatency < 0 {
		c.report(CodeInvalidParameter, name, pos, "mem", "memory %q latencies must be non-negative", name)
	}
	ports := make(map[string]bool, len(raw.Readers)+len(raw.Writers))
	for _, p := range append(append([]string{}, raw.Readers...), raw.Writers...) {
		if ports[p] {
			c.report(CodeDuplicate, name+"."+p, pos, "mem", "memory %q declares port %q twice", name, p)
		}
		ports[p] = true
	}

	if sym := c.declare(sc, name, ir.DeclMem, raw.Data, pos); sym != nil && bad {
		sym.poisoned = true
	}
}

// finish reports what only the complete walk can tell: widths never
// determined, zero-width bindings and sinks not driven on every path.
func (c *checker) finish(driven nameSet) {
	for _, sym := range c.order {
		if sym.poisoned {
			continue
		}
		name := sym.decl.Name
		w, ok := resolved(sym.typ)
		if !ok {
			c.report(CodeUnresolvedWidth, name, sym.decl.Pos, sym.decl.Kind.String(), "width of %s %q was never determined", sym.decl.Kind, name)
			continue
		}
		if w == 0 {
			c.report(CodeZeroWidth, name, sym.decl.Pos, sym.decl.Kind.String(), "%s %q has zero width", sym.decl.Kind, name)
		}
		if sym.decl.Kind == ir.DeclOutput || sym.decl.Kind == ir.DeclWire {
			if _, ok := driven[name]; !ok {
				c.report(CodeNotFullyInitialized, name, sym.decl.Pos, sym.decl.Kind.String(), "%s %q is not driven on every control path", sym.decl.Kind, name)
			}
		}
	}
}

func exprString(e ir.Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}
