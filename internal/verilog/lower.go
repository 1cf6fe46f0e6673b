package verilog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/ir"
	"github.com/roach88/yinglong/internal/pass"
)

// Lower renders a type-checked circuit as Verilog text.
//
// The precondition (every declared name of every module resolved) is checked
// for the whole circuit before any module is lowered. Modules, ports and
// top-level statements are lowered through pass.Map and joined by index, so
// the text is byte-identical for any worker count.
func Lower(c *infer.Checked, opts ...Option) (string, error) {
	cfg := newConfig(opts)

	if err := checkPrecondition(c); err != nil {
		return "", err
	}

	blocks, err := pass.Map(c.Circuit.Modules, cfg.parallel, func(i int, _ ir.Module) (string, error) {
		ml := newModuleLowerer(&c.Circuit.Modules[i], c.Env.At(i), cfg)
		return ml.lower()
	})
	if err != nil {
		return "", err
	}

	out := strings.Join(blocks, "\n")
	cfg.logger.Info("lowering complete",
		"circuit", c.Circuit.ID,
		"modules", len(blocks),
		"bytes", len(out))
	return out, nil
}

// Pass returns lowering as a pass from a type-checked circuit to its text.
func Pass(opts ...Option) pass.Pass[*infer.Checked, string] {
	return pass.Func[*infer.Checked, string]{
		PassName: "verilog",
		Fn: func(c *infer.Checked) (string, error) {
			return Lower(c, opts...)
		},
	}
}

func checkPrecondition(c *infer.Checked) error {
	if c == nil || c.Circuit == nil || c.Env == nil {
		return &FatalPreconditionError{Reason: "no type-checked circuit"}
	}
	envs := c.Env.Modules()
	if len(envs) != len(c.Circuit.Modules) {
		return &FatalPreconditionError{Reason: fmt.Sprintf("environment covers %d modules, circuit has %d", len(envs), len(c.Circuit.Modules))}
	}
	for i, m := range c.Circuit.Modules {
		env := envs[i]
		if env.ID != m.ID {
			return &FatalPreconditionError{Module: m.ID, Reason: fmt.Sprintf("environment belongs to module %q", env.ID)}
		}
		if names := env.Unresolved(); len(names) > 0 {
			return &FatalPreconditionError{Module: m.ID, Names: names, Reason: "unresolved widths"}
		}
	}
	return nil
}

// line is one output line before indentation and position comments.
type line struct {
	depth int
	text  string
	pos   *ir.PosInfo
}

func (l line) render(comments bool) string {
	s := strings.Repeat("\t", l.depth) + l.text
	if comments && l.pos != nil {
		s += " // @[" + l.pos.String() + "]"
	}
	return s + "\n"
}

// regInfo is a register declaration and its statement.
type regInfo struct {
	def  ir.RegDef
	stmt *ir.Stmt
}

// moduleLowerer holds the per-module analysis shared by every statement.
// Apart from the temp set it is read-only once analyze returns, so
// statements can be lowered concurrently.
type moduleLowerer struct {
	m   *ir.Module
	env *infer.ModuleEnv
	cfg *config

	// procedural holds non-register sinks driven inside a When; they are
	// declared reg and assigned in the combinational always block.
	procedural map[string]bool
	// regs holds every register in declaration order.
	regs    []regInfo
	regName map[string]bool
	// live marks the continuous drivers that survive last-connect-wins.
	live map[*ir.Stmt]bool
	// firstWhen is where the combinational always block is placed.
	firstWhen *ir.Stmt
	// decls lists hoisted declarations in declaration order.
	decls []ir.Decl
	// ord numbers every statement in textual order; temps are named by it.
	ord        map[*ir.Stmt]int
	tempPrefix string

	mu    sync.Mutex
	temps map[string]temp
}

func newModuleLowerer(m *ir.Module, env *infer.ModuleEnv, cfg *config) *moduleLowerer {
	return &moduleLowerer{
		m:          m,
		env:        env,
		cfg:        cfg,
		procedural: make(map[string]bool),
		regName:    make(map[string]bool),
		live:       make(map[*ir.Stmt]bool),
		ord:        make(map[*ir.Stmt]int),
		temps:      make(map[string]temp),
	}
}

func (ml *moduleLowerer) lower() (string, error) {
	if err := ml.analyze(); err != nil {
		return "", err
	}

	ports, err := pass.Map(ml.m.Ports, ml.cfg.parallel, func(_ int, p ir.Port) (string, error) {
		return ml.port(p)
	})
	if err != nil {
		return "", err
	}

	decls, err := pass.Map(ml.decls, ml.cfg.parallel, func(_ int, d ir.Decl) ([]line, error) {
		return ml.declaration(d)
	})
	if err != nil {
		return "", err
	}

	body, err := pass.Map(ml.m.Body, ml.cfg.parallel, func(i int, _ ir.Stmt) ([]line, error) {
		return ml.continuous(&ml.m.Body[i])
	})
	if err != nil {
		return "", err
	}

	regs, err := pass.Map(ml.regs, ml.cfg.parallel, func(_ int, r regInfo) ([]line, error) {
		return ml.register(r)
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	id, err := Ident(ml.m.ID)
	if err != nil {
		return "", &UnsupportedConstructError{Construct: "identifier", Module: ml.m.ID, Pos: ml.m.Pos, Reason: err.Error()}
	}
	fmt.Fprintf(&b, "module %s(\n", id)
	var kept []string
	for _, p := range ports {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		b.WriteString(strings.Join(kept, ",\n"))
		b.WriteString("\n")
	}
	b.WriteString(");\n")

	temps, err := ml.tempLines()
	if err != nil {
		return "", err
	}

	n := 0
	for _, group := range [][][]line{decls, temps, body, regs} {
		for _, lines := range group {
			for _, l := range lines {
				b.WriteString(l.render(ml.cfg.positionComments))
				n++
			}
		}
	}
	b.WriteString("endmodule\n")

	ml.cfg.logger.Debug("module lowered", "module", ml.m.ID, "ports", len(kept), "lines", n)
	return b.String(), nil
}

func (ml *moduleLowerer) unsupported(construct, name string, pos *ir.PosInfo, format string, args ...any) error {
	return &UnsupportedConstructError{
		Construct: construct,
		Module:    ml.m.ID,
		Name:      name,
		Pos:       pos,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (ml *moduleLowerer) width(name string) int {
	b, _ := ml.env.Lookup(name)
	return int(b.Width())
}

func (ml *moduleLowerer) exprs(s *ir.Stmt) *exprLowerer {
	return &exprLowerer{
		module: ml.m.ID,
		env:    ml.env,
		pos:    s.Pos,
		prefix: ml.tempPrefix,
		ord:    ml.ord[s],
		bind:   ml.addTemp,
	}
}

// addTemp records a temp. A statement lowered more than once (a condition
// shared by several always blocks) yields the same temps each time.
func (ml *moduleLowerer) addTemp(t temp) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.temps[t.name] = t
}

// tempLines declares and drives every temp, ordered by statement.
func (ml *moduleLowerer) tempLines() ([][]line, error) {
	temps := make([]temp, 0, len(ml.temps))
	for _, t := range ml.temps {
		temps = append(temps, t)
	}
	slices.SortFunc(temps, func(a, b temp) int {
		if c := cmp.Compare(a.ord, b.ord); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([][]line, len(temps))
	for i, t := range temps {
		bind, err := RenderBind(t.name, t.typ)
		if err != nil {
			return nil, ml.unsupported("identifier", t.name, t.pos, "%v", err)
		}
		out[i] = []line{
			{text: "wire " + bind + ";"},
			{text: "assign " + t.name + " = " + t.text + ";", pos: t.pos},
		}
	}
	return out, nil
}

// target returns the sink driven by s, if s is a driver.
func (ml *moduleLowerer) target(s *ir.Stmt) (string, ir.Expr, bool) {
	switch raw := s.Raw.(type) {
	case ir.Connect:
		if ref, ok := raw.Dst.(ir.Ref); ok {
			return ref.Name, raw.Src, true
		}
	case ir.Node:
		if b, ok := ml.env.Lookup(raw.Name); ok && b.Kind.Writable() {
			return raw.Name, raw.Value, true
		}
	}
	return "", nil, false
}

// analyze classifies sinks and collects declarations. Statement-level
// unsupported constructs are reported here, in textual order.
func (ml *moduleLowerer) analyze() error {
	reg := ir.CollectDeclarations(ml.m)
	for _, d := range reg.Order {
		switch d.Kind {
		case ir.DeclWire, ir.DeclReg, ir.DeclInst, ir.DeclNode:
			ml.decls = append(ml.decls, d)
		}
	}
	ml.tempPrefix = tempPrefix(reg)

	last := make(map[string]*ir.Stmt)
	var drivers []*ir.Stmt

	var walk func(g ir.StmtGroup, inWhen bool) error
	walk = func(g ir.StmtGroup, inWhen bool) error {
		for i := range g {
			s := &g[i]
			ml.ord[s] = len(ml.ord)
			switch raw := s.Raw.(type) {
			case ir.MemDef:
				return ml.unsupported("MemDef", raw.Name, s.Pos, "memories have no lowering rule")
			case ir.RegDef:
				if !ml.cfg.registers {
					return ml.unsupported("RegDef", raw.Bind.Name, s.Pos, "register lowering is disabled")
				}
				ml.regs = append(ml.regs, regInfo{def: raw, stmt: s})
				ml.regName[raw.Bind.Name] = true
			case ir.Connect:
				if _, ok := raw.Dst.(ir.Ref); !ok {
					return ml.unsupported(raw.Dst.Variant(), "", s.Pos, "connect target %s is not a reference", raw.Dst)
				}
			case ir.When:
				if !inWhen && ml.firstWhen == nil {
					ml.firstWhen = s
				}
				if err := walk(raw.Then, true); err != nil {
					return err
				}
				if err := walk(raw.Else, true); err != nil {
					return err
				}
				continue
			case ir.StmtGroup:
				if err := walk(raw, inWhen); err != nil {
					return err
				}
				continue
			}

			name, _, driving := ml.target(s)
			if !driving {
				continue
			}
			if inWhen {
				ml.procedural[name] = true
			} else {
				drivers = append(drivers, s)
				last[name] = s
			}
		}
		return nil
	}
	if err := walk(ml.m.Body, false); err != nil {
		return err
	}

	for name := range ml.regName {
		delete(ml.procedural, name)
	}
	for _, s := range drivers {
		name, _, _ := ml.target(s)
		if last[name] == s && !ml.procedural[name] && !ml.regName[name] {
			ml.live[s] = true
		}
	}
	return nil
}

// tempPrefix picks a prefix no declared name starts with.
func tempPrefix(reg *ir.Registry) string {
	prefix := "_T_"
	for {
		clash := false
		for _, d := range reg.Order {
			if strings.HasPrefix(d.Name, prefix) {
				clash = true
				break
			}
		}
		if !clash {
			return prefix
		}
		prefix += "_"
	}
}

func (ml *moduleLowerer) port(p ir.Port) (string, error) {
	name := p.Bind.Name
	t, _ := ml.env.TypeOf(name)
	bind, err := RenderBind(name, t)
	if err != nil {
		return "", ml.unsupported("identifier", name, p.Pos, "%v", err)
	}
	if bind == "" {
		ml.cfg.logger.Warn("zero-width port omitted", "module", ml.m.ID, "port", name)
		return "", nil
	}
	dir := p.Dir.String()
	if p.Dir == ir.Output && ml.procedural[name] {
		dir += " reg"
	}
	return dir + " " + bind, nil
}

func (ml *moduleLowerer) declaration(d ir.Decl) ([]line, error) {
	name, keyword := d.Name, "wire"
	if d.Kind == ir.DeclReg || (d.Kind == ir.DeclWire && ml.procedural[name]) {
		keyword = "reg"
	}

	t, _ := ml.env.TypeOf(name)
	bind, err := RenderBind(name, t)
	if err != nil {
		return nil, ml.unsupported("identifier", name, d.Pos, "%v", err)
	}
	if bind == "" {
		ml.cfg.logger.Warn("zero-width declaration omitted", "module", ml.m.ID, "name", name)
		return nil, nil
	}
	return []line{{text: keyword + " " + bind + ";", pos: d.Pos}}, nil
}

// assign renders the continuous assignment made by s, or nothing for
// zero-width sinks.
func (ml *moduleLowerer) assign(name string, value ir.Expr, s *ir.Stmt) ([]line, error) {
	w := ml.width(name)
	if w == 0 {
		return nil, nil
	}
	id, err := Ident(name)
	if err != nil {
		return nil, ml.unsupported("identifier", name, s.Pos, "%v", err)
	}
	rhs, err := ml.exprs(s).top(value, w)
	if err != nil {
		return nil, err
	}
	return []line{{text: "assign " + id + " = " + rhs + ";", pos: s.Pos}}, nil
}

// continuous lowers one statement of the module-level stream. Drivers of
// procedural sinks and registers produce nothing here; the always blocks
// carry them.
func (ml *moduleLowerer) continuous(s *ir.Stmt) ([]line, error) {
	switch raw := s.Raw.(type) {
	case ir.WireDef, ir.RegDef, ir.MemDef:
		return nil, nil
	case ir.Inst:
		return ml.assign(raw.Name, raw.Value, s)
	case ir.Node:
		if _, _, driving := ml.target(s); !driving {
			return ml.assign(raw.Name, raw.Value, s)
		}
	case ir.StmtGroup:
		var out []line
		for i := range raw {
			lines, err := ml.continuous(&raw[i])
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
		}
		return out, nil
	case ir.When:
		return ml.when(s, raw)
	}

	name, value, driving := ml.target(s)
	if !driving || !ml.live[s] {
		return nil, nil
	}
	return ml.assign(name, value, s)
}

// when hoists the nodes declared inside a conditional to continuous
// assignments and, at the first module-level When, emits the combinational
// always block.
func (ml *moduleLowerer) when(s *ir.Stmt, raw ir.When) ([]line, error) {
	var out []line
	var hoist func(g ir.StmtGroup) error
	hoist = func(g ir.StmtGroup) error {
		for i := range g {
			inner := &g[i]
			switch r := inner.Raw.(type) {
			case ir.Inst:
				lines, err := ml.assign(r.Name, r.Value, inner)
				if err != nil {
					return err
				}
				out = append(out, lines...)
			case ir.Node:
				if _, _, driving := ml.target(inner); driving {
					continue
				}
				lines, err := ml.assign(r.Name, r.Value, inner)
				if err != nil {
					return err
				}
				out = append(out, lines...)
			case ir.When:
				if err := hoist(r.Then); err != nil {
					return err
				}
				if err := hoist(r.Else); err != nil {
					return err
				}
			case ir.StmtGroup:
				if err := hoist(r); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := hoist(raw.Then); err != nil {
		return nil, err
	}
	if err := hoist(raw.Else); err != nil {
		return nil, err
	}

	if s != ml.firstWhen || len(ml.procedural) == 0 {
		return out, nil
	}
	body, err := ml.project(ml.m.Body, func(name string) bool { return ml.procedural[name] }, "=", 1)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return out, nil
	}
	out = append(out, line{text: "always @(*) begin"})
	out = append(out, body...)
	out = append(out, line{text: "end"})
	return out, nil
}

// flatten inlines nested plain groups; they add no procedural structure.
func flatten(g ir.StmtGroup, out []*ir.Stmt) []*ir.Stmt {
	for i := range g {
		if inner, ok := g[i].Raw.(ir.StmtGroup); ok {
			out = flatten(inner, out)
			continue
		}
		out = append(out, &g[i])
	}
	return out
}

// project renders the drivers of sinks accepted by keep as procedural
// assignments using op ("=" or "<="), preserving When nesting. Within one
// branch only the last driver of each sink is emitted.
func (ml *moduleLowerer) project(g ir.StmtGroup, keep func(string) bool, op string, depth int) ([]line, error) {
	stmts := flatten(g, nil)

	last := make(map[string]int)
	for i, s := range stmts {
		if name, _, ok := ml.target(s); ok && keep(name) {
			last[name] = i
		}
	}

	var out []line
	for i, s := range stmts {
		if w, ok := s.Raw.(ir.When); ok {
			lines, err := ml.projectWhen(s, w, keep, op, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
			continue
		}
		name, value, ok := ml.target(s)
		if !ok || !keep(name) || last[name] != i || ml.width(name) == 0 {
			continue
		}
		id, err := Ident(name)
		if err != nil {
			return nil, ml.unsupported("identifier", name, s.Pos, "%v", err)
		}
		rhs, err := ml.exprs(s).top(value, ml.width(name))
		if err != nil {
			return nil, err
		}
		out = append(out, line{depth: depth, text: id + " " + op + " " + rhs + ";", pos: s.Pos})
	}
	return out, nil
}

func (ml *moduleLowerer) projectWhen(s *ir.Stmt, w ir.When, keep func(string) bool, op string, depth int) ([]line, error) {
	then, err := ml.project(w.Then, keep, op, depth+1)
	if err != nil {
		return nil, err
	}
	els, err := ml.project(w.Else, keep, op, depth+1)
	if err != nil {
		return nil, err
	}
	if len(then) == 0 && len(els) == 0 {
		return nil, nil
	}

	cond, err := ml.exprs(s).top(w.Cond, 1)
	if err != nil {
		return nil, err
	}
	out := []line{{depth: depth, text: "if (" + cond + ") begin", pos: s.Pos}}
	out = append(out, then...)
	if len(els) > 0 {
		out = append(out, line{depth: depth, text: "end else begin"})
		out = append(out, els...)
	}
	out = append(out, line{depth: depth, text: "end"})
	return out, nil
}

// register emits the clocked block of one register: posedge of its Clock
// expression, synchronous reset loading Init, otherwise the projection of
// the body onto the register with non-blocking assignments.
func (ml *moduleLowerer) register(r regInfo) ([]line, error) {
	name := r.def.Bind.Name
	if ml.width(name) == 0 {
		return nil, nil
	}
	pos := r.stmt.Pos
	x := ml.exprs(r.stmt)
	id, err := Ident(name)
	if err != nil {
		return nil, ml.unsupported("identifier", name, pos, "%v", err)
	}

	hasReset := r.def.Reset != nil && r.def.Init != nil
	depth := 1
	if hasReset {
		depth = 2
	}
	next, err := ml.project(ml.m.Body, func(n string) bool { return n == name }, "<=", depth)
	if err != nil {
		return nil, err
	}
	if !hasReset && len(next) == 0 {
		return nil, nil
	}

	clk, err := x.top(r.def.Clock, 1)
	if err != nil {
		return nil, err
	}
	out := []line{{text: "always @(posedge " + clk + ") begin"}}
	if hasReset {
		rst, err := x.top(r.def.Reset, 1)
		if err != nil {
			return nil, err
		}
		init, err := x.top(r.def.Init, ml.width(name))
		if err != nil {
			return nil, err
		}
		out = append(out,
			line{depth: 1, text: "if (" + rst + ") begin"},
			line{depth: 2, text: id + " <= " + init + ";", pos: pos},
		)
		if len(next) > 0 {
			out = append(out, line{depth: 1, text: "end else begin"})
			out = append(out, next...)
		}
		out = append(out, line{depth: 1, text: "end"})
	} else {
		out = append(out, next...)
	}
	out = append(out, line{text: "end"})
	return out, nil
}
