package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"gopkg.in/yaml.v3"

	"github.com/roach88/yinglong/internal/ir"
)

// CircuitDoc is the serialized form of a circuit shared by JSON, YAML and
// CUE documents. It mirrors the IR tree one to one; statements and
// expressions are single-key objects.
type CircuitDoc struct {
	ID      string      `json:"id" yaml:"id"`
	Modules []ModuleDoc `json:"modules" yaml:"modules"`
	Pos     *PosDoc     `json:"pos,omitempty" yaml:"pos,omitempty"`
}

type ModuleDoc struct {
	ID    string    `json:"id" yaml:"id"`
	Ports []PortDoc `json:"ports,omitempty" yaml:"ports,omitempty"`
	Body  []StmtDoc `json:"body,omitempty" yaml:"body,omitempty"`
	Pos   *PosDoc   `json:"pos,omitempty" yaml:"pos,omitempty"`
}

type PosDoc struct {
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
	Col  int    `json:"col" yaml:"col"`
}

type PortDoc struct {
	Dir  string  `json:"dir" yaml:"dir"`
	Name string  `json:"name" yaml:"name"`
	Type string  `json:"type" yaml:"type"`
	Pos  *PosDoc `json:"pos,omitempty" yaml:"pos,omitempty"`
}

// StmtDoc holds exactly one statement form plus an optional position.
type StmtDoc struct {
	Wire    *BindDoc    `json:"wire,omitempty" yaml:"wire,omitempty"`
	Reg     *RegDoc     `json:"reg,omitempty" yaml:"reg,omitempty"`
	Mem     *MemDoc     `json:"mem,omitempty" yaml:"mem,omitempty"`
	Inst    *NamedDoc   `json:"inst,omitempty" yaml:"inst,omitempty"`
	Node    *NamedDoc   `json:"node,omitempty" yaml:"node,omitempty"`
	Connect *ConnectDoc `json:"connect,omitempty" yaml:"connect,omitempty"`
	When    *WhenDoc    `json:"when,omitempty" yaml:"when,omitempty"`
	Group   []StmtDoc   `json:"group,omitempty" yaml:"group,omitempty"`
	Pos     *PosDoc     `json:"pos,omitempty" yaml:"pos,omitempty"`
}

type BindDoc struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

type RegDoc struct {
	Name  string   `json:"name" yaml:"name"`
	Type  string   `json:"type" yaml:"type"`
	Clock ExprDoc  `json:"clock" yaml:"clock"`
	Reset *ExprDoc `json:"reset,omitempty" yaml:"reset,omitempty"`
	Init  *ExprDoc `json:"init,omitempty" yaml:"init,omitempty"`
}

type MemDoc struct {
	Name         string   `json:"name" yaml:"name"`
	Data         string   `json:"data" yaml:"data"`
	Depth        int      `json:"depth" yaml:"depth"`
	ReadLatency  int      `json:"read_latency" yaml:"read_latency"`
	WriteLatency int      `json:"write_latency" yaml:"write_latency"`
	Readers      []string `json:"readers,omitempty" yaml:"readers,omitempty"`
	Writers      []string `json:"writers,omitempty" yaml:"writers,omitempty"`
}

type NamedDoc struct {
	Name  string  `json:"name" yaml:"name"`
	Value ExprDoc `json:"value" yaml:"value"`
}

type ConnectDoc struct {
	Dst ExprDoc `json:"dst" yaml:"dst"`
	Src ExprDoc `json:"src" yaml:"src"`
}

type WhenDoc struct {
	Cond ExprDoc   `json:"cond" yaml:"cond"`
	Then []StmtDoc `json:"then" yaml:"then"`
	Else []StmtDoc `json:"else,omitempty" yaml:"else,omitempty"`
}

// ExprDoc holds exactly one expression form. An operator application is
// the op/args/params triple.
type ExprDoc struct {
	Ref       string        `json:"ref,omitempty" yaml:"ref,omitempty"`
	Lit       *LitDoc       `json:"lit,omitempty" yaml:"lit,omitempty"`
	Op        string        `json:"op,omitempty" yaml:"op,omitempty"`
	Args      []ExprDoc     `json:"args,omitempty" yaml:"args,omitempty"`
	Params    []int         `json:"params,omitempty" yaml:"params,omitempty"`
	Mux       *MuxDoc       `json:"mux,omitempty" yaml:"mux,omitempty"`
	SubField  *SubFieldDoc  `json:"subfield,omitempty" yaml:"subfield,omitempty"`
	SubIndex  *SubIndexDoc  `json:"subindex,omitempty" yaml:"subindex,omitempty"`
	SubAccess *SubAccessDoc `json:"subaccess,omitempty" yaml:"subaccess,omitempty"`
}

// LitDoc carries the value as a decimal string so widths beyond 64 bits
// survive every document format.
type LitDoc struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

type MuxDoc struct {
	Cond ExprDoc `json:"cond" yaml:"cond"`
	Then ExprDoc `json:"then" yaml:"then"`
	Else ExprDoc `json:"else" yaml:"else"`
}

type SubFieldDoc struct {
	Expr  ExprDoc `json:"expr" yaml:"expr"`
	Field string  `json:"field" yaml:"field"`
}

type SubIndexDoc struct {
	Expr  ExprDoc `json:"expr" yaml:"expr"`
	Index int     `json:"index" yaml:"index"`
}

type SubAccessDoc struct {
	Expr  ExprDoc `json:"expr" yaml:"expr"`
	Index ExprDoc `json:"index" yaml:"index"`
}

// DecodeJSON decodes a JSON circuit document. Unknown fields are rejected.
func DecodeJSON(data []byte) (*ir.Circuit, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc CircuitDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, &CompileError{Field: "json", Message: err.Error()}
	}
	return doc.Circuit()
}

// DecodeYAML decodes a YAML circuit document. Unknown fields are rejected.
func DecodeYAML(data []byte) (*ir.Circuit, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc CircuitDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}
	return doc.Circuit()
}

// Circuit converts the document into IR. Structural problems that the IR
// cannot represent (unknown types, operators or directions, statements with
// zero or several forms) are reported as *CompileError with the document
// path in Field.
func (d *CircuitDoc) Circuit() (*ir.Circuit, error) {
	c := &ir.Circuit{ID: d.ID, Pos: d.Pos.info()}
	for i := range d.Modules {
		m, err := d.Modules[i].module(fmt.Sprintf("modules[%d]", i))
		if err != nil {
			return nil, err
		}
		c.Modules = append(c.Modules, m)
	}
	return c, nil
}

func (p *PosDoc) info() *ir.PosInfo {
	if p == nil {
		return nil
	}
	return &ir.PosInfo{File: p.File, Line: p.Line, Col: p.Col}
}

func docError(path, format string, args ...any) error {
	return &CompileError{Field: path, Message: fmt.Sprintf(format, args...)}
}

func parseType(path, s string) (ir.Type, error) {
	t, err := ir.ParseType(s)
	if err != nil {
		return nil, docError(path, "%v", err)
	}
	return t, nil
}

func (d *ModuleDoc) module(path string) (ir.Module, error) {
	m := ir.Module{ID: d.ID, Pos: d.Pos.info()}
	for i, p := range d.Ports {
		pp := fmt.Sprintf("%s.ports[%d]", path, i)
		dir, err := ir.ParseDir(p.Dir)
		if err != nil {
			return ir.Module{}, docError(pp+".dir", "%v", err)
		}
		t, err := parseType(pp+".type", p.Type)
		if err != nil {
			return ir.Module{}, err
		}
		m.Ports = append(m.Ports, ir.Port{Dir: dir, Bind: ir.Bind(p.Name, t), Pos: p.Pos.info()})
	}
	body, err := group(path+".body", d.Body)
	if err != nil {
		return ir.Module{}, err
	}
	m.Body = body
	return m, nil
}

func group(path string, docs []StmtDoc) (ir.StmtGroup, error) {
	if docs == nil {
		return nil, nil
	}
	g := make(ir.StmtGroup, 0, len(docs))
	for i := range docs {
		s, err := docs[i].stmt(fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		g = append(g, s)
	}
	return g, nil
}

func (d *StmtDoc) forms() int {
	n := 0
	for _, set := range []bool{
		d.Wire != nil, d.Reg != nil, d.Mem != nil, d.Inst != nil,
		d.Node != nil, d.Connect != nil, d.When != nil, d.Group != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (d *StmtDoc) stmt(path string) (ir.Stmt, error) {
	if n := d.forms(); n != 1 {
		return ir.Stmt{}, docError(path, "statement must have exactly one form, found %d", n)
	}
	s := ir.Stmt{Pos: d.Pos.info()}

	switch {
	case d.Wire != nil:
		t, err := parseType(path+".wire.type", d.Wire.Type)
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = ir.WireDef{Bind: ir.Bind(d.Wire.Name, t)}

	case d.Reg != nil:
		r, err := d.Reg.reg(path + ".reg")
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = r

	case d.Mem != nil:
		t, err := parseType(path+".mem.data", d.Mem.Data)
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = ir.MemDef{
			Name:         d.Mem.Name,
			Data:         t,
			Depth:        d.Mem.Depth,
			ReadLatency:  d.Mem.ReadLatency,
			WriteLatency: d.Mem.WriteLatency,
			Readers:      d.Mem.Readers,
			Writers:      d.Mem.Writers,
		}

	case d.Inst != nil:
		v, err := d.Inst.Value.expr(path + ".inst.value")
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = ir.Inst{Name: d.Inst.Name, Value: v}

	case d.Node != nil:
		v, err := d.Node.Value.expr(path + ".node.value")
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = ir.Node{Name: d.Node.Name, Value: v}

	case d.Connect != nil:
		dst, err := d.Connect.Dst.expr(path + ".connect.dst")
		if err != nil {
			return ir.Stmt{}, err
		}
		src, err := d.Connect.Src.expr(path + ".connect.src")
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = ir.Connect{Dst: dst, Src: src}

	case d.When != nil:
		cond, err := d.When.Cond.expr(path + ".when.cond")
		if err != nil {
			return ir.Stmt{}, err
		}
		then, err := group(path+".when.then", d.When.Then)
		if err != nil {
			return ir.Stmt{}, err
		}
		els, err := group(path+".when.else", d.When.Else)
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = ir.When{Cond: cond, Then: then, Else: els}

	default:
		g, err := group(path+".group", d.Group)
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Raw = g
	}
	return s, nil
}

func (d *RegDoc) reg(path string) (ir.RegDef, error) {
	t, err := parseType(path+".type", d.Type)
	if err != nil {
		return ir.RegDef{}, err
	}
	clock, err := d.Clock.expr(path + ".clock")
	if err != nil {
		return ir.RegDef{}, err
	}
	if (d.Reset == nil) != (d.Init == nil) {
		return ir.RegDef{}, docError(path, "reset and init must be given together")
	}
	r := ir.RegDef{Bind: ir.Bind(d.Name, t), Clock: clock}
	if d.Reset != nil {
		if r.Reset, err = d.Reset.expr(path + ".reset"); err != nil {
			return ir.RegDef{}, err
		}
		if r.Init, err = d.Init.expr(path + ".init"); err != nil {
			return ir.RegDef{}, err
		}
	}
	return r, nil
}

func (d *ExprDoc) forms() int {
	n := 0
	for _, set := range []bool{
		d.Ref != "", d.Lit != nil, d.Op != "", d.Mux != nil,
		d.SubField != nil, d.SubIndex != nil, d.SubAccess != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (d *ExprDoc) expr(path string) (ir.Expr, error) {
	if n := d.forms(); n != 1 {
		return nil, docError(path, "expression must have exactly one form, found %d", n)
	}
	if d.Op == "" && (d.Args != nil || d.Params != nil) {
		return nil, docError(path, "args and params require op")
	}

	switch {
	case d.Ref != "":
		return ir.R(d.Ref), nil

	case d.Lit != nil:
		t, err := parseType(path+".lit.type", d.Lit.Type)
		if err != nil {
			return nil, err
		}
		if t.Kind() == ir.KindClock {
			return nil, docError(path+".lit.type", "literals cannot be Clock")
		}
		v, ok := new(big.Int).SetString(d.Lit.Value, 10)
		if !ok {
			return nil, docError(path+".lit.value", "invalid decimal literal %q", d.Lit.Value)
		}
		if v.Sign() < 0 && t.Kind() == ir.KindUInt {
			return nil, docError(path+".lit.value", "negative value %s for unsigned literal", v)
		}
		return ir.Literal{Type: t, Value: v}, nil

	case d.Op != "":
		op, err := ir.ParsePrimop(d.Op)
		if err != nil {
			return nil, docError(path+".op", "%v", err)
		}
		args := make([]ir.Expr, len(d.Args))
		for i := range d.Args {
			if args[i], err = d.Args[i].expr(fmt.Sprintf("%s.args[%d]", path, i)); err != nil {
				return nil, err
			}
		}
		return ir.Prim(op, args, d.Params...), nil

	case d.Mux != nil:
		cond, err := d.Mux.Cond.expr(path + ".mux.cond")
		if err != nil {
			return nil, err
		}
		then, err := d.Mux.Then.expr(path + ".mux.then")
		if err != nil {
			return nil, err
		}
		els, err := d.Mux.Else.expr(path + ".mux.else")
		if err != nil {
			return nil, err
		}
		return ir.Mux{Cond: cond, Then: then, Else: els}, nil

	case d.SubField != nil:
		e, err := d.SubField.Expr.expr(path + ".subfield.expr")
		if err != nil {
			return nil, err
		}
		return ir.SubField{Expr: e, Field: d.SubField.Field}, nil

	case d.SubIndex != nil:
		e, err := d.SubIndex.Expr.expr(path + ".subindex.expr")
		if err != nil {
			return nil, err
		}
		return ir.SubIndex{Expr: e, Index: d.SubIndex.Index}, nil

	default:
		e, err := d.SubAccess.Expr.expr(path + ".subaccess.expr")
		if err != nil {
			return nil, err
		}
		idx, err := d.SubAccess.Index.expr(path + ".subaccess.index")
		if err != nil {
			return nil, err
		}
		return ir.SubAccess{Expr: e, Index: idx}, nil
	}
}

// Document converts a circuit back into its document form.
func Document(c *ir.Circuit) *CircuitDoc {
	d := &CircuitDoc{ID: c.ID, Pos: posDoc(c.Pos)}
	for _, m := range c.Modules {
		md := ModuleDoc{ID: m.ID, Pos: posDoc(m.Pos), Body: groupDoc(m.Body)}
		for _, p := range m.Ports {
			md.Ports = append(md.Ports, PortDoc{
				Dir:  p.Dir.String(),
				Name: p.Bind.Name,
				Type: typeDoc(p.Bind.Type),
				Pos:  posDoc(p.Pos),
			})
		}
		d.Modules = append(d.Modules, md)
	}
	return d
}

func posDoc(p *ir.PosInfo) *PosDoc {
	if p == nil {
		return nil
	}
	return &PosDoc{File: p.File, Line: p.Line, Col: p.Col}
}

func typeDoc(t ir.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func groupDoc(g ir.StmtGroup) []StmtDoc {
	if g == nil {
		return nil
	}
	out := make([]StmtDoc, len(g))
	for i, s := range g {
		out[i] = stmtDoc(s)
	}
	return out
}

func stmtDoc(s ir.Stmt) StmtDoc {
	d := StmtDoc{Pos: posDoc(s.Pos)}
	switch raw := s.Raw.(type) {
	case ir.WireDef:
		d.Wire = &BindDoc{Name: raw.Bind.Name, Type: typeDoc(raw.Bind.Type)}
	case ir.RegDef:
		d.Reg = &RegDoc{Name: raw.Bind.Name, Type: typeDoc(raw.Bind.Type), Clock: exprDoc(raw.Clock)}
		if raw.Reset != nil {
			reset, init := exprDoc(raw.Reset), exprDoc(raw.Init)
			d.Reg.Reset, d.Reg.Init = &reset, &init
		}
	case ir.MemDef:
		d.Mem = &MemDoc{
			Name:         raw.Name,
			Data:         typeDoc(raw.Data),
			Depth:        raw.Depth,
			ReadLatency:  raw.ReadLatency,
			WriteLatency: raw.WriteLatency,
			Readers:      raw.Readers,
			Writers:      raw.Writers,
		}
	case ir.Inst:
		d.Inst = &NamedDoc{Name: raw.Name, Value: exprDoc(raw.Value)}
	case ir.Node:
		d.Node = &NamedDoc{Name: raw.Name, Value: exprDoc(raw.Value)}
	case ir.Connect:
		d.Connect = &ConnectDoc{Dst: exprDoc(raw.Dst), Src: exprDoc(raw.Src)}
	case ir.When:
		d.When = &WhenDoc{Cond: exprDoc(raw.Cond), Then: groupDoc(raw.Then), Else: groupDoc(raw.Else)}
		if d.When.Then == nil {
			d.When.Then = []StmtDoc{}
		}
	case ir.StmtGroup:
		d.Group = groupDoc(raw)
		if d.Group == nil {
			d.Group = []StmtDoc{}
		}
	}
	return d
}

func exprDoc(e ir.Expr) ExprDoc {
	switch x := e.(type) {
	case ir.Ref:
		return ExprDoc{Ref: x.Name}
	case ir.Literal:
		t := x.Type
		if t == nil {
			t = ir.UInt(ir.UnknownWidth)
		}
		v := x.Value
		if v == nil {
			v = new(big.Int)
		}
		return ExprDoc{Lit: &LitDoc{Type: t.String(), Value: v.String()}}
	case ir.DoPrim:
		d := ExprDoc{Op: x.Op.String(), Params: x.Params}
		for _, a := range x.Args {
			d.Args = append(d.Args, exprDoc(a))
		}
		return d
	case ir.Mux:
		return ExprDoc{Mux: &MuxDoc{Cond: exprDoc(x.Cond), Then: exprDoc(x.Then), Else: exprDoc(x.Else)}}
	case ir.SubField:
		return ExprDoc{SubField: &SubFieldDoc{Expr: exprDoc(x.Expr), Field: x.Field}}
	case ir.SubIndex:
		return ExprDoc{SubIndex: &SubIndexDoc{Expr: exprDoc(x.Expr), Index: x.Index}}
	case ir.SubAccess:
		return ExprDoc{SubAccess: &SubAccessDoc{Expr: exprDoc(x.Expr), Index: exprDoc(x.Index)}}
	default:
		return ExprDoc{}
	}
}
