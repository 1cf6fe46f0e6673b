package ir

// DeclKind classifies a name in a module's flat namespace.
type DeclKind int

const (
	DeclInput DeclKind = iota
	DeclOutput
	DeclWire
	DeclReg
	DeclMem
	DeclInst
	DeclNode
)

func (k DeclKind) String() string {
	switch k {
	case DeclInput:
		return "input"
	case DeclOutput:
		return "output"
	case DeclWire:
		return "wire"
	case DeclReg:
		return "reg"
	case DeclMem:
		return "mem"
	case DeclInst:
		return "inst"
	default:
		return "node"
	}
}

// Writable reports whether Connect may target a declaration of this kind.
func (k DeclKind) Writable() bool {
	return k == DeclOutput || k == DeclWire || k == DeclReg
}

// Decl is one entry of a module's declaration registry.
type Decl struct {
	Name string
	Kind DeclKind
	Pos  *PosInfo
}

// Registry holds a module's declarations: one mapping per kind plus the
// flat namespace in declaration order (ports first, then the body
// depth-first).
type Registry struct {
	Order      []Decl
	Ports      map[string]Port
	Wires      map[string]WireDef
	Regs       map[string]RegDef
	Mems       map[string]MemDef
	Insts      map[string]Inst
	Nodes      map[string]Node
	Redeclared []Decl // second and later declarations of a name

	kinds map[string]DeclKind
}

// Kind returns the kind of the first declaration of name.
func (r *Registry) Kind(name string) (DeclKind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// CollectDeclarations builds the registry for a module.
//
// A Node whose name is already a writable declaration drives that sink and
// is not a declaration. The registry does not check scoping; that is the
// inference engine's job.
func CollectDeclarations(m *Module) *Registry {
	r := &Registry{
		Ports: make(map[string]Port),
		Wires: make(map[string]WireDef),
		Regs:  make(map[string]RegDef),
		Mems:  make(map[string]MemDef),
		Insts: make(map[string]Inst),
		Nodes: make(map[string]Node),
		kinds: make(map[string]DeclKind),
	}

	for _, p := range m.Ports {
		kind := DeclInput
		if p.Dir == Output {
			kind = DeclOutput
		}
		if r.add(p.Bind.Name, kind, p.Pos) {
			r.Ports[p.Bind.Name] = p
		}
	}
	r.collectGroup(m.Body)
	return r
}

func (r *Registry) add(name string, kind DeclKind, pos *PosInfo) bool {
	d := Decl{Name: name, Kind: kind, Pos: pos}
	if _, exists := r.kinds[name]; exists {
		r.Redeclared = append(r.Redeclared, d)
		return false
	}
	r.kinds[name] = kind
	r.Order = append(r.Order, d)
	return true
}

func (r *Registry) collectGroup(g StmtGroup) {
	for _, s := range g {
		switch raw := s.Raw.(type) {
		case WireDef:
			if r.add(raw.Bind.Name, DeclWire, s.Pos) {
				r.Wires[raw.Bind.Name] = raw
			}
		case RegDef:
			if r.add(raw.Bind.Name, DeclReg, s.Pos) {
				r.Regs[raw.Bind.Name] = raw
			}
		case MemDef:
			if r.add(raw.Name, DeclMem, s.Pos) {
				r.Mems[raw.Name] = raw
			}
		case Inst:
			if r.add(raw.Name, DeclInst, s.Pos) {
				r.Insts[raw.Name] = raw
			}
		case Node:
			if k, ok := r.kinds[raw.Name]; ok && k.Writable() {
				continue
			}
			if r.add(raw.Name, DeclNode, s.Pos) {
				r.Nodes[raw.Name] = raw
			}
		case When:
			r.collectGroup(raw.Then)
			r.collectGroup(raw.Else)
		case StmtGroup:
			r.collectGroup(raw)
		}
	}
}
