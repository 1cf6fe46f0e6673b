package infer

import "github.com/roach88/yinglong/internal/ir"

// Binding is the inferred type of one declared name.
type Binding struct {
	Name string
	Kind ir.DeclKind
	// Type may still be unresolved when the module produced diagnostics.
	Type ir.Type
	Pos  *ir.PosInfo
}

// Resolved reports whether the binding's width is known.
func (b Binding) Resolved() bool {
	return ir.IsResolved(b.Type)
}

// Width returns the resolved width, or ir.UnknownWidth.
func (b Binding) Width() ir.Width {
	if w, ok := resolved(b.Type); ok {
		return ir.Width(w)
	}
	return ir.UnknownWidth
}

// ModuleEnv maps every declared name of one module to its binding, in
// declaration order. It is immutable once returned by Infer.
type ModuleEnv struct {
	ID       string
	bindings []Binding
	index    map[string]int
}

func newModuleEnv(id string, bindings []Binding) *ModuleEnv {
	index := make(map[string]int, len(bindings))
	for i, b := range bindings {
		index[b.Name] = i
	}
	return &ModuleEnv{ID: id, bindings: bindings, index: index}
}

// Lookup returns the binding of name.
func (m *ModuleEnv) Lookup(name string) (Binding, bool) {
	i, ok := m.index[name]
	if !ok {
		return Binding{}, false
	}
	return m.bindings[i], true
}

// TypeOf returns the inferred type of name.
func (m *ModuleEnv) TypeOf(name string) (ir.Type, bool) {
	b, ok := m.Lookup(name)
	if !ok {
		return nil, false
	}
	return b.Type, true
}

// Bindings returns a copy of the bindings in declaration order.
func (m *ModuleEnv) Bindings() []Binding {
	out := make([]Binding, len(m.bindings))
	copy(out, m.bindings)
	return out
}

// Len returns the number of declared names.
func (m *ModuleEnv) Len() int {
	return len(m.bindings)
}

// Unresolved returns the names whose width is still unknown.
func (m *ModuleEnv) Unresolved() []string {
	var out []string
	for _, b := range m.bindings {
		if !b.Resolved() {
			out = append(out, b.Name)
		}
	}
	return out
}

// Environment holds one ModuleEnv per module, in circuit order.
type Environment struct {
	modules []*ModuleEnv
	byID    map[string]*ModuleEnv
}

func newEnvironment(modules []*ModuleEnv) *Environment {
	byID := make(map[string]*ModuleEnv, len(modules))
	for _, m := range modules {
		if _, dup := byID[m.ID]; !dup {
			byID[m.ID] = m
		}
	}
	return &Environment{modules: modules, byID: byID}
}

// Module returns the environment of the module with the given ID, or nil.
func (e *Environment) Module(id string) *ModuleEnv {
	return e.byID[id]
}

// Modules returns the module environments in circuit order.
func (e *Environment) Modules() []*ModuleEnv {
	out := make([]*ModuleEnv, len(e.modules))
	copy(out, e.modules)
	return out
}

// At returns the environment of the i-th module of the circuit.
func (e *Environment) At(i int) *ModuleEnv {
	return e.modules[i]
}

// Resolved reports whether every name of every module has a known width.
func (e *Environment) Resolved() bool {
	for _, m := range e.modules {
		if len(m.Unresolved()) > 0 {
			return false
		}
	}
	return true
}

func resolved(t ir.Type) (int, bool) {
	if t == nil {
		return 0, false
	}
	return t.ResolvedWidth()
}
