package ir

import "fmt"

// PosInfo is opaque source-location metadata attached by the front end.
// Passes never interpret it; they only carry it into diagnostics and output.
type PosInfo struct {
	File string
	Line int
	Col  int
}

func (p PosInfo) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Circuit is the top-level unit. It exclusively owns its modules.
type Circuit struct {
	ID      string
	Modules []Module
	Pos     *PosInfo
}

// Module returns the module with the given ID, or nil.
func (c *Circuit) Module(id string) *Module {
	for i := range c.Modules {
		if c.Modules[i].ID == id {
			return &c.Modules[i]
		}
	}
	return nil
}

// Module is a named hardware component with ports and a body.
type Module struct {
	ID    string
	Ports []Port
	Body  StmtGroup
	Pos   *PosInfo
}

// Dir is a port direction.
type Dir int

const (
	Input Dir = iota
	Output
)

func (d Dir) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// ParseDir parses "input" or "output".
func ParseDir(s string) (Dir, error) {
	switch s {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	default:
		return Input, fmt.Errorf("invalid port direction %q: must be \"input\" or \"output\"", s)
	}
}

// Port is one entry of a module's external interface.
type Port struct {
	Dir  Dir
	Bind TypeBind
	Pos  *PosInfo
}

// Stmt is a statement plus its optional source position.
type Stmt struct {
	Raw RawStmt
	Pos *PosInfo
}

// S wraps a raw statement without position info.
func S(raw RawStmt) Stmt {
	return Stmt{Raw: raw}
}

// RawStmt is a sealed interface over statement variants.
type RawStmt interface {
	// Variant names the statement kind, e.g. "Connect".
	Variant() string

	rawStmt() // Sealed
}

// StmtGroup is an ordered sequence of statements forming one lexical scope.
// A nested StmtGroup is itself a statement.
type StmtGroup []Stmt

// WireDef declares a combinational net.
type WireDef struct {
	Bind TypeBind
}

// RegDef declares a register clocked by Clock. Reset and Init are either both
// nil or both set; when set, Init is loaded while Reset is high.
type RegDef struct {
	Bind  TypeBind
	Clock Expr
	Reset Expr
	Init  Expr
}

// MemDef declares a memory. Memories are checked but not lowered.
type MemDef struct {
	Name         string
	Data         Type
	Depth        int
	ReadLatency  int
	WriteLatency int
	Readers      []string
	Writers      []string
}

// Inst is a named submodule instantiation. Until per-port connection lists
// exist it binds Name to the value of a single expression.
type Inst struct {
	Name  string
	Value Expr
}

// Node binds Name to a combinational expression (single assignment).
type Node struct {
	Name  string
	Value Expr
}

// Connect drives Dst from Src.
type Connect struct {
	Dst Expr
	Src Expr
}

// When gates the statements of Then (and Else, when non-empty) on Cond.
// It introduces no bindings of its own.
type When struct {
	Cond Expr
	Then StmtGroup
	Else StmtGroup
}

func (StmtGroup) rawStmt() {}
func (WireDef) rawStmt()   {}
func (RegDef) rawStmt()    {}
func (MemDef) rawStmt()    {}
func (Inst) rawStmt()      {}
func (Node) rawStmt()      {}
func (Connect) rawStmt()   {}
func (When) rawStmt()      {}

func (StmtGroup) Variant() string { return "StmtGroup" }
func (WireDef) Variant() string   { return "WireDef" }
func (RegDef) Variant() string    { return "RegDef" }
func (MemDef) Variant() string    { return "MemDef" }
func (Inst) Variant() string      { return "Inst" }
func (Node) Variant() string      { return "Node" }
func (Connect) Variant() string   { return "Connect" }
func (When) Variant() string      { return "When" }
