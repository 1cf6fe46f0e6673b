package infer

import (
	"fmt"
	"log/slog"

	"github.com/roach88/yinglong/internal/ir"
	"github.com/roach88/yinglong/internal/pass"
)

// Result is the outcome of inference: an environment plus every diagnostic.
// The environment is always populated, even when diagnostics contain errors;
// names that could not be resolved keep an unknown width.
type Result struct {
	Env         *Environment
	Diagnostics Diagnostics

	circuit *ir.Circuit
}

// modulePass checks one module in isolation.
var modulePass = pass.Func[ir.Module, moduleResult]{
	PassName: "check-module",
	Fn: func(m ir.Module) (moduleResult, error) {
		return checkModule(&m), nil
	},
}

// Pass returns inference as a circuit pass. It never fails; problems are
// reported in the Result's diagnostics.
func Pass(opts ...Option) pass.Pass[*ir.Circuit, *Result] {
	return pass.Func[*ir.Circuit, *Result]{
		PassName: "infer",
		Fn: func(c *ir.Circuit) (*Result, error) {
			return Infer(c, opts...), nil
		},
	}
}

// Infer checks every module of c and builds its environment.
//
// It never stops at the first error. Modules are independent, so they are
// checked through pass.Run and their diagnostics joined in module order;
// circuit-level diagnostics (duplicate module IDs) come first.
func Infer(c *ir.Circuit, opts ...Option) *Result {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if c == nil {
		return &Result{
			Env:         newEnvironment(nil),
			Diagnostics: Diagnostics{{Code: CodeInvalidParameter, Message: "no circuit to check"}},
		}
	}

	var diags Diagnostics
	firstPos := make(map[string]int, len(c.Modules))
	for i, m := range c.Modules {
		if j, dup := firstPos[m.ID]; dup {
			diags = append(diags, Diagnostic{
				Code:    CodeDuplicate,
				Module:  m.ID,
				Name:    m.ID,
				Pos:     m.Pos,
				Message: fmt.Sprintf("module %q is already declared at index %d", m.ID, j),
			})
			continue
		}
		firstPos[m.ID] = i
	}

	// checkModule never fails; errors become diagnostics.
	results, _ := pass.Run(modulePass, c.Modules, o.parallel)

	envs := make([]*ModuleEnv, len(results))
	for i, r := range results {
		envs[i] = r.env
		diags = append(diags, r.diags...)
		o.logger.Debug("module checked",
			"module", r.env.ID,
			"bindings", r.env.Len(),
			"diagnostics", len(r.diags))
	}

	o.logger.Info("inference complete",
		"circuit", c.ID,
		"modules", len(c.Modules),
		"errors", len(diags.Errors()),
		"warnings", len(diags.Warnings()))

	return &Result{Env: newEnvironment(envs), Diagnostics: diags, circuit: c}
}

// Checked returns the type-checked circuit, or a *DiagnosticsError when any
// error-severity diagnostic exists. Warnings do not block.
func (r *Result) Checked() (*Checked, error) {
	if r.Diagnostics.HasErrors() || r.circuit == nil {
		return nil, &DiagnosticsError{Diagnostics: r.Diagnostics.Errors()}
	}
	return &Checked{Circuit: r.circuit, Env: r.Env, Warnings: r.Diagnostics.Warnings()}, nil
}

// Checked is a circuit that passed inference with no error diagnostics,
// together with its environment. It is the input of the lowering engine.
type Checked struct {
	Circuit  *ir.Circuit
	Env      *Environment
	Warnings Diagnostics
}

// Check runs Infer and returns the checked circuit, or the diagnostics error.
func Check(c *ir.Circuit, opts ...Option) (*Checked, error) {
	return Infer(c, opts...).Checked()
}

// DiagnosticsError reports that inference found errors. The driver returns it
// instead of lowering, so no partial Verilog is ever produced.
type DiagnosticsError struct {
	Diagnostics Diagnostics
}

// Error implements the error interface.
func (e *DiagnosticsError) Error() string {
	switch len(e.Diagnostics) {
	case 0:
		return "type check failed"
	case 1:
		return "type check failed: " + e.Diagnostics[0].Error()
	default:
		return fmt.Sprintf("type check failed with %d errors; first: %s", len(e.Diagnostics), e.Diagnostics[0].Error())
	}
}
