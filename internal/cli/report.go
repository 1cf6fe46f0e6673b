package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/verilog"
)

// DiagnosticOutput is the JSON form of one diagnostic.
type DiagnosticOutput struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Module   string `json:"module,omitempty"`
	Name     string `json:"name,omitempty"`
	Pos      string `json:"pos,omitempty"`
	Message  string `json:"message"`
}

// BindingOutput is one resolved name of a module.
type BindingOutput struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Type  string `json:"type"`
	Width int    `json:"width"`
}

// ModuleOutput lists a module's bindings in declaration order.
type ModuleOutput struct {
	ID       string          `json:"id"`
	Bindings []BindingOutput `json:"bindings"`
}

func diagnosticOutputs(ds infer.Diagnostics) []DiagnosticOutput {
	out := make([]DiagnosticOutput, 0, len(ds))
	for _, d := range ds {
		o := DiagnosticOutput{
			Code:     string(d.Code),
			Severity: d.Severity().String(),
			Module:   d.Module,
			Name:     d.Name,
			Message:  d.Message,
		}
		if d.Pos != nil {
			o.Pos = d.Pos.String()
		}
		out = append(out, o)
	}
	return out
}

func moduleOutputs(env *infer.Environment) []ModuleOutput {
	if env == nil {
		return nil
	}
	var out []ModuleOutput
	for _, m := range env.Modules() {
		mo := ModuleOutput{ID: m.ID, Bindings: []BindingOutput{}}
		for _, b := range m.Bindings() {
			typ := ""
			if b.Type != nil {
				typ = b.Type.String()
			}
			mo.Bindings = append(mo.Bindings, BindingOutput{
				Name:  b.Name,
				Kind:  b.Kind.String(),
				Type:  typ,
				Width: int(b.Width()),
			})
		}
		out = append(out, mo)
	}
	return out
}

// reportPipelineError prints a failed check or lower and maps it to an exit
// code. Rejected circuits exit 1; anything else is a command error.
func reportPipelineError(f *OutputFormatter, diags infer.Diagnostics, err error) error {
	var verrs compiler.ValidationErrors
	var derr *infer.DiagnosticsError
	var uerr *verilog.UnsupportedConstructError

	switch {
	case errors.As(err, &verrs):
		if f.Format == "json" {
			_ = f.Failure(verrs[0].Code, "circuit validation failed", map[string]any{
				"validation":  verrs,
				"diagnostics": diagnosticOutputs(diags),
			})
		} else {
			fmt.Fprintf(f.Writer, "%s Validation failed: %d error(s)\n", f.Style.Error("✗"), len(verrs))
			for _, v := range verrs {
				fmt.Fprintf(f.Writer, "  [%s] %s: %s\n", v.Code, v.Field, v.Message)
			}
			for _, d := range diags {
				printDiagnostic(f.Writer, f.Style, d)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: circuit validation failed", verrs[0].Code))

	case errors.As(err, &derr):
		if len(diags) == 0 {
			diags = derr.Diagnostics
		}
		errs := diags.Errors()
		code := ErrCodeGeneric
		if len(errs) > 0 {
			code = string(errs[0].Code)
		}
		if f.Format == "json" {
			_ = f.Failure(code, "type check failed", map[string]any{"diagnostics": diagnosticOutputs(diags)})
		} else {
			for _, d := range diags {
				printDiagnostic(f.Writer, f.Style, d)
			}
			fmt.Fprintf(f.Writer, "%s %d error(s), %d warning(s)\n", f.Style.Error("✗"), len(errs), len(diags.Warnings()))
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: type check failed", code))

	case errors.As(err, &uerr):
		_ = f.Error(ErrCodeUnsupported, uerr.Error(), map[string]string{"construct": uerr.Construct, "module": uerr.Module})
		return WrapExitError(ExitFailure, ErrCodeUnsupported, uerr)

	default:
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}
}
