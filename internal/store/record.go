package store

import (
	"errors"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/verilog"
)

// NewRun classifies a pipeline outcome into a Run ready for RecordRun.
// Warnings are kept on successful runs; failed runs carry the errors that
// stopped the pipeline.
func NewRun(circuitID string, out *compiler.Output, err error) Run {
	r := Run{CircuitID: circuitID, Status: RunOK}
	if out != nil {
		r.CircuitHash = out.CircuitHash
		r.OptionsHash = out.OptionsHash
		r.Cached = out.Cached
	}

	var verrs compiler.ValidationErrors
	var derr *infer.DiagnosticsError
	var uerr *verilog.UnsupportedConstructError
	switch {
	case err == nil:
		if out != nil {
			r.Diagnostics = fromDiagnostics(out.Diagnostics)
		}
	case errors.As(err, &verrs):
		r.Status = RunInvalid
		for _, v := range verrs {
			r.Diagnostics = append(r.Diagnostics, RunDiagnostic{Code: v.Code, Name: v.Field, Message: v.Message})
		}
		if out != nil {
			r.Diagnostics = append(r.Diagnostics, fromDiagnostics(out.Diagnostics)...)
		}
	case errors.As(err, &derr):
		r.Status = RunDiagnostics
		if out != nil && len(out.Diagnostics) > 0 {
			r.Diagnostics = fromDiagnostics(out.Diagnostics)
		} else {
			r.Diagnostics = fromDiagnostics(derr.Diagnostics)
		}
	case errors.As(err, &uerr):
		r.Status = RunUnsupported
		r.Diagnostics = []RunDiagnostic{{Code: uerr.Construct, Module: uerr.Module, Name: uerr.Name, Message: uerr.Error()}}
	default:
		r.Status = RunError
		r.Diagnostics = []RunDiagnostic{{Code: "error", Message: err.Error()}}
	}
	return r
}

func fromDiagnostics(ds infer.Diagnostics) []RunDiagnostic {
	if len(ds) == 0 {
		return nil
	}
	out := make([]RunDiagnostic, len(ds))
	for i, d := range ds {
		out[i] = RunDiagnostic{Code: string(d.Code), Module: d.Module, Name: d.Name, Message: d.Message}
	}
	return out
}
