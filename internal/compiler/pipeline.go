package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/ir"
	"github.com/roach88/yinglong/internal/pass"
	"github.com/roach88/yinglong/internal/verilog"
)

// Cache stores lowered Verilog by circuit hash and options hash.
type Cache interface {
	GetArtifact(ctx context.Context, circuitHash, optionsHash string) (string, bool, error)
	PutArtifact(ctx context.Context, circuitHash, optionsHash, verilog string) error
}

// Pipeline drives validation, inference and lowering. It refuses to lower
// a circuit with any error-severity diagnostic.
type Pipeline struct {
	cache  Cache
	logger *slog.Logger
	infer  []infer.Option
	lower  []verilog.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables the artifact cache.
func WithCache(c Cache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithLogger sets the logger for the pipeline and both engines.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithInferOptions appends options passed to infer.Infer.
func WithInferOptions(opts ...infer.Option) Option {
	return func(p *Pipeline) {
		p.infer = append(p.infer, opts...)
	}
}

// WithLowerOptions appends options passed to verilog.Lower.
func WithLowerOptions(opts ...verilog.Option) Option {
	return func(p *Pipeline) {
		p.lower = append(p.lower, opts...)
	}
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Output is everything a pipeline run produced. Fields past the failing
// stage are zero.
type Output struct {
	Circuit     *ir.Circuit
	CircuitHash string
	OptionsHash string
	Diagnostics infer.Diagnostics
	Checked     *infer.Checked
	Verilog     string
	Cached      bool
}

// Check validates and type-checks c. The error is ValidationErrors or
// *infer.DiagnosticsError; Output is returned either way.
//
// Validation errors do not hide inference diagnostics: modules that no
// validation error refers to are still type-checked and their diagnostics
// are returned in Output alongside the ValidationErrors.
func (p *Pipeline) Check(c *ir.Circuit) (*Output, error) {
	out := &Output{Circuit: c}

	if errs := Validate(c); len(errs) > 0 {
		p.logger.Debug("validation failed", "errors", len(errs))
		if valid := validModules(c, errs); len(valid) > 0 {
			res, _ := apply(p.logger, infer.Pass(p.inferOptions()...), &ir.Circuit{ID: c.ID, Pos: c.Pos, Modules: valid})
			out.Diagnostics = res.Diagnostics
		}
		return out, ValidationErrors(errs)
	}

	hash, err := ir.CircuitHash(c)
	if err != nil {
		return out, fmt.Errorf("hashing circuit: %w", err)
	}
	out.CircuitHash = hash

	res, _ := apply(p.logger, infer.Pass(p.inferOptions()...), c)
	out.Diagnostics = res.Diagnostics

	checked, err := res.Checked()
	if err != nil {
		return out, err
	}
	out.Checked = checked
	return out, nil
}

// Lower runs Check and then lowers the circuit, consulting the cache first
// when one is configured.
func (p *Pipeline) Lower(ctx context.Context, c *ir.Circuit) (*Output, error) {
	out, err := p.Check(c)
	if err != nil {
		return out, err
	}

	optionsHash, err := p.OptionsHash()
	if err != nil {
		return out, err
	}
	out.OptionsHash = optionsHash

	if p.cache != nil {
		text, ok, err := p.cache.GetArtifact(ctx, out.CircuitHash, optionsHash)
		if err != nil {
			return out, fmt.Errorf("reading artifact cache: %w", err)
		}
		if ok {
			p.logger.Debug("artifact cache hit", "circuit", c.ID, "hash", out.CircuitHash)
			out.Verilog = text
			out.Cached = true
			return out, nil
		}
	}

	lowerOpts := append([]verilog.Option{verilog.WithLogger(p.logger)}, p.lower...)
	text, err := apply(p.logger, verilog.Pass(lowerOpts...), out.Checked)
	if err != nil {
		return out, err
	}
	out.Verilog = text

	if p.cache != nil {
		if err := p.cache.PutArtifact(ctx, out.CircuitHash, optionsHash, text); err != nil {
			return out, fmt.Errorf("writing artifact cache: %w", err)
		}
	}
	return out, nil
}

// apply runs one stage of the pipeline.
func apply[N, R any](logger *slog.Logger, ps pass.Pass[N, R], node N) (R, error) {
	start := time.Now()
	r, err := ps.Apply(node)
	logger.Debug("pass finished", "pass", ps.Name(), "elapsed", time.Since(start), "failed", err != nil)
	return r, err
}

func (p *Pipeline) inferOptions() []infer.Option {
	return append([]infer.Option{infer.WithLogger(p.logger)}, p.infer...)
}

// OptionsHash identifies the lowering options and toolchain versions that
// determine the output text.
func (p *Pipeline) OptionsHash() (string, error) {
	fp := verilog.Fingerprint(p.lower...)
	fp["ir_version"] = ir.IRVersion
	fp["engine_version"] = ir.EngineVersion
	return ir.HashCanonical(ir.DomainOptions, fp)
}
