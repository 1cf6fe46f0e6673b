package verilog

import (
	"log/slog"

	"github.com/roach88/yinglong/internal/pass"
)

// Option configures Lower.
type Option func(*config)

type config struct {
	parallel         pass.Options
	registers        bool
	positionComments bool
	logger           *slog.Logger
}

func newConfig(opts []Option) *config {
	cfg := &config{
		positionComments: true,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithWorkers bounds concurrent lowering of sibling subtrees.
// One forces sequential lowering; output is identical either way.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.parallel.Workers = n
	}
}

// WithParallelThreshold sets the sibling count below which lowering stays
// sequential.
func WithParallelThreshold(n int) Option {
	return func(c *config) {
		c.parallel.Threshold = n
	}
}

// WithRegisters enables lowering of RegDef into clocked always blocks.
// Default: false (RegDef is an UnsupportedConstructError).
func WithRegisters(enabled bool) Option {
	return func(c *config) {
		c.registers = enabled
	}
}

// WithPositionComments controls the trailing "// @[file:line:col]" comments.
// Default: true
func WithPositionComments(enabled bool) Option {
	return func(c *config) {
		c.positionComments = enabled
	}
}

// WithLogger sets the logger for progress and zero-width warnings.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Fingerprint returns the options that influence output text, as a value
// accepted by ir.MarshalCanonical. Worker settings are excluded because
// they never change the output.
func Fingerprint(opts ...Option) map[string]any {
	cfg := newConfig(opts)
	return map[string]any{
		"registers":         cfg.registers,
		"position_comments": cfg.positionComments,
	}
}
