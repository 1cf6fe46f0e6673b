package infer

import (
	"log/slog"

	"github.com/roach88/yinglong/internal/pass"
)

// Option configures Infer.
type Option func(*options)

type options struct {
	parallel pass.Options
	logger   *slog.Logger
}

// WithWorkers bounds the number of modules checked concurrently.
// One forces sequential checking; zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.parallel.Workers = n
	}
}

// WithParallelThreshold sets the module count below which checking stays
// sequential.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		o.parallel.Threshold = n
	}
}

// WithLogger sets the logger used for progress messages.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
