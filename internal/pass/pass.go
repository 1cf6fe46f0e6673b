package pass

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pass derives a value of type R from a node of type N without mutating it.
type Pass[N, R any] interface {
	Name() string
	Apply(node N) (R, error)
}

// Func adapts a plain function into a Pass.
type Func[N, R any] struct {
	PassName string
	Fn       func(N) (R, error)
}

// Name returns the pass name used in logs.
func (f Func[N, R]) Name() string { return f.PassName }

// Apply runs the wrapped function.
func (f Func[N, R]) Apply(node N) (R, error) { return f.Fn(node) }

// DefaultThreshold is the sibling count below which Map stays sequential.
const DefaultThreshold = 8

// Options controls the fan-out of Map.
type Options struct {
	// Workers bounds concurrent branches. Zero means GOMAXPROCS; one forces
	// sequential evaluation.
	Workers int

	// Threshold is the minimum number of items for parallel evaluation.
	// Zero means DefaultThreshold.
	Threshold int
}

// Sequential evaluates every sibling on the calling goroutine.
var Sequential = Options{Workers: 1}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

func (o Options) threshold() int {
	if o.Threshold <= 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// Parallel reports whether Map would fan out over n items.
func (o Options) Parallel(n int) bool {
	return o.workers() > 1 && n >= o.threshold()
}

// Map applies fn to every item and returns the results in item order.
//
// CRITICAL: results are placed by index, never by completion order. When
// several items fail, the error of the lowest index is returned, so both the
// output and the reported error are independent of scheduling. Every item is
// evaluated even after a failure; there is no cancellation.
func Map[N, R any](items []N, opts Options, fn func(int, N) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	errs := make([]error, len(items))

	if !opts.Parallel(len(items)) {
		for i, item := range items {
			out[i], errs[i] = fn(i, item)
		}
		return firstError(out, errs)
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(opts.workers())
	for i := range items {
		i := i
		g.Go(func() error {
			// Each branch owns its slot; no two goroutines share an index.
			out[i], errs[i] = fn(i, items[i])
			return nil
		})
	}
	_ = g.Wait()
	return firstError(out, errs)
}

// Run applies p to every item with Map.
func Run[N, R any](p Pass[N, R], items []N, opts Options) ([]R, error) {
	return Map(items, opts, func(_ int, n N) (R, error) {
		return p.Apply(n)
	})
}

func firstError[R any](out []R, errs []error) ([]R, error) {
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
