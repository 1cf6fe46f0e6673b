package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/ir"
	"github.com/roach88/yinglong/internal/store"
)

// cachePath resolves the artifact database: the --cache flag wins, then
// the configured path when the cache is enabled. Empty means no cache.
func (o *RootOptions) cachePath(flag string) string {
	if flag != "" {
		return flag
	}
	cfg := o.Settings()
	if cfg.Cache.Enabled {
		return cfg.Cache.Path
	}
	return ""
}

// openCacheFor opens the cache selected by flag or configuration, or
// returns nil when caching is off.
func openCacheFor(opts *RootOptions, flag string) (*store.Store, error) {
	path := opts.cachePath(flag)
	if path == "" {
		return nil, nil
	}
	opts.Logger().Debug("opening artifact cache", "path", path)
	return openCache(path)
}

// openCache opens (creating if needed) the artifact database at path.
func openCache(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &LoadError{Code: ErrCodeStoreFailed, Message: fmt.Sprintf("creating cache directory: %v", err)}
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: fmt.Sprintf("opening cache %s: %v", path, err)}
	}
	return st, nil
}

// recordRun stores the outcome of a pipeline run. Failures are logged and
// never change the command's result.
func (o *RootOptions) recordRun(ctx context.Context, st *store.Store, c *ir.Circuit, out *compiler.Output, err error) {
	if st == nil {
		return
	}
	run, rerr := st.RecordRun(ctx, store.NewRun(c.ID, out, err))
	if rerr != nil {
		o.Logger().Warn("recording run failed", "circuit", c.ID, "error", rerr)
		return
	}
	o.Logger().Debug("run recorded", "id", run.ID, "seq", run.Seq, "status", run.Status)
}
