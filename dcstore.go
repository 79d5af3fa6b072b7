package dcstore

import (
	"context"
	"time"

	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/store"
)

// Save writes s to filename atomically.
func Save(ctx context.Context, filename string, s *store.Store, optFns ...Option) error {
	o := applyOptions(optFns)
	start := time.Now()

	dir, err := persistence.SaveStore(ctx, filename, s, o.writeOptions()...)
	datasets := 0
	if err == nil {
		datasets = dir.NumDatasets()
	}
	o.metricsCollector.RecordSave(datasets, time.Since(start), err)
	o.logger.LogSave(ctx, filename, datasets, err)
	return translateError(err)
}

// Scan reads the structure of a store file without any array data. The
// predicate set with WithPredicate decides the initial selection.
func Scan(ctx context.Context, filename string, optFns ...Option) (*proxy.Tree, error) {
	o := applyOptions(optFns)
	start := time.Now()

	f, err := persistence.OpenLocal(ctx, filename)
	if err != nil {
		o.metricsCollector.RecordScan(0, time.Since(start), err)
		o.logger.LogScan(ctx, filename, 0, 0, err)
		return nil, translateError(err)
	}
	defer f.Close()

	return scanFile(ctx, filename, f, &o, start), nil
}

func scanFile(ctx context.Context, source string, f *persistence.File, o *options, start time.Time) *proxy.Tree {
	t := f.Scan(o.predicate)
	nodes := len(t.Paths())
	o.metricsCollector.RecordScan(nodes, time.Since(start), nil)
	o.logger.LogScan(ctx, source, nodes, len(t.SelectedPaths()), nil)
	return t
}

// Load materializes the selected nodes of tree from filename into a new
// store. A nil tree loads everything the predicate selects.
func Load(ctx context.Context, filename string, tree *proxy.Tree, optFns ...Option) (*store.Store, error) {
	s := store.New()
	if err := LoadInto(ctx, s, filename, tree, false, optFns...); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadInto materializes the selected nodes of tree into s. Existing
// containers and matrices are reused. With preflight set only the
// structure is created. On error s is unchanged.
func LoadInto(ctx context.Context, s *store.Store, filename string, tree *proxy.Tree, preflight bool, optFns ...Option) error {
	o := applyOptions(optFns)
	start := time.Now()

	f, err := persistence.OpenLocal(ctx, filename)
	if err != nil {
		o.metricsCollector.RecordLoad(0, 0, time.Since(start), err)
		o.logger.LogMaterialize(ctx, filename, 0, preflight, err)
		return translateError(err)
	}
	defer f.Close()

	return materialize(ctx, filename, s, tree, f, preflight, &o, start)
}

func materialize(ctx context.Context, source string, s *store.Store, tree *proxy.Tree, f *persistence.File, preflight bool, o *options, start time.Time) error {
	if tree == nil {
		tree = f.Scan(o.predicate)
	}

	arrays := tree.SelectedArrays()
	var bytes int64
	if !preflight {
		for _, p := range arrays {
			if ds, err := f.Dataset(p); err == nil {
				bytes += ds.Size
			}
		}
	}

	err := persistence.Materialize(ctx, s, tree, f, preflight, o.materializeOptions()...)
	if err != nil {
		arrays, bytes = nil, 0
	}
	o.metricsCollector.RecordLoad(len(arrays), bytes, time.Since(start), err)
	o.logger.LogMaterialize(ctx, source, len(arrays), preflight, err)
	return translateError(err)
}

// Stat summarizes a store file from its header and directory.
func Stat(ctx context.Context, filename string) (persistence.Info, error) {
	f, err := persistence.OpenLocal(ctx, filename)
	if err != nil {
		return persistence.Info{}, translateError(err)
	}
	defer f.Close()
	return f.Info(), nil
}

// Reopen rescans filename and carries the selection of cached over to the
// fresh tree. Nodes gone from the file are dropped; nodes new to the file
// take their selection from the predicate.
func Reopen(ctx context.Context, filename string, cached *proxy.Tree, optFns ...Option) (*proxy.Tree, error) {
	fresh, err := Scan(ctx, filename, optFns...)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return fresh, nil
	}
	return proxy.Merge(fresh, cached), nil
}
