package dcstore

import (
	"context"
	"time"

	"github.com/hupe1980/dcstore/blobstore"
	"github.com/hupe1980/dcstore/catalog"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/store"
)

// Repository keeps versioned saves of a store in a blob store. Every
// Commit writes a new file and moves the CURRENT pointer to it.
type Repository struct {
	cat  *catalog.Catalog
	opts options
}

// Local opens a repository in a directory on the local filesystem.
func Local(dir string, optFns ...Option) *Repository {
	return Remote(blobstore.NewLocalStore(dir), optFns...)
}

// Remote opens a repository on any blob store, for example an S3 or MinIO
// store.
func Remote(bs blobstore.BlobStore, optFns ...Option) *Repository {
	o := applyOptions(optFns)
	return &Repository{
		cat: catalog.New(bs,
			catalog.WithLogger(o.logger.Logger),
			catalog.WithWriteOptions(o.writeOptions()...),
		),
		opts: o,
	}
}

// Catalog returns the underlying catalog.
func (r *Repository) Catalog() *catalog.Catalog { return r.cat }

// Commit saves s as the new current version.
func (r *Repository) Commit(ctx context.Context, s *store.Store) (catalog.Version, error) {
	start := time.Now()
	v, err := r.cat.Commit(ctx, s)
	datasets := 0
	if err == nil {
		datasets = len(s.ArrayPaths())
	}
	r.opts.metricsCollector.RecordSave(datasets, time.Since(start), err)
	r.opts.logger.LogSave(ctx, v.Name, datasets, err)
	return v, translateError(err)
}

// Versions lists the saved versions, oldest first.
func (r *Repository) Versions(ctx context.Context) ([]catalog.Version, error) {
	vs, err := r.cat.Versions(ctx)
	return vs, translateError(err)
}

// Current returns the version CURRENT points at.
func (r *Repository) Current(ctx context.Context) (catalog.Version, error) {
	v, err := r.cat.Current(ctx)
	return v, translateError(err)
}

// Scan reads the structure of the current version.
func (r *Repository) Scan(ctx context.Context) (*proxy.Tree, error) {
	start := time.Now()
	f, v, err := r.cat.OpenCurrent(ctx)
	if err != nil {
		r.opts.metricsCollector.RecordScan(0, time.Since(start), err)
		r.opts.logger.LogScan(ctx, catalog.CurrentName, 0, 0, err)
		return nil, translateError(err)
	}
	defer f.Close()
	return scanFile(ctx, v.Name, f, &r.opts, start), nil
}

// Load materializes the selected nodes of tree from the current version
// into a new store. A nil tree loads everything the predicate selects.
func (r *Repository) Load(ctx context.Context, tree *proxy.Tree) (*store.Store, error) {
	v, err := r.cat.Current(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return r.LoadVersion(ctx, v, tree)
}

// LoadVersion is Load for a specific version.
func (r *Repository) LoadVersion(ctx context.Context, v catalog.Version, tree *proxy.Tree) (*store.Store, error) {
	s := store.New()
	if err := r.loadInto(ctx, s, v, tree, false); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadInto materializes the selected nodes of tree from the current
// version into s, like the package-level LoadInto.
func (r *Repository) LoadInto(ctx context.Context, s *store.Store, tree *proxy.Tree, preflight bool) error {
	v, err := r.cat.Current(ctx)
	if err != nil {
		return translateError(err)
	}
	return r.loadInto(ctx, s, v, tree, preflight)
}

func (r *Repository) loadInto(ctx context.Context, s *store.Store, v catalog.Version, tree *proxy.Tree, preflight bool) error {
	start := time.Now()
	f, err := r.cat.Open(ctx, v)
	if err != nil {
		r.opts.metricsCollector.RecordLoad(0, 0, time.Since(start), err)
		r.opts.logger.LogMaterialize(ctx, v.Name, 0, preflight, err)
		return translateError(err)
	}
	defer f.Close()
	return materialize(ctx, v.Name, s, tree, f, preflight, &r.opts, start)
}

// Stat summarizes the current version.
func (r *Repository) Stat(ctx context.Context) (persistence.Info, catalog.Version, error) {
	f, v, err := r.cat.OpenCurrent(ctx)
	if err != nil {
		return persistence.Info{}, catalog.Version{}, translateError(err)
	}
	defer f.Close()
	return f.Info(), v, nil
}

// Reopen rescans the current version and carries the selection of cached
// over to it.
func (r *Repository) Reopen(ctx context.Context, cached *proxy.Tree) (*proxy.Tree, error) {
	fresh, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return fresh, nil
	}
	return proxy.Merge(fresh, cached), nil
}

// Prune deletes all but the newest keep versions and returns the deleted
// blob names. The current version is always kept.
func (r *Repository) Prune(ctx context.Context, keep int) ([]string, error) {
	deleted, err := r.cat.Prune(ctx, keep)
	return deleted, translateError(err)
}
