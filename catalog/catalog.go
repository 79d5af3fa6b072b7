// Package catalog keeps numbered save points of a store in a blob store.
//
// Each Commit writes a complete store file named store-NNNNNN.dcs and then
// points CURRENT at it. Readers resolve CURRENT first, so a crash between
// the two steps leaves the previous save point in effect.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/dcstore/blobstore"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/store"
)

const (
	// CurrentName is the pointer blob naming the current save point.
	CurrentName = "CURRENT"
	filePrefix  = "store-"
	fileSuffix  = ".dcs"
)

// Version identifies one save point.
type Version struct {
	ID   uint64
	Name string
}

// FileName returns the blob name of save point id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s%06d%s", filePrefix, id, fileSuffix)
}

// ParseFileName returns the id encoded in a save point name.
func ParseFileName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	var id uint64
	digits := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if _, err := fmt.Sscanf(digits, "%d", &id); err != nil || FileName(id) != name {
		return 0, false
	}
	return id, true
}

type options struct {
	logger    *slog.Logger
	writeOpts []persistence.WriteOption
}

// Option configures a Catalog.
type Option func(*options)

// WithLogger sets the logger. Commits log at Info.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWriteOptions sets the options every commit is written with.
func WithWriteOptions(opts ...persistence.WriteOption) Option {
	return func(o *options) { o.writeOpts = append(o.writeOpts, opts...) }
}

// Catalog manages the save points in one blob store.
type Catalog struct {
	bs        blobstore.BlobStore
	logger    *slog.Logger
	writeOpts []persistence.WriteOption
	mu        sync.Mutex
}

// New returns a catalog over bs.
func New(bs blobstore.BlobStore, opts ...Option) *Catalog {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Catalog{bs: bs, logger: o.logger, writeOpts: o.writeOpts}
}

// BlobStore returns the underlying blob store.
func (c *Catalog) BlobStore() blobstore.BlobStore { return c.bs }

// Versions returns the save points present in the blob store, oldest first.
func (c *Catalog) Versions(ctx context.Context) ([]Version, error) {
	names, err := c.bs.List(ctx, filePrefix)
	if err != nil {
		return nil, err
	}
	var out []Version
	for _, name := range names {
		if id, ok := ParseFileName(name); ok {
			out = append(out, Version{ID: id, Name: name})
		}
	}
	slices.SortFunc(out, func(a, b Version) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// Current returns the save point CURRENT points at. It fails with
// errs.ErrNotFound before the first commit.
func (c *Catalog) Current(ctx context.Context) (Version, error) {
	data, err := blobstore.ReadAll(ctx, c.bs, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Version{}, errs.NotFound("Current", CurrentName)
		}
		return Version{}, err
	}
	name := string(bytes.TrimSpace(data))
	id, ok := ParseFileName(name)
	if !ok {
		return Version{}, errs.Corrupt("Current", CurrentName, fmt.Errorf("invalid save point name %q", name))
	}
	return Version{ID: id, Name: name}, nil
}

// Commit writes s as a new save point and makes it current.
func (c *Catalog) Commit(ctx context.Context, s *store.Store) (Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	versions, err := c.Versions(ctx)
	if err != nil {
		return Version{}, err
	}
	var next uint64 = 1
	if len(versions) > 0 {
		next = versions[len(versions)-1].ID + 1
	}
	v := Version{ID: next, Name: FileName(next)}

	w, err := c.bs.Create(ctx, v.Name)
	if err != nil {
		return Version{}, err
	}
	buf := bufio.NewWriterSize(w, 256*1024)
	dir, err := persistence.WriteStore(ctx, buf, s, c.writeOpts...)
	if err == nil {
		err = buf.Flush()
	}
	if err == nil {
		err = w.Sync()
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = c.bs.Delete(ctx, v.Name)
		return Version{}, err
	}

	if err := c.bs.Put(ctx, CurrentName, []byte(v.Name)); err != nil {
		return Version{}, err
	}

	c.logger.Info("catalog commit",
		slog.String("name", v.Name),
		slog.Int("containers", len(dir.Containers)),
	)
	return v, nil
}

// Open opens a save point for scanning. Close the file to release the
// blob.
func (c *Catalog) Open(ctx context.Context, v Version) (*persistence.File, error) {
	b, err := c.bs.Open(ctx, v.Name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, errs.NotFound("Open", v.Name)
		}
		return nil, err
	}
	f, err := persistence.OpenFile(ctx, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return f, nil
}

// OpenCurrent opens the current save point.
func (c *Catalog) OpenCurrent(ctx context.Context) (*persistence.File, Version, error) {
	v, err := c.Current(ctx)
	if err != nil {
		return nil, Version{}, err
	}
	f, err := c.Open(ctx, v)
	if err != nil {
		return nil, Version{}, err
	}
	return f, v, nil
}

// Load materializes every node of save point v into a new store.
func (c *Catalog) Load(ctx context.Context, v Version, opts ...persistence.MaterializeOption) (*store.Store, error) {
	f, err := c.Open(ctx, v)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := store.New()
	if err := persistence.Materialize(ctx, s, f.Scan(nil), f, false, opts...); err != nil {
		return nil, err
	}
	return s, nil
}

// Prune deletes all but the newest keep save points. The current save
// point is never deleted. It returns the deleted names.
func (c *Catalog) Prune(ctx context.Context, keep int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	versions, err := c.Versions(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := c.Current(ctx)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	var deleted []string
	for i, v := range versions {
		if len(versions)-i <= keep || v.ID == cur.ID {
			continue
		}
		if err := c.bs.Delete(ctx, v.Name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, v.Name)
	}
	if len(deleted) > 0 {
		c.logger.Info("catalog prune", slog.Int("deleted", len(deleted)))
	}
	return deleted, nil
}
