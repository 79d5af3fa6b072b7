package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the cache granularity used when none is given.
const DefaultBlockSize = 64 * 1024

type blockKey struct {
	name  string
	index int64
}

// CachingStore keeps recently read blocks of another store in an LRU
// cache. Reopening a remote store file and reading the same selection
// again then costs no backend requests.
type CachingStore struct {
	inner     BlobStore
	cache     *lru.Cache[blockKey, []byte]
	blockSize int64
}

// NewCachingStore wraps inner with a cache of up to maxBlocks blocks of
// blockSize bytes. blockSize defaults to DefaultBlockSize.
func NewCachingStore(inner BlobStore, maxBlocks int, blockSize int64) (*CachingStore, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	c, err := lru.New[blockKey, []byte](maxBlocks)
	if err != nil {
		return nil, err
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}, nil
}

// Open opens the inner blob and serves reads through the cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{inner: b, store: s, name: name}, nil
}

// Create passes through. The cache is invalidated when the blob closes.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingWriter{WritableBlob: w, store: s, name: name}, nil
}

// Put invalidates cached blocks of name and writes through.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete invalidates cached blocks of name and deletes it.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Len returns the number of cached blocks.
func (s *CachingStore) Len() int { return s.cache.Len() }

func (s *CachingStore) invalidate(name string) {
	for _, k := range s.cache.Keys() {
		if k.name == name {
			s.cache.Remove(k)
		}
	}
}

type invalidatingWriter struct {
	WritableBlob
	store *CachingStore
	name  string
}

func (w *invalidatingWriter) Close() error {
	err := w.WritableBlob.Close()
	w.store.invalidate(w.name)
	return err
}

type cachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

func (b *cachingBlob) Close() error { return b.inner.Close() }

func (b *cachingBlob) Size() int64 { return b.inner.Size() }

func (b *cachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return newSectionReader(ctx, b, off, length), nil
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	bs := b.store.blockSize
	first := off / bs
	last := (min(off+int64(len(p)), size) - 1) / bs

	if err := b.fill(ctx, first, last); err != nil {
		return 0, err
	}

	n := 0
	for blk := first; blk <= last; blk++ {
		data, ok := b.store.cache.Get(blockKey{b.name, blk})
		if !ok {
			// Evicted between fill and copy.
			var err error
			if data, err = b.fetch(ctx, blk, 1); err != nil {
				return n, err
			}
		}
		start := blk * bs
		from := max(off, start) - start
		n += copy(p[n:], data[from:])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fill loads the missing blocks in [first, last], one backend read per
// contiguous run.
func (b *cachingBlob) fill(ctx context.Context, first, last int64) error {
	type run struct{ start, count int64 }
	var runs []run
	for blk := first; blk <= last; blk++ {
		if b.store.cache.Contains(blockKey{b.name, blk}) {
			continue
		}
		if len(runs) > 0 && runs[len(runs)-1].start+runs[len(runs)-1].count == blk {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{blk, 1})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, r := range runs {
		g.Go(func() error {
			_, err := b.fetch(ctx, r.start, r.count)
			return err
		})
	}
	return g.Wait()
}

// fetch reads count blocks starting at block start, caches them and
// returns the first.
func (b *cachingBlob) fetch(ctx context.Context, start, count int64) ([]byte, error) {
	bs := b.store.blockSize
	off := start * bs
	length := min(count*bs, b.Size()-off)
	if length <= 0 {
		return nil, io.EOF
	}

	buf := make([]byte, length)
	n, err := b.inner.ReadAt(ctx, buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]

	var firstBlock []byte
	for i := int64(0); i < count && i*bs < int64(len(buf)); i++ {
		block := bytes.Clone(buf[i*bs : min((i+1)*bs, int64(len(buf)))])
		if i == 0 {
			firstBlock = block
		}
		b.store.cache.Add(blockKey{b.name, start + i}, block)
	}
	if firstBlock == nil {
		return nil, io.EOF
	}
	return firstBlock, nil
}
