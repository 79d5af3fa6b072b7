package blobstore

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts backend reads.
type countingStore struct {
	*MemoryStore
	reads atomic.Int64
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func TestCachingStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, inner.Put(ctx, "f", data))

	s, err := NewCachingStore(inner, 64, 16)
	require.NoError(t, err)

	b, err := s.Open(ctx, "f")
	require.NoError(t, err)

	buf := make([]byte, 30)
	n, err := b.ReadAt(ctx, buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Equal(t, data[10:40], buf)
	assert.Equal(t, int64(1), inner.reads.Load(), "one contiguous run")
	assert.Equal(t, 3, s.Len())

	n, err = b.ReadAt(ctx, buf, 12)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Equal(t, data[12:42], buf)
	assert.Equal(t, int64(1), inner.reads.Load(), "served from cache")

	tail := make([]byte, 10)
	n, err = b.ReadAt(ctx, tail, 95)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, data[95:], tail[:n])

	_, err = b.ReadAt(ctx, tail, 100)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, s.Put(ctx, "f", []byte("replaced")))
	assert.Zero(t, s.Len())

	b2, err := s.Open(ctx, "f")
	require.NoError(t, err)
	got := make([]byte, 8)
	_, err = b2.ReadAt(ctx, got, 0)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(got))
}

func TestCachingStoreCreateInvalidates(t *testing.T) {
	ctx := context.Background()
	s, err := NewCachingStore(NewMemoryStore(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "f", []byte("old")))

	b, err := s.Open(ctx, "f")
	require.NoError(t, err)
	_, err = b.ReadAt(ctx, make([]byte, 3), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	w, err := s.Create(ctx, "f")
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Zero(t, s.Len())

	_, err = s.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
