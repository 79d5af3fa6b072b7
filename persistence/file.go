package persistence

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/dcstore/store"
)

// SaveToFile writes a file atomically: the content goes to a temp file in
// the same directory, is synced, then renamed over filename.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// SaveStore writes s to filename atomically.
func SaveStore(ctx context.Context, filename string, s *store.Store, opts ...WriteOption) (*Directory, error) {
	var dir *Directory
	err := SaveToFile(filename, func(w io.Writer) error {
		var err error
		dir, err = WriteStore(ctx, w, s, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

type osSource struct {
	*os.File
	size int64
}

func (s osSource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.File.ReadAt(p, off)
}

func (s osSource) Size() int64 { return s.size }

// OpenLocal opens a store file on the local filesystem. Close the returned
// file to release the handle.
func OpenLocal(ctx context.Context, filename string) (*File, error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	f, err := OpenFile(ctx, osSource{File: fh, size: st.Size()})
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	return f, nil
}
