package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/codec"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/internal/conv"
	"github.com/hupe1980/dcstore/proxy"
)

// Source is random-access input for a store file. blobstore.Blob satisfies it.
type Source interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Size() int64
}

// ReaderAtSource adapts an io.ReaderAt of known size.
type ReaderAtSource struct {
	R io.ReaderAt
	N int64
}

// ReadAt implements Source. The context is checked before the read.
func (s ReaderAtSource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.R.ReadAt(p, off)
}

// Size implements Source.
func (s ReaderAtSource) Size() int64 { return s.N }

// File is an opened store file. Only the header, footer and directory are
// read on open; dataset blocks are read on demand.
type File struct {
	src    Source
	header FileHeader
	footer Footer
	dir    *Directory
	idx    dirIndex
}

// Info summarizes an opened file.
type Info struct {
	StructuralVersion uint32
	CreatedUnixNano   int64
	Containers        int
	Matrices          int
	Datasets          int
	StoredBytes       int64
	PayloadBytes      int64
	DirCodec          string
	DirCompression    Compression
	Digests           bool
}

// OpenFile reads the metadata of a store file. Files older than
// MinStructuralVersion are rejected before the directory is decoded.
func OpenFile(ctx context.Context, src Source) (*File, error) {
	const op = "OpenFile"

	size := src.Size()
	if size < headerSize+footerSize {
		return nil, errs.Corrupt(op, "", ErrTruncated)
	}

	hb := make([]byte, headerSize)
	if err := readFull(ctx, src, hb, 0); err != nil {
		return nil, err
	}
	var header FileHeader
	if err := header.UnmarshalBinary(hb); err != nil {
		return nil, errs.Corrupt(op, "", err)
	}
	if header.StructuralVersion < MinStructuralVersion {
		return nil, errs.VersionTooOld(op, MinStructuralVersion, header.StructuralVersion)
	}
	if header.StructuralVersion > StructuralVersion {
		return nil, errs.InvalidArgument(op, fmt.Errorf("structural version %d is newer than supported %d",
			header.StructuralVersion, StructuralVersion))
	}

	fb := make([]byte, footerSize)
	if err := readFull(ctx, src, fb, size-footerSize); err != nil {
		return nil, err
	}
	var footer Footer
	if err := footer.UnmarshalBinary(fb); err != nil {
		return nil, errs.Corrupt(op, "", err)
	}
	dirOff, offErr := conv.ToInt64(footer.DirOffset)
	dirLen, lenErr := conv.ToInt64(footer.DirLength)
	if offErr != nil || lenErr != nil || dirOff < headerSize || dirLen > size-footerSize-dirOff {
		return nil, errs.Corrupt(op, "", fmt.Errorf("directory [%d,+%d) outside file of %d bytes",
			footer.DirOffset, footer.DirLength, size))
	}

	block := make([]byte, dirLen)
	if err := readFull(ctx, src, block, dirOff); err != nil {
		return nil, err
	}
	if sum := CalculateChecksum(block); sum != footer.DirChecksum {
		return nil, errs.Corrupt(op, "", &ChecksumMismatchError{Expected: footer.DirChecksum, Actual: sum})
	}
	raw, err := decodeBlock(block)
	if err != nil {
		return nil, errs.Corrupt(op, "", err)
	}
	c, ok := codec.ByID(footer.DirCodec)
	if !ok {
		return nil, errs.Corrupt(op, "", fmt.Errorf("unknown directory codec %d", footer.DirCodec))
	}
	dir := &Directory{}
	if err := c.Unmarshal(raw, dir); err != nil {
		return nil, errs.Corrupt(op, "", err)
	}

	return &File{src: src, header: header, footer: footer, dir: dir, idx: dir.index()}, nil
}

func readFull(ctx context.Context, src Source, p []byte, off int64) error {
	n, err := src.ReadAt(ctx, p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = ErrTruncated
	}
	return err
}

// Header returns the file header.
func (f *File) Header() FileHeader { return f.header }

// Directory returns the decoded directory. It must not be modified.
func (f *File) Directory() *Directory { return f.dir }

// StructuralVersion returns the layout version of the file.
func (f *File) StructuralVersion() uint32 { return f.header.StructuralVersion }

// Scan builds the proxy tree of the file. Every node is present; pred
// decides the initial selection. A nil pred selects everything.
func (f *File) Scan(pred proxy.Predicate) *proxy.Tree {
	t := f.dir.Tree()
	t.SetFlags(pred)
	return t
}

// Dataset returns the directory entry of the dataset at p.
func (f *File) Dataset(p datapath.Path) (*DatasetEntry, error) {
	ds, ok := f.idx.datasets[p]
	if !ok {
		return nil, errs.NotFound("Dataset", p.String())
	}
	return ds, nil
}

// ReadDataset decodes the dataset at p into dst. dst must agree with the
// declared scalar kind, class, tuple count and component dims.
func (f *File) ReadDataset(ctx context.Context, p datapath.Path, dst array.Array) error {
	return f.readDataset(ctx, p, dst, f.src, true)
}

func (f *File) readDataset(ctx context.Context, p datapath.Path, dst array.Array, src Source, verify bool) error {
	const op = "ReadDataset"

	ds, err := f.Dataset(p)
	if err != nil {
		return err
	}
	if dst.Kind() != ds.ScalarKind {
		return errs.TypeMismatch(op, p.String(), ds.ScalarKind.String(), dst.Kind().String())
	}
	if dst.Class() != ds.Class {
		return errs.TypeMismatch(op, p.String(), ds.Class.String(), dst.Class().String())
	}
	if dst.NumTuples() != ds.NumTuples {
		return errs.ShapeMismatch(op, p.String(), fmt.Sprintf("%d tuples", ds.NumTuples), fmt.Sprintf("%d tuples", dst.NumTuples()))
	}
	if !slices.Equal(dst.ComponentDims(), ds.ComponentDims) {
		return errs.ShapeMismatch(op, p.String(), array.DimsString(ds.ComponentDims), array.DimsString(dst.ComponentDims()))
	}

	dirOff := int64(f.footer.DirOffset)
	if ds.Offset < headerSize || ds.Offset > dirOff || ds.Length < 0 || ds.Length > dirOff-ds.Offset {
		return errs.Corrupt(op, p.String(), fmt.Errorf("block [%d,+%d) outside data section", ds.Offset, ds.Length))
	}
	block := make([]byte, ds.Length)
	if err := readFull(ctx, src, block, ds.Offset); err != nil {
		return err
	}
	payload, err := decodeBlock(block)
	if err != nil {
		return errs.Corrupt(op, p.String(), err)
	}
	if verify && len(ds.Digest) > 0 && !slices.Equal(Digest(payload), ds.Digest) {
		return errs.Corrupt(op, p.String(), &DigestMismatchError{Dataset: p.String()})
	}
	if err := dst.UnmarshalBinary(payload); err != nil {
		return errs.Corrupt(op, p.String(), err)
	}
	return nil
}

// ReadArray reads the dataset at p into a new array.
func (f *File) ReadArray(ctx context.Context, p datapath.Path) (array.Array, error) {
	ds, err := f.Dataset(p)
	if err != nil {
		return nil, err
	}
	a, err := ds.newArray(false)
	if err != nil {
		return nil, errs.Corrupt("ReadArray", p.String(), err)
	}
	if err := f.ReadDataset(ctx, p, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Info summarizes the file.
func (f *File) Info() Info {
	info := Info{
		StructuralVersion: f.header.StructuralVersion,
		CreatedUnixNano:   f.header.CreatedUnixNano,
		Containers:        len(f.dir.Containers),
		DirCompression:    Compression(f.footer.DirCompression),
		Digests:           f.header.StructuralVersion >= 8,
	}
	if c, ok := codec.ByID(f.footer.DirCodec); ok {
		info.DirCodec = c.Name()
	}
	for _, c := range f.dir.Containers {
		info.Matrices += len(c.Matrices)
		for _, m := range c.Matrices {
			info.Datasets += len(m.Datasets)
			for _, ds := range m.Datasets {
				info.StoredBytes += ds.Length
				info.PayloadBytes += ds.Size
			}
		}
	}
	return info
}

// Close closes the source if it implements io.Closer.
func (f *File) Close() error {
	if c, ok := f.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
