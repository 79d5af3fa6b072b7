package persistence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/resource"
	"github.com/hupe1980/dcstore/store"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteStore writes s to w as a store file and returns the directory it
// wrote. Every array must be allocated.
func WriteStore(ctx context.Context, w io.Writer, s *store.Store, opts ...WriteOption) (*Directory, error) {
	const op = "WriteStore"
	o := applyWriteOptions(opts)

	if o.version < MinStructuralVersion || o.version > StructuralVersion {
		return nil, errs.InvalidArgument(op, fmt.Errorf("cannot write structural version %d", o.version))
	}

	if o.controller != nil {
		w = resource.NewRateLimitedWriter(ctx, w, o.controller)
	}
	cw := &countingWriter{w: w}

	sum := s.Summary()
	header := FileHeader{
		Magic:             MagicNumber,
		StructuralVersion: o.version,
		DatasetCount:      uint32(sum.Arrays),
		CreatedUnixNano:   time.Now().UnixNano(),
	}
	hb, err := header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if _, err := cw.Write(hb); err != nil {
		return nil, err
	}

	dir := &Directory{}
	for _, c := range s.Containers() {
		ce := ContainerEntry{Name: c.Name(), Geometry: c.Geometry().Clone()}
		for _, m := range c.Matrices() {
			me := MatrixEntry{Name: m.Name(), Kind: m.Kind(), TupleDims: m.TupleDims()}
			for _, a := range m.Arrays() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				ds, err := writeDataset(cw, a, &o)
				if err != nil {
					return nil, errs.InvalidArgument(op, fmt.Errorf("%s: %w", m.Path().WithArray(a.Name()), err))
				}
				me.Datasets = append(me.Datasets, ds)
			}
			ce.Matrices = append(ce.Matrices, me)
		}
		dir.Containers = append(dir.Containers, ce)
	}

	raw, err := o.codec.Marshal(dir)
	if err != nil {
		return nil, err
	}
	block, err := encodeBlock(raw, o.compression)
	if err != nil {
		return nil, err
	}

	footer := Footer{
		DirOffset:      uint64(cw.n),
		DirLength:      uint64(len(block)),
		DirCodec:       o.codec.ID(),
		DirCompression: uint8(o.compression),
		Magic:          MagicNumber,
	}
	crc := NewChecksumWriter(cw)
	if _, err := crc.Write(block); err != nil {
		return nil, err
	}
	footer.DirChecksum = crc.Sum()

	fb, err := footer.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if _, err := cw.Write(fb); err != nil {
		return nil, err
	}

	o.logger.Debug("store written",
		slog.Int("containers", sum.Containers),
		slog.Int("datasets", sum.Arrays),
		slog.Int64("bytes", cw.n),
		slog.String("compression", o.compression.String()),
	)
	return dir, nil
}

func writeDataset(cw *countingWriter, a array.Array, o *writeOptions) (DatasetEntry, error) {
	payload, err := a.MarshalBinary()
	if err != nil {
		return DatasetEntry{}, err
	}
	block, err := encodeBlock(payload, o.compression)
	if err != nil {
		return DatasetEntry{}, err
	}

	ds := DatasetEntry{
		Name:          a.Name(),
		ScalarKind:    a.Kind(),
		Class:         a.Class(),
		ClassVersion:  a.Class().Version(),
		ComponentDims: a.ComponentDims(),
		NumTuples:     a.NumTuples(),
		Offset:        cw.n,
		Length:        int64(len(block)),
		Size:          int64(len(payload)),
		Compression:   Compression(block[8]),
	}
	if o.version >= 8 {
		ds.Digest = Digest(payload)
	}

	if _, err := cw.Write(block); err != nil {
		return DatasetEntry{}, err
	}
	return ds, nil
}
