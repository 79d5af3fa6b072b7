package persistence

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/codec"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/resource"
	"github.com/hupe1980/dcstore/store"
	"github.com/hupe1980/dcstore/testutil"
)

func writeFixture(t *testing.T, opts ...WriteOption) ([]byte, *Directory) {
	t.Helper()
	var buf bytes.Buffer
	dir, err := WriteStore(context.Background(), &buf, testutil.NewFixtureStore(), opts...)
	require.NoError(t, err)
	return buf.Bytes(), dir
}

func openBytes(t *testing.T, data []byte) *File {
	t.Helper()
	f, err := OpenFile(context.Background(), ReaderAtSource{R: bytes.NewReader(data), N: int64(len(data))})
	require.NoError(t, err)
	return f
}

func openBytesErr(data []byte) error {
	_, err := OpenFile(context.Background(), ReaderAtSource{R: bytes.NewReader(data), N: int64(len(data))})
	return err
}

func selectNone() proxy.Predicate {
	return proxy.PredicateFunc(func(proxy.Node) bool { return false })
}

func requireSameStore(t *testing.T, want, got *store.Store) {
	t.Helper()
	require.Equal(t, want.Paths(), got.Paths())

	for _, c := range want.Containers() {
		gc, ok := got.Container(c.Name())
		require.True(t, ok)
		assert.Equal(t, c.Geometry(), gc.Geometry(), c.Name())
		for _, m := range c.Matrices() {
			gm, ok := gc.Matrix(m.Name())
			require.True(t, ok)
			assert.Equal(t, m.Kind(), gm.Kind())
			assert.Equal(t, m.TupleDims(), gm.TupleDims())
		}
	}

	for _, p := range want.ArrayPaths() {
		wa, err := want.ArrayAt(p)
		require.NoError(t, err)
		ga, err := got.ArrayAt(p)
		require.NoError(t, err)

		assert.Equal(t, wa.Kind(), ga.Kind(), p.String())
		assert.Equal(t, wa.Class(), ga.Class(), p.String())
		assert.Equal(t, wa.ComponentDims(), ga.ComponentDims(), p.String())
		assert.Equal(t, wa.NumTuples(), ga.NumTuples(), p.String())

		wb, err := wa.MarshalBinary()
		require.NoError(t, err)
		gb, err := ga.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, wb, gb, p.String())
	}
}

func TestFormatSizes(t *testing.T) {
	h := FileHeader{Magic: MagicNumber, StructuralVersion: StructuralVersion}
	hb, err := h.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, hb, headerSize)

	f := Footer{Magic: MagicNumber, DirOffset: 64, DirLength: 10}
	fb, err := f.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, fb, footerSize)

	var back Footer
	require.NoError(t, back.UnmarshalBinary(fb))
	assert.Equal(t, f, back)

	fb[footerSize-1] ^= 0xFF
	assert.ErrorIs(t, back.UnmarshalBinary(fb), ErrInvalidMagic)
}

func TestBlocks(t *testing.T) {
	zeros := make([]byte, 4096)
	noise := make([]byte, 4096)
	rng := testutil.NewRNG(1)
	for i := range noise {
		noise[i] = byte(rng.Intn(256))
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			block, err := encodeBlock(zeros, c)
			require.NoError(t, err)
			if c != CompressionNone {
				assert.Less(t, len(block), len(zeros))
				assert.Equal(t, byte(c), block[8])
			}
			out, err := decodeBlock(block)
			require.NoError(t, err)
			assert.Equal(t, zeros, out)

			block, err = encodeBlock(noise, c)
			require.NoError(t, err)
			assert.Equal(t, byte(CompressionNone), block[8], "incompressible data is stored")
			out, err = decodeBlock(block)
			require.NoError(t, err)
			assert.Equal(t, noise, out)
		})
	}

	_, err := decodeBlock([]byte{1, 2})
	assert.Error(t, err)
}

func TestRoundTripSelectAll(t *testing.T) {
	cases := []struct {
		name string
		opts []WriteOption
	}{
		{"zstd-cbor", nil},
		{"lz4", []WriteOption{WithCompression(CompressionLZ4)}},
		{"none-json", []WriteOption{WithCompression(CompressionNone), WithCodec(codec.JSON{})}},
		{"version7", []WriteOption{WithStructuralVersion(7)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, _ := writeFixture(t, tc.opts...)
			f := openBytes(t, data)

			tree := f.Scan(nil)
			assert.Equal(t, tree.Paths(), tree.SelectedPaths())

			got := store.New()
			require.NoError(t, Materialize(context.Background(), got, tree, f, false))
			requireSameStore(t, testutil.NewFixtureStore(), got)
		})
	}
}

func TestScanMatchesStoreProxy(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	scanned := f.Scan(nil)
	assert.True(t, scanned.Equal(proxy.FromStore(testutil.NewFixtureStore(), true)))
}

func TestScanRequirements(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	tree := f.Scan(proxy.Requirements{
		GeometryTypes: []store.GeometryType{store.GeometryImage},
		ScalarKinds:   []array.Kind{array.KindFloat32},
	})
	assert.Len(t, tree.Paths(), 2+5+11)

	mesh, _, _, err := tree.Lookup(datapath.ContainerPath(testutil.MeshContainer))
	require.NoError(t, err)
	assert.False(t, mesh.Selected, "nodes failing the predicate stay in the tree")

	_, _, nt, err := tree.Lookup(testutil.NodeTypePath)
	require.NoError(t, err)
	assert.False(t, nt.Selected)

	_, _, q, err := tree.Lookup(testutil.QuatsPath)
	require.NoError(t, err)
	assert.True(t, q.Selected)
}

func TestSelectiveMaterialize(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	tree := f.Scan(selectNone())
	require.NoError(t, tree.SetSelected(testutil.QuatsPath, true))

	s := store.New()
	require.NoError(t, Materialize(context.Background(), s, tree, f, false))

	assert.Equal(t, []datapath.Path{testutil.QuatsPath}, s.ArrayPaths())
	assert.False(t, s.Exists(datapath.MatrixPath(testutil.ImageContainer, testutil.CellMatrix)))
	assert.False(t, s.Exists(datapath.ContainerPath(testutil.MeshContainer)))

	c, ok := s.Container(testutil.ImageContainer)
	require.True(t, ok)
	assert.Equal(t, store.GeometryImage, c.Geometry().Type)

	quats, err := store.TypedArray[float32](s, testutil.QuatsPath, []int{4})
	require.NoError(t, err)
	want, err := store.TypedArray[float32](testutil.NewFixtureStore(), testutil.QuatsPath, []int{4})
	require.NoError(t, err)
	assert.Equal(t, want.Values(), quats.Values())
}

func TestMaterializeSelectedMatrixWithoutArrays(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	tree := f.Scan(selectNone())
	mp := datapath.MatrixPath(testutil.MeshContainer, testutil.FaceMatrix)
	require.NoError(t, tree.SetSelected(mp, true))

	s := store.New()
	require.NoError(t, Materialize(context.Background(), s, tree, f, false))

	m, err := s.MatrixAt(mp)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, testutil.FixtureFaces, m.NumTuples())
	assert.Equal(t, store.MatrixFace, m.Kind())
}

func TestMaterializePreflight(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	s := store.New()
	require.NoError(t, Materialize(context.Background(), s, f.Scan(nil), f, true))

	assert.Equal(t, testutil.NewFixtureStore().Paths(), s.Paths())
	for _, p := range s.ArrayPaths() {
		a, err := s.ArrayAt(p)
		require.NoError(t, err)
		assert.False(t, a.IsAllocated(), p.String())
	}
}

func TestMaterializeIntoExistingStore(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	s := store.New()
	tree := f.Scan(selectNone())
	require.NoError(t, tree.SetSelected(testutil.FeatureIDsPath, true))
	require.NoError(t, Materialize(context.Background(), s, tree, f, false))

	tree.SelectAll(false)
	require.NoError(t, tree.SetSelected(testutil.MaskPath, true))
	require.NoError(t, Materialize(context.Background(), s, tree, f, false))
	assert.Equal(t, []datapath.Path{testutil.FeatureIDsPath, testutil.MaskPath}, s.ArrayPaths())

	before := s.Paths()
	err := Materialize(context.Background(), s, tree, f, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	assert.Equal(t, before, s.Paths())
}

func TestMaterializeIsAllOrNothing(t *testing.T) {
	data, dir := writeFixture(t, WithCompression(CompressionNone))

	ds := dir.index().datasets[testutil.PhasesPath]
	require.NotNil(t, ds)
	data[ds.Offset+blockHeaderSize] ^= 0xFF

	f := openBytes(t, data)

	s := store.New()
	_, err := s.CreateContainer("Existing")
	require.NoError(t, err)
	before := s.Paths()

	err = Materialize(context.Background(), s, f.Scan(nil), f, false, WithWorkers(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrCorrupt)

	var dm *DigestMismatchError
	assert.True(t, errors.As(err, &dm))
	assert.Equal(t, before, s.Paths())

	s2 := store.New()
	require.NoError(t, Materialize(context.Background(), s2, f.Scan(nil), f, false, WithVerify(false)))
	assert.Len(t, s2.ArrayPaths(), 11)
}

func TestVersion7HasNoDigests(t *testing.T) {
	data, dir := writeFixture(t, WithCompression(CompressionNone), WithStructuralVersion(7))
	for _, c := range dir.Containers {
		for _, m := range c.Matrices {
			for _, ds := range m.Datasets {
				assert.Empty(t, ds.Digest)
			}
		}
	}

	f := openBytes(t, data)
	assert.Equal(t, uint32(7), f.StructuralVersion())
	assert.False(t, f.Info().Digests)
}

func TestOpenRejectsOldVersion(t *testing.T) {
	data, _ := writeFixture(t)

	old := bytes.Clone(data)
	old[4] = 6

	err := openBytesErr(old)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStructuralVersionTooOld)
	assert.Equal(t, errs.CodeStructuralVersionTooOld, errs.CodeOf(err))

	newer := bytes.Clone(data)
	newer[4] = 9
	assert.ErrorIs(t, openBytesErr(newer), errs.ErrInvalidArgument)
}

func TestOpenDetectsCorruption(t *testing.T) {
	data, _ := writeFixture(t)

	t.Run("directory checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-footerSize-1] ^= 0xFF
		err := openBytesErr(bad)
		assert.ErrorIs(t, err, errs.ErrCorrupt)
		var cm *ChecksumMismatchError
		assert.True(t, errors.As(err, &cm))
	})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] = 'X'
		err := openBytesErr(bad)
		assert.ErrorIs(t, err, errs.ErrCorrupt)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("truncated", func(t *testing.T) {
		assert.ErrorIs(t, openBytesErr(data[:40]), errs.ErrCorrupt)
		assert.Error(t, openBytesErr(data[:len(data)-5]))
	})
}

func TestReadDatasetChecksShape(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)
	ctx := context.Background()

	err := f.ReadDataset(ctx, testutil.ConfidencePath, array.NewDataArray[float64]("Confidence", testutil.FixtureCells, nil, false))
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)

	err = f.ReadDataset(ctx, testutil.ConfidencePath, array.NewDataArray[float32]("Confidence", 3, nil, false))
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	err = f.ReadDataset(ctx, testutil.ConfidencePath, array.NewDataArray[float32]("Confidence", testutil.FixtureCells, []int{2}, false))
	assert.ErrorIs(t, err, errs.ErrShapeMismatch)

	err = f.ReadDataset(ctx, datapath.New(testutil.ImageContainer, testutil.CellMatrix, "Missing"), array.NewDataArray[float32]("Missing", 1, nil, false))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	a, err := f.ReadArray(ctx, testutil.NeighborListPath)
	require.NoError(t, err)
	list, ok := array.AsList[int32](a)
	require.True(t, ok)
	assert.Equal(t, []int32{3, 1}, list.List(2))
}

func TestReadDatasetRejectsBlockOutsideData(t *testing.T) {
	data, _ := writeFixture(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		offset, length int64
	}{
		{"length overflows", headerSize + 1, math.MaxInt64},
		{"offset past directory", math.MaxInt64 - 4, 8},
		{"negative length", headerSize, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := openBytes(t, data)
			ds, err := f.Dataset(testutil.ConfidencePath)
			require.NoError(t, err)
			ds.Offset, ds.Length = tt.offset, tt.length

			err = f.ReadDataset(ctx, testutil.ConfidencePath, array.NewDataArray[float32]("Confidence", testutil.FixtureCells, nil, false))
			assert.ErrorIs(t, err, errs.ErrCorrupt)
		})
	}
}

func TestWriteRejectsUnallocated(t *testing.T) {
	s := store.New()
	_, err := s.CreateContainer("C")
	require.NoError(t, err)
	m, err := s.CreateMatrixAt(datapath.MatrixPath("C", "M"), []int{3}, store.MatrixCell)
	require.NoError(t, err)
	_, err = store.CreateArray[float32](m, "Lazy", nil, false)
	require.NoError(t, err)

	_, err = WriteStore(context.Background(), &bytes.Buffer{}, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.ErrorIs(t, err, array.ErrNotAllocated)
}

func TestMaterializeWithControllerAndProgress(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20, MaxWorkers: 3})

	var calls, last, total int
	progress := func(done, n int) {
		calls++
		last, total = done, n
	}

	s := store.New()
	require.NoError(t, Materialize(context.Background(), s, f.Scan(nil), f, false,
		WithController(rc), WithProgress(progress)))

	assert.Equal(t, 11, calls)
	assert.Equal(t, 11, last)
	assert.Equal(t, 11, total)
	assert.Zero(t, rc.MemoryUsage())
	requireSameStore(t, testutil.NewFixtureStore(), s)
}

func TestMaterializeCanceled(t *testing.T) {
	data, _ := writeFixture(t)
	f := openBytes(t, data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := store.New()
	err := Materialize(ctx, s, f.Scan(nil), f, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Len())
}

func TestSaveStoreAndOpenLocal(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "fixture.dcs")

	_, err := SaveStore(ctx, filename, testutil.NewFixtureStore())
	require.NoError(t, err)

	f, err := OpenLocal(ctx, filename)
	require.NoError(t, err)
	defer f.Close()

	info := f.Info()
	assert.Equal(t, uint32(StructuralVersion), info.StructuralVersion)
	assert.Equal(t, 2, info.Containers)
	assert.Equal(t, 5, info.Matrices)
	assert.Equal(t, 11, info.Datasets)
	assert.Equal(t, "cbor", info.DirCodec)
	assert.True(t, info.Digests)
	assert.Equal(t, uint32(11), f.Header().DatasetCount)

	s := store.New()
	require.NoError(t, Materialize(ctx, s, f.Scan(nil), f, false))
	requireSameStore(t, testutil.NewFixtureStore(), s)

	_, err = OpenLocal(ctx, filepath.Join(t.TempDir(), "missing.dcs"))
	assert.Error(t, err)
}
