package rename

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/store"
	"github.com/hupe1980/dcstore/testutil"
)

func pair(oldPath, newPath string) datapath.RenamePair {
	return datapath.RenamePair{Old: datapath.MustParse(oldPath), New: datapath.MustParse(newPath)}
}

func paths(ss ...string) []datapath.Path {
	out := make([]datapath.Path, len(ss))
	for i, s := range ss {
		out[i] = datapath.MustParse(s)
	}
	return out
}

// sameLevel treats any two paths of the same depth as compatible.
func sameLevel(a, b datapath.Path) bool { return a.Level() == b.Level() }

func simpleStore(t *testing.T) (*store.Store, *store.Matrix) {
	t.Helper()
	s := store.New()
	_, err := s.CreateContainer("C1")
	require.NoError(t, err)
	m, err := s.CreateMatrixAt(datapath.MatrixPath("C1", "M1"), []int{4}, store.MatrixCell)
	require.NoError(t, err)
	a, err := store.CreateArray[float32](m, "A1", nil, true)
	require.NoError(t, err)
	copy(a.Values(), []float32{1, 2, 3, 4})
	return s, m
}

func TestDetectNoChange(t *testing.T) {
	p := paths("C1", "C1/M1", "C1/M1/A1")
	assert.Empty(t, Detect(Input{Old: p, New: p, Compatible: sameLevel}))
}

func TestDetectSingleArrayRename(t *testing.T) {
	before, _ := simpleStore(t)
	after := before.DeepCopy(true)
	require.NoError(t, after.Rename(pair("C1/M1/A1", "C1/M1/A2"), false))

	pairs := Detect(Input{
		Old:        before.Paths(),
		New:        after.Paths(),
		Compatible: StoreOracle(before, after),
	})
	require.Equal(t, []datapath.RenamePair{pair("C1/M1/A1", "C1/M1/A2")}, pairs)

	orig, err := before.ArrayAt(datapath.MustParse("C1/M1/A1"))
	require.NoError(t, err)

	applied, err := ApplyToStore(before, pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	renamed, err := before.ArrayAt(datapath.MustParse("C1/M1/A2"))
	require.NoError(t, err)
	assert.Same(t, orig, renamed, "the buffer is preserved")
	assert.False(t, before.Exists(datapath.MustParse("C1/M1/A1")))
}

func TestDetectAmbiguousCandidates(t *testing.T) {
	pairs := Detect(Input{
		Old:        paths("C1/M1/A1"),
		New:        paths("C1/M1/A2", "C1/M1/A3"),
		Compatible: sameLevel,
	})
	assert.Empty(t, pairs)
}

func TestDetectContestedTarget(t *testing.T) {
	// A1 and B1 each have a single candidate, but it is the same one.
	pairs := Detect(Input{
		Old:        paths("C1/M1/A1", "C1/M1/B1"),
		New:        paths("C1/M1/A2"),
		Compatible: sameLevel,
	})
	assert.Empty(t, pairs)
}

func TestDetectUsesOracle(t *testing.T) {
	compatible := func(a, b datapath.Path) bool {
		return a.Array[0] == b.Array[0]
	}
	pairs := Detect(Input{
		Old:        paths("C1/M1/Alpha", "C1/M1/Beta"),
		New:        paths("C1/M1/Apple", "C1/M1/Banana"),
		Compatible: compatible,
	})
	assert.Equal(t, []datapath.RenamePair{
		pair("C1/M1/Alpha", "C1/M1/Apple"),
		pair("C1/M1/Beta", "C1/M1/Banana"),
	}, pairs)
}

func TestDetectIgnoresCreations(t *testing.T) {
	id := uuid.New()
	pairs := Detect(Input{
		Old:        paths("C1/M1/A1"),
		New:        paths("C1/M1/A2"),
		Created:    map[uuid.UUID]datapath.Path{id: datapath.MustParse("C1/M1/A2")},
		Compatible: sameLevel,
	})
	assert.Empty(t, pairs)

	pairs = Detect(Input{
		Old:        paths("C1", "C1/M1"),
		New:        paths("C2", "C2/M1"),
		Created:    map[uuid.UUID]datapath.Path{id: datapath.MustParse("C2")},
		Compatible: sameLevel,
	})
	assert.Empty(t, pairs, "paths under a created container are creations too")
}

func TestDetectFoldsContainerRename(t *testing.T) {
	before := testutil.NewFixtureStore()
	after := before.DeepCopy(true)
	require.NoError(t, after.RenameContainer(testutil.MeshContainer, "Mesh", false))

	pairs := Detect(Input{
		Old:        before.Paths(),
		New:        after.Paths(),
		Compatible: StoreOracle(before, after),
	})
	require.Equal(t, []datapath.RenamePair{pair(testutil.MeshContainer, "Mesh")}, pairs)

	applied, err := ApplyToStore(before, pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, after.Paths(), before.Paths())
}

func TestStoreOracle(t *testing.T) {
	before := testutil.NewFixtureStore()
	after := before.DeepCopy(true)
	oracle := StoreOracle(before, after)

	assert.True(t, oracle(testutil.ConfidencePath, testutil.ConfidencePath))
	assert.False(t, oracle(testutil.ConfidencePath, testutil.FeatureIDsPath), "scalar kind differs")
	assert.False(t, oracle(testutil.ConfidencePath, testutil.EulerAnglesPath), "component dims differ")
	assert.False(t, oracle(testutil.ConfidencePath, testutil.ConfidencePath.Truncate(datapath.LevelMatrix)), "levels differ")
	assert.False(t, oracle(testutil.ConfidencePath, datapath.MustParse("Nope/CellData/Confidence")))

	cells := datapath.MatrixPath(testutil.ImageContainer, testutil.CellMatrix)
	features := datapath.MatrixPath(testutil.ImageContainer, testutil.FeatureMatrix)
	assert.True(t, oracle(cells, cells))
	assert.False(t, oracle(cells, features))

	img := datapath.ContainerPath(testutil.ImageContainer)
	mesh := datapath.ContainerPath(testutil.MeshContainer)
	assert.True(t, oracle(img, img))
	assert.False(t, oracle(img, mesh), "geometry topology differs")
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []datapath.RenamePair{
		pair("C1", "C2"),
		pair("C2/M1", "C2/M2"),
		pair("C2/M2/A1", "C2/M2/A2"),
	}, Split(pair("C1/M1/A1", "C2/M2/A2")))

	assert.Equal(t, []datapath.RenamePair{pair("C1/M1", "C1/M2")}, Split(pair("C1/M1", "C1/M2")))
	assert.Nil(t, Split(pair("C1/M1", "C1/M1/A1")))
}

func TestApplyToStoreSkipsCollisions(t *testing.T) {
	s, m := simpleStore(t)
	_, err := store.CreateArray[float32](m, "Taken", nil, true)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	applied, err := ApplyToStore(s, []datapath.RenamePair{
		pair("C1/M1/A1", "C1/M1/Taken"),
		pair("C1/M1", "C1/Renamed"),
	}, logger)

	assert.Equal(t, 1, applied)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	assert.Contains(t, logs.String(), "rename skipped")
	assert.True(t, s.Exists(datapath.MustParse("C1/Renamed/A1")))
	assert.True(t, s.Exists(datapath.MustParse("C1/Renamed/Taken")))
}

func TestApplyToStoreMultiSlot(t *testing.T) {
	s, _ := simpleStore(t)
	applied, err := ApplyToStore(s, []datapath.RenamePair{pair("C1/M1/A1", "C2/M2/A2")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, paths("C2", "C2/M2", "C2/M2/A2"), s.Paths())
}

func TestApplyToStoreInsideRenamedContainer(t *testing.T) {
	before, _ := simpleStore(t)
	after := before.DeepCopy(true)
	require.NoError(t, after.RenameContainer("C1", "C2", false))
	m, err := after.MatrixAt(datapath.MustParse("C2/M1"))
	require.NoError(t, err)
	require.NoError(t, m.Rename("A1", "A2", false))

	pairs := Detect(Input{
		Old:        before.Paths(),
		New:        after.Paths(),
		Compatible: StoreOracle(before, after),
	})
	require.Equal(t, []datapath.RenamePair{pair("C1", "C2"), pair("C1/M1/A1", "C2/M1/A2")}, pairs)

	applied, err := ApplyToStore(before, pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, after.Paths(), before.Paths())

	a, err := store.TypedArray[float32](before, datapath.MustParse("C2/M1/A2"), nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, a.Values())

	assert.Equal(t, []datapath.Path{datapath.MustParse("C2/M1/A2")},
		ApplyToPaths([]datapath.Path{datapath.MustParse("C1/M1/A1")}, pairs))
}

func TestApplyToTreeAndPaths(t *testing.T) {
	tree := proxy.FromStore(testutil.NewFixtureStore(), true)
	pairs := []datapath.RenamePair{
		pair(testutil.ImageContainer, "Image"),
		{Old: testutil.MaskPath, New: datapath.New("Image", testutil.CellMatrix, "GoodVoxels")},
	}

	assert.Equal(t, 2, ApplyToTree(tree, pairs))
	_, _, a, err := tree.Lookup(datapath.New("Image", testutil.CellMatrix, "GoodVoxels"))
	require.NoError(t, err)
	assert.Equal(t, "GoodVoxels", a.Name)

	got := ApplyToPaths([]datapath.Path{testutil.MaskPath, testutil.QuatsPath, testutil.NodeTypePath}, pairs)
	assert.Equal(t, []datapath.Path{
		datapath.New("Image", testutil.CellMatrix, "GoodVoxels"),
		datapath.New("Image", testutil.FeatureMatrix, "AvgQuats"),
		testutil.NodeTypePath,
	}, got)
}

func TestPathTableApply(t *testing.T) {
	table := PathTable{
		"input":  datapath.MustParse("C1/M1/A1"),
		"mask":   datapath.MustParse("C1/M1/Mask"),
		"output": datapath.MustParse("C9/M1/Out"),
	}
	before := table.Clone()

	changed := table.Apply([]datapath.RenamePair{pair("C1/M1", "C1/Cells")})
	assert.Equal(t, []string{"input", "mask"}, changed)
	assert.Equal(t, datapath.MustParse("C1/Cells/A1"), table["input"])
	assert.Equal(t, datapath.MustParse("C9/M1/Out"), table["output"])
	assert.Equal(t, datapath.MustParse("C1/M1/A1"), before["input"])
	assert.Len(t, table.Paths(), 3)
}

func TestPathTableApplyCreated(t *testing.T) {
	table := PathTable{
		"array":  datapath.MustParse("C1/M1/A1"),
		"source": datapath.MustParse("C1/M1/A1"),
	}

	changed := table.Apply([]datapath.RenamePair{pair("C1/M1/A1", "C1/M1/A2")}, "array")
	assert.Equal(t, []string{"source"}, changed)
	assert.Equal(t, datapath.MustParse("C1/M1/A1"), table["array"])
	assert.Equal(t, datapath.MustParse("C1/M1/A2"), table["source"])

	changed = table.Apply([]datapath.RenamePair{pair("C1", "C2")}, "array")
	assert.Equal(t, []string{"array", "source"}, changed)
	assert.Equal(t, datapath.MustParse("C2/M1/A1"), table["array"])
}
