package proxy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/store"
	"github.com/hupe1980/dcstore/testutil"
)

func fixtureTree(t *testing.T) *Tree {
	t.Helper()
	return FromStore(testutil.NewFixtureStore(), true)
}

func TestFromStore(t *testing.T) {
	tree := fixtureTree(t)
	s := testutil.NewFixtureStore()
	assert.Equal(t, s.Paths(), tree.Paths())
	assert.Equal(t, tree.Paths(), tree.SelectedPaths())

	_, m, a, err := tree.Lookup(testutil.QuatsPath)
	require.NoError(t, err)
	assert.Equal(t, store.MatrixCellFeature, m.Kind)
	assert.Equal(t, array.KindFloat32, a.Kind)
	assert.Equal(t, []int{4}, a.ComponentDims)
	assert.Equal(t, testutil.FixtureFeatures, a.NumTuples)

	_, _, _, err = tree.Lookup(datapath.MustParse("ImageDataContainer/Nope"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSetFlags_Requirements(t *testing.T) {
	tree := fixtureTree(t)
	tree.SetFlags(Requirements{MatrixKinds: []store.MatrixKind{store.MatrixCell}})

	_, m, _, err := tree.Lookup(datapath.MatrixPath(testutil.ImageContainer, testutil.CellMatrix))
	require.NoError(t, err)
	assert.True(t, m.Selected)

	_, _, a, err := tree.Lookup(testutil.ConfidencePath)
	require.NoError(t, err)
	assert.True(t, a.Selected)

	_, m, a, err = tree.Lookup(testutil.QuatsPath)
	require.NoError(t, err)
	assert.False(t, m.Selected)
	assert.False(t, a.Selected, "arrays follow the kind of their matrix")
	assert.True(t, tree.Containers[testutil.MeshContainer].Selected, "container level has no kind list")

	tree.SetFlags(Requirements{GeometryTypes: []store.GeometryType{store.GeometryImage}})
	assert.True(t, tree.Containers[testutil.ImageContainer].Selected)
	assert.False(t, tree.Containers[testutil.MeshContainer].Selected)
	_, _, a, _ = tree.Lookup(testutil.NodeTypePath)
	assert.False(t, a.Selected, "arrays follow the geometry of their container")
	_, _, a, _ = tree.Lookup(testutil.QuatsPath)
	assert.True(t, a.Selected)

	tree.SetFlags(Requirements{
		ScalarKinds:   []array.Kind{array.KindFloat32},
		ComponentDims: [][]int{{4}},
	})
	_, _, a, _ = tree.Lookup(testutil.QuatsPath)
	assert.True(t, a.Selected)
	_, _, a, _ = tree.Lookup(testutil.EulerAnglesPath)
	assert.False(t, a.Selected)
}

func TestCompileExpr(t *testing.T) {
	pred, err := CompileExpr(`level == "container" || kind in ["Cell"]`)
	require.NoError(t, err)

	exprTree := fixtureTree(t)
	exprTree.SetFlags(pred)
	reqTree := fixtureTree(t)
	reqTree.SetFlags(Requirements{MatrixKinds: []store.MatrixKind{store.MatrixCell}})
	assert.True(t, exprTree.Equal(reqTree))

	pred, err = CompileExpr(`level == "array" && scalar == "float32" && len(components) == 1 && components[0] == 4`)
	require.NoError(t, err)
	tree := fixtureTree(t)
	tree.SetFlags(pred)
	assert.Equal(t, []datapath.Path{testutil.QuatsPath}, tree.SelectedPaths())

	_, err = CompileExpr("")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = CompileExpr(`level ==`)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = CompileExpr(`1 + 2`)
	assert.Error(t, err)
}

func TestMerge_EmptyCacheYieldsFile(t *testing.T) {
	file := fixtureTree(t)
	file.SetFlags(Requirements{MatrixKinds: []store.MatrixKind{store.MatrixCell}})

	assert.True(t, Merge(file, NewTree()).Equal(file))
	assert.True(t, Merge(file, nil).Equal(file))
}

func TestMerge_CopiesFlagsAndDropsStale(t *testing.T) {
	file := fixtureTree(t)

	cache := fixtureTree(t)
	require.NoError(t, cache.SetSelected(testutil.FeatureIDsPath, false))
	require.NoError(t, cache.SetSelected(datapath.ContainerPath(testutil.MeshContainer), false))
	delete(cache.Containers[testutil.ImageContainer].Matrices, testutil.EnsembleMatrix)
	stale := cache.AddContainer("Stale", nil)
	stale.AddMatrix("M", store.MatrixGeneric, []int{1}).Selected = true

	fileBefore := file.Clone()
	cacheBefore := cache.Clone()

	merged := Merge(file, cache)
	assert.True(t, file.Equal(fileBefore))
	assert.True(t, cache.Equal(cacheBefore))

	_, ok := merged.Containers["Stale"]
	assert.False(t, ok)
	assert.Equal(t, file.Paths(), merged.Paths())

	_, _, a, err := merged.Lookup(testutil.FeatureIDsPath)
	require.NoError(t, err)
	assert.False(t, a.Selected)
	assert.False(t, merged.Containers[testutil.MeshContainer].Selected)

	_, _, a, err = merged.Lookup(testutil.StatisticsPath)
	require.NoError(t, err)
	assert.True(t, a.Selected)

	assert.True(t, Merge(file, merged).Equal(merged))
}

func TestMerge_FileMetadataWins(t *testing.T) {
	file := fixtureTree(t)
	cache := fixtureTree(t)
	_, m, a, err := cache.Lookup(testutil.QuatsPath)
	require.NoError(t, err)
	m.TupleDims = []int{99}
	a.ComponentDims = []int{3}
	a.Selected = false

	merged := Merge(file, cache)
	_, m, a, err = merged.Lookup(testutil.QuatsPath)
	require.NoError(t, err)
	assert.Equal(t, []int{testutil.FixtureFeatures}, m.TupleDims)
	assert.Equal(t, []int{4}, a.ComponentDims)
	assert.False(t, a.Selected)
}

func TestSelection_RoundTrip(t *testing.T) {
	tree := fixtureTree(t)
	tree.SelectAll(false)
	require.NoError(t, tree.SetSelected(testutil.QuatsPath, true))
	require.NoError(t, tree.SetSelected(datapath.ContainerPath(testutil.ImageContainer), true))

	var buf bytes.Buffer
	require.NoError(t, SaveSelection(&buf, tree, "fixture.dcs"))
	assert.Contains(t, buf.String(), "ImageDataContainer/CellFeatureData/AvgQuats")

	sel, err := LoadSelection(&buf)
	require.NoError(t, err)
	assert.Equal(t, "fixture.dcs", sel.Source)

	other := fixtureTree(t)
	sel.Selected = append(sel.Selected, datapath.MustParse("Gone/M/A"))
	missing := other.ApplySelection(sel)
	assert.Equal(t, []datapath.Path{datapath.MustParse("Gone/M/A")}, missing)
	assert.Equal(t, tree.SelectedPaths(), other.SelectedPaths())
}

func TestApplyRenames(t *testing.T) {
	tree := fixtureTree(t)
	n := tree.ApplyRenames([]datapath.RenamePair{
		{Old: testutil.QuatsPath, New: testutil.QuatsPath.WithArray("Quats")},
		{Old: datapath.ContainerPath(testutil.MeshContainer), New: datapath.ContainerPath("Mesh")},
		{Old: datapath.MatrixPath(testutil.ImageContainer, testutil.CellMatrix), New: datapath.MatrixPath(testutil.ImageContainer, testutil.FeatureMatrix)},
		{Old: datapath.MustParse("Nope"), New: datapath.MustParse("Other")},
	})
	assert.Equal(t, 2, n)

	_, _, a, err := tree.Lookup(datapath.MustParse("ImageDataContainer/CellFeatureData/Quats"))
	require.NoError(t, err)
	assert.Equal(t, "Quats", a.Name)
	assert.Equal(t, "Mesh", tree.Containers["Mesh"].Name)
	_, ok := tree.Containers[testutil.ImageContainer].Matrices[testutil.CellMatrix]
	assert.True(t, ok)
}

func TestPrune(t *testing.T) {
	s := testutil.NewFixtureStore()
	tree := FromStore(s, false)
	require.NoError(t, tree.SetSelected(testutil.QuatsPath, true))
	require.NoError(t, tree.SetSelected(datapath.MatrixPath(testutil.ImageContainer, testutil.EnsembleMatrix), true))

	tree.Prune(s)
	assert.Equal(t, []datapath.Path{
		datapath.ContainerPath(testutil.ImageContainer),
		datapath.MatrixPath(testutil.ImageContainer, testutil.EnsembleMatrix),
		datapath.MatrixPath(testutil.ImageContainer, testutil.FeatureMatrix),
		testutil.QuatsPath,
	}, s.Paths())
}

func TestFprint(t *testing.T) {
	tree := fixtureTree(t)
	require.NoError(t, tree.SetSelected(testutil.MaskPath, false))

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, tree))
	out := buf.String()
	assert.Contains(t, out, "[x] ImageDataContainer  Image")
	assert.Contains(t, out, "    [ ] Mask  DataArray bool comps=[1]")
	assert.Contains(t, out, "  [x] CellData  Cell tuples=[4, 3, 2]")
}
