package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/rename"
	"github.com/hupe1980/dcstore/store"
	"github.com/hupe1980/dcstore/testutil"
)

// funcStep runs fn in both phases and exposes one path parameter.
type funcStep struct {
	param datapath.Path
	fn    func(sc *Context, param datapath.Path) error
}

func (s *funcStep) Name() string { return "func" }

func (s *funcStep) Preflight(ctx context.Context, sc *Context) error { return s.fn(sc, s.param) }

func (s *funcStep) Execute(ctx context.Context, sc *Context) error { return s.fn(sc, s.param) }

func (s *funcStep) ParameterPaths() rename.PathTable {
	return rename.PathTable{"param": s.param}
}

func (s *funcStep) SetParameterPaths(t rename.PathTable) { s.param = t["param"] }

func (s *funcStep) CreatedParameters() []string { return nil }

func requireStep(p string) *funcStep {
	return &funcStep{
		param: datapath.MustParse(p),
		fn: func(sc *Context, param datapath.Path) error {
			return sc.Require("func", param)
		},
	}
}

func imagePipeline() []Step {
	return []Step{
		&CreateContainer{Container: datapath.MustParse("Image"), Geometry: store.NewImageGeometry(4, 3, 2)},
		&CreateMatrix{Matrix: datapath.MustParse("Image/Cells"), Kind: store.MatrixCell},
		&RenameNode{Source: datapath.MustParse("Image"), NewName: "Volume"},
		&CreateArray{Array: datapath.MustParse("Image/Cells/Data"), Kind: array.KindFloat32, InitValue: 2.5},
	}
}

func TestPreflightPropagatesRenames(t *testing.T) {
	steps := imagePipeline()
	p := New(steps)
	s := store.New()

	report, err := p.Preflight(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, report.Steps, 4)

	assert.Equal(t, []datapath.RenamePair{{
		Old: datapath.MustParse("Image"),
		New: datapath.MustParse("Volume"),
	}}, report.Steps[2].Renames)
	assert.Equal(t, map[int][]string{3: {"array"}}, report.Steps[2].Updated)
	assert.Equal(t, datapath.MustParse("Volume/Cells/Data"), steps[3].(*CreateArray).Array)

	assert.Empty(t, report.Steps[0].Renames, "creations are not renames")
	assert.Equal(t, []datapath.Path{datapath.MustParse("Image")}, report.Steps[0].Created)
	assert.Equal(t, []datapath.Path{datapath.MustParse("Volume/Cells")}, report.Steps[3].Required)
	assert.Contains(t, report.Paths, datapath.MustParse("Volume/Cells/Data"))

	assert.Zero(t, s.Len(), "preflight leaves the store alone")
}

func TestPreflightKeepsLaterCreation(t *testing.T) {
	s, _ := matrixStore(t)
	create := &CreateArray{Array: datapath.MustParse("C1/M1/A1"), Kind: array.KindFloat32}
	p := New([]Step{
		&RenameNode{Source: datapath.MustParse("C1/M1/A1"), NewName: "A2"},
		create,
	})

	report, err := p.Preflight(context.Background(), s)
	require.NoError(t, err)

	assert.Empty(t, report.Steps[0].Updated)
	assert.Equal(t, datapath.MustParse("C1/M1/A1"), create.Array)
	assert.Contains(t, report.Paths, datapath.MustParse("C1/M1/A1"))
	assert.Contains(t, report.Paths, datapath.MustParse("C1/M1/A2"))
}

func TestPreflightMovesLaterCreationWithParent(t *testing.T) {
	s, _ := matrixStore(t)
	create := &CreateArray{Array: datapath.MustParse("C1/M1/A1"), Kind: array.KindFloat32}
	p := New([]Step{
		&RenameNode{Source: datapath.MustParse("C1"), NewName: "C2"},
		create,
	})

	report, err := p.Preflight(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{1: {"array"}}, report.Steps[0].Updated)
	assert.Equal(t, datapath.MustParse("C2/M1/A1"), create.Array)
}

func TestExecute(t *testing.T) {
	progress := NewProgress(nil)
	p := New(imagePipeline(), WithProgress(progress))
	s := store.New()

	_, err := p.Execute(context.Background(), s)
	require.NoError(t, err)

	data, err := store.TypedArray[float32](s, datapath.MustParse("Volume/Cells/Data"), []int{1})
	require.NoError(t, err)
	require.Len(t, data.Values(), 24)
	assert.Equal(t, float32(2.5), data.Values()[23])

	st := progress.State()
	assert.Equal(t, 3, st.StepIndex)
	assert.Equal(t, 4, st.Steps)
	assert.Equal(t, "CreateArray", st.Step)
}

func TestPreflightAmbiguousRename(t *testing.T) {
	s, _ := matrixStore(t)

	// A1 disappears and two compatible arrays appear without being
	// recorded: no rename can be inferred.
	shuffle := &funcStep{fn: func(sc *Context, _ datapath.Path) error {
		m, err := sc.Store.MatrixAt(datapath.MustParse("C1/M1"))
		if err != nil {
			return err
		}
		m.Remove("A1")
		for _, name := range []string{"B1", "B2"} {
			if _, err := store.CreateArray[float32](m, name, nil, sc.Allocate()); err != nil {
				return err
			}
		}
		return nil
	}}
	next := requireStep("C1/M1/A1")

	report, err := New([]Step{shuffle, next}).Preflight(context.Background(), s)
	require.Error(t, err)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, errs.CodeNotFound, se.Code)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	require.Len(t, report.Steps, 1)
	assert.Empty(t, report.Steps[0].Renames)
	assert.Equal(t, datapath.MustParse("C1/M1/A1"), next.param)
}

func TestPreflightRecordedCreationIsNotRename(t *testing.T) {
	s, _ := matrixStore(t)

	replace := &funcStep{fn: func(sc *Context, _ datapath.Path) error {
		m, err := sc.Store.MatrixAt(datapath.MustParse("C1/M1"))
		if err != nil {
			return err
		}
		m.Remove("A1")
		if _, err := store.CreateArray[float32](m, "A2", nil, sc.Allocate()); err != nil {
			return err
		}
		sc.Recorder.Create(datapath.MustParse("C1/M1/A2"))
		return nil
	}}
	next := &funcStep{param: datapath.MustParse("C1/M1/A1"), fn: func(*Context, datapath.Path) error { return nil }}

	report, err := New([]Step{replace, next}).Preflight(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, report.Steps[0].Renames)
	assert.Equal(t, datapath.MustParse("C1/M1/A1"), next.param)
}

func TestPreflightUnrecordedRenameIsDetected(t *testing.T) {
	s, _ := matrixStore(t)

	move := &funcStep{fn: func(sc *Context, _ datapath.Path) error {
		return sc.Store.Rename(datapath.RenamePair{
			Old: datapath.MustParse("C1/M1/A1"),
			New: datapath.MustParse("C1/M1/Renamed"),
		}, false)
	}}
	next := requireStep("C1/M1/A1")
	unrelated := requireStep("C1/M1")

	report, err := New([]Step{move, next, unrelated}).Preflight(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, datapath.MustParse("C1/M1/Renamed"), next.param)
	assert.Equal(t, datapath.MustParse("C1/M1"), unrelated.param)
	assert.Equal(t, map[int][]string{1: {"param"}}, report.Steps[0].Updated)
}

func TestStepErrorCodes(t *testing.T) {
	steps := []Step{&CreateMatrix{Matrix: datapath.MustParse("Missing/M"), Kind: store.MatrixGeneric, TupleDims: []int{3}}}
	_, err := New(steps).Execute(context.Background(), store.New())

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Index)
	assert.Equal(t, "CreateMatrix", se.Step)
	assert.Equal(t, errs.CodeNotFound, se.Code)
	assert.Contains(t, se.Error(), "step 0 (CreateMatrix)")

	steps = []Step{&CreateArray{Array: datapath.MustParse("C1"), Kind: array.KindInt8}}
	_, err = New(steps).Preflight(context.Background(), store.New())
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errs.CodeInvalidArgument, se.Code)
}

func TestCreateMatrixNeedsDims(t *testing.T) {
	steps := []Step{
		&CreateContainer{Container: datapath.MustParse("C1")},
		&CreateMatrix{Matrix: datapath.MustParse("C1/M1"), Kind: store.MatrixGeneric},
	}
	_, err := New(steps).Preflight(context.Background(), store.New())
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDeleteNode(t *testing.T) {
	s := testutil.NewFixtureStore()
	steps := []Step{
		&DeleteNode{Target: testutil.MaskPath},
		&DeleteNode{Target: datapath.MatrixPath(testutil.ImageContainer, testutil.FeatureMatrix)},
		&DeleteNode{Target: datapath.ContainerPath(testutil.MeshContainer)},
	}
	_, err := New(steps).Execute(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, s.Exists(testutil.MaskPath))
	assert.False(t, s.Exists(testutil.QuatsPath))
	assert.False(t, s.Exists(testutil.NodeTypePath))
	assert.True(t, s.Exists(testutil.ConfidencePath))
}

func TestImportExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fixture.dcs")
	_, err := persistence.SaveStore(context.Background(), src, testutil.NewFixtureStore())
	require.NoError(t, err)

	out := filepath.Join(dir, "image.dcs")
	cells := datapath.MatrixPath(testutil.ImageContainer, testutil.CellMatrix)
	steps := []Step{
		&ImportFile{File: src, Selection: &proxy.Selection{
			Version: proxy.SelectionVersion,
			Selected: []datapath.Path{
				datapath.ContainerPath(testutil.ImageContainer),
				cells,
				testutil.ConfidencePath,
			},
		}},
		&RenameNode{Source: testutil.ConfidencePath, NewName: "CI"},
		&ExportFile{File: out, Container: datapath.ContainerPath(testutil.ImageContainer), Compression: "lz4"},
	}
	p := New(steps)
	s := store.New()

	report, err := p.Execute(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, report.Steps[0].Created, 3)
	assert.Equal(t, []datapath.RenamePair{{Old: testutil.ConfidencePath, New: datapath.New(testutil.ImageContainer, testutil.CellMatrix, "CI")}}, report.Steps[1].Renames)

	f, err := persistence.OpenLocal(context.Background(), out)
	require.NoError(t, err)
	defer f.Close()

	loaded := store.New()
	require.NoError(t, persistence.Materialize(context.Background(), loaded, f.Scan(nil), f, false))
	assert.Equal(t, s.Paths(), loaded.Paths())
	assert.True(t, loaded.Exists(datapath.New(testutil.ImageContainer, testutil.CellMatrix, "CI")))
}

func TestImportMissingSelection(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fixture.dcs")
	_, err := persistence.SaveStore(context.Background(), src, testutil.NewFixtureStore())
	require.NoError(t, err)

	steps := []Step{&ImportFile{File: src, Selection: &proxy.Selection{
		Version:  proxy.SelectionVersion,
		Selected: []datapath.Path{datapath.MustParse("Nope")},
	}}}
	_, err = New(steps).Preflight(context.Background(), store.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDefinitionRoundTrip(t *testing.T) {
	const src = `version: 1
steps:
  - type: CreateContainer
    params:
      container: Image
      geometry:
        type: Image
        dims: [4, 3, 2]
        spacing: [1, 1, 1]
        origin: [0, 0, 0]
  - type: CreateMatrix
    params:
      matrix: Image/Cells
      kind: Cell
  - type: CreateArray
    params:
      array: Image/Cells/Phase
      kind: int32
      init_value: 1
  - type: RenameNode
    params:
      source: Image/Cells
      new_name: Voxels
`
	p, err := LoadDefinition(strings.NewReader(src), DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, p.Steps(), 4)
	assert.Equal(t, store.NewImageGeometry(4, 3, 2), p.Steps()[0].(*CreateContainer).Geometry)
	assert.Equal(t, array.KindInt32, p.Steps()[2].(*CreateArray).Kind)

	var buf bytes.Buffer
	require.NoError(t, SaveDefinition(&buf, p))

	again, err := LoadDefinition(&buf, DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, p.Steps(), again.Steps())

	s := store.New()
	_, err = again.Execute(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, s.Exists(datapath.MustParse("Image/Voxels/Phase")))
}

func TestDefinitionErrors(t *testing.T) {
	_, err := LoadDefinition(strings.NewReader("version: 9\nsteps: []\n"), DefaultRegistry())
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = LoadDefinition(strings.NewReader("version: 1\nsteps:\n  - type: Nope\n"), DefaultRegistry())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = LoadDefinition(strings.NewReader("version: 1\nsteps:\n  - type: CreateArray\n    params:\n      kind: complex\n"), DefaultRegistry())
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{
		"CreateArray", "CreateContainer", "CreateMatrix", "DeleteNode",
		"ExportFile", "ImportFile", "RenameNode",
	}, r.Names())

	r.Register("func", func() Step { return requireStep("C1") })
	step, err := r.New("func")
	require.NoError(t, err)
	assert.Equal(t, "func", step.Name())
}

func TestProgressConcurrent(t *testing.T) {
	var (
		mu   sync.Mutex
		seen int
	)
	p := NewProgress(func(ProgressState) {
		mu.Lock()
		seen++
		mu.Unlock()
	})
	p.beginStep(0, 1, "ImportFile")

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			p.Observe(done, 50)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 51, seen)
	assert.Equal(t, 50, p.State().Total)
	assert.Equal(t, "ImportFile", p.State().Step)
}

func matrixStore(t *testing.T) (*store.Store, *store.Matrix) {
	t.Helper()
	s := store.New()
	_, err := s.CreateContainer("C1")
	require.NoError(t, err)
	m, err := s.CreateMatrixAt(datapath.MatrixPath("C1", "M1"), []int{4}, store.MatrixGeneric)
	require.NoError(t, err)
	_, err = store.CreateArray[float32](m, "A1", nil, true)
	require.NoError(t, err)
	return s, m
}
