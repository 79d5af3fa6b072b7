package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/persistence"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/rename"
	"github.com/hupe1980/dcstore/store"
)

func expectLevel(op, param string, p datapath.Path, level datapath.Level) error {
	if !p.IsValid() || p.Level() != level {
		return errs.InvalidArgument(op, fmt.Errorf("%s: %q is not a %s path", param, p, level))
	}
	return nil
}

// CreateContainer adds an empty container, optionally with a geometry.
type CreateContainer struct {
	Container datapath.Path   `yaml:"container"`
	Geometry  *store.Geometry `yaml:"geometry,omitempty"`
}

func (s *CreateContainer) Name() string { return "CreateContainer" }

func (s *CreateContainer) Preflight(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *CreateContainer) Execute(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *CreateContainer) run(sc *Context) error {
	const op = "CreateContainer"
	if err := expectLevel(op, "container", s.Container, datapath.LevelContainer); err != nil {
		return err
	}
	c, err := sc.Store.CreateContainer(s.Container.Container)
	if err != nil {
		return err
	}
	c.SetGeometry(s.Geometry.Clone())
	sc.Recorder.Create(c.Path())
	return nil
}

func (s *CreateContainer) ParameterPaths() rename.PathTable {
	return rename.PathTable{"container": s.Container}
}

func (s *CreateContainer) SetParameterPaths(t rename.PathTable) { s.Container = t["container"] }

func (s *CreateContainer) CreatedParameters() []string { return []string{"container"} }

// CreateMatrix adds an empty matrix to an existing container. Without
// tuple dims it takes the cell count of an image geometry.
type CreateMatrix struct {
	Matrix    datapath.Path    `yaml:"matrix"`
	Kind      store.MatrixKind `yaml:"kind"`
	TupleDims []int            `yaml:"tuple_dims,omitempty"`
}

func (s *CreateMatrix) Name() string { return "CreateMatrix" }

func (s *CreateMatrix) Preflight(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *CreateMatrix) Execute(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *CreateMatrix) run(sc *Context) error {
	const op = "CreateMatrix"
	if err := expectLevel(op, "matrix", s.Matrix, datapath.LevelMatrix); err != nil {
		return err
	}
	cpath := s.Matrix.Truncate(datapath.LevelContainer)
	if err := sc.Require(op, cpath); err != nil {
		return err
	}
	c, err := sc.Store.ContainerAt(cpath)
	if err != nil {
		return err
	}

	dims := s.TupleDims
	if len(dims) == 0 {
		g := c.Geometry()
		if g.NumCells() == 0 {
			return errs.InvalidArgument(op, errors.New("tuple_dims is required without an image geometry"))
		}
		dims = []int{g.Dimensions[0], g.Dimensions[1], g.Dimensions[2]}
	}

	m, err := c.CreateMatrix(s.Matrix.Matrix, dims, s.Kind)
	if err != nil {
		return err
	}
	sc.Recorder.Create(m.Path())
	return nil
}

func (s *CreateMatrix) ParameterPaths() rename.PathTable {
	return rename.PathTable{"matrix": s.Matrix}
}

func (s *CreateMatrix) SetParameterPaths(t rename.PathTable) { s.Matrix = t["matrix"] }

func (s *CreateMatrix) CreatedParameters() []string { return []string{"matrix"} }

// CreateArray adds an array sized to its matrix. Data arrays start at
// InitValue.
type CreateArray struct {
	Array         datapath.Path `yaml:"array"`
	Kind          array.Kind    `yaml:"kind"`
	Class         array.Class   `yaml:"class,omitempty"`
	ComponentDims []int         `yaml:"component_dims,omitempty"`
	InitValue     float64       `yaml:"init_value,omitempty"`
}

func (s *CreateArray) Name() string { return "CreateArray" }

func (s *CreateArray) Preflight(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *CreateArray) Execute(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *CreateArray) run(sc *Context) error {
	const op = "CreateArray"
	if err := expectLevel(op, "array", s.Array, datapath.LevelArray); err != nil {
		return err
	}
	mpath := s.Array.Truncate(datapath.LevelMatrix)
	if err := sc.Require(op, mpath); err != nil {
		return err
	}
	m, err := sc.Store.MatrixAt(mpath)
	if err != nil {
		return err
	}

	class := s.Class
	if class == array.ClassUnknown {
		class = array.ClassDataArray
	}
	dims := s.ComponentDims
	if len(dims) == 0 {
		dims = []int{1}
	}

	a, err := m.CreateArrayOfKind(s.Kind, class, s.Array.Array, dims, sc.Allocate())
	if err != nil {
		return err
	}
	if sc.Allocate() && s.InitValue != 0 {
		fill(a, s.InitValue)
	}
	sc.Recorder.Create(s.Array)
	return nil
}

func (s *CreateArray) ParameterPaths() rename.PathTable {
	return rename.PathTable{"array": s.Array}
}

func (s *CreateArray) SetParameterPaths(t rename.PathTable) { s.Array = t["array"] }

func (s *CreateArray) CreatedParameters() []string { return []string{"array"} }

// RenameNode renames the last component of Source to NewName.
type RenameNode struct {
	Source  datapath.Path `yaml:"source"`
	NewName string        `yaml:"new_name"`
}

func (s *RenameNode) Name() string { return "RenameNode" }

func (s *RenameNode) Preflight(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *RenameNode) Execute(ctx context.Context, sc *Context) error { return s.run(sc) }

// Target returns the path Source is renamed to.
func (s *RenameNode) Target() datapath.Path {
	t := s.Source
	switch s.Source.Level() {
	case datapath.LevelContainer:
		t.Container = s.NewName
	case datapath.LevelMatrix:
		t.Matrix = s.NewName
	case datapath.LevelArray:
		t.Array = s.NewName
	}
	return t
}

func (s *RenameNode) run(sc *Context) error {
	const op = "RenameNode"
	if s.Source.IsEmpty() || !s.Source.IsValid() {
		return errs.InvalidArgument(op, fmt.Errorf("source: invalid path %q", s.Source))
	}
	if err := datapath.ValidateName(op, s.NewName); err != nil {
		return err
	}
	if err := sc.Require(op, s.Source); err != nil {
		return err
	}
	pair := datapath.RenamePair{Old: s.Source, New: s.Target()}
	if err := sc.Store.Rename(pair, false); err != nil {
		return err
	}
	sc.Logger.Debug("node renamed", slog.String("pair", pair.String()))
	return nil
}

func (s *RenameNode) ParameterPaths() rename.PathTable {
	return rename.PathTable{"source": s.Source}
}

func (s *RenameNode) SetParameterPaths(t rename.PathTable) { s.Source = t["source"] }

func (s *RenameNode) CreatedParameters() []string { return nil }

// DeleteNode removes a container, matrix or array with everything below
// it.
type DeleteNode struct {
	Target datapath.Path `yaml:"target"`
}

func (s *DeleteNode) Name() string { return "DeleteNode" }

func (s *DeleteNode) Preflight(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *DeleteNode) Execute(ctx context.Context, sc *Context) error { return s.run(sc) }

func (s *DeleteNode) run(sc *Context) error {
	const op = "DeleteNode"
	if s.Target.IsEmpty() || !s.Target.IsValid() {
		return errs.InvalidArgument(op, fmt.Errorf("target: invalid path %q", s.Target))
	}
	if err := sc.Require(op, s.Target); err != nil {
		return err
	}
	switch s.Target.Level() {
	case datapath.LevelContainer:
		sc.Store.RemoveContainer(s.Target.Container)
	case datapath.LevelMatrix:
		c, err := sc.Store.ContainerAt(s.Target)
		if err != nil {
			return err
		}
		c.RemoveMatrix(s.Target.Matrix)
	case datapath.LevelArray:
		m, err := sc.Store.MatrixAt(s.Target)
		if err != nil {
			return err
		}
		m.Remove(s.Target.Array)
	}
	return nil
}

func (s *DeleteNode) ParameterPaths() rename.PathTable {
	return rename.PathTable{"target": s.Target}
}

func (s *DeleteNode) SetParameterPaths(t rename.PathTable) { s.Target = t["target"] }

func (s *DeleteNode) CreatedParameters() []string { return nil }

// ImportFile materializes nodes of a store file. Selection lists the file
// paths to read; without it Require (an expression) or, failing that,
// everything is selected.
type ImportFile struct {
	File      string           `yaml:"file"`
	Require   string           `yaml:"require,omitempty"`
	Selection *proxy.Selection `yaml:"selection,omitempty"`
}

func (s *ImportFile) Name() string { return "ImportFile" }

func (s *ImportFile) tree(f *persistence.File) (*proxy.Tree, error) {
	const op = "ImportFile"
	var pred proxy.Predicate
	if s.Require != "" {
		p, err := proxy.CompileExpr(s.Require)
		if err != nil {
			return nil, err
		}
		pred = p
	}
	t := f.Scan(pred)
	if s.Selection != nil {
		if missing := t.ApplySelection(s.Selection); len(missing) > 0 {
			return nil, errs.NotFound(op, missing[0].String())
		}
	}
	return t, nil
}

func (s *ImportFile) Preflight(ctx context.Context, sc *Context) error { return s.run(ctx, sc) }

func (s *ImportFile) Execute(ctx context.Context, sc *Context) error { return s.run(ctx, sc) }

func (s *ImportFile) run(ctx context.Context, sc *Context) error {
	if s.File == "" {
		return errs.InvalidArgument("ImportFile", errors.New("file is required"))
	}
	f, err := persistence.OpenLocal(ctx, s.File)
	if err != nil {
		return err
	}
	defer f.Close()

	t, err := s.tree(f)
	if err != nil {
		return err
	}

	before := make(map[datapath.Path]struct{})
	for _, p := range sc.Store.Paths() {
		before[p] = struct{}{}
	}

	opts := []persistence.MaterializeOption{
		persistence.WithController(sc.Controller),
		persistence.WithLogger(sc.Logger),
	}
	if sc.Progress != nil {
		opts = append(opts, persistence.WithProgress(sc.Progress.Observe))
	}
	if err := persistence.Materialize(ctx, sc.Store, t, f, sc.Preflight, opts...); err != nil {
		return err
	}

	for _, p := range sc.Store.Paths() {
		if _, ok := before[p]; !ok {
			sc.Recorder.Create(p)
		}
	}
	return nil
}

// ImportFile paths name nodes inside the file, not the store.
func (s *ImportFile) ParameterPaths() rename.PathTable { return rename.PathTable{} }

func (s *ImportFile) SetParameterPaths(rename.PathTable) {}

func (s *ImportFile) CreatedParameters() []string { return nil }

// ExportFile writes the store, or one container of it, to a file.
type ExportFile struct {
	File        string        `yaml:"file"`
	Container   datapath.Path `yaml:"container,omitempty"`
	Compression string        `yaml:"compression,omitempty"`
}

func (s *ExportFile) Name() string { return "ExportFile" }

func (s *ExportFile) check(sc *Context) (persistence.Compression, error) {
	const op = "ExportFile"
	if s.File == "" {
		return 0, errs.InvalidArgument(op, errors.New("file is required"))
	}
	comp := persistence.CompressionZSTD
	if s.Compression != "" {
		c, err := persistence.ParseCompression(s.Compression)
		if err != nil {
			return 0, errs.InvalidArgument(op, err)
		}
		comp = c
	}
	if !s.Container.IsEmpty() {
		if err := expectLevel(op, "container", s.Container, datapath.LevelContainer); err != nil {
			return 0, err
		}
		if err := sc.Require(op, s.Container); err != nil {
			return 0, err
		}
	}
	return comp, nil
}

func (s *ExportFile) Preflight(ctx context.Context, sc *Context) error {
	_, err := s.check(sc)
	return err
}

func (s *ExportFile) Execute(ctx context.Context, sc *Context) error {
	comp, err := s.check(sc)
	if err != nil {
		return err
	}

	out := sc.Store
	if !s.Container.IsEmpty() {
		c, err := sc.Store.ContainerAt(s.Container)
		if err != nil {
			return err
		}
		out = store.New()
		if err := out.InsertContainer(c.DeepCopy(c.Name(), true)); err != nil {
			return err
		}
	}

	dir, err := persistence.SaveStore(ctx, s.File, out,
		persistence.WithCompression(comp),
		persistence.WithWriteController(sc.Controller),
		persistence.WithWriteLogger(sc.Logger),
	)
	if err != nil {
		return err
	}
	sc.Logger.Info("store exported", slog.String("file", s.File), slog.Int("containers", len(dir.Containers)))
	return nil
}

func (s *ExportFile) ParameterPaths() rename.PathTable {
	if s.Container.IsEmpty() {
		return rename.PathTable{}
	}
	return rename.PathTable{"container": s.Container}
}

func (s *ExportFile) SetParameterPaths(t rename.PathTable) {
	if p, ok := t["container"]; ok {
		s.Container = p
	}
}

func (s *ExportFile) CreatedParameters() []string { return nil }
