package persistence

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/resource"
	"github.com/hupe1980/dcstore/store"
)

// stagedMatrix collects the new arrays of one matrix before commit. target
// is nil when the matrix itself is new.
type stagedMatrix struct {
	path    datapath.Path
	target  *store.Matrix
	staging *store.Matrix
}

type stagedContainer struct {
	target   *store.Container
	staging  *store.Container
	matrices []*stagedMatrix
}

type plan struct {
	containers []*stagedContainer
	datasets   int
	bytes      int64
}

// Materialize populates s with the selected nodes of tree, reading bulk
// data from f unless preflight is set. In preflight mode arrays are created
// unallocated and no dataset block is read.
//
// A selected node whose parent is unselected still gets its parents as
// structure. Existing containers and matrices are reused; an existing array
// at a selected path is an AlreadyExists error. Nodes are staged and only
// attached to s after every read succeeded: on error s is left untouched.
func Materialize(ctx context.Context, s *store.Store, tree *proxy.Tree, f *File, preflight bool, opts ...MaterializeOption) error {
	o := applyMaterializeOptions(opts)

	pl, err := planMaterialize(s, tree, f)
	if err != nil {
		return err
	}

	if !preflight {
		if err := readStaged(ctx, f, pl, &o); err != nil {
			o.logger.Error("materialize failed", slog.String("error", err.Error()))
			return err
		}
	}

	commit(s, pl)

	o.logger.Debug("materialized",
		slog.Int("containers", len(pl.containers)),
		slog.Int("datasets", pl.datasets),
		slog.Int64("bytes", pl.bytes),
		slog.Bool("preflight", preflight),
	)
	return nil
}

func planMaterialize(s *store.Store, tree *proxy.Tree, f *File) (*plan, error) {
	const op = "Materialize"
	pl := &plan{}

	for _, cp := range tree.ContainerList() {
		if !hasSelection(cp) {
			continue
		}
		cpath := datapath.ContainerPath(cp.Name)
		if _, ok := f.idx.containers[cp.Name]; !ok {
			return nil, errs.NotFound(op, cpath.String())
		}

		sc := &stagedContainer{}
		if c, ok := s.Container(cp.Name); ok {
			sc.target = c
		} else {
			if err := datapath.ValidateName(op, cp.Name); err != nil {
				return nil, err
			}
			sc.staging = store.NewContainer(cp.Name)
			sc.staging.SetGeometry(cp.Geometry.Clone())
		}

		for _, mp := range cp.MatrixList() {
			if !mp.Selected && !anyArraySelected(mp) {
				continue
			}
			sm, err := planMatrix(sc, cpath.WithMatrix(mp.Name), mp, f)
			if err != nil {
				return nil, err
			}
			pl.datasets += sm.staging.Len()
			for _, a := range sm.staging.Arrays() {
				if ds, err := f.Dataset(sm.path.WithArray(a.Name())); err == nil {
					pl.bytes += ds.Size
				}
			}
			sc.matrices = append(sc.matrices, sm)
		}
		pl.containers = append(pl.containers, sc)
	}
	return pl, nil
}

func planMatrix(sc *stagedContainer, mpath datapath.Path, mp *proxy.MatrixProxy, f *File) (*stagedMatrix, error) {
	const op = "Materialize"

	if _, ok := f.idx.matrices[mpath]; !ok {
		return nil, errs.NotFound(op, mpath.String())
	}

	sm := &stagedMatrix{path: mpath}
	if sc.target != nil {
		if m, ok := sc.target.Matrix(mp.Name); ok {
			if !slices.Equal(m.TupleDims(), mp.TupleDims) {
				return nil, errs.ShapeMismatch(op, mpath.String(), array.DimsString(mp.TupleDims), array.DimsString(m.TupleDims()))
			}
			sm.target = m
		}
	}
	if sm.target == nil {
		if err := datapath.ValidateName(op, mp.Name); err != nil {
			return nil, err
		}
	}
	sm.staging = store.NewMatrix(mp.Name, mp.TupleDims, mp.Kind)

	for _, ap := range mp.ArrayList() {
		if !ap.Selected {
			continue
		}
		apath := mpath.WithArray(ap.Name)
		if _, err := f.Dataset(apath); err != nil {
			return nil, err
		}
		if sm.target != nil && sm.target.Contains(ap.Name) {
			return nil, errs.AlreadyExists(op, apath.String())
		}
		if _, err := sm.staging.CreateArrayOfKind(ap.Kind, ap.Class, ap.Name, ap.ComponentDims, false); err != nil {
			return nil, err
		}
	}
	return sm, nil
}

func hasSelection(cp *proxy.ContainerProxy) bool {
	if cp.Selected {
		return true
	}
	for _, mp := range cp.Matrices {
		if mp.Selected || anyArraySelected(mp) {
			return true
		}
	}
	return false
}

func anyArraySelected(mp *proxy.MatrixProxy) bool {
	for _, ap := range mp.Arrays {
		if ap.Selected {
			return true
		}
	}
	return false
}

type sourceWithSize struct {
	*resource.RateLimitedReaderAt
	size int64
}

func (s sourceWithSize) Size() int64 { return s.size }

func readStaged(ctx context.Context, f *File, pl *plan, o *materializeOptions) error {
	var src Source = f.src
	if o.controller != nil {
		src = sourceWithSize{resource.NewRateLimitedReaderAt(f.src, o.controller), f.src.Size()}
	}

	var mu sync.Mutex
	done := 0
	report := func() {
		if o.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		o.progress(done, pl.datasets)
	}

	for _, sc := range pl.containers {
		for _, sm := range sc.matrices {
			err := sm.staging.Populate(ctx, o.workers, func(ctx context.Context, a array.Array) error {
				p := sm.path.WithArray(a.Name())
				ds, err := f.Dataset(p)
				if err != nil {
					return err
				}
				if err := o.controller.AcquireMemory(ctx, ds.Size); err != nil {
					return err
				}
				defer o.controller.ReleaseMemory(ds.Size)

				if err := f.readDataset(ctx, p, a, src, o.verify); err != nil {
					return err
				}
				o.logger.Debug("dataset read", slog.String("path", p.String()), slog.Int64("bytes", ds.Size))
				report()
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// commit attaches staged nodes. Names and shapes were checked while
// planning, so attaching cannot fail.
func commit(s *store.Store, pl *plan) {
	for _, sc := range pl.containers {
		c := sc.target
		if c == nil {
			c = sc.staging
		}
		for _, sm := range sc.matrices {
			if sm.target == nil {
				_ = c.InsertMatrix(sm.staging)
				continue
			}
			for _, name := range sm.staging.ArrayNames() {
				a, _ := sm.staging.Remove(name)
				_ = sm.target.Insert(a)
			}
		}
		if sc.target == nil {
			_ = s.InsertContainer(sc.staging)
		}
	}
}
