package store

import (
	"context"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
)

// Matrix is a named, fixed-tuple-count collection of arrays.
//
// Every child array has exactly NumTuples() tuples. Inserts that would
// break this are rejected without touching the child set.
type Matrix struct {
	name      string
	kind      MatrixKind
	tupleDims []int
	arrays    map[string]array.Array

	// parent is a lookup-only back reference, nil while unbound.
	parent *Container
}

// NewMatrix returns an unbound matrix. Attach it with
// Container.AddOrReplaceMatrix or create it directly with
// Container.CreateMatrix.
func NewMatrix(name string, tupleDims []int, kind MatrixKind) *Matrix {
	if len(tupleDims) == 0 {
		tupleDims = []int{0}
	}
	return &Matrix{
		name:      name,
		kind:      kind,
		tupleDims: slices.Clone(tupleDims),
		arrays:    make(map[string]array.Array),
	}
}

func (m *Matrix) Name() string { return m.name }

func (m *Matrix) Kind() MatrixKind { return m.kind }

// SetKind changes the matrix kind.
func (m *Matrix) SetKind(kind MatrixKind) { m.kind = kind }

// TupleDims returns a copy of the tuple dimensions.
func (m *Matrix) TupleDims() []int { return slices.Clone(m.tupleDims) }

// NumTuples returns the product of the tuple dimensions.
func (m *Matrix) NumTuples() int { return array.Product(m.tupleDims) }

// Parent returns the owning container, or nil if m is detached.
func (m *Matrix) Parent() *Container { return m.parent }

// Path returns the address of m. A detached matrix has an empty container part.
func (m *Matrix) Path() datapath.Path {
	p := datapath.Path{Matrix: m.name}
	if m.parent != nil {
		p.Container = m.parent.name
	}
	return p
}

// Len returns the number of child arrays.
func (m *Matrix) Len() int { return len(m.arrays) }

// Array returns the named child.
func (m *Matrix) Array(name string) (array.Array, bool) {
	a, ok := m.arrays[name]
	return a, ok
}

// Contains reports whether a child with the given name exists.
func (m *Matrix) Contains(name string) bool {
	_, ok := m.arrays[name]
	return ok
}

// ArrayNames returns the child names in sorted order.
func (m *Matrix) ArrayNames() []string {
	return slices.Sorted(maps.Keys(m.arrays))
}

// Arrays returns the children ordered by name.
func (m *Matrix) Arrays() []array.Array {
	names := m.ArrayNames()
	out := make([]array.Array, len(names))
	for i, n := range names {
		out[i] = m.arrays[n]
	}
	return out
}

func (m *Matrix) arrayPath(name string) string {
	return m.Path().WithArray(name).String()
}

// Validate reports whether a could be a child of m.
func (m *Matrix) Validate(a array.Array) error {
	if a == nil {
		return errs.InvalidArgument("Insert", errNilNode)
	}
	if err := datapath.ValidateName("Insert", a.Name()); err != nil {
		return err
	}
	if a.NumTuples() != m.NumTuples() {
		return errs.ShapeMismatch("Insert", m.arrayPath(a.Name()),
			tuplesString(m.NumTuples()), tuplesString(a.NumTuples()))
	}
	return nil
}

func (m *Matrix) attach(a array.Array) {
	a.SetOwner(m)
	m.arrays[a.Name()] = a
}

func (m *Matrix) checkAttachable(op string, a array.Array) error {
	if owner := a.Owner(); owner != nil && owner != any(m) {
		return errs.InvalidArgument(op, errOwned)
	}
	return nil
}

// Insert adds a as a new child. It fails with AlreadyExists if the name is
// taken, with ShapeMismatch if the tuple count differs and with
// InvalidArgument if another matrix owns a.
func (m *Matrix) Insert(a array.Array) error {
	if err := m.Validate(a); err != nil {
		return err
	}
	if err := m.checkAttachable("Insert", a); err != nil {
		return err
	}
	if m.Contains(a.Name()) {
		return errs.AlreadyExists("Insert", m.arrayPath(a.Name()))
	}
	m.attach(a)
	return nil
}

// AddOrReplace inserts a, detaching any same-named child first. Adding the
// instance that is already stored is a no-op.
func (m *Matrix) AddOrReplace(a array.Array) error {
	if err := m.Validate(a); err != nil {
		return err
	}
	if err := m.checkAttachable("AddOrReplace", a); err != nil {
		return err
	}
	if old, ok := m.arrays[a.Name()]; ok {
		if old == a {
			return nil
		}
		old.SetOwner(nil)
	}
	m.attach(a)
	return nil
}

// Remove detaches and returns the named child.
func (m *Matrix) Remove(name string) (array.Array, bool) {
	a, ok := m.arrays[name]
	if ok {
		delete(m.arrays, name)
		a.SetOwner(nil)
	}
	return a, ok
}

// Rename changes the name of a child. With overwrite an existing child named
// newName is dropped first; otherwise the collision fails with AlreadyExists.
func (m *Matrix) Rename(oldName, newName string, overwrite bool) error {
	if err := datapath.ValidateName("RenameArray", newName); err != nil {
		return err
	}
	a, ok := m.arrays[oldName]
	if !ok {
		return errs.NotFound("RenameArray", m.arrayPath(oldName))
	}
	if oldName == newName {
		return nil
	}
	if old, ok := m.arrays[newName]; ok {
		if !overwrite {
			return errs.AlreadyExists("RenameArray", m.arrayPath(newName))
		}
		old.SetOwner(nil)
	}
	delete(m.arrays, oldName)
	a.SetName(newName)
	m.arrays[newName] = a
	return nil
}

// Resize replaces the tuple dimensions and resizes every child. Values past
// the new tuple count are dropped; new tuples are zero.
func (m *Matrix) Resize(tupleDims []int) error {
	if len(tupleDims) == 0 {
		return errs.InvalidArgument("Resize", errEmptyDims)
	}
	for _, d := range tupleDims {
		if d < 0 {
			return errs.ShapeMismatch("Resize", m.Path().String(), "non-negative tuple dims", array.DimsString(tupleDims))
		}
	}
	m.tupleDims = slices.Clone(tupleDims)
	n := m.NumTuples()
	for _, a := range m.arrays {
		a.Resize(n)
	}
	return nil
}

// Clear detaches every child.
func (m *Matrix) Clear() {
	for _, a := range m.arrays {
		a.SetOwner(nil)
	}
	clear(m.arrays)
}

// DeepCopy returns an unbound copy of m named name. Without allocate the
// copy's arrays describe shapes only.
func (m *Matrix) DeepCopy(name string, allocate bool) *Matrix {
	c := NewMatrix(name, m.tupleDims, m.kind)
	for n, a := range m.arrays {
		c.attach(a.DeepCopy(n, allocate))
	}
	return c
}

// SizeInBytes returns the allocated payload size of all children.
func (m *Matrix) SizeInBytes() int64 {
	var n int64
	for _, a := range m.arrays {
		n += a.SizeInBytes()
	}
	return n
}

// CreateArrayOfKind creates, inserts and returns a new child of the given
// kind and class with m's tuple count.
func (m *Matrix) CreateArrayOfKind(kind array.Kind, class array.Class, name string, compDims []int, allocate bool) (array.Array, error) {
	if err := datapath.ValidateName("CreateArray", name); err != nil {
		return nil, err
	}
	if m.Contains(name) {
		return nil, errs.AlreadyExists("CreateArray", m.arrayPath(name))
	}
	a, err := array.New(kind, class, name, m.NumTuples(), compDims, allocate)
	if err != nil {
		return nil, errs.InvalidArgument("CreateArray", err)
	}
	m.attach(a)
	return a, nil
}

// Lookup fetches a child and checks its kind, class and component dims
// without knowing the Go element type. A nil compDims skips the dims check.
func (m *Matrix) Lookup(name string, kind array.Kind, class array.Class, compDims []int) (array.Array, error) {
	const op = "GetArray"
	a, ok := m.arrays[name]
	if !ok {
		return nil, errs.NotFound(op, m.arrayPath(name))
	}
	if a.Kind() != kind {
		return nil, errs.TypeMismatch(op, m.arrayPath(name), kind.String(), a.Kind().String())
	}
	if a.Class() != class {
		return nil, errs.TypeMismatch(op, m.arrayPath(name), class.String(), a.Class().String())
	}
	if a.NumTuples() != m.NumTuples() {
		return nil, errs.ShapeMismatch(op, m.arrayPath(name), tuplesString(m.NumTuples()), tuplesString(a.NumTuples()))
	}
	if compDims != nil && !slices.Equal(a.ComponentDims(), compDims) {
		return nil, errs.ShapeMismatch(op, m.arrayPath(name), array.DimsString(compDims), array.DimsString(a.ComponentDims()))
	}
	return a, nil
}

// Populate runs fn on every child concurrently, at most workers at a time,
// and returns after all calls finished. fn must only touch the array it is
// handed; the child set must not change until Populate returns.
func (m *Matrix) Populate(ctx context.Context, workers int, fn func(ctx context.Context, a array.Array) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, a := range m.Arrays() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, a)
		})
	}
	return g.Wait()
}
