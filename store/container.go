package store

import (
	"maps"
	"slices"

	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
)

// Container is a named collection of matrices plus an optional geometry.
type Container struct {
	name     string
	geometry *Geometry
	matrices map[string]*Matrix

	// parent is a lookup-only back reference, nil while unbound.
	parent *Store
}

// NewContainer returns an unbound container.
func NewContainer(name string) *Container {
	return &Container{name: name, matrices: make(map[string]*Matrix)}
}

func (c *Container) Name() string { return c.name }

// Geometry returns the geometry descriptor, or nil.
func (c *Container) Geometry() *Geometry { return c.geometry }

// SetGeometry replaces the geometry descriptor. nil removes it.
func (c *Container) SetGeometry(g *Geometry) { c.geometry = g }

// Parent returns the owning store, or nil if c is detached.
func (c *Container) Parent() *Store { return c.parent }

// Path returns the container-level address of c.
func (c *Container) Path() datapath.Path { return datapath.ContainerPath(c.name) }

// Len returns the number of matrices.
func (c *Container) Len() int { return len(c.matrices) }

// Matrix returns the named matrix.
func (c *Container) Matrix(name string) (*Matrix, bool) {
	m, ok := c.matrices[name]
	return m, ok
}

// MatrixNames returns the matrix names in sorted order.
func (c *Container) MatrixNames() []string {
	return slices.Sorted(maps.Keys(c.matrices))
}

// Matrices returns the matrices ordered by name.
func (c *Container) Matrices() []*Matrix {
	names := c.MatrixNames()
	out := make([]*Matrix, len(names))
	for i, n := range names {
		out[i] = c.matrices[n]
	}
	return out
}

func (c *Container) matrixPath(name string) string {
	return c.Path().WithMatrix(name).String()
}

// CreateMatrix creates and attaches a new, empty matrix.
func (c *Container) CreateMatrix(name string, tupleDims []int, kind MatrixKind) (*Matrix, error) {
	if err := datapath.ValidateName("CreateMatrix", name); err != nil {
		return nil, err
	}
	if _, ok := c.matrices[name]; ok {
		return nil, errs.AlreadyExists("CreateMatrix", c.matrixPath(name))
	}
	m := NewMatrix(name, tupleDims, kind)
	c.attach(m)
	return m, nil
}

// InsertMatrix attaches m, failing if the name is taken.
func (c *Container) InsertMatrix(m *Matrix) error {
	if err := c.checkAttachable("InsertMatrix", m); err != nil {
		return err
	}
	if cur, ok := c.matrices[m.name]; ok {
		if cur == m {
			return nil
		}
		return errs.AlreadyExists("InsertMatrix", c.matrixPath(m.name))
	}
	c.attach(m)
	return nil
}

// AddOrReplaceMatrix attaches m, detaching any same-named matrix first.
// Re-adding the instance already attached here is a no-op.
func (c *Container) AddOrReplaceMatrix(m *Matrix) error {
	if err := c.checkAttachable("AddOrReplaceMatrix", m); err != nil {
		return err
	}
	if cur, ok := c.matrices[m.name]; ok {
		if cur == m {
			return nil
		}
		cur.parent = nil
	}
	c.attach(m)
	return nil
}

func (c *Container) checkAttachable(op string, m *Matrix) error {
	if m == nil {
		return errs.InvalidArgument(op, errNilNode)
	}
	if err := datapath.ValidateName(op, m.name); err != nil {
		return err
	}
	if m.parent != nil && m.parent != c {
		return errs.InvalidArgument(op, errOwned)
	}
	return nil
}

func (c *Container) attach(m *Matrix) {
	m.parent = c
	c.matrices[m.name] = m
}

// RemoveMatrix detaches and returns the named matrix.
func (c *Container) RemoveMatrix(name string) (*Matrix, bool) {
	m, ok := c.matrices[name]
	if !ok {
		return nil, false
	}
	delete(c.matrices, name)
	m.parent = nil
	return m, true
}

// RenameMatrix changes the name of a matrix. With overwrite an existing
// matrix named newName is detached first.
func (c *Container) RenameMatrix(oldName, newName string, overwrite bool) error {
	if err := datapath.ValidateName("RenameMatrix", newName); err != nil {
		return err
	}
	m, ok := c.matrices[oldName]
	if !ok {
		return errs.NotFound("RenameMatrix", c.matrixPath(oldName))
	}
	if oldName == newName {
		return nil
	}
	if existing, ok := c.matrices[newName]; ok {
		if !overwrite {
			return errs.AlreadyExists("RenameMatrix", c.matrixPath(newName))
		}
		existing.parent = nil
	}
	delete(c.matrices, oldName)
	m.name = newName
	c.matrices[newName] = m
	return nil
}

// Clear detaches every matrix.
func (c *Container) Clear() {
	for _, m := range c.matrices {
		m.parent = nil
	}
	clear(c.matrices)
}

// DeepCopy returns an unbound copy of c named name, with fresh copies of
// every matrix and array.
func (c *Container) DeepCopy(name string, allocate bool) *Container {
	out := NewContainer(name)
	out.geometry = c.geometry.Clone()
	for n, m := range c.matrices {
		out.attach(m.DeepCopy(n, allocate))
	}
	return out
}

// SizeInBytes returns the allocated payload size of all arrays.
func (c *Container) SizeInBytes() int64 {
	var n int64
	for _, m := range c.matrices {
		n += m.SizeInBytes()
	}
	return n
}
