// Package proxy implements the metadata-only shadow of a store used to
// choose what to read from a persisted file.
//
// A Tree mirrors Store → Container → Matrix → array one to one, keyed by the
// same names. Every node carries a Selected flag; array nodes additionally
// snapshot kind, class and shape. No node references array buffers.
//
// Selection is independent per level: an unselected matrix may hold
// selected arrays, and materializing such an array creates the structure
// above it.
package proxy

import (
	"maps"
	"slices"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/store"
)

// Tree is the root of a proxy hierarchy.
type Tree struct {
	Containers map[string]*ContainerProxy
}

// ContainerProxy describes a container.
type ContainerProxy struct {
	Name     string
	Selected bool
	Geometry *store.Geometry
	Matrices map[string]*MatrixProxy
}

// MatrixProxy describes a matrix.
type MatrixProxy struct {
	Name      string
	Selected  bool
	Kind      store.MatrixKind
	TupleDims []int
	Arrays    map[string]*ArrayProxy
}

// ArrayProxy describes an array.
type ArrayProxy struct {
	Name          string
	Selected      bool
	Kind          array.Kind
	Class         array.Class
	ClassVersion  uint32
	ComponentDims []int
	NumTuples     int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{Containers: make(map[string]*ContainerProxy)}
}

// FromStore builds the proxy of an in-memory store with every node's flag
// set to selected.
func FromStore(s *store.Store, selected bool) *Tree {
	t := NewTree()
	for _, c := range s.Containers() {
		cp := t.AddContainer(c.Name(), c.Geometry().Clone())
		cp.Selected = selected
		for _, m := range c.Matrices() {
			mp := cp.AddMatrix(m.Name(), m.Kind(), m.TupleDims())
			mp.Selected = selected
			for _, a := range m.Arrays() {
				ap := mp.AddArray(ArrayFrom(a))
				ap.Selected = selected
			}
		}
	}
	return t
}

// ArrayFrom snapshots the metadata of a.
func ArrayFrom(a array.Array) *ArrayProxy {
	return &ArrayProxy{
		Name:          a.Name(),
		Kind:          a.Kind(),
		Class:         a.Class(),
		ClassVersion:  a.Class().Version(),
		ComponentDims: a.ComponentDims(),
		NumTuples:     a.NumTuples(),
	}
}

// AddContainer inserts (or replaces) a container node and returns it.
func (t *Tree) AddContainer(name string, geom *store.Geometry) *ContainerProxy {
	c := &ContainerProxy{Name: name, Geometry: geom, Matrices: make(map[string]*MatrixProxy)}
	t.Containers[name] = c
	return c
}

// AddMatrix inserts (or replaces) a matrix node and returns it.
func (c *ContainerProxy) AddMatrix(name string, kind store.MatrixKind, tupleDims []int) *MatrixProxy {
	m := &MatrixProxy{
		Name:      name,
		Kind:      kind,
		TupleDims: slices.Clone(tupleDims),
		Arrays:    make(map[string]*ArrayProxy),
	}
	c.Matrices[name] = m
	return m
}

// AddArray inserts (or replaces) an array node and returns it.
func (m *MatrixProxy) AddArray(a *ArrayProxy) *ArrayProxy {
	m.Arrays[a.Name] = a
	return a
}

// NumTuples returns the product of the tuple dims.
func (m *MatrixProxy) NumTuples() int { return array.Product(m.TupleDims) }

// Sorted children.

func (t *Tree) ContainerList() []*ContainerProxy { return sortedValues(t.Containers) }

func (c *ContainerProxy) MatrixList() []*MatrixProxy { return sortedValues(c.Matrices) }

func (m *MatrixProxy) ArrayList() []*ArrayProxy { return sortedValues(m.Arrays) }

func sortedValues[V any](m map[string]V) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// Walk calls fn for every node top-down in name order. Nodes below the
// addressed level are nil. Returning false from fn skips the subtree.
func (t *Tree) Walk(fn func(p datapath.Path, c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) bool) {
	for _, c := range t.ContainerList() {
		cp := datapath.ContainerPath(c.Name)
		if !fn(cp, c, nil, nil) {
			continue
		}
		for _, m := range c.MatrixList() {
			mp := cp.WithMatrix(m.Name)
			if !fn(mp, c, m, nil) {
				continue
			}
			for _, a := range m.ArrayList() {
				fn(mp.WithArray(a.Name), c, m, a)
			}
		}
	}
}

// Lookup resolves p to its node. Only the node at p's level is non-nil in
// the result besides its ancestors.
func (t *Tree) Lookup(p datapath.Path) (*ContainerProxy, *MatrixProxy, *ArrayProxy, error) {
	c, ok := t.Containers[p.Container]
	if !ok {
		return nil, nil, nil, errs.NotFound("proxy.Lookup", p.Truncate(datapath.LevelContainer).String())
	}
	if p.Matrix == "" {
		return c, nil, nil, nil
	}
	m, ok := c.Matrices[p.Matrix]
	if !ok {
		return nil, nil, nil, errs.NotFound("proxy.Lookup", p.Truncate(datapath.LevelMatrix).String())
	}
	if p.Array == "" {
		return c, m, nil, nil
	}
	a, ok := m.Arrays[p.Array]
	if !ok {
		return nil, nil, nil, errs.NotFound("proxy.Lookup", p.String())
	}
	return c, m, a, nil
}

// SetSelected sets the flag of the node at p.
func (t *Tree) SetSelected(p datapath.Path, selected bool) error {
	c, m, a, err := t.Lookup(p)
	if err != nil {
		return err
	}
	switch {
	case a != nil:
		a.Selected = selected
	case m != nil:
		m.Selected = selected
	default:
		c.Selected = selected
	}
	return nil
}

// SelectAll sets every flag.
func (t *Tree) SelectAll(selected bool) {
	t.Walk(func(_ datapath.Path, c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) bool {
		switch {
		case a != nil:
			a.Selected = selected
		case m != nil:
			m.Selected = selected
		default:
			c.Selected = selected
		}
		return true
	})
}

// Paths returns the address of every node, sorted.
func (t *Tree) Paths() []datapath.Path {
	var out []datapath.Path
	t.Walk(func(p datapath.Path, _ *ContainerProxy, _ *MatrixProxy, _ *ArrayProxy) bool {
		out = append(out, p)
		return true
	})
	return out
}

// SelectedPaths returns the address of every selected node, sorted.
func (t *Tree) SelectedPaths() []datapath.Path {
	var out []datapath.Path
	t.Walk(func(p datapath.Path, c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) bool {
		if selectedAt(c, m, a) {
			out = append(out, p)
		}
		return true
	})
	return out
}

// SelectedArrays returns the address of every selected array node, sorted.
func (t *Tree) SelectedArrays() []datapath.Path {
	var out []datapath.Path
	for _, p := range t.SelectedPaths() {
		if p.Level() == datapath.LevelArray {
			out = append(out, p)
		}
	}
	return out
}

func selectedAt(c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) bool {
	switch {
	case a != nil:
		return a.Selected
	case m != nil:
		return m.Selected
	default:
		return c.Selected
	}
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := NewTree()
	for name, c := range t.Containers {
		out.Containers[name] = c.clone()
	}
	return out
}

func (c *ContainerProxy) clone() *ContainerProxy {
	out := &ContainerProxy{
		Name:     c.Name,
		Selected: c.Selected,
		Geometry: c.Geometry.Clone(),
		Matrices: make(map[string]*MatrixProxy, len(c.Matrices)),
	}
	for name, m := range c.Matrices {
		out.Matrices[name] = m.clone()
	}
	return out
}

func (m *MatrixProxy) clone() *MatrixProxy {
	out := &MatrixProxy{
		Name:      m.Name,
		Selected:  m.Selected,
		Kind:      m.Kind,
		TupleDims: slices.Clone(m.TupleDims),
		Arrays:    make(map[string]*ArrayProxy, len(m.Arrays)),
	}
	for name, a := range m.Arrays {
		out.Arrays[name] = a.clone()
	}
	return out
}

func (a *ArrayProxy) clone() *ArrayProxy {
	out := *a
	out.ComponentDims = slices.Clone(a.ComponentDims)
	return &out
}

// Equal reports whether t and other have the same structure, metadata and flags.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	return maps.EqualFunc(t.Containers, other.Containers, (*ContainerProxy).equal)
}

func (c *ContainerProxy) equal(o *ContainerProxy) bool {
	if c.Name != o.Name || c.Selected != o.Selected {
		return false
	}
	if (c.Geometry == nil) != (o.Geometry == nil) || (c.Geometry != nil && *c.Geometry != *o.Geometry) {
		return false
	}
	return maps.EqualFunc(c.Matrices, o.Matrices, (*MatrixProxy).equal)
}

func (m *MatrixProxy) equal(o *MatrixProxy) bool {
	return m.Name == o.Name &&
		m.Selected == o.Selected &&
		m.Kind == o.Kind &&
		slices.Equal(m.TupleDims, o.TupleDims) &&
		maps.EqualFunc(m.Arrays, o.Arrays, (*ArrayProxy).equal)
}

func (a *ArrayProxy) equal(o *ArrayProxy) bool {
	return a.Name == o.Name &&
		a.Selected == o.Selected &&
		a.Kind == o.Kind &&
		a.Class == o.Class &&
		a.ClassVersion == o.ClassVersion &&
		a.NumTuples == o.NumTuples &&
		slices.Equal(a.ComponentDims, o.ComponentDims)
}

// Prune removes from s every node the tree does not select. A node
// survives if it is selected or has a selected descendant; nodes unknown
// to the tree are removed.
func (t *Tree) Prune(s *store.Store) {
	for _, c := range s.Containers() {
		cp, ok := t.Containers[c.Name()]
		if !ok {
			s.RemoveContainer(c.Name())
			continue
		}
		keepC := cp.Selected
		for _, m := range c.Matrices() {
			mp, ok := cp.Matrices[m.Name()]
			if !ok {
				c.RemoveMatrix(m.Name())
				continue
			}
			keepM := mp.Selected
			for _, name := range m.ArrayNames() {
				if ap, ok := mp.Arrays[name]; ok && ap.Selected {
					keepM = true
					continue
				}
				m.Remove(name)
			}
			if !keepM {
				c.RemoveMatrix(m.Name())
				continue
			}
			keepC = true
		}
		if !keepC {
			s.RemoveContainer(c.Name())
		}
	}
}
