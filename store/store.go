// Package store implements the in-memory node graph of a dcstore:
// Store → Container → Matrix → array.
//
// Every level owns its children in a name-keyed map. Parents hand out
// children by pointer; back references from child to parent are lookup-only
// and reset to nil when a child is detached. A node has at most one owner:
// attaching a node that is still owned elsewhere fails with InvalidArgument.
//
// The graph is not safe for concurrent mutation. The only concurrency the
// package offers is Matrix.Populate, which fills distinct arrays of one
// matrix in parallel without touching the child set.
package store

import (
	"errors"
	"maps"
	"slices"
	"strconv"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
)

var (
	errNilNode   = errors.New("node is nil")
	errOwned     = errors.New("node is owned by another parent")
	errEmptyDims = errors.New("tuple dims are empty")
)

func tuplesString(n int) string { return strconv.Itoa(n) + " tuples" }

// Store is the root collection of containers.
type Store struct {
	containers map[string]*Container
}

// New returns an empty store.
func New() *Store {
	return &Store{containers: make(map[string]*Container)}
}

// Len returns the number of containers.
func (s *Store) Len() int { return len(s.containers) }

// Container returns the named container.
func (s *Store) Container(name string) (*Container, bool) {
	c, ok := s.containers[name]
	return c, ok
}

// ContainerNames returns the container names in sorted order.
func (s *Store) ContainerNames() []string {
	return slices.Sorted(maps.Keys(s.containers))
}

// Containers returns the containers ordered by name.
func (s *Store) Containers() []*Container {
	names := s.ContainerNames()
	out := make([]*Container, len(names))
	for i, n := range names {
		out[i] = s.containers[n]
	}
	return out
}

// CreateContainer creates and attaches a new, empty container.
func (s *Store) CreateContainer(name string) (*Container, error) {
	if err := datapath.ValidateName("CreateContainer", name); err != nil {
		return nil, err
	}
	if _, ok := s.containers[name]; ok {
		return nil, errs.AlreadyExists("CreateContainer", name)
	}
	c := NewContainer(name)
	s.attach(c)
	return c, nil
}

// InsertContainer attaches c, failing if the name is taken.
func (s *Store) InsertContainer(c *Container) error {
	if err := s.checkAttachable("InsertContainer", c); err != nil {
		return err
	}
	if cur, ok := s.containers[c.name]; ok {
		if cur == c {
			return nil
		}
		return errs.AlreadyExists("InsertContainer", c.name)
	}
	s.attach(c)
	return nil
}

// AddOrReplaceContainer attaches c, detaching any same-named container first.
func (s *Store) AddOrReplaceContainer(c *Container) error {
	if err := s.checkAttachable("AddOrReplaceContainer", c); err != nil {
		return err
	}
	if cur, ok := s.containers[c.name]; ok {
		if cur == c {
			return nil
		}
		cur.parent = nil
	}
	s.attach(c)
	return nil
}

func (s *Store) checkAttachable(op string, c *Container) error {
	if c == nil {
		return errs.InvalidArgument(op, errNilNode)
	}
	if err := datapath.ValidateName(op, c.name); err != nil {
		return err
	}
	if c.parent != nil && c.parent != s {
		return errs.InvalidArgument(op, errOwned)
	}
	return nil
}

func (s *Store) attach(c *Container) {
	c.parent = s
	s.containers[c.name] = c
}

// RemoveContainer detaches and returns the named container.
func (s *Store) RemoveContainer(name string) (*Container, bool) {
	c, ok := s.containers[name]
	if !ok {
		return nil, false
	}
	delete(s.containers, name)
	c.parent = nil
	return c, true
}

// RenameContainer changes the name of a container. With overwrite an
// existing container named newName is detached first.
func (s *Store) RenameContainer(oldName, newName string, overwrite bool) error {
	if err := datapath.ValidateName("RenameContainer", newName); err != nil {
		return err
	}
	c, ok := s.containers[oldName]
	if !ok {
		return errs.NotFound("RenameContainer", oldName)
	}
	if oldName == newName {
		return nil
	}
	if existing, ok := s.containers[newName]; ok {
		if !overwrite {
			return errs.AlreadyExists("RenameContainer", newName)
		}
		existing.parent = nil
	}
	delete(s.containers, oldName)
	c.name = newName
	s.containers[newName] = c
	return nil
}

// Rename applies a single-slot rename pair at the level that changed.
func (s *Store) Rename(pair datapath.RenamePair, overwrite bool) error {
	switch pair.Changed() {
	case datapath.LevelContainer:
		return s.RenameContainer(pair.Old.Container, pair.New.Container, overwrite)
	case datapath.LevelMatrix:
		c, err := s.ContainerAt(pair.Old)
		if err != nil {
			return err
		}
		return c.RenameMatrix(pair.Old.Matrix, pair.New.Matrix, overwrite)
	case datapath.LevelArray:
		m, err := s.MatrixAt(pair.Old)
		if err != nil {
			return err
		}
		return m.Rename(pair.Old.Array, pair.New.Array, overwrite)
	default:
		return errs.InvalidArgument("Rename", errors.New("not a single-slot rename: "+pair.String()))
	}
}

// Clear detaches every container.
func (s *Store) Clear() {
	for _, c := range s.containers {
		c.parent = nil
	}
	clear(s.containers)
}

// DeepCopy returns an independent copy of the whole store.
func (s *Store) DeepCopy(allocate bool) *Store {
	out := New()
	for n, c := range s.containers {
		out.attach(c.DeepCopy(n, allocate))
	}
	return out
}

// ContainerAt resolves the container part of p.
func (s *Store) ContainerAt(p datapath.Path) (*Container, error) {
	if p.Container == "" {
		return nil, errs.InvalidName("ContainerAt", p.String(), "container name is empty")
	}
	c, ok := s.containers[p.Container]
	if !ok {
		return nil, errs.NotFound("ContainerAt", p.Truncate(datapath.LevelContainer).String())
	}
	return c, nil
}

// MatrixAt resolves the container and matrix parts of p.
func (s *Store) MatrixAt(p datapath.Path) (*Matrix, error) {
	c, err := s.ContainerAt(p)
	if err != nil {
		return nil, err
	}
	if p.Matrix == "" {
		return nil, errs.InvalidName("MatrixAt", p.String(), "matrix name is empty")
	}
	m, ok := c.matrices[p.Matrix]
	if !ok {
		return nil, errs.NotFound("MatrixAt", p.Truncate(datapath.LevelMatrix).String())
	}
	return m, nil
}

// ArrayAt resolves a full array path.
func (s *Store) ArrayAt(p datapath.Path) (array.Array, error) {
	m, err := s.MatrixAt(p)
	if err != nil {
		return nil, err
	}
	if p.Array == "" {
		return nil, errs.InvalidName("ArrayAt", p.String(), "array name is empty")
	}
	a, ok := m.arrays[p.Array]
	if !ok {
		return nil, errs.NotFound("ArrayAt", p.String())
	}
	return a, nil
}

// Exists reports whether p resolves to a node at its own level.
func (s *Store) Exists(p datapath.Path) bool {
	var err error
	switch p.Level() {
	case datapath.LevelContainer:
		_, err = s.ContainerAt(p)
	case datapath.LevelMatrix:
		_, err = s.MatrixAt(p)
	case datapath.LevelArray:
		_, err = s.ArrayAt(p)
	default:
		return false
	}
	return err == nil
}

// CreateMatrixAt creates a matrix at p, which must address a matrix in an
// existing container.
func (s *Store) CreateMatrixAt(p datapath.Path, tupleDims []int, kind MatrixKind) (*Matrix, error) {
	c, err := s.ContainerAt(p)
	if err != nil {
		return nil, err
	}
	return c.CreateMatrix(p.Matrix, tupleDims, kind)
}

// Paths returns the address of every node, all levels, sorted.
func (s *Store) Paths() []datapath.Path {
	var out []datapath.Path
	for _, c := range s.containers {
		out = append(out, datapath.ContainerPath(c.name))
		for _, m := range c.matrices {
			mp := datapath.MatrixPath(c.name, m.name)
			out = append(out, mp)
			for n := range m.arrays {
				out = append(out, mp.WithArray(n))
			}
		}
	}
	return datapath.Sorted(out)
}

// ArrayPaths returns the address of every array, sorted.
func (s *Store) ArrayPaths() []datapath.Path {
	var out []datapath.Path
	for _, p := range s.Paths() {
		if p.Level() == datapath.LevelArray {
			out = append(out, p)
		}
	}
	return out
}

// Summary holds node counts and allocated bytes of a store.
type Summary struct {
	Containers int
	Matrices   int
	Arrays     int
	Allocated  int
	Bytes      int64
	ByKind     map[array.Kind]int
}

// Summary walks the store and counts its nodes.
func (s *Store) Summary() Summary {
	sum := Summary{ByKind: make(map[array.Kind]int)}
	for _, c := range s.containers {
		sum.Containers++
		for _, m := range c.matrices {
			sum.Matrices++
			for _, a := range m.arrays {
				sum.Arrays++
				sum.ByKind[a.Kind()]++
				if a.IsAllocated() {
					sum.Allocated++
					sum.Bytes += a.SizeInBytes()
				}
			}
		}
	}
	return sum
}
