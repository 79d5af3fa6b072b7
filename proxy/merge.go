package proxy

import (
	"github.com/hupe1980/dcstore/datapath"
)

// Merge reconciles a freshly scanned file tree with a cached one. The
// result has file's structure and metadata; nodes present in both take
// their flag from cache, nodes only in file keep file's flag, and nodes
// only in cache are dropped.
//
// Merge does not modify its inputs and is idempotent:
// Merge(file, Merge(file, cache)) equals Merge(file, cache).
func Merge(file, cache *Tree) *Tree {
	out := file.Clone()
	if cache == nil {
		return out
	}
	for name, c := range out.Containers {
		cc, ok := cache.Containers[name]
		if !ok {
			continue
		}
		for mname, m := range c.Matrices {
			cm, ok := cc.Matrices[mname]
			if !ok {
				continue
			}
			for aname, a := range m.Arrays {
				if ca, ok := cm.Arrays[aname]; ok {
					a.Selected = ca.Selected
				}
			}
			m.Selected = cm.Selected
		}
		c.Selected = cc.Selected
	}
	return out
}

// ApplyRenames renames nodes in place. Pairs are applied in order at the
// level that changed; a pair whose source is missing or whose target name
// is taken is skipped. It returns the number of pairs applied.
func (t *Tree) ApplyRenames(pairs []datapath.RenamePair) int {
	applied := 0
	for _, pair := range pairs {
		if t.applyRename(pair) {
			applied++
		}
	}
	return applied
}

func (t *Tree) applyRename(pair datapath.RenamePair) bool {
	oldP, newP := pair.Old, pair.New
	switch pair.Changed() {
	case datapath.LevelContainer:
		return renameKey(t.Containers, oldP.Container, newP.Container, func(c *ContainerProxy, n string) { c.Name = n })
	case datapath.LevelMatrix:
		c, ok := t.Containers[oldP.Container]
		if !ok {
			return false
		}
		return renameKey(c.Matrices, oldP.Matrix, newP.Matrix, func(m *MatrixProxy, n string) { m.Name = n })
	case datapath.LevelArray:
		c, ok := t.Containers[oldP.Container]
		if !ok {
			return false
		}
		m, ok := c.Matrices[oldP.Matrix]
		if !ok {
			return false
		}
		return renameKey(m.Arrays, oldP.Array, newP.Array, func(a *ArrayProxy, n string) { a.Name = n })
	default:
		return false
	}
}

func renameKey[V any](m map[string]V, oldName, newName string, setName func(V, string)) bool {
	v, ok := m[oldName]
	if !ok {
		return false
	}
	if _, taken := m[newName]; taken {
		return false
	}
	delete(m, oldName)
	setName(v, newName)
	m[newName] = v
	return true
}
