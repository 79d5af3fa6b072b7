package persistence

import (
	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/proxy"
	"github.com/hupe1980/dcstore/store"
)

// Directory is the metadata section of a store file.
type Directory struct {
	Containers []ContainerEntry `cbor:"containers" json:"containers"`
}

// ContainerEntry describes a container group.
type ContainerEntry struct {
	Name     string          `cbor:"name" json:"name"`
	Geometry *store.Geometry `cbor:"geometry,omitempty" json:"geometry,omitempty"`
	Matrices []MatrixEntry   `cbor:"matrices" json:"matrices"`
}

// MatrixEntry describes a matrix group and carries its kind and tuple dims
// attributes.
type MatrixEntry struct {
	Name      string           `cbor:"name" json:"name"`
	Kind      store.MatrixKind `cbor:"kind" json:"kind"`
	TupleDims []int            `cbor:"tupleDims" json:"tupleDims"`
	Datasets  []DatasetEntry   `cbor:"datasets" json:"datasets"`
}

// DatasetEntry describes one array dataset and where its block lives.
type DatasetEntry struct {
	Name          string      `cbor:"name" json:"name"`
	ScalarKind    array.Kind  `cbor:"scalarKind" json:"scalarKind"`
	Class         array.Class `cbor:"class" json:"class"`
	ClassVersion  uint32      `cbor:"classVersion" json:"classVersion"`
	ComponentDims []int       `cbor:"componentDims" json:"componentDims"`
	NumTuples     int         `cbor:"numTuples" json:"numTuples"`
	Offset        int64       `cbor:"offset" json:"offset"`
	Length        int64       `cbor:"length" json:"length"`
	Size          int64       `cbor:"size" json:"size"`
	Compression   Compression `cbor:"compression" json:"compression"`
	Digest        []byte      `cbor:"digest,omitempty" json:"digest,omitempty"`
}

// NumDatasets counts the datasets of every matrix.
func (d *Directory) NumDatasets() int {
	n := 0
	for _, c := range d.Containers {
		for _, m := range c.Matrices {
			n += len(m.Datasets)
		}
	}
	return n
}

// Tree converts the directory into a proxy tree with every flag cleared.
func (d *Directory) Tree() *proxy.Tree {
	t := proxy.NewTree()
	for _, c := range d.Containers {
		cp := t.AddContainer(c.Name, c.Geometry.Clone())
		for _, m := range c.Matrices {
			mp := cp.AddMatrix(m.Name, m.Kind, m.TupleDims)
			for _, ds := range m.Datasets {
				mp.AddArray(ds.proxy())
			}
		}
	}
	return t
}

func (ds *DatasetEntry) proxy() *proxy.ArrayProxy {
	return &proxy.ArrayProxy{
		Name:          ds.Name,
		Kind:          ds.ScalarKind,
		Class:         ds.Class,
		ClassVersion:  ds.ClassVersion,
		ComponentDims: append([]int(nil), ds.ComponentDims...),
		NumTuples:     ds.NumTuples,
	}
}

// newArray creates an empty array shaped like ds.
func (ds *DatasetEntry) newArray(allocate bool) (array.Array, error) {
	return array.New(ds.ScalarKind, ds.Class, ds.Name, ds.NumTuples, ds.ComponentDims, allocate)
}

type dirIndex struct {
	containers map[string]*ContainerEntry
	matrices   map[datapath.Path]*MatrixEntry
	datasets   map[datapath.Path]*DatasetEntry
}

func (d *Directory) index() dirIndex {
	idx := dirIndex{
		containers: make(map[string]*ContainerEntry),
		matrices:   make(map[datapath.Path]*MatrixEntry),
		datasets:   make(map[datapath.Path]*DatasetEntry),
	}
	for ci := range d.Containers {
		c := &d.Containers[ci]
		idx.containers[c.Name] = c
		for mi := range c.Matrices {
			m := &c.Matrices[mi]
			mp := datapath.MatrixPath(c.Name, m.Name)
			idx.matrices[mp] = m
			for di := range m.Datasets {
				idx.datasets[mp.WithArray(m.Datasets[di].Name)] = &m.Datasets[di]
			}
		}
	}
	return idx
}
