package store

import (
	"fmt"
	"slices"
)

// MatrixKind describes what the tuples of a matrix correspond to.
type MatrixKind uint8

const (
	MatrixUnknown MatrixKind = iota
	MatrixVertex
	MatrixEdge
	MatrixFace
	MatrixCell
	MatrixVertexFeature
	MatrixEdgeFeature
	MatrixFaceFeature
	MatrixCellFeature
	MatrixVertexEnsemble
	MatrixEdgeEnsemble
	MatrixFaceEnsemble
	MatrixCellEnsemble
	MatrixMetaData
	MatrixGeneric
)

var matrixKindNames = [...]string{
	MatrixUnknown:        "Unknown",
	MatrixVertex:         "Vertex",
	MatrixEdge:           "Edge",
	MatrixFace:           "Face",
	MatrixCell:           "Cell",
	MatrixVertexFeature:  "VertexFeature",
	MatrixEdgeFeature:    "EdgeFeature",
	MatrixFaceFeature:    "FaceFeature",
	MatrixCellFeature:    "CellFeature",
	MatrixVertexEnsemble: "VertexEnsemble",
	MatrixEdgeEnsemble:   "EdgeEnsemble",
	MatrixFaceEnsemble:   "FaceEnsemble",
	MatrixCellEnsemble:   "CellEnsemble",
	MatrixMetaData:       "MetaData",
	MatrixGeneric:        "Generic",
}

func (k MatrixKind) String() string {
	if int(k) < len(matrixKindNames) {
		return matrixKindNames[k]
	}
	return fmt.Sprintf("MatrixKind(%d)", uint8(k))
}

// ParseMatrixKind parses the name produced by MatrixKind.String.
func ParseMatrixKind(s string) (MatrixKind, error) {
	if i := slices.Index(matrixKindNames[:], s); i >= 0 {
		return MatrixKind(i), nil
	}
	return MatrixUnknown, fmt.Errorf("unknown matrix kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k MatrixKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MatrixKind) UnmarshalText(text []byte) error {
	parsed, err := ParseMatrixKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// GeometryType is the topology kind of a container's geometry.
type GeometryType uint8

const (
	GeometryUnknown GeometryType = iota
	GeometryImage
	GeometryRectGrid
	GeometryVertex
	GeometryEdge
	GeometryTriangle
	GeometryQuad
	GeometryTetrahedral
)

var geometryNames = [...]string{
	GeometryUnknown:     "Unknown",
	GeometryImage:       "Image",
	GeometryRectGrid:    "RectGrid",
	GeometryVertex:      "Vertex",
	GeometryEdge:        "Edge",
	GeometryTriangle:    "Triangle",
	GeometryQuad:        "Quad",
	GeometryTetrahedral: "Tetrahedral",
}

func (g GeometryType) String() string {
	if int(g) < len(geometryNames) {
		return geometryNames[g]
	}
	return fmt.Sprintf("GeometryType(%d)", uint8(g))
}

// ParseGeometryType parses the name produced by GeometryType.String.
func ParseGeometryType(s string) (GeometryType, error) {
	if i := slices.Index(geometryNames[:], s); i >= 0 {
		return GeometryType(i), nil
	}
	return GeometryUnknown, fmt.Errorf("unknown geometry type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g GeometryType) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GeometryType) UnmarshalText(text []byte) error {
	parsed, err := ParseGeometryType(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Geometry is the shape/topology descriptor of a container. Only image-like
// geometries use Dimensions, Spacing and Origin; the rest of the topology
// (vertex lists, connectivity) lives in ordinary matrices.
type Geometry struct {
	Type       GeometryType `cbor:"type" yaml:"type"`
	Dimensions [3]int       `cbor:"dims" yaml:"dims"`
	Spacing    [3]float32   `cbor:"spacing" yaml:"spacing"`
	Origin     [3]float32   `cbor:"origin" yaml:"origin"`
}

// NewImageGeometry returns an image geometry with unit spacing at the origin.
func NewImageGeometry(x, y, z int) *Geometry {
	return &Geometry{
		Type:       GeometryImage,
		Dimensions: [3]int{x, y, z},
		Spacing:    [3]float32{1, 1, 1},
	}
}

// NumCells returns the cell count of image-like geometries and 0 otherwise.
func (g *Geometry) NumCells() int {
	if g == nil || (g.Type != GeometryImage && g.Type != GeometryRectGrid) {
		return 0
	}
	return g.Dimensions[0] * g.Dimensions[1] * g.Dimensions[2]
}

// Clone returns a copy of g (nil for nil).
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// SameTopology reports whether a and b are both absent or of the same type.
func SameTopology(a, b *Geometry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Type == b.Type
}
