// Package array implements the typed leaf nodes of a store: named,
// tuple-indexed arrays of a single scalar kind.
//
// Three variants share the Array interface:
//
//   - DataArray[T]: a fixed number of components per tuple.
//   - ListArray[T]: a variable-length list per tuple (neighbor lists).
//   - StatsArray: one aggregate statistics record per tuple.
//
// Where the element type is known at the call site, use the generic
// constructors and accessors; the Kind and Class tags are checked once at
// the boundaries where it is not (file reads, typed fetches from a matrix).
//
// Arrays may be created unallocated ("preflight") so a pipeline dry-run can
// describe shapes without paying for buffers.
package array

import (
	"encoding"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Array is the interface shared by every array variant.
type Array interface {
	Name() string
	// SetName changes the stored name. Only the owning matrix should call it.
	SetName(name string)
	Kind() Kind
	Class() Class
	// NumTuples is the number of tuples; it must match the owning matrix.
	NumTuples() int
	// ComponentDims is the per-tuple shape. List and stats arrays report [1].
	ComponentDims() []int
	NumComponents() int
	// NumElements is the number of stored scalar values.
	NumElements() int
	// SizeInBytes is the allocated payload size.
	SizeInBytes() int64
	IsAllocated() bool
	// Allocate creates a zeroed buffer for an unallocated array.
	Allocate()
	// Resize changes the tuple count. Values within the new extent are kept
	// in linear tuple order, values beyond it are dropped and new tuples
	// are zero.
	Resize(numTuples int)
	// DeepCopy returns an independent, unowned array with the given name.
	DeepCopy(name string, allocate bool) Array
	// Owner returns the collection holding the array, nil while unbound.
	Owner() any
	// SetOwner records the holding collection. Only that collection should
	// call it.
	SetOwner(owner any)

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// ownership is the lookup-only owner handle embedded by every array type.
type ownership struct {
	owner any
}

func (o *ownership) Owner() any { return o.owner }

func (o *ownership) SetOwner(owner any) { o.owner = owner }

// Product returns the product of dims, 1 for an empty slice.
func Product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// DimsString formats dims as "[a, b, c]" for error messages.
func DimsString(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Compatible reports whether b could be a renamed a: same kind and class
// and, for fixed-component arrays, identical component dims.
func Compatible(a, b Array) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Kind() != b.Kind() || a.Class() != b.Class() {
		return false
	}
	if a.Class() == ClassNeighborList {
		return true
	}
	return slices.Equal(a.ComponentDims(), b.ComponentDims())
}

// New creates an array of the given kind and class.
func New(kind Kind, class Class, name string, numTuples int, compDims []int, allocate bool) (Array, error) {
	if numTuples < 0 {
		return nil, fmt.Errorf("array %q: negative tuple count %d", name, numTuples)
	}
	switch class {
	case ClassDataArray:
		if len(compDims) == 0 {
			compDims = []int{1}
		}
		for _, d := range compDims {
			if d <= 0 {
				return nil, fmt.Errorf("array %q: invalid component dims %s", name, DimsString(compDims))
			}
		}
		return newDataArrayOfKind(kind, name, numTuples, compDims, allocate)
	case ClassNeighborList:
		return newListArrayOfKind(kind, name, numTuples, allocate)
	case ClassStatsArray:
		if kind != KindFloat64 {
			return nil, fmt.Errorf("array %q: stats arrays hold float64, got %s", name, kind)
		}
		return NewStatsArray(name, numTuples, allocate), nil
	default:
		return nil, fmt.Errorf("array %q: unsupported class %s", name, class)
	}
}

func newDataArrayOfKind(kind Kind, name string, numTuples int, compDims []int, allocate bool) (Array, error) {
	switch kind {
	case KindInt8:
		return NewDataArray[int8](name, numTuples, compDims, allocate), nil
	case KindUint8:
		return NewDataArray[uint8](name, numTuples, compDims, allocate), nil
	case KindInt16:
		return NewDataArray[int16](name, numTuples, compDims, allocate), nil
	case KindUint16:
		return NewDataArray[uint16](name, numTuples, compDims, allocate), nil
	case KindInt32:
		return NewDataArray[int32](name, numTuples, compDims, allocate), nil
	case KindUint32:
		return NewDataArray[uint32](name, numTuples, compDims, allocate), nil
	case KindInt64:
		return NewDataArray[int64](name, numTuples, compDims, allocate), nil
	case KindUint64:
		return NewDataArray[uint64](name, numTuples, compDims, allocate), nil
	case KindFloat32:
		return NewDataArray[float32](name, numTuples, compDims, allocate), nil
	case KindFloat64:
		return NewDataArray[float64](name, numTuples, compDims, allocate), nil
	case KindBool:
		return NewDataArray[bool](name, numTuples, compDims, allocate), nil
	default:
		return nil, fmt.Errorf("array %q: unsupported kind %s", name, kind)
	}
}

func newListArrayOfKind(kind Kind, name string, numTuples int, allocate bool) (Array, error) {
	switch kind {
	case KindInt8:
		return NewListArray[int8](name, numTuples, allocate), nil
	case KindUint8:
		return NewListArray[uint8](name, numTuples, allocate), nil
	case KindInt16:
		return NewListArray[int16](name, numTuples, allocate), nil
	case KindUint16:
		return NewListArray[uint16](name, numTuples, allocate), nil
	case KindInt32:
		return NewListArray[int32](name, numTuples, allocate), nil
	case KindUint32:
		return NewListArray[uint32](name, numTuples, allocate), nil
	case KindInt64:
		return NewListArray[int64](name, numTuples, allocate), nil
	case KindUint64:
		return NewListArray[uint64](name, numTuples, allocate), nil
	case KindFloat32:
		return NewListArray[float32](name, numTuples, allocate), nil
	case KindFloat64:
		return NewListArray[float64](name, numTuples, allocate), nil
	case KindBool:
		return NewListArray[bool](name, numTuples, allocate), nil
	default:
		return nil, fmt.Errorf("array %q: unsupported kind %s", name, kind)
	}
}

// As returns a as a *DataArray[T] if its kind and class match T.
func As[T Scalar](a Array) (*DataArray[T], bool) {
	d, ok := a.(*DataArray[T])
	return d, ok
}

// AsList returns a as a *ListArray[T] if its kind and class match T.
func AsList[T Scalar](a Array) (*ListArray[T], bool) {
	l, ok := a.(*ListArray[T])
	return l, ok
}
