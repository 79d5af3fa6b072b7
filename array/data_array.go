package array

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// ErrNotAllocated is returned when encoding or decoding an array that has no buffer.
var ErrNotAllocated = errors.New("array is not allocated")

// DataArray is a fixed-component array of T.
//
// Values are stored in a single slice in tuple-major order: the components
// of tuple i occupy values[i*NumComponents() : (i+1)*NumComponents()].
type DataArray[T Scalar] struct {
	ownership

	name      string
	numTuples int
	compDims  []int
	values    []T
}

// NewDataArray creates a DataArray. When allocate is false the array only
// describes its shape; call Allocate before touching values.
func NewDataArray[T Scalar](name string, numTuples int, compDims []int, allocate bool) *DataArray[T] {
	if len(compDims) == 0 {
		compDims = []int{1}
	}
	a := &DataArray[T]{
		name:      name,
		numTuples: numTuples,
		compDims:  slices.Clone(compDims),
	}
	if allocate {
		a.Allocate()
	}
	return a
}

// NewFilledDataArray creates an allocated DataArray with every element set to fill.
func NewFilledDataArray[T Scalar](name string, numTuples int, compDims []int, fill T) *DataArray[T] {
	a := NewDataArray[T](name, numTuples, compDims, true)
	a.Fill(fill)
	return a
}

// FromValues wraps values (tuple-major) in a DataArray. len(values) must be
// a multiple of the component count.
func FromValues[T Scalar](name string, compDims []int, values []T) (*DataArray[T], error) {
	if len(compDims) == 0 {
		compDims = []int{1}
	}
	comps := Product(compDims)
	if comps <= 0 || len(values)%comps != 0 {
		return nil, fmt.Errorf("array %q: %d values do not divide into tuples of %d components", name, len(values), comps)
	}
	return &DataArray[T]{
		name:      name,
		numTuples: len(values) / comps,
		compDims:  slices.Clone(compDims),
		values:    values,
	}, nil
}

func (a *DataArray[T]) Name() string         { return a.name }
func (a *DataArray[T]) SetName(name string)  { a.name = name }
func (a *DataArray[T]) Kind() Kind           { return KindOf[T]() }
func (a *DataArray[T]) Class() Class         { return ClassDataArray }
func (a *DataArray[T]) NumTuples() int       { return a.numTuples }
func (a *DataArray[T]) ComponentDims() []int { return slices.Clone(a.compDims) }
func (a *DataArray[T]) NumComponents() int   { return Product(a.compDims) }
func (a *DataArray[T]) NumElements() int     { return a.numTuples * a.NumComponents() }
func (a *DataArray[T]) IsAllocated() bool    { return a.values != nil }

func (a *DataArray[T]) SizeInBytes() int64 {
	return int64(len(a.values)) * int64(a.Kind().Size())
}

func (a *DataArray[T]) Allocate() {
	if a.values != nil {
		return
	}
	a.values = make([]T, a.NumElements())
}

func (a *DataArray[T]) Resize(numTuples int) {
	if numTuples < 0 {
		numTuples = 0
	}
	if a.values != nil {
		next := make([]T, numTuples*a.NumComponents())
		copy(next, a.values)
		a.values = next
	}
	a.numTuples = numTuples
}

func (a *DataArray[T]) DeepCopy(name string, allocate bool) Array {
	c := &DataArray[T]{
		name:      name,
		numTuples: a.numTuples,
		compDims:  slices.Clone(a.compDims),
	}
	if allocate {
		if a.values != nil {
			c.values = slices.Clone(a.values)
		} else {
			c.Allocate()
		}
	}
	return c
}

// Values returns the backing slice (nil when unallocated).
func (a *DataArray[T]) Values() []T { return a.values }

// Value returns element i in linear order.
func (a *DataArray[T]) Value(i int) T { return a.values[i] }

// SetValue sets element i in linear order.
func (a *DataArray[T]) SetValue(i int, v T) { a.values[i] = v }

// Tuple returns a view of the components of tuple t.
func (a *DataArray[T]) Tuple(t int) []T {
	c := a.NumComponents()
	return a.values[t*c : (t+1)*c : (t+1)*c]
}

// SetTuple copies v into the components of tuple t.
func (a *DataArray[T]) SetTuple(t int, v []T) {
	copy(a.Tuple(t), v)
}

// Fill sets every element to v, allocating if needed.
func (a *DataArray[T]) Fill(v T) {
	a.Allocate()
	for i := range a.values {
		a.values[i] = v
	}
}

// MarshalBinary encodes the values little endian, one byte per bool.
func (a *DataArray[T]) MarshalBinary() ([]byte, error) {
	if a.values == nil {
		return nil, fmt.Errorf("array %q: %w", a.name, ErrNotAllocated)
	}
	return binary.Append(make([]byte, 0, a.SizeInBytes()), binary.LittleEndian, a.values)
}

// UnmarshalBinary decodes values written by MarshalBinary into the array's
// buffer, allocating it if needed. The payload must match the current shape.
func (a *DataArray[T]) UnmarshalBinary(data []byte) error {
	want := a.NumElements() * a.Kind().Size()
	if len(data) != want {
		return fmt.Errorf("array %q: payload is %d bytes, shape needs %d", a.name, len(data), want)
	}
	a.Allocate()
	if len(a.values) == 0 {
		return nil
	}
	_, err := binary.Decode(data, binary.LittleEndian, a.values)
	return err
}
