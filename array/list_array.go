package array

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// ListArray holds a variable-length list of T per tuple, such as the
// neighbor ids of each feature.
type ListArray[T Scalar] struct {
	ownership

	name      string
	numTuples int
	lists     [][]T
}

// NewListArray creates a ListArray whose lists start empty.
func NewListArray[T Scalar](name string, numTuples int, allocate bool) *ListArray[T] {
	l := &ListArray[T]{name: name, numTuples: numTuples}
	if allocate {
		l.Allocate()
	}
	return l
}

func (l *ListArray[T]) Name() string         { return l.name }
func (l *ListArray[T]) SetName(name string)  { l.name = name }
func (l *ListArray[T]) Kind() Kind           { return KindOf[T]() }
func (l *ListArray[T]) Class() Class         { return ClassNeighborList }
func (l *ListArray[T]) NumTuples() int       { return l.numTuples }
func (l *ListArray[T]) ComponentDims() []int { return []int{1} }
func (l *ListArray[T]) NumComponents() int   { return 1 }
func (l *ListArray[T]) IsAllocated() bool    { return l.lists != nil }

// NumElements returns the total number of values across all lists.
func (l *ListArray[T]) NumElements() int {
	n := 0
	for _, list := range l.lists {
		n += len(list)
	}
	return n
}

func (l *ListArray[T]) SizeInBytes() int64 {
	return int64(l.NumElements())*int64(l.Kind().Size()) + int64(len(l.lists))*4
}

func (l *ListArray[T]) Allocate() {
	if l.lists != nil {
		return
	}
	l.lists = make([][]T, l.numTuples)
}

func (l *ListArray[T]) Resize(numTuples int) {
	if numTuples < 0 {
		numTuples = 0
	}
	if l.lists != nil {
		next := make([][]T, numTuples)
		copy(next, l.lists)
		l.lists = next
	}
	l.numTuples = numTuples
}

func (l *ListArray[T]) DeepCopy(name string, allocate bool) Array {
	c := &ListArray[T]{name: name, numTuples: l.numTuples}
	if !allocate {
		return c
	}
	c.Allocate()
	for i, list := range l.lists {
		c.lists[i] = slices.Clone(list)
	}
	return c
}

// List returns the list of tuple t.
func (l *ListArray[T]) List(t int) []T { return l.lists[t] }

// SetList replaces the list of tuple t with a copy of v.
func (l *ListArray[T]) SetList(t int, v []T) {
	l.Allocate()
	l.lists[t] = slices.Clone(v)
}

// Append adds v to the list of tuple t.
func (l *ListArray[T]) Append(t int, v ...T) {
	l.Allocate()
	l.lists[t] = append(l.lists[t], v...)
}

// MarshalBinary encodes the per-tuple lengths (uint32) followed by all
// values concatenated, little endian.
func (l *ListArray[T]) MarshalBinary() ([]byte, error) {
	if l.lists == nil {
		return nil, fmt.Errorf("array %q: %w", l.name, ErrNotAllocated)
	}
	buf := make([]byte, 0, l.SizeInBytes())
	for _, list := range l.lists {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(list)))
	}
	var err error
	for _, list := range l.lists {
		if len(list) == 0 {
			continue
		}
		if buf, err = binary.Append(buf, binary.LittleEndian, list); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// UnmarshalBinary decodes a payload written by MarshalBinary. The tuple
// count must already match.
func (l *ListArray[T]) UnmarshalBinary(data []byte) error {
	header := l.numTuples * 4
	if len(data) < header {
		return fmt.Errorf("array %q: payload is %d bytes, list header needs %d", l.name, len(data), header)
	}
	lengths := make([]int, l.numTuples)
	total := 0
	for i := range lengths {
		lengths[i] = int(binary.LittleEndian.Uint32(data[i*4:]))
		total += lengths[i]
	}
	size := l.Kind().Size()
	if len(data) != header+total*size {
		return fmt.Errorf("array %q: payload is %d bytes, lists need %d", l.name, len(data), header+total*size)
	}
	lists := make([][]T, l.numTuples)
	off := header
	for i, n := range lengths {
		if n == 0 {
			continue
		}
		lists[i] = make([]T, n)
		if _, err := binary.Decode(data[off:off+n*size], binary.LittleEndian, lists[i]); err != nil {
			return err
		}
		off += n * size
	}
	l.lists = lists
	return nil
}
