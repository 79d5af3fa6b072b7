package store

import (
	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
)

// CreateArray creates, inserts and returns a DataArray[T] with m's tuple count.
func CreateArray[T array.Scalar](m *Matrix, name string, compDims []int, allocate bool) (*array.DataArray[T], error) {
	if err := datapath.ValidateName("CreateArray", name); err != nil {
		return nil, err
	}
	if m.Contains(name) {
		return nil, errs.AlreadyExists("CreateArray", m.arrayPath(name))
	}
	for _, d := range compDims {
		if d <= 0 {
			return nil, errs.ShapeMismatch("CreateArray", m.arrayPath(name), "positive component dims", array.DimsString(compDims))
		}
	}
	a := array.NewDataArray[T](name, m.NumTuples(), compDims, allocate)
	m.attach(a)
	return a, nil
}

// CreateFilledArray is CreateArray with every element set to fill.
func CreateFilledArray[T array.Scalar](m *Matrix, name string, compDims []int, fill T) (*array.DataArray[T], error) {
	a, err := CreateArray[T](m, name, compDims, true)
	if err != nil {
		return nil, err
	}
	a.Fill(fill)
	return a, nil
}

// CreateListArray creates, inserts and returns a ListArray[T].
func CreateListArray[T array.Scalar](m *Matrix, name string, allocate bool) (*array.ListArray[T], error) {
	if err := datapath.ValidateName("CreateArray", name); err != nil {
		return nil, err
	}
	if m.Contains(name) {
		return nil, errs.AlreadyExists("CreateArray", m.arrayPath(name))
	}
	l := array.NewListArray[T](name, m.NumTuples(), allocate)
	m.attach(l)
	return l, nil
}

// CreateStatsArray creates, inserts and returns a StatsArray.
func CreateStatsArray(m *Matrix, name string, allocate bool) (*array.StatsArray, error) {
	if err := datapath.ValidateName("CreateArray", name); err != nil {
		return nil, err
	}
	if m.Contains(name) {
		return nil, errs.AlreadyExists("CreateArray", m.arrayPath(name))
	}
	s := array.NewStatsArray(name, m.NumTuples(), allocate)
	m.attach(s)
	return s, nil
}

// GetTypedOrFail fetches a DataArray[T] from m and checks, in order:
// existence (NotFound), element kind and class (TypeMismatch), tuple count
// and component dims (ShapeMismatch). A nil compDims skips the dims check.
func GetTypedOrFail[T array.Scalar](m *Matrix, name string, compDims []int) (*array.DataArray[T], error) {
	a, err := m.Lookup(name, array.KindOf[T](), array.ClassDataArray, compDims)
	if err != nil {
		return nil, err
	}
	d, ok := array.As[T](a)
	if !ok {
		return nil, errs.TypeMismatch("GetArray", m.arrayPath(name), array.KindOf[T]().String(), a.Kind().String())
	}
	return d, nil
}

// GetListOrFail fetches a ListArray[T] from m.
func GetListOrFail[T array.Scalar](m *Matrix, name string) (*array.ListArray[T], error) {
	a, err := m.Lookup(name, array.KindOf[T](), array.ClassNeighborList, nil)
	if err != nil {
		return nil, err
	}
	l, ok := array.AsList[T](a)
	if !ok {
		return nil, errs.TypeMismatch("GetArray", m.arrayPath(name), array.KindOf[T]().String(), a.Kind().String())
	}
	return l, nil
}

// TypedArray resolves p in s and fetches it as a DataArray[T].
func TypedArray[T array.Scalar](s *Store, p datapath.Path, compDims []int) (*array.DataArray[T], error) {
	m, err := s.MatrixAt(p)
	if err != nil {
		return nil, err
	}
	if p.Array == "" {
		return nil, errs.InvalidName("GetArray", p.String(), "array name is empty")
	}
	return GetTypedOrFail[T](m, p.Array, compDims)
}
