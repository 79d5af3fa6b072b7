package array

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/dcstore/codec"
)

// StatsRecord is one aggregate statistics record: named float64 series
// such as "Feature Size Distribution" or "ODF".
type StatsRecord struct {
	Phase  string               `cbor:"phase"`
	Series map[string][]float64 `cbor:"series"`
}

func (r StatsRecord) clone() StatsRecord {
	c := StatsRecord{Phase: r.Phase}
	if r.Series != nil {
		c.Series = make(map[string][]float64, len(r.Series))
		for k, v := range r.Series {
			c.Series[k] = slices.Clone(v)
		}
	}
	return c
}

// StatsArray holds one StatsRecord per tuple, typically one per ensemble phase.
type StatsArray struct {
	ownership

	name      string
	numTuples int
	records   []StatsRecord
}

// NewStatsArray creates a StatsArray with empty records.
func NewStatsArray(name string, numTuples int, allocate bool) *StatsArray {
	s := &StatsArray{name: name, numTuples: numTuples}
	if allocate {
		s.Allocate()
	}
	return s
}

func (s *StatsArray) Name() string         { return s.name }
func (s *StatsArray) SetName(name string)  { s.name = name }
func (s *StatsArray) Kind() Kind           { return KindFloat64 }
func (s *StatsArray) Class() Class         { return ClassStatsArray }
func (s *StatsArray) NumTuples() int       { return s.numTuples }
func (s *StatsArray) ComponentDims() []int { return []int{1} }
func (s *StatsArray) NumComponents() int   { return 1 }
func (s *StatsArray) IsAllocated() bool    { return s.records != nil }

// NumElements returns the number of float64 values across all records.
func (s *StatsArray) NumElements() int {
	n := 0
	for _, r := range s.records {
		for _, v := range r.Series {
			n += len(v)
		}
	}
	return n
}

func (s *StatsArray) SizeInBytes() int64 { return int64(s.NumElements()) * 8 }

func (s *StatsArray) Allocate() {
	if s.records != nil {
		return
	}
	s.records = make([]StatsRecord, s.numTuples)
}

func (s *StatsArray) Resize(numTuples int) {
	if numTuples < 0 {
		numTuples = 0
	}
	if s.records != nil {
		next := make([]StatsRecord, numTuples)
		copy(next, s.records)
		s.records = next
	}
	s.numTuples = numTuples
}

func (s *StatsArray) DeepCopy(name string, allocate bool) Array {
	c := &StatsArray{name: name, numTuples: s.numTuples}
	if !allocate {
		return c
	}
	c.Allocate()
	for i, r := range s.records {
		c.records[i] = r.clone()
	}
	return c
}

// Record returns the record of tuple t.
func (s *StatsArray) Record(t int) StatsRecord { return s.records[t] }

// SetRecord stores a copy of r at tuple t.
func (s *StatsArray) SetRecord(t int, r StatsRecord) {
	s.Allocate()
	s.records[t] = r.clone()
}

// SeriesNames returns the sorted union of series names across records.
func (s *StatsArray) SeriesNames() []string {
	names := map[string]struct{}{}
	for _, r := range s.records {
		for k := range r.Series {
			names[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names))
}

// MarshalBinary encodes the records as deterministic CBOR.
func (s *StatsArray) MarshalBinary() ([]byte, error) {
	if s.records == nil {
		return nil, fmt.Errorf("array %q: %w", s.name, ErrNotAllocated)
	}
	return codec.CBOR{}.Marshal(s.records)
}

// UnmarshalBinary decodes records written by MarshalBinary. The record
// count must match the tuple count.
func (s *StatsArray) UnmarshalBinary(data []byte) error {
	var records []StatsRecord
	if err := (codec.CBOR{}).Unmarshal(data, &records); err != nil {
		return fmt.Errorf("array %q: %w", s.name, err)
	}
	if len(records) != s.numTuples {
		return fmt.Errorf("array %q: payload has %d records, shape needs %d", s.name, len(records), s.numTuples)
	}
	if records == nil {
		records = []StatsRecord{}
	}
	s.records = records
	return nil
}
