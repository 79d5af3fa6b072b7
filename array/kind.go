package array

import (
	"fmt"
	"strings"
)

// Kind is the scalar element type of an array.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindInt8:    "int8",
	KindUint8:   "uint8",
	KindInt16:   "int16",
	KindUint16:  "uint16",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindInt64:   "int64",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindBool:    "bool",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses the name produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s && Kind(k) != KindUnknown {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown scalar kind %q", s)
}

// Size returns the encoded size of one element in bytes.
func (k Kind) Size() int {
	switch k {
	case KindInt8, KindUint8, KindBool:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Scalar is the closed set of element types an array may hold.
type Scalar interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64 | bool
}

// KindOf returns the Kind for the type parameter T.
func KindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return KindInt8
	case uint8:
		return KindUint8
	case int16:
		return KindInt16
	case uint16:
		return KindUint16
	case int32:
		return KindInt32
	case uint32:
		return KindUint32
	case int64:
		return KindInt64
	case uint64:
		return KindUint64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case bool:
		return KindBool
	default:
		return KindUnknown
	}
}

// Class distinguishes the array variants, and is written to persisted files
// as the dataset class tag.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassDataArray is a fixed-component array.
	ClassDataArray
	// ClassNeighborList holds a variable-length list per tuple.
	ClassNeighborList
	// ClassStatsArray holds one aggregate statistics record per tuple.
	ClassStatsArray
)

var classNames = [...]string{
	ClassUnknown:      "Unknown",
	ClassDataArray:    "DataArray",
	ClassNeighborList: "NeighborList",
	ClassStatsArray:   "StatsDataArray",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ParseClass parses the name produced by Class.String.
func ParseClass(s string) (Class, error) {
	for c, name := range classNames {
		if name == s && Class(c) != ClassUnknown {
			return Class(c), nil
		}
	}
	return ClassUnknown, fmt.Errorf("unknown array class %q", s)
}

// Version is the current encoding version of the class payload.
func (c Class) Version() uint32 {
	switch c {
	case ClassDataArray, ClassNeighborList:
		return 2
	case ClassStatsArray:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
