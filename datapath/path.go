// Package datapath implements the three-level hierarchical address used for
// every lookup in a dcstore: container, attribute matrix, array.
//
// A Path is an immutable value. Suffix components may be empty to address a
// coarser target: "C1" names a container, "C1/M1" a matrix inside it and
// "C1/M1/A1" an array. Paths serialize with Separator between components.
package datapath

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/dcstore/errs"
)

// Separator joins path components in the serialized form.
const Separator = "/"

// Level is the depth a Path addresses.
type Level int

const (
	LevelNone Level = iota
	LevelContainer
	LevelMatrix
	LevelArray
)

func (l Level) String() string {
	switch l {
	case LevelContainer:
		return "container"
	case LevelMatrix:
		return "matrix"
	case LevelArray:
		return "array"
	default:
		return "none"
	}
}

// Path is a (container, matrix, array) name triple.
type Path struct {
	Container string
	Matrix    string
	Array     string
}

// New returns the path for the given components.
func New(container, matrix, array string) Path {
	return Path{Container: container, Matrix: matrix, Array: array}
}

// ContainerPath returns a container-level path.
func ContainerPath(container string) Path { return Path{Container: container} }

// MatrixPath returns a matrix-level path.
func MatrixPath(container, matrix string) Path {
	return Path{Container: container, Matrix: matrix}
}

// Parse parses the serialized form produced by String.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, Separator)
	if len(parts) > 3 {
		return Path{}, errs.InvalidName("Parse", s, "more than three components")
	}
	if slices.Contains(parts, "") {
		return Path{}, errs.InvalidName("Parse", s, "empty component")
	}
	var p Path
	p.Container = parts[0]
	if len(parts) > 1 {
		p.Matrix = parts[1]
	}
	if len(parts) > 2 {
		p.Array = parts[2]
	}
	if !p.IsValid() {
		return Path{}, errs.InvalidName("Parse", s, "empty intermediate component")
	}
	return p, nil
}

// MustParse is Parse for literals in tests and tables. It panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidateName checks a single component name. Empty names and names
// containing Separator are rejected with distinct reasons.
func ValidateName(op, name string) error {
	if name == "" {
		return errs.InvalidName(op, name, "name is empty")
	}
	if strings.Contains(name, Separator) {
		return errs.InvalidName(op, name, fmt.Sprintf("name contains %q", Separator))
	}
	return nil
}

// String serializes the path, omitting empty trailing components.
func (p Path) String() string {
	switch {
	case p.Array != "":
		return p.Container + Separator + p.Matrix + Separator + p.Array
	case p.Matrix != "":
		return p.Container + Separator + p.Matrix
	default:
		return p.Container
	}
}

// IsEmpty reports whether all components are empty.
func (p Path) IsEmpty() bool {
	return p.Container == "" && p.Matrix == "" && p.Array == ""
}

// IsValid reports whether every component is separator-free and each
// non-empty component has non-empty ancestors.
func (p Path) IsValid() bool {
	for _, c := range [...]string{p.Container, p.Matrix, p.Array} {
		if strings.Contains(c, Separator) {
			return false
		}
	}
	if p.Array != "" && p.Matrix == "" {
		return false
	}
	if p.Matrix != "" && p.Container == "" {
		return false
	}
	return true
}

// Level returns the depth addressed by p. Invalid paths report the depth of
// their deepest non-empty component.
func (p Path) Level() Level {
	switch {
	case p.Array != "":
		return LevelArray
	case p.Matrix != "":
		return LevelMatrix
	case p.Container != "":
		return LevelContainer
	default:
		return LevelNone
	}
}

// Components returns the three components in order.
func (p Path) Components() [3]string {
	return [3]string{p.Container, p.Matrix, p.Array}
}

// Truncate returns p cut down to the given level.
func (p Path) Truncate(l Level) Path {
	switch l {
	case LevelNone:
		return Path{}
	case LevelContainer:
		return Path{Container: p.Container}
	case LevelMatrix:
		return Path{Container: p.Container, Matrix: p.Matrix}
	default:
		return p
	}
}

// WithMatrix returns a copy of p addressing matrix m in p's container.
func (p Path) WithMatrix(m string) Path { return Path{Container: p.Container, Matrix: m} }

// WithArray returns a copy of p addressing array a in p's matrix.
func (p Path) WithArray(a string) Path {
	return Path{Container: p.Container, Matrix: p.Matrix, Array: a}
}

// HasPrefix reports whether prefix addresses p or one of p's ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	l := prefix.Level()
	if l == LevelNone || l > p.Level() {
		return false
	}
	return p.Truncate(l) == prefix
}

// PossibleRename reports whether p and other differ in exactly one slot and
// that slot is non-empty on both sides. Slots empty on both sides count as
// identical.
func (p Path) PossibleRename(other Path) bool {
	a, b := p.Components(), other.Components()
	diff := -1
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if diff >= 0 {
			return false
		}
		diff = i
	}
	if diff < 0 {
		return false
	}
	return a[diff] != "" && b[diff] != ""
}

// Rename applies pair to p. The slot that changed between pair.Old and
// pair.New is replaced in every path under pair.Old truncated to that slot,
// so renaming a container moves all of its matrices and arrays with it. The
// second result reports whether p changed.
func (p Path) Rename(pair RenamePair) (Path, bool) {
	level := pair.Changed()
	if level == LevelNone || !p.HasPrefix(pair.Old.Truncate(level)) {
		return p, false
	}
	out := p
	switch level {
	case LevelContainer:
		out.Container = pair.New.Container
	case LevelMatrix:
		out.Matrix = pair.New.Matrix
	case LevelArray:
		out.Array = pair.New.Array
	}
	return out, out != p
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Compare orders paths by container, then matrix, then array.
func Compare(a, b Path) int {
	if c := cmp.Compare(a.Container, b.Container); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Matrix, b.Matrix); c != 0 {
		return c
	}
	return cmp.Compare(a.Array, b.Array)
}

// Sorted returns a sorted copy of paths with duplicates removed.
func Sorted(paths []Path) []Path {
	out := slices.Clone(paths)
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}

// RenamePair records that the node at Old is now found at New.
type RenamePair struct {
	Old Path `yaml:"old" cbor:"old"`
	New Path `yaml:"new" cbor:"new"`
}

func (r RenamePair) String() string {
	return r.Old.String() + " -> " + r.New.String()
}

// Changed returns the level whose component differs between Old and New,
// or LevelNone if the pair is not a single-slot rename.
func (r RenamePair) Changed() Level {
	if !r.Old.PossibleRename(r.New) {
		return LevelNone
	}
	switch {
	case r.Old.Container != r.New.Container:
		return LevelContainer
	case r.Old.Matrix != r.New.Matrix:
		return LevelMatrix
	default:
		return LevelArray
	}
}

// RenameAll applies pairs in order to p.
func RenameAll(p Path, pairs []RenamePair) Path {
	for _, pair := range pairs {
		p, _ = p.Rename(pair)
	}
	return p
}
