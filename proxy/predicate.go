package proxy

import (
	"fmt"
	"slices"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/errs"
	"github.com/hupe1980/dcstore/store"
)

// Node is what a Predicate sees of a proxy node. Fields of levels below
// Level are zero; ancestor fields are filled in (an array node carries its
// matrix kind and container geometry).
type Node struct {
	Level         datapath.Level
	Path          datapath.Path
	Geometry      store.GeometryType
	MatrixKind    store.MatrixKind
	Scalar        array.Kind
	Class         array.Class
	ComponentDims []int
}

// Predicate decides the default selection of a scanned node.
type Predicate interface {
	Match(n Node) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(n Node) bool

func (f PredicateFunc) Match(n Node) bool { return f(n) }

// AllowAll selects every node.
var AllowAll Predicate = PredicateFunc(func(Node) bool { return true })

// Requirements is a declarative Predicate. Each list restricts the level it
// names and every level below it: GeometryTypes applies to containers and
// to the matrices and arrays inside them, MatrixKinds to matrices and their
// arrays. An empty list accepts anything.
type Requirements struct {
	GeometryTypes []store.GeometryType `yaml:"geometry_types"`
	MatrixKinds   []store.MatrixKind   `yaml:"matrix_kinds"`
	ScalarKinds   []array.Kind         `yaml:"scalar_kinds"`
	ComponentDims [][]int              `yaml:"component_dims"`
}

// Match implements Predicate.
func (r Requirements) Match(n Node) bool {
	if n.Level == datapath.LevelNone {
		return false
	}
	if len(r.GeometryTypes) > 0 && !slices.Contains(r.GeometryTypes, n.Geometry) {
		return false
	}
	if n.Level == datapath.LevelContainer {
		return true
	}
	if len(r.MatrixKinds) > 0 && !slices.Contains(r.MatrixKinds, n.MatrixKind) {
		return false
	}
	if n.Level == datapath.LevelMatrix {
		return true
	}
	if len(r.ScalarKinds) > 0 && !slices.Contains(r.ScalarKinds, n.Scalar) {
		return false
	}
	return len(r.ComponentDims) == 0 || slices.ContainsFunc(r.ComponentDims, func(d []int) bool {
		return slices.Equal(d, n.ComponentDims)
	})
}

// exprPredicate evaluates a compiled expr-lang program per node.
type exprPredicate struct {
	source  string
	program *exprvm.Program
}

// CompileExpr compiles a boolean expression into a Predicate. The
// expression sees the variables level ("container", "matrix" or "array"),
// name, path, geometry, kind, scalar, class and components. geometry and
// kind describe the node's container and matrix, so a matrix-kind test also
// covers the arrays below it:
//
//	level == "container" || kind in ["Cell", "CellFeature"]
//
// A node whose evaluation fails is treated as not matching.
func CompileExpr(source string) (Predicate, error) {
	if source == "" {
		return nil, errs.InvalidArgument("CompileExpr", fmt.Errorf("expression must not be empty"))
	}
	program, err := exprlang.Compile(source,
		exprlang.Env(exprEnv(Node{})),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, errs.InvalidArgument("CompileExpr", err)
	}
	return &exprPredicate{source: source, program: program}, nil
}

func (p *exprPredicate) Match(n Node) bool {
	out, err := exprlang.Run(p.program, exprEnv(n))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func (p *exprPredicate) String() string { return p.source }

func exprEnv(n Node) map[string]any {
	components := make([]any, len(n.ComponentDims))
	for i, d := range n.ComponentDims {
		components[i] = d
	}
	env := map[string]any{
		"level":      n.Level.String(),
		"name":       "",
		"path":       n.Path.String(),
		"geometry":   n.Geometry.String(),
		"kind":       n.MatrixKind.String(),
		"scalar":     n.Scalar.String(),
		"class":      n.Class.String(),
		"components": components,
	}
	switch n.Level {
	case datapath.LevelContainer:
		env["name"] = n.Path.Container
	case datapath.LevelMatrix:
		env["name"] = n.Path.Matrix
	case datapath.LevelArray:
		env["name"] = n.Path.Array
	}
	return env
}

func geometryType(g *store.Geometry) store.GeometryType {
	if g == nil {
		return store.GeometryUnknown
	}
	return g.Type
}

// NodeAt builds the predicate view of a node found by Walk.
func NodeAt(p datapath.Path, c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) Node {
	n := Node{Level: p.Level(), Path: p, Geometry: geometryType(c.Geometry)}
	if m != nil {
		n.MatrixKind = m.Kind
	}
	if a != nil {
		n.Scalar = a.Kind
		n.Class = a.Class
		n.ComponentDims = a.ComponentDims
	}
	return n
}

// SetFlags sets every node's flag to pred's verdict. A nil pred selects all.
func (t *Tree) SetFlags(pred Predicate) {
	if pred == nil {
		pred = AllowAll
	}
	t.Walk(func(p datapath.Path, c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) bool {
		ok := pred.Match(NodeAt(p, c, m, a))
		switch {
		case a != nil:
			a.Selected = ok
		case m != nil:
			m.Selected = ok
		default:
			c.Selected = ok
		}
		return true
	})
}
