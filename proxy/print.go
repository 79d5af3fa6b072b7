package proxy

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
)

// Fprint writes an indented listing of t, one node per line, with the
// selection state in brackets.
func Fprint(w io.Writer, t *Tree) error {
	var err error
	t.Walk(func(p datapath.Path, c *ContainerProxy, m *MatrixProxy, a *ArrayProxy) bool {
		if err != nil {
			return false
		}
		mark := "[ ]"
		if selectedAt(c, m, a) {
			mark = "[x]"
		}
		indent := strings.Repeat("  ", int(p.Level())-1)
		var line string
		switch {
		case a != nil:
			line = fmt.Sprintf("%s%s %s  %s %s comps=%s", indent, mark, a.Name, a.Class, a.Kind, array.DimsString(a.ComponentDims))
		case m != nil:
			line = fmt.Sprintf("%s%s %s  %s tuples=%s", indent, mark, m.Name, m.Kind, array.DimsString(m.TupleDims))
		default:
			line = fmt.Sprintf("%s%s %s  %s", indent, mark, c.Name, geometryType(c.Geometry))
		}
		_, err = fmt.Fprintln(w, line)
		return true
	})
	return err
}
