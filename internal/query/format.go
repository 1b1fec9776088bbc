package query

import (
	"sort"
	"strings"

	"github.com/roach88/docq/internal/ir"
)

// String implements Statement.
func (t *TableScan) String() string {
	return "scan(" + t.Table + ")"
}

// String implements Statement.
func (*Empty) String() string {
	return "empty"
}

// String implements Statement, e.g. `age >= 18`, `age in [18, 65)`,
// `name =~ "^a"` or `a == b | limit(10)`.
func (b *Binary) String() string {
	s := b.expr()
	if len(b.Sampling) > 0 {
		s += " | " + b.Sampling.String()
	}
	return s
}

func (b *Binary) expr() string {
	if b.err != nil {
		return b.Left.Name() + " <invalid " + b.Kind.String() + ">"
	}
	var right string
	switch op := b.Right.(type) {
	case Row:
		right = op.Name()
	case Interval:
		right = op.String()
	case Literal:
		right = ir.ValueKey(op.Value)
	}
	return b.Left.Name() + " " + b.Kind.Symbol() + " " + right
}

// String implements Statement. Children render in sorted order so equal
// conjunctions render identically.
func (a *And) String() string {
	var s string
	if len(a.Children) == 0 {
		s = "all(" + a.ModelName() + ")"
	} else {
		parts := make([]string, len(a.Children))
		for i, c := range a.Children {
			parts[i] = c.expr()
		}
		sort.Strings(parts)
		s = strings.Join(parts, " AND ")
	}
	if len(a.Sampling) > 0 {
		s += " | " + a.Sampling.String()
	}
	return s
}
