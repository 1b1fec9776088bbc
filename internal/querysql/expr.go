package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/query"
)

var plainKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// jsonPath renders path segments as a quoted SQLite JSON path literal
// ('$.profile.city', '$.tags[0]'). Decimal segments address array
// elements.
func jsonPath(segments []string) (string, error) {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range segments {
		switch {
		case isIndex(s):
			b.WriteString("[" + s + "]")
		case plainKey.MatchString(s):
			b.WriteString("." + s)
		case strings.ContainsAny(s, `"'`):
			return "", query.NewBuildError(query.ErrCodeTypeMismatch, "field name cannot be addressed in SQL", "field", s)
		default:
			b.WriteString(`."` + s + `"`)
		}
	}
	return "'" + b.String() + "'", nil
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// field is the pair of SQL expressions reading one row: its value and its
// JSON type (NULL when the path is missing).
type field struct {
	value string
	typ   string
}

func fieldOf(r query.Row) (field, error) {
	p, err := jsonPath(r.Path())
	if err != nil {
		return field{}, err
	}
	return field{
		value: "json_extract(doc, " + p + ")",
		typ:   "json_type(doc, " + p + ")",
	}, nil
}

// typeClass returns the json_type guard that keeps a comparison against v
// within v's kind. ok is false for kinds without a SQL ordering.
func typeClass(typ string, v ir.IRValue) (string, bool) {
	switch v.(type) {
	case ir.IRString:
		return typ + " = 'text'", true
	case ir.IRInt, ir.IRFloat:
		return typ + " IN ('integer', 'real')", true
	case ir.IRArray, ir.IRObject:
		return typ + " IN ('array', 'object')", true
	default:
		return "", false
	}
}

// param converts a literal to a bind parameter. Arrays and objects bind
// as canonical JSON text, which is how json_extract renders stored
// documents written canonically.
func param(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRArray, ir.IRObject:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

// condition compiles one statement into a WHERE fragment.
// CRITICAL: values are never interpolated.
func condition(b *query.Binary) (string, []any, error) {
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	if b.Complicated() {
		return rowCondition(b)
	}
	f, err := fieldOf(b.Left)
	if err != nil {
		return "", nil, err
	}

	switch {
	case b.Kind == query.KindEqual || b.Kind == query.KindNotEqual:
		return equality(f, b.Kind == query.KindNotEqual, b.Value())
	case b.Kind.Ordering():
		guard, ok := typeClass(f.typ, b.Value())
		if !ok {
			return "", nil, mismatch(b, "value has no ordering")
		}
		p, err := param(b.Value())
		if err != nil {
			return "", nil, mismatch(b, err.Error())
		}
		return fmt.Sprintf("(%s AND %s %s ?)", guard, f.value, b.Kind.Symbol()), []any{p}, nil
	case b.Kind == query.KindIn:
		return membership(f, b.Set())
	case b.Kind == query.KindBound:
		iv, _ := b.Interval()
		return bound(b, f, iv)
	case b.Kind == query.KindMatch:
		return fmt.Sprintf("(%s = 'text' AND %s REGEXP ?)", f.typ, f.value), []any{b.Pattern()}, nil
	default:
		return "", nil, query.NewBuildError(query.ErrCodeUnknownNode, "cannot compile statement", "kind", b.Kind.String())
	}
}

func equality(f field, negate bool, v ir.IRValue) (string, []any, error) {
	var cond string
	var params []any
	switch val := v.(type) {
	case ir.IRNull:
		cond = f.typ + " = 'null'"
	case ir.IRBool:
		cond = fmt.Sprintf("%s = '%t'", f.typ, bool(val))
	default:
		guard, ok := typeClass(f.typ, v)
		if !ok {
			return "", nil, fmt.Errorf("unsupported value type for SQL equality: %T", v)
		}
		p, err := param(v)
		if err != nil {
			return "", nil, err
		}
		cond = fmt.Sprintf("(%s AND %s = ?)", guard, f.value)
		params = []any{p}
	}
	if negate {
		// Missing fields never match, not even a negation.
		return fmt.Sprintf("(%s IS NOT NULL AND NOT %s)", f.typ, cond), params, nil
	}
	return cond, params, nil
}

// membership splits the candidate set by kind so each group compares
// within its own type class.
func membership(f field, set ir.IRArray) (string, []any, error) {
	if len(set) == 0 {
		return "0", nil, nil
	}
	var (
		parts   []string
		params  []any
		numbers []any
		texts   []any
		nested  []any
	)
	for _, v := range set {
		switch val := v.(type) {
		case ir.IRNull:
			parts = append(parts, f.typ+" = 'null'")
		case ir.IRBool:
			parts = append(parts, fmt.Sprintf("%s = '%t'", f.typ, bool(val)))
		case ir.IRInt, ir.IRFloat:
			p, _ := param(v)
			numbers = append(numbers, p)
		case ir.IRString:
			texts = append(texts, string(val))
		default:
			p, err := param(v)
			if err != nil {
				return "", nil, err
			}
			nested = append(nested, p)
		}
	}
	group := func(guard string, values []any) {
		if len(values) == 0 {
			return
		}
		parts = append(parts, fmt.Sprintf("(%s AND %s IN (%s))", guard, f.value, placeholders(len(values))))
		params = append(params, values...)
	}
	group(f.typ+" IN ('integer', 'real')", numbers)
	group(f.typ+" = 'text'", texts)
	group(f.typ+" IN ('array', 'object')", nested)

	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", params, nil
}

func bound(b *query.Binary, f field, iv query.Interval) (string, []any, error) {
	guard, ok := typeClass(f.typ, iv.Left)
	if !ok {
		return "", nil, mismatch(b, "interval has no ordering")
	}
	lo, err := param(iv.Left)
	if err != nil {
		return "", nil, mismatch(b, err.Error())
	}
	hi, err := param(iv.Right)
	if err != nil {
		return "", nil, mismatch(b, err.Error())
	}
	loOp, hiOp := ">", "<"
	if iv.LeftClosed {
		loOp = ">="
	}
	if iv.RightClosed {
		hiOp = "<="
	}
	return fmt.Sprintf("(%s AND %s %s ? AND %s %s ?)", guard, f.value, loOp, f.value, hiOp), []any{lo, hi}, nil
}

// rowCondition compiles a row-to-row comparison. Both paths must exist.
func rowCondition(b *query.Binary) (string, []any, error) {
	l, err := fieldOf(b.Left)
	if err != nil {
		return "", nil, err
	}
	rr, _ := b.RightRow()
	r, err := fieldOf(rr)
	if err != nil {
		return "", nil, err
	}
	present := fmt.Sprintf("%s IS NOT NULL AND %s IS NOT NULL", l.typ, r.typ)

	switch b.Kind {
	case query.KindEqual:
		return fmt.Sprintf("(%s AND %s IS %s)", present, l.value, r.value), nil, nil
	case query.KindNotEqual:
		return fmt.Sprintf("(%s AND %s IS NOT %s)", present, l.value, r.value), nil, nil
	case query.KindLess, query.KindLessEqual, query.KindGreater, query.KindGreaterEqual:
		sameClass := fmt.Sprintf("((%s = 'text' AND %s = 'text') OR (%s IN ('integer', 'real') AND %s IN ('integer', 'real')))",
			l.typ, r.typ, l.typ, r.typ)
		return fmt.Sprintf("(%s AND %s %s %s)", sameClass, l.value, b.Kind.Symbol(), r.value), nil, nil
	case query.KindIn:
		p, _ := jsonPath(rr.Path())
		return fmt.Sprintf("(%s IS NOT NULL AND %s = 'array' AND EXISTS (SELECT 1 FROM json_each(doc, %s) WHERE json_each.value IS %s))",
			l.typ, r.typ, p, l.value), nil, nil
	default:
		return "", nil, query.NewBuildError(query.ErrCodeEvaluationUnsupported,
			"statement kind cannot compare two rows", "kind", b.Kind.String(), "row", b.Left.Name())
	}
}

// orderKey renders one order_by key.
func orderKey(o query.Order) (string, error) {
	f, err := fieldOf(o.Row)
	if err != nil {
		return "", err
	}
	if o.Desc {
		return f.value + " DESC", nil
	}
	return f.value + " ASC", nil
}

// sargable reports whether the index on b's field can service b, which
// INDEXED BY requires of the leading index column.
func sargable(b *query.Binary) bool {
	switch b.Kind {
	case query.KindEqual, query.KindLess, query.KindLessEqual, query.KindGreater, query.KindGreaterEqual:
		_, ok := typeClass("", b.Value())
		return ok
	case b.Kind == query.KindBound:
		iv, _ := b.Interval()
		_, ok := typeClass("", iv.Left)
		return ok
	case query.KindIn:
		set := b.Set()
		if len(set) == 0 {
			return false
		}
		first := ir.Kind(set[0])
		for _, v := range set {
			if _, ok := typeClass("", v); !ok || ir.Kind(v) != first {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func mismatch(b *query.Binary, msg string) error {
	return query.NewBuildError(query.ErrCodeTypeMismatch, msg, "kind", b.Kind.String(), "row", b.Left.Name())
}
