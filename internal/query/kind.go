package query

import "fmt"

// Kind identifies the comparison performed by a binary statement.
type Kind int

const (
	KindEqual Kind = iota + 1
	KindNotEqual
	KindLess
	KindLessEqual
	KindGreater
	KindGreaterEqual
	KindIn
	KindBound
	KindMatch
)

var kindNames = map[Kind]string{
	KindEqual:        "eq",
	KindNotEqual:     "ne",
	KindLess:         "lt",
	KindLessEqual:    "le",
	KindGreater:      "gt",
	KindGreaterEqual: "ge",
	KindIn:           "in",
	KindBound:        "bound",
	KindMatch:        "match",
}

var kindSymbols = map[Kind]string{
	KindEqual:        "==",
	KindNotEqual:     "!=",
	KindLess:         "<",
	KindLessEqual:    "<=",
	KindGreater:      ">",
	KindGreaterEqual: ">=",
	KindIn:           "in",
	KindBound:        "in",
	KindMatch:        "=~",
}

// String returns the short operator name (eq, lt, in, ...).
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Symbol returns the infix symbol used when rendering statements.
func (k Kind) Symbol() string {
	if s, ok := kindSymbols[k]; ok {
		return s
	}
	return k.String()
}

// ParseKind resolves an operator name or symbol into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "eq", "==", "=":
		return KindEqual, nil
	case "ne", "!=":
		return KindNotEqual, nil
	case "lt", "<":
		return KindLess, nil
	case "le", "<=":
		return KindLessEqual, nil
	case "gt", ">":
		return KindGreater, nil
	case "ge", ">=":
		return KindGreaterEqual, nil
	case "in":
		return KindIn, nil
	case "bound", "between":
		return KindBound, nil
	case "match", "=~":
		return KindMatch, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

// Symmetric reports whether swapping two row operands preserves meaning.
func (k Kind) Symmetric() bool {
	return k == KindEqual || k == KindNotEqual
}

// Ordering reports whether k is one of <, <=, >, >=.
func (k Kind) Ordering() bool {
	switch k {
	case KindLess, KindLessEqual, KindGreater, KindGreaterEqual:
		return true
	}
	return false
}

// kindSet is a bitset over Kind values.
type kindSet uint32

func setOf(kinds ...Kind) kindSet {
	var s kindSet
	for _, k := range kinds {
		s |= 1 << uint(k)
	}
	return s
}

func (s kindSet) has(k Kind) bool {
	return s&(1<<uint(k)) != 0
}

var orderingKinds = setOf(KindLess, KindLessEqual, KindGreater, KindGreaterEqual)

// mergeProviders lists, per receiver kind, the kinds it can absorb.
var mergeProviders = map[Kind]kindSet{
	KindEqual:        orderingKinds | setOf(KindEqual, KindNotEqual, KindIn, KindBound),
	KindNotEqual:     orderingKinds | setOf(KindEqual, KindNotEqual, KindIn, KindBound),
	KindGreater:      setOf(KindGreater, KindGreaterEqual),
	KindGreaterEqual: setOf(KindGreater, KindGreaterEqual),
	KindLess:         orderingKinds,
	KindLessEqual:    orderingKinds,
	KindIn:           orderingKinds | setOf(KindIn, KindBound),
	KindBound:        orderingKinds | setOf(KindIn, KindBound),
	KindMatch:        0,
}

// ProvidesMergeFor reports whether a statement of kind k can absorb a
// statement of kind other.
func (k Kind) ProvidesMergeFor(other Kind) bool {
	return mergeProviders[k].has(other)
}
