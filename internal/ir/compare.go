package ir

import (
	"cmp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Compare orders two values of the same comparable family.
//
// Numbers (IRInt, IRFloat) compare numerically, strings compare by their
// NFC form, booleans order false < true. The second return value is false
// when the values are not mutually ordered (different families, null,
// arrays, objects); callers must treat such pairs as incomparable rather
// than unequal.
func Compare(a, b IRValue) (int, bool) {
	switch x := a.(type) {
	case IRInt:
		switch y := b.(type) {
		case IRInt:
			return cmp.Compare(x, y), true
		case IRFloat:
			return cmp.Compare(float64(x), float64(y)), true
		}
	case IRFloat:
		switch y := b.(type) {
		case IRInt:
			return cmp.Compare(float64(x), float64(y)), true
		case IRFloat:
			return cmp.Compare(x, y), true
		}
	case IRString:
		if y, ok := b.(IRString); ok {
			return strings.Compare(norm.NFC.String(string(x)), norm.NFC.String(string(y))), true
		}
	case IRBool:
		if y, ok := b.(IRBool); ok {
			switch {
			case x == y:
				return 0, true
			case !bool(x):
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

// Equal reports deep equality. Numbers are equal across IRInt and IRFloat
// when numerically equal; values of different families are never equal.
func Equal(a, b IRValue) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	switch x := a.(type) {
	case nil, IRNull:
		switch b.(type) {
		case nil, IRNull:
			return true
		}
		return false
	case IRArray:
		y, ok := b.(IRArray)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case IRObject:
		y, ok := b.(IRObject)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, exists := y[k]
			if !exists || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Less reports a < b; false when the values are incomparable.
func Less(a, b IRValue) bool {
	c, ok := Compare(a, b)
	return ok && c < 0
}
