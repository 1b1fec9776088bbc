package query

import (
	"fmt"

	"github.com/roach88/docq/internal/ir"
)

// Interval is the payload of a bound statement: a range between two
// literal values with independently open or closed endpoints.
//
// An Interval is a plain value; copying it (or calling Clone) yields an
// independent interval. Merges never modify an interval they did not
// create.
type Interval struct {
	Left        ir.IRValue
	Right       ir.IRValue
	LeftClosed  bool
	RightClosed bool
}

func (Interval) operandNode() {}

// NewInterval creates an interval between left and right.
func NewInterval(left, right ir.IRValue, leftClosed, rightClosed bool) Interval {
	return Interval{Left: left, Right: right, LeftClosed: leftClosed, RightClosed: rightClosed}
}

// Valid reports whether the interval can contain any value: the left
// bound is below the right bound, or both are equal and both ends are
// closed. Bounds that cannot be ordered against each other are invalid.
func (i Interval) Valid() bool {
	c, ok := ir.Compare(i.Left, i.Right)
	if !ok {
		return false
	}
	return c < 0 || (c == 0 && i.LeftClosed && i.RightClosed)
}

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v ir.IRValue) bool {
	lc, ok := ir.Compare(v, i.Left)
	if !ok || lc < 0 || (lc == 0 && !i.LeftClosed) {
		return false
	}
	rc, ok := ir.Compare(v, i.Right)
	if !ok || rc > 0 || (rc == 0 && !i.RightClosed) {
		return false
	}
	return true
}

// ContainsInterval reports whether every value of other is also in i.
// Containment is a partial order: reflexive, antisymmetric and transitive.
func (i Interval) ContainsInterval(other Interval) bool {
	lc, ok := ir.Compare(other.Left, i.Left)
	if !ok || lc < 0 || (lc == 0 && other.LeftClosed && !i.LeftClosed) {
		return false
	}
	rc, ok := ir.Compare(other.Right, i.Right)
	if !ok || rc > 0 || (rc == 0 && other.RightClosed && !i.RightClosed) {
		return false
	}
	return true
}

// Equal reports structural equality.
func (i Interval) Equal(other Interval) bool {
	return i.LeftClosed == other.LeftClosed && i.RightClosed == other.RightClosed &&
		ir.Equal(i.Left, other.Left) && ir.Equal(i.Right, other.Right)
}

// Clone returns an independent copy of the interval.
func (i Interval) Clone() Interval {
	return i
}

// String renders the interval in mathematical notation, e.g. [1, 5).
func (i Interval) String() string {
	open, closeB := "(", ")"
	if i.LeftClosed {
		open = "["
	}
	if i.RightClosed {
		closeB = "]"
	}
	return fmt.Sprintf("%s%s, %s%s", open, ir.ValueKey(i.Left), ir.ValueKey(i.Right), closeB)
}
