// Package ir provides the literal value types used as operands in docq
// filter statements.
//
// This package contains value definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps literal values the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed: only the types in this package implement it
//   - Numbers compare across IRInt and IRFloat by numeric value
//   - Ordering is defined only between values of the same comparable family
//     (numbers, strings, booleans); everything else is unordered
//   - Canonical encoding (MarshalCanonical) is the only serialization used
//     for value identity (set membership, statement fingerprints)
package ir
