// Package query provides the filter statement algebra of docq: row
// references, the statement AST, the merge rules that fold predicates on
// the same field, sampling directives and post-filter operations.
//
// ARCHITECTURE:
//
// Statements sit between application code and the backend processors:
//
//	[Row builders] → [Statement AST] → Adapt → [parser.Parser] → [SQLite query]
//	                                                           → [memstore query]
//
// Application code builds Binary statements from Row references (Eq, Lt,
// In, Between, Match, ...) and conjoins them with Conjoin or a Builder.
// Conjunction merges statements on the same field into the tightest
// equivalent statement, so a built tree holds at most one literal
// statement per field unless two statements are incomparable.
//
// SEALED INTERFACES:
//
// Statement, Operand and Operation are sealed interfaces using the marker
// method pattern. Only types in this package implement them:
//
//	switch s := stmt.(type) {
//	case *TableScan:
//	case *Empty:
//	case *Binary:
//	case *And:
//	}
//
// MERGE ALGEBRA:
//
// Every Kind declares the kinds it can absorb (ProvidesMergeFor). Merge
// dispatches to whichever operand provides a merge for the other. A merge
// returns the folded statement, Empty for a contradiction, or nil when the
// two statements must stay conjoined:
//
//	x == 5  AND x < 10     →  x == 5
//	x == 5  AND x == 6     →  empty
//	x >= 1  AND x < 5      →  x in [1, 5)
//	x in [1, 2, 3] AND x > 1  →  x in [2, 3]
//	x != 1  AND x != 2     →  (kept as two children)
//
// Row-to-row statements are complicated: they never merge and are never
// serviced by a secondary index. Match statements never merge.
//
// IMMUTABILITY:
//
// Conjoin, WithDirective and Adapt return new nodes; no exported function
// modifies its inputs. Trees can be shared across goroutines without
// locking.
package query
