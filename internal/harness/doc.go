// Package harness runs query scenarios against every backend.
//
// A scenario names a model, a filter, sampling directives and an optional
// operation. The harness builds the statement, plans it for the SQLite
// store and the in-memory store, runs it on both over the same seed
// documents and checks the expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: adults_by_age
//	description: "What this scenario validates"
//	model: User
//	where:
//	  - { field: age, op: ge, value: 30 }
//	  - { field: name, op: in, value: [ann, cid] }
//	sampling:
//	  - order_by: [{ field: age, desc: true }]
//	  - limit: 2
//	operation:
//	  aggregate: count
//	documents:
//	  - { name: ann, age: 31 }
//	expect:
//	  index: age
//	  residual: [name]
//	  statement: "age >= 30 | limit(2)"
//	  count: 1
//	  results:
//	    - { name: ann }
//
// # Expectations
//
//   - error: the build fails with the given error code
//   - index, residual, statement: checked against the plan
//   - count: number of result rows
//   - results: rows matched in order, only the named fields are compared
//
// Unless the scenario samples, both backends must return identical rows.
//
// # Golden Plans
//
// BuildPlan renders a PlanSnapshot with fixed build ids and a fixed
// sampling seed. RunWithGolden compares it against
// testdata/golden/{name}.golden using goldie.
package harness
