// Package querysql translates docq statements into SQLite queries over
// JSON documents.
//
// Every model is stored in its own table with an INTEGER id and a TEXT doc
// column holding canonical JSON. Fields are read with json_extract and
// type-guarded with json_type so comparisons never cross kinds. Secondary
// indexes are expression indexes over json_extract, one per definition
// of the model's index policy (see IndexDDL).
//
// # Critical Patterns
//
//   - All values are parameterized, never interpolated.
//   - Every SELECT carries an ORDER BY ending in "id ASC".
//   - Sampling directives fold in declaration order; a directive that
//     cannot follow the current stage wraps it in a sub-select.
package querysql
