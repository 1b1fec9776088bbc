// Package store is the SQLite executor of docq.
//
// Each model lives in a table of canonical JSON documents created by
// Ensure, together with one expression index per definition of the
// model's index policy. The docq_models catalog records which models a
// database holds and the index list they were created with.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - regexp(pattern, value): registered on every connection for REGEXP
//
// Store implements parser.Executor for querysql stages.
package store
