// Package parser is the filter query driver of docq. It turns a statement
// tree into a backend-native query through a backend's FilterProcessor.
//
// ARCHITECTURE:
//
//	query.Statement
//	     │ Adapt (QueryContext.Adapter)
//	     ▼
//	BuildTableQuery ─► SecondaryIndexQuery ─► ProcessSimple ─► ProcessComplicated ─► ProcessSampling
//	                   (index.Policy)                                                  (declaration order)
//
// The parser is generic over the query type Q so each backend keeps its
// own representation (a SQL stage for SQLite, a plan struct for the
// in-memory store). Backends declare Capabilities; the parser never calls
// a hook or index method a backend has not declared, and fails with
// UNSUPPORTED_CAPABILITY when a statement needs one.
//
// SAMPLE EMULATION:
//
// Backends without native sampling get sample directives emulated: the
// result is limited to sample*5 documents (unless a limit was already
// applied) and a post-processing hook draws the sample from what was
// fetched.
package parser
