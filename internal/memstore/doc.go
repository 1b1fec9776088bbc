// Package memstore is an in-memory document backend for docq.
//
// Documents are keyed by uint32 ids per model. Every index the model's
// policy declares is kept as posting lists: a map from the canonical key
// of a document's index tuple to a roaring bitmap of the documents
// sharing it. An index query evaluates the index statements once per
// distinct tuple and ORs the matching bitmaps; the remaining statements
// run through the local evaluator.
//
// The backend has no native sampling, so the parser emulates sample
// directives with a limit and a post-processing hook. Aggregations run as
// post-processing hooks; updates run as a pre-processing write.
package memstore
