// Package reembed recomputes the embedding of every indexed chunk, typically
// after switching embedding models.
//
// Chunks are scanned from the vector index in batches, embedded again with
// retry and exponential backoff, normalized to unit length and written back
// in place. Chunk text, ownership and ordering are untouched.
//
// While a run is in progress the index holds a mix of old and new vectors,
// so searches should be paused until it completes.
package reembed
