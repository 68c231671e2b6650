// Package chunk normalizes extracted text, splits it into overlapping
// windows and embeds each window.
//
// Chunking is pure: the same text and configuration always yield the same
// chunk boundaries, so a sequence can be restarted by simply iterating it
// again.
package chunk
