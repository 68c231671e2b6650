// Package ingestion runs one processing attempt for an uploaded artifact.
//
// The Pipeline type drives an artifact through its stages:
//   - Extracting text and structural metadata by MIME type
//   - Normalizing, chunking and embedding the text
//   - Replacing the artifact's chunks in the vector index as one batch
//
// Each stage boundary is reported to a ProgressSink before the next stage
// begins. Scheduling, retries and timeouts belong to the caller.
package ingestion
