package ingestion

import "context"

// Progress checkpoints reported by the pipeline.
const (
	ProgressStarted   = 10
	ProgressExtract   = 20
	ProgressExtracted = 50
	ProgressEmbedding = 70
	ProgressFinalize  = 90
)

// Stage messages reported alongside the checkpoints. The extraction stage
// message comes from the extractor.
const (
	StageStarted   = "Processing started"
	StageExtracted = "Text extraction complete"
	StageEmbedding = "Generating vector embeddings"
	StageFinalize  = "Finalizing processing"
)

// ProgressSink receives stage boundaries. Report must return only after the
// progress is durably recorded; a non-nil error aborts the attempt.
type ProgressSink interface {
	Report(ctx context.Context, percent int, stage string) error
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, percent int, stage string) error

// Report calls f.
func (f ProgressFunc) Report(ctx context.Context, percent int, stage string) error {
	return f(ctx, percent, stage)
}

type discardSink struct{}

func (discardSink) Report(context.Context, int, string) error { return nil }
