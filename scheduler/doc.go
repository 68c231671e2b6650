// Package scheduler runs ingestion jobs on a fixed worker pool.
//
// A Scheduler accepts artifact IDs through Submit, queues them in a bounded
// channel, and hands them to an ants pool. At most one job exists per
// artifact at a time; submitting an artifact that already has a queued or
// running job returns the existing Job.
//
// Every attempt drives the artifact record through
//
//	STARTED -> PROGRESS(10..90) -> SUCCESS | FAILURE
//
// with each progress step persisted before the pipeline moves on. An attempt
// that exceeds its timeout is recorded as FAILURE and its worker is freed; any
// progress the abandoned call reports afterwards is discarded. Embedding and
// storage failures get one automatic retry after a fixed delay.
//
// Records left non-terminal by a previous process are picked up by Recover.
package scheduler
