package search

import "github.com/poiesic/docvault/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(owner, query string)
	AfterEmbedding(dimension int)
	AfterIndexSearch(candidates []*core.IndexHit)
	OwnerFiltered(hit *core.IndexHit)
	RecordMissing(hit *core.IndexHit)
	// Unpublished is called for hits whose artifact has not finished
	// ingestion successfully.
	Unpublished(hit *core.IndexHit)
	Finish(results []*core.SearchHit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                   {}
func (n *noopMonitor) AfterEmbedding(_ int)                {}
func (n *noopMonitor) AfterIndexSearch(_ []*core.IndexHit) {}
func (n *noopMonitor) OwnerFiltered(_ *core.IndexHit)      {}
func (n *noopMonitor) RecordMissing(_ *core.IndexHit)      {}
func (n *noopMonitor) Unpublished(_ *core.IndexHit)        {}
func (n *noopMonitor) Finish(_ []*core.SearchHit)          {}
