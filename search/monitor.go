package search

import (
	"github.com/poiesic/hnindex/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(dimension int)
	AfterIndexQuery(hits []core.SearchHit)
	VerbatimHit(hit core.SearchHit)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterQueryEmbedding(_ int)          {}
func (n *noopMonitor) AfterIndexQuery(_ []core.SearchHit) {}
func (n *noopMonitor) VerbatimHit(_ core.SearchHit)       {}
func (n *noopMonitor) Finish(_ []*Result)                 {}
