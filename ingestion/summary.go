package ingestion

import (
	"time"

	"github.com/poiesic/hnindex/core"
)

// Summary reports the outcome of one run.
type Summary struct {
	RunID      string
	Candidates int // Ids listed by the feed
	New        int // Candidates not in the ledger
	Attempted  int // New items whose details resolved, at most the max items setting
	Succeeded  int // Items upserted and marked processed
	Vectors    int // Vectors upserted by items that reached StageUpserted
	Skipped    int // New items whose details were absent or unavailable
	Failures   []ItemResult

	// Success is false only when the run could not proceed safely:
	// ledger unavailable, index unavailable or cancellation.
	Success   bool
	Aborted   bool // Feed listing failed or was empty
	Cancelled bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Record returns the persisted form of the summary.
func (s *Summary) Record() *core.RunRecord {
	return &core.RunRecord{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Attempted:  s.Attempted,
		Succeeded:  s.Succeeded,
		Vectors:    s.Vectors,
		Success:    s.Success,
	}
}

func (s *Summary) add(res ItemResult) {
	if res.Reached >= StageUpserted {
		s.Vectors += res.Vectors
	}
	if res.Succeeded() {
		s.Succeeded++
		return
	}
	s.Failures = append(s.Failures, res)
}
