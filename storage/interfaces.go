package storage

import (
	"context"

	"github.com/poiesic/hnindex/core"
)

// LedgerRepository is the durable set of item ids that completed ingestion.
// Implementations must be thread-safe and support concurrent access.
type LedgerRepository interface {
	// ListProcessedIDs returns every id ever marked processed.
	// Fails with ErrStoreUnavailable if the store cannot be reached; callers
	// cannot determine novelty without it and must treat this as fatal.
	ListProcessedIDs(ctx context.Context) (map[core.ID]struct{}, error)

	// MarkProcessed durably records that id is fully ingested.
	// Insert-if-absent: marking an id twice is a no-op, not an error.
	// Failures wrap ErrStoreWrite and leave no partial state visible.
	MarkProcessed(ctx context.Context, id core.ID) error

	// IsProcessed reports whether a marker exists for id.
	IsProcessed(ctx context.Context, id core.ID) (bool, error)

	// Close releases the underlying store.
	Close() error
}

// RunRepository persists the summary of the most recent pipeline run.
type RunRepository interface {
	// SaveRun replaces the stored last-run record.
	SaveRun(ctx context.Context, run *core.RunRecord) error

	// LoadLastRun returns the last saved run.
	// Returns nil, nil if no run has been recorded yet.
	LoadLastRun(ctx context.Context) (*core.RunRecord, error)
}
