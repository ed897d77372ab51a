package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/storage"
)

// LedgerRepository implements storage.LedgerRepository for BadgerDB.
type LedgerRepository struct {
	backend *Backend
}

var _ storage.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(backend *Backend) *LedgerRepository {
	return &LedgerRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned and closed by the caller.
func (r *LedgerRepository) Close() error {
	return nil
}

// ListProcessedIDs returns every id with a processed marker.
func (r *LedgerRepository) ListProcessedIDs(ctx context.Context) (map[core.ID]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	ids := make(map[core.ID]struct{})
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Keys carry the id, so values are never read
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(ledgerPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, err := parseLedgerKey(iter.Item().Key())
			if err != nil {
				return err
			}
			ids[id] = struct{}{}
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return ids, nil
}

// IsProcessed reports whether a marker exists for id.
func (r *LedgerRepository) IsProcessed(ctx context.Context, id core.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	found := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeLedgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	if err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return found, nil
}

// GetMarker returns the processed marker for id.
// Returns storage.ErrNotFound if the item was never marked.
func (r *LedgerRepository) GetMarker(ctx context.Context, id core.ID) (*core.ProcessedMarker, error) {
	var marker *core.ProcessedMarker
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeLedgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			marker, unmarshalErr = storage.UnmarshalProcessedMarker(val)
			return unmarshalErr
		})
	}, false)
	return marker, err
}

// MarkProcessed writes a marker for id unless one already exists.
// The presence check and the write share one transaction; if a concurrent
// writer commits the same key first, badger reports a conflict and the
// marker is re-checked instead of surfacing an error.
func (r *LedgerRepository) MarkProcessed(ctx context.Context, id core.ID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStoreWrite, err)
	}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLedgerKey(id)
		_, err := tx.Get(key)
		if err == nil {
			// Already marked
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		marker := &core.ProcessedMarker{
			ItemID:    id,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Set(key, storage.MarshalProcessedMarker(marker)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if errors.Is(err, badger.ErrConflict) {
		ok, checkErr := r.IsProcessed(ctx, id)
		if checkErr == nil && ok {
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("%w: item %d: %w", storage.ErrStoreWrite, id, err)
	}
	return nil
}
