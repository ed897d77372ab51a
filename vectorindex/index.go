package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/hnindex/core"
)

var (
	// ErrIndexUnavailable indicates the index could not be reached or created.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexWrite indicates an upsert was rejected or failed part-way.
	ErrIndexWrite = errors.New("vector index write failed")

	// ErrIndexNotFound indicates the named index does not exist.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrInvalidSpec indicates an index spec with a missing name, a
	// non-positive dimension, or an unknown metric.
	ErrInvalidSpec = errors.New("invalid index spec")
)

// Metric is the similarity function an index ranks by.
type Metric string

const (
	Cosine    Metric = "cosine"
	Dot       Metric = "dot"
	Euclidean Metric = "euclidean"
)

// ParseMetric maps a configuration string onto a Metric.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case Cosine, Dot, Euclidean:
		return m, nil
	case "":
		return Cosine, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidSpec, s)
	}
}

// Spec describes a namespaced index.
type Spec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Validate checks that the spec can be used to create an index.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidSpec, s.Dimension)
	}
	if _, err := ParseMetric(string(s.Metric)); err != nil {
		return err
	}
	return nil
}

// Index stores embedded vectors under a namespace and answers nearest
// neighbour queries over them.
type Index interface {
	// EnsureIndex creates the index if it does not exist. Safe to call on
	// every run.
	EnsureIndex(ctx context.Context, spec Spec) error

	// Upsert writes records into the named index, overwriting any record
	// with the same vector id.
	Upsert(ctx context.Context, name string, records []core.EmbeddedVector) error

	// Query returns up to topK records closest to vector, best first.
	Query(ctx context.Context, name string, vector []float32, topK int) ([]core.SearchHit, error)

	// Close releases the index connection.
	Close() error
}

// DefaultBatchSize is the sub-batch size used by UpsertBatches when none is given.
const DefaultBatchSize = 100

// UpsertBatches writes records in sub-batches of batchSize and returns the
// number of records written. It stops at the first failing sub-batch; earlier
// sub-batches may already be durable, which is harmless because a retry
// overwrites them by vector id.
func UpsertBatches(ctx context.Context, idx Index, name string, records []core.EmbeddedVector, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	written := 0
	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", ErrIndexWrite, err)
		}
		end := min(start+batchSize, len(records))
		if err := idx.Upsert(ctx, name, records[start:end]); err != nil {
			if errors.Is(err, ErrIndexWrite) {
				return written, err
			}
			return written, fmt.Errorf("%w: batch %d-%d: %w", ErrIndexWrite, start, end, err)
		}
		written += end - start
	}
	return written, nil
}
