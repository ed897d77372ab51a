package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/storage"
	"github.com/poiesic/hnindex/vectorindex"
)

// VectorIndex implements vectorindex.Index on top of BadgerDB. Queries are a
// brute-force scan of the index's records, which is fine for the few
// thousand chunks a single machine accumulates.
type VectorIndex struct {
	backend *Backend
}

var _ vectorindex.Index = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned and closed by the caller.
func (v *VectorIndex) Close() error {
	return nil
}

// EnsureIndex stores spec unless an index with that name already exists.
// An existing index with a different dimension is an error.
func (v *VectorIndex) EnsureIndex(ctx context.Context, spec vectorindex.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	metric, _ := vectorindex.ParseMetric(string(spec.Metric))
	spec.Metric = metric

	err := v.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readSpec(tx, spec.Name)
		if err != nil && !errors.Is(err, vectorindex.ErrIndexNotFound) {
			return err
		}
		if existing != nil {
			if existing.Dimension != spec.Dimension {
				return fmt.Errorf("%w: index %q exists with dimension %d, want %d",
					vectorindex.ErrInvalidSpec, spec.Name, existing.Dimension, spec.Dimension)
			}
			return nil
		}
		if err := tx.Set(makeIndexSpecKey(spec.Name), marshalSpec(spec)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil && !errors.Is(err, vectorindex.ErrInvalidSpec) {
		return fmt.Errorf("%w: %w", vectorindex.ErrIndexUnavailable, err)
	}
	return err
}

// Upsert writes records in a single transaction, so a batch lands entirely
// or not at all.
func (v *VectorIndex) Upsert(ctx context.Context, name string, records []core.EmbeddedVector) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", vectorindex.ErrIndexWrite, err)
	}
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		spec, err := readSpec(tx, name)
		if err != nil {
			return err
		}
		for i := range records {
			if err := core.ValidateVector(&records[i], spec.Dimension); err != nil {
				return err
			}
			key := makeVectorKey(name, records[i].ID)
			if err := tx.Set(key, storage.MarshalEmbeddedVector(&records[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: %w", vectorindex.ErrIndexWrite, err)
	}
	return nil
}

// Query ranks every record of the index against vector. Cosine and dot
// scores sort descending; euclidean scores are distances and sort ascending.
func (v *VectorIndex) Query(ctx context.Context, name string, vector []float32, topK int) ([]core.SearchHit, error) {
	var hits []core.SearchHit
	var metric vectorindex.Metric

	err := v.backend.WithTx(func(tx *badger.Txn) error {
		spec, err := readSpec(tx, name)
		if err != nil {
			return err
		}
		if len(vector) != spec.Dimension {
			return fmt.Errorf("%w: query has %d values, want %d", core.ErrDimensionMismatch, len(vector), spec.Dimension)
		}
		metric = spec.Metric

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorKeyPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.EmbeddedVector
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbeddedVector(val)
				return err
			})
			if err != nil {
				return err
			}
			hits = append(hits, core.SearchHit{
				VectorID: record.ID,
				Score:    score(metric, vector, record.Values),
				Metadata: record.Metadata,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b core.SearchHit) int {
		if metric == vectorindex.Euclidean {
			return cmp.Compare(a.Score, b.Score)
		}
		return cmp.Compare(b.Score, a.Score)
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of records stored in the index.
func (v *VectorIndex) Count(ctx context.Context, name string) (int, error) {
	count := 0
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeVectorKeyPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

func readSpec(tx *badger.Txn, name string) (*vectorindex.Spec, error) {
	item, err := tx.Get(makeIndexSpecKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", vectorindex.ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var spec vectorindex.Spec
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		spec, unmarshalErr = unmarshalSpec(name, val)
		return unmarshalErr
	})
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// Spec layout: dimension varint, metric string. The name is the key.
func marshalSpec(spec vectorindex.Spec) []byte {
	buf := make([]byte, varint.Int.Size(spec.Dimension)+ord.String.Size(string(spec.Metric)))
	n := varint.Int.Marshal(spec.Dimension, buf)
	ord.String.Marshal(string(spec.Metric), buf[n:])
	return buf
}

func unmarshalSpec(name string, data []byte) (vectorindex.Spec, error) {
	dim, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return vectorindex.Spec{}, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	metric, _, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return vectorindex.Spec{}, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return vectorindex.Spec{Name: name, Dimension: dim, Metric: vectorindex.Metric(metric)}, nil
}

func score(metric vectorindex.Metric, a, b []float32) float32 {
	switch metric {
	case vectorindex.Dot:
		return dotProduct(a, b)
	case vectorindex.Euclidean:
		return euclideanDistance(a, b)
	default:
		return cosineSimilarity(a, b)
	}
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func cosineSimilarity(a, b []float32) float32 {
	normA := math.Sqrt(float64(dotProduct(a, a)))
	normB := math.Sqrt(float64(dotProduct(b, b)))
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(float64(dotProduct(a, b)) / (normA * normB))
}

func euclideanDistance(a, b []float32) float32 {
	var sum float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
