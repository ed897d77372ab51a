package badger

import (
	"bytes"
	"context"
	"testing"

	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, metric vectorindex.Metric) *VectorIndex {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	idx := NewVectorIndex(backend)
	require.NoError(t, idx.EnsureIndex(context.Background(), vectorindex.Spec{Name: "hn", Dimension: 3, Metric: metric}))
	return idx
}

func vec(itemID core.ID, chunk int, values ...float32) core.EmbeddedVector {
	return core.EmbeddedVector{
		ID:     core.VectorID(itemID, chunk),
		Values: values,
		Metadata: core.VectorMetadata{
			ItemID:     itemID,
			Title:      "title",
			URL:        "https://example.com",
			ChunkIndex: chunk,
			Text:       "text",
		},
	}
}

func TestVectorIndex_EnsureIndexIdempotent(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Cosine)
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx, vectorindex.Spec{Name: "hn", Dimension: 3, Metric: vectorindex.Cosine}))

	err := idx.EnsureIndex(ctx, vectorindex.Spec{Name: "hn", Dimension: 4, Metric: vectorindex.Cosine})
	assert.ErrorIs(t, err, vectorindex.ErrInvalidSpec)

	err = idx.EnsureIndex(ctx, vectorindex.Spec{Name: "", Dimension: 4})
	assert.ErrorIs(t, err, vectorindex.ErrInvalidSpec)
}

func TestVectorIndex_NamespacesAreIsolated(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Cosine)
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx, vectorindex.Spec{Name: "hn:old", Dimension: 3, Metric: vectorindex.Cosine}))
	require.NoError(t, idx.Upsert(ctx, "hn:old", []core.EmbeddedVector{vec(1, 0, 1, 0, 0)}))

	count, err := idx.Count(ctx, "hn")
	require.NoError(t, err)
	assert.Zero(t, count)

	hits, err := idx.Query(ctx, "hn", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err = idx.Count(ctx, "hn:old")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, idx.Upsert(ctx, "hn", []core.EmbeddedVector{vec(2, 0, 0, 1, 0)}))
	hits, err = idx.Query(ctx, "hn:old", []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1-0", hits[0].VectorID)
}

func TestVectorKeyPrefixes(t *testing.T) {
	assert.False(t, bytes.HasPrefix(makeVectorKey("hn:old", "1-0"), makeVectorKeyPrefix("hn")))
	assert.True(t, bytes.HasPrefix(makeVectorKey("hn", "1-0"), makeVectorKeyPrefix("hn")))
}

func TestVectorIndex_UpsertOverwritesByID(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Cosine)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "hn", []core.EmbeddedVector{vec(200, 0, 1, 0, 0), vec(200, 1, 0, 1, 0)}))
	require.NoError(t, idx.Upsert(ctx, "hn", []core.EmbeddedVector{vec(200, 0, 1, 0, 0), vec(200, 1, 0, 1, 0)}))

	count, err := idx.Count(ctx, "hn")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestVectorIndex_UpsertRejectsWholeBatch(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Cosine)
	ctx := context.Background()

	err := idx.Upsert(ctx, "hn", []core.EmbeddedVector{vec(1, 0, 1, 0, 0), vec(1, 1, 1, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorindex.ErrIndexWrite)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	count, err := idx.Count(ctx, "hn")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVectorIndex_UpsertUnknownIndex(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Cosine)

	err := idx.Upsert(context.Background(), "missing", []core.EmbeddedVector{vec(1, 0, 1, 0, 0)})
	assert.ErrorIs(t, err, vectorindex.ErrIndexWrite)
	assert.ErrorIs(t, err, vectorindex.ErrIndexNotFound)
}

func TestVectorIndex_QueryCosine(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Cosine)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "hn", []core.EmbeddedVector{
		vec(1, 0, 1, 0, 0),
		vec(2, 0, 0, 1, 0),
		vec(3, 0, 0.9, 0.1, 0),
	}))

	hits, err := idx.Query(ctx, "hn", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1-0", hits[0].VectorID)
	assert.Equal(t, "3-0", hits[1].VectorID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, core.ID(1), hits[0].Metadata.ItemID)
}

func TestVectorIndex_QueryEuclideanAscending(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Euclidean)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "hn", []core.EmbeddedVector{
		vec(1, 0, 5, 5, 5),
		vec(2, 0, 1, 1, 1),
	}))

	hits, err := idx.Query(ctx, "hn", []float32{1, 1, 2}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "2-0", hits[0].VectorID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestVectorIndex_QueryDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, vectorindex.Dot)

	_, err := idx.Query(context.Background(), "hn", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestSimilarityFunctions(t *testing.T) {
	assert.Equal(t, float32(32), dotProduct([]float32{1, 2, 3}, []float32{4, 5, 6}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 5.0, euclideanDistance([]float32{0, 0}, []float32{3, 4}), 1e-6)
}
