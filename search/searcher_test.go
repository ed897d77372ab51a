package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/hnindex/ai/mock"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/storage/badger"
	"github.com/poiesic/hnindex/vectorindex"
)

const testIndex = "hn-test"

func setupIndex(t *testing.T) *badger.VectorIndex {
	_, _, index, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return index
}

func seed(t *testing.T, index vectorindex.Index, records ...core.EmbeddedVector) {
	ctx := context.Background()
	require.NoError(t, index.EnsureIndex(ctx, vectorindex.Spec{Name: testIndex, Dimension: 3, Metric: vectorindex.Cosine}))
	require.NoError(t, index.Upsert(ctx, testIndex, records))
}

func record(item core.ID, chunk int, title, text string, values ...float32) core.EmbeddedVector {
	return core.EmbeddedVector{
		ID:     core.VectorID(item, chunk),
		Values: values,
		Metadata: core.VectorMetadata{
			ItemID:     item,
			Title:      title,
			URL:        "https://example.com/" + item.String(),
			ChunkIndex: chunk,
			Text:       text,
		},
	}
}

// queryEmbedder embeds every query as vector.
func queryEmbedder(vector ...float32) *mock.MockEmbedder {
	e := mock.NewMockEmbedderWithDimension(len(vector))
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}
	return e
}

func TestNewSearcher(t *testing.T) {
	index := setupIndex(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(index, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
		assert.Equal(t, DefaultIndexName, searcher.spec.Name)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(index, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, slog.Default(), searcher.logger)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := NewSearcher(index, embedder, WithIndex(testIndex, "manhattan"))
		assert.ErrorIs(t, err, vectorindex.ErrInvalidSpec)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(index, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	index := setupIndex(t)
	seed(t, index,
		record(1, 0, "AI", "artificial intelligence research", 0.9, 0.1, 0.0),
		record(2, 0, "ML", "machine learning at scale", 0.85, 0.15, 0.0),
		record(3, 0, "Food", "cooking recipes", 0.1, 0.1, 0.8),
	)
	searcher, err := NewSearcher(index, queryEmbedder(1, 0, 0), WithIndex(testIndex, vectorindex.Cosine))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "neural networks", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "1-0", results[0].Hit.VectorID)
	assert.Equal(t, "2-0", results[1].Hit.VectorID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Equal(t, "AI", results[0].Hit.Metadata.Title)
	assert.Equal(t, "https://example.com/1", results[0].Hit.Metadata.URL)
	assert.False(t, results[0].Verbatim)
}

func TestSearch_DefaultTopK(t *testing.T) {
	index := setupIndex(t)
	for i := 1; i <= 5; i++ {
		seed(t, index, record(core.ID(i), 0, "t", "text", 1, float32(i)*0.1, 0))
	}
	searcher, err := NewSearcher(index, queryEmbedder(1, 0, 0), WithIndex(testIndex, vectorindex.Cosine))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestSearch_VerbatimBoost(t *testing.T) {
	index := setupIndex(t)
	seed(t, index,
		record(1, 0, "Close", "something unrelated", 1, 0, 0),
		record(2, 0, "Far", "The Rust compiler got faster.", 0.8, 0.6, 0),
	)
	searcher, err := NewSearcher(index, queryEmbedder(1, 0, 0), WithIndex(testIndex, vectorindex.Cosine))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "rust compiler", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "2-0", results[0].Hit.VectorID)
	assert.True(t, results[0].Verbatim)
	assert.Equal(t, "1-0", results[1].Hit.VectorID)
}

func TestSearch_MinScore(t *testing.T) {
	index := setupIndex(t)
	seed(t, index,
		record(1, 0, "a", "a", 1, 0, 0),
		record(2, 0, "b", "b", 0, 0, 1),
	)
	searcher, err := NewSearcher(index, queryEmbedder(1, 0, 0), WithIndex(testIndex, vectorindex.Cosine), WithMinScore(0.5))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1-0", results[0].Hit.VectorID)
}

func TestSearch_MissingIndexIsEmpty(t *testing.T) {
	searcher, err := NewSearcher(setupIndex(t), queryEmbedder(1, 0, 0), WithIndex("never-created", vectorindex.Cosine))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "query", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_EmptyQuery(t *testing.T) {
	searcher, err := NewSearcher(setupIndex(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_EmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}
	searcher, err := NewSearcher(setupIndex(t), embedder)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "query", 3)
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, float32(0.8), similarity(vectorindex.Cosine, 0.8))
	assert.Equal(t, float32(1), similarity(vectorindex.Euclidean, 0))
	assert.Equal(t, float32(0.5), similarity(vectorindex.Euclidean, 1))
}

// testMonitor records monitor callbacks
type testMonitor struct {
	query     string
	dimension int
	hits      int
	verbatim  []string
	results   int
	finished  bool
}

func (m *testMonitor) Start(query string)                    { m.query = query }
func (m *testMonitor) AfterQueryEmbedding(dimension int)     { m.dimension = dimension }
func (m *testMonitor) AfterIndexQuery(hits []core.SearchHit) { m.hits = len(hits) }
func (m *testMonitor) VerbatimHit(hit core.SearchHit)        { m.verbatim = append(m.verbatim, hit.VectorID) }
func (m *testMonitor) Finish(results []*Result) {
	m.results = len(results)
	m.finished = true
}

func TestSearchWithMonitor(t *testing.T) {
	index := setupIndex(t)
	seed(t, index,
		record(1, 0, "Go", "go generics explained", 1, 0, 0),
		record(1, 1, "Go", "more text", 0.9, 0.1, 0),
	)
	searcher, err := NewSearcher(index, queryEmbedder(1, 0, 0), WithIndex(testIndex, vectorindex.Cosine))
	require.NoError(t, err)

	monitor := &testMonitor{}
	_, err = searcher.SearchWithMonitor(context.Background(), "generics", 1, monitor)
	require.NoError(t, err)

	assert.Equal(t, "generics", monitor.query)
	assert.Equal(t, 3, monitor.dimension)
	assert.Equal(t, 2, monitor.hits)
	assert.Equal(t, []string{"1-0"}, monitor.verbatim)
	assert.Equal(t, 1, monitor.results)
	assert.True(t, monitor.finished)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		document string
		query    string
		want     bool
	}{
		{"all words present", "The Rust compiler got faster", "rust compiler", true},
		{"punctuation ignored", "Compiler, meet Rust!", "rust compiler", true},
		{"missing word", "The Rust book", "rust compiler", false},
		{"only stop words", "the a an", "the", false},
		{"empty query", "anything", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.document, tt.query))
		})
	}
}
