package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/hnindex/ai"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/vectorindex"
)

const (
	// DefaultTopK is the number of chunks returned when none is requested.
	DefaultTopK = 3

	// verbatimBoost is added to the score of chunks containing every query word.
	verbatimBoost = 0.3

	// candidateFactor over-fetches so the verbatim boost can reorder.
	candidateFactor = 2
)

// Result is a ranked chunk with the provenance stored alongside its vector.
type Result struct {
	Hit      core.SearchHit
	Score    float32 // Similarity plus any verbatim boost, higher is better
	Verbatim bool
}

// Searcher answers natural language queries against the ingested index.
type Searcher struct {
	index    vectorindex.Index
	embedder ai.Embedder
	spec     vectorindex.Spec
	minScore float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithIndex sets the index name and metric to search.
func WithIndex(name string, metric vectorindex.Metric) Option {
	return func(s *Searcher) error {
		m, err := vectorindex.ParseMetric(string(metric))
		if err != nil {
			return err
		}
		if name != "" {
			s.spec.Name = name
		}
		s.spec.Metric = m
		return nil
	}
}

// WithMinScore drops results scoring below min before the verbatim boost.
func WithMinScore(min float32) Option {
	return func(s *Searcher) error {
		s.minScore = min
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(index vectorindex.Index, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		index:    index,
		embedder: embedder,
		spec:     vectorindex.Spec{Name: DefaultIndexName, Metric: vectorindex.Cosine},
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// DefaultIndexName matches the ingestion default.
const DefaultIndexName = "hn-rag-v0"

// Search returns up to topK chunks most similar to query.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(len(embedding))

	hits, err := s.index.Query(ctx, s.spec.Name, embedding, topK*candidateFactor)
	if err != nil {
		if errors.Is(err, vectorindex.ErrIndexNotFound) {
			s.logger.Debug("index does not exist yet", "index", s.spec.Name)
			monitor.Finish(nil)
			return []*Result{}, nil
		}
		s.logger.Error("error querying index", "index", s.spec.Name, "err", err)
		return nil, err
	}
	monitor.AfterIndexQuery(hits)

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		score := similarity(s.spec.Metric, hit.Score)
		if score < s.minScore {
			continue
		}
		res := &Result{Hit: hit, Score: score}
		if containsAllQueryWords(hit.Metadata.Text, query) || containsAllQueryWords(hit.Metadata.Title, query) {
			res.Score += verbatimBoost
			res.Verbatim = true
			monitor.VerbatimHit(hit)
		}
		results = append(results, res)
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	monitor.Finish(results)

	return results, nil
}

// similarity maps an index score onto higher-is-better.
func similarity(metric vectorindex.Metric, score float32) float32 {
	if metric == vectorindex.Euclidean {
		return 1 / (1 + score)
	}
	return score
}
