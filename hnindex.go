// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hnindex wires the feed, extractor, embedder, vector index and
// ledger described by a config.Config into a ready to run indexer.
package hnindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/hnindex/ai"
	"github.com/poiesic/hnindex/ai/openai"
	"github.com/poiesic/hnindex/config"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/extract"
	"github.com/poiesic/hnindex/feed"
	"github.com/poiesic/hnindex/ingestion"
	"github.com/poiesic/hnindex/search"
	"github.com/poiesic/hnindex/storage"
	"github.com/poiesic/hnindex/storage/badger"
	"github.com/poiesic/hnindex/storage/sqlite"
	"github.com/poiesic/hnindex/vectorindex"
	"github.com/poiesic/hnindex/vectorindex/qdrant"
)

// Indexer owns every collaborator of a run.
type Indexer struct {
	cfg       *config.Config
	backend   *badger.Backend
	ledger    storage.LedgerRepository
	runs      storage.RunRepository
	index     vectorindex.Index
	provider  ai.AIProvider
	source    feed.Source
	extractor extract.Extractor
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*options)

type options struct {
	provider  ai.AIProvider
	source    feed.Source
	extractor extract.Extractor
	logger    *slog.Logger
}

// WithProvider replaces the OpenAI-compatible embedding provider.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithSource replaces the Hacker News client.
func WithSource(source feed.Source) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithExtractor replaces the HTTP content extractor.
func WithExtractor(extractor extract.Extractor) Option {
	return func(o *options) {
		o.extractor = extractor
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open validates cfg and opens every store it names.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Indexer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ix := &Indexer{cfg: cfg, logger: o.logger}
	ok := false
	defer func() {
		if !ok {
			ix.Close()
		}
	}()

	// Badger always holds the run record, and the ledger and index when selected
	backend, err := badger.OpenBackend(cfg.Ledger.DataDir, false)
	if err != nil {
		return nil, err
	}
	ix.backend = backend
	ix.runs = badger.NewRunRepository(backend)

	switch cfg.Ledger.Backend {
	case config.BackendSQLite:
		path := cfg.Ledger.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Ledger.DataDir, "ledger.db")
		}
		ledger, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		ix.ledger = ledger
	default:
		ix.ledger = badger.NewLedgerRepository(backend)
	}

	switch cfg.Index.Backend {
	case config.BackendQdrant:
		index, err := qdrant.New(&qdrant.Config{
			Host:           cfg.Index.Qdrant.Host,
			Port:           cfg.Index.Qdrant.Port,
			APIKey:         cfg.Index.Qdrant.APIKey,
			UseTLS:         cfg.Index.Qdrant.UseTLS,
			RequestTimeout: cfg.Index.Timeout,
		})
		if err != nil {
			return nil, err
		}
		ix.index = index
	default:
		ix.index = badger.NewVectorIndex(backend)
	}

	ix.provider = o.provider
	if ix.provider == nil {
		provider, err := openai.NewProvider(ai.NewConfig(
			ai.WithEmbeddingHost(cfg.Embedding.Host),
			ai.WithEmbeddingModel(cfg.Embedding.Model),
			ai.WithToken(cfg.Embedding.Token),
			ai.WithDimension(cfg.Embedding.Dimension),
			ai.WithBatchSize(cfg.Embedding.BatchSize),
		))
		if err != nil {
			return nil, err
		}
		ix.provider = provider
	}
	if dim := ix.provider.Dimension(); dim != cfg.Embedding.Dimension {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, embedding.dimension is %d",
			config.ErrInvalidConfig, dim, cfg.Embedding.Dimension)
	}

	ix.source = o.source
	if ix.source == nil {
		list, _ := feed.ParseList(cfg.Feed.List)
		ix.source = feed.NewClient(
			feed.WithBaseURL(cfg.Feed.BaseURL),
			feed.WithList(list),
			feed.WithRateLimit(cfg.Feed.RateLimit),
			feed.WithTimeout(cfg.Feed.Timeout),
			feed.WithLogger(ix.logger),
		)
	}

	ix.extractor = o.extractor
	if ix.extractor == nil {
		extractOpts := []extract.Option{
			extract.WithTimeout(cfg.Extract.Timeout),
			extract.WithMaxBytes(cfg.Extract.MaxBytes),
			extract.WithLogger(ix.logger),
		}
		if cfg.Extract.UserAgent != "" {
			extractOpts = append(extractOpts, extract.WithUserAgent(cfg.Extract.UserAgent))
		}
		ix.extractor = extract.New(extractOpts...)
	}

	ok = true
	return ix, nil
}

// Config returns the configuration the indexer was opened with.
func (ix *Indexer) Config() *config.Config {
	return ix.cfg
}

// IndexSpec returns the vector index spec derived from the configuration.
func (ix *Indexer) IndexSpec() vectorindex.Spec {
	metric, _ := vectorindex.ParseMetric(ix.cfg.Index.Metric)
	return vectorindex.Spec{
		Name:      ix.cfg.Index.Name,
		Dimension: ix.cfg.Embedding.Dimension,
		Metric:    metric,
	}
}

// NewPipeline creates an ingestion pipeline from the configuration.
// opts are applied after the configured ones and may override them.
func (ix *Indexer) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	cfg := ix.cfg
	base := []ingestion.Option{
		ingestion.WithIndexSpec(ix.IndexSpec()),
		ingestion.WithMaxItems(cfg.Feed.MaxItems),
		ingestion.WithChunking(cfg.Chunk.Size, cfg.Chunk.Overlap),
		ingestion.WithUpsertBatchSize(cfg.Index.BatchSize),
		ingestion.WithTimeouts(cfg.Extract.Timeout, cfg.Embedding.Timeout, cfg.Index.Timeout),
		ingestion.WithPoolSize(cfg.Pipeline.PoolSize),
		ingestion.WithLogger(ix.logger),
		ingestion.WithRunRecorder(ix.runs),
	}
	return ingestion.NewPipeline(ix.ledger, ix.source, ix.extractor, ix.provider.Embedder(), ix.index,
		append(base, opts...)...)
}

// Run performs one ingestion run.
func (ix *Indexer) Run(ctx context.Context, opts ...ingestion.Option) (*ingestion.Summary, error) {
	pipeline, err := ix.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()
	return pipeline.Run(ctx)
}

// NewSearcher creates a searcher over the configured index.
func (ix *Indexer) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	spec := ix.IndexSpec()
	base := []search.Option{
		search.WithIndex(spec.Name, spec.Metric),
		search.WithLogger(ix.logger),
	}
	return search.NewSearcher(ix.index, ix.provider.Embedder(), append(base, opts...)...)
}

// Search returns up to topK chunks matching query.
func (ix *Indexer) Search(ctx context.Context, query string, topK int) ([]*search.Result, error) {
	searcher, err := ix.NewSearcher()
	if err != nil {
		return nil, err
	}
	return searcher.Search(ctx, query, topK)
}

// Status describes the persisted state.
type Status struct {
	Processed int             // Items in the ledger
	LastRun   *core.RunRecord // Nil before the first run
	Index     vectorindex.Spec
	Ledger    string // Ledger backend
	Backend   string // Vector index backend
}

// Status reads the ledger size and the last run record.
func (ix *Indexer) Status(ctx context.Context) (*Status, error) {
	ids, err := ix.ledger.ListProcessedIDs(ctx)
	if err != nil {
		return nil, err
	}
	last, err := ix.runs.LoadLastRun(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Processed: len(ids),
		LastRun:   last,
		Index:     ix.IndexSpec(),
		Ledger:    ix.cfg.Ledger.Backend,
		Backend:   ix.cfg.Index.Backend,
	}, nil
}

// Close releases every store, in reverse order of opening.
func (ix *Indexer) Close() error {
	var errs []error
	if ix.provider != nil {
		if err := ix.provider.Close(); err != nil {
			ix.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if ix.index != nil {
		if err := ix.index.Close(); err != nil {
			ix.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	if ix.ledger != nil {
		if err := ix.ledger.Close(); err != nil {
			ix.logger.Error("error closing ledger", "err", err)
			errs = append(errs, err)
		}
	}
	if ix.backend != nil {
		if err := ix.backend.Close(); err != nil {
			ix.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
