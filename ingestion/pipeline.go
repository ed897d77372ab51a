package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/hnindex/ai"
	"github.com/poiesic/hnindex/chunk"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/extract"
	"github.com/poiesic/hnindex/feed"
	"github.com/poiesic/hnindex/storage"
	"github.com/poiesic/hnindex/vectorindex"
)

const (
	// DefaultMaxItems is the number of new items attempted per run.
	DefaultMaxItems = 30

	// DefaultIndexName is the vector index written to when none is configured.
	DefaultIndexName = "hn-rag-v0"

	// DefaultDimension matches nomic-embed-text.
	DefaultDimension = 768

	DefaultExtractTimeout = 30 * time.Second
	DefaultEmbedTimeout   = 60 * time.Second
	DefaultUpsertTimeout  = 30 * time.Second
)

// Pipeline is the ingestion controller. It selects new items from the feed
// and runs each through extract, chunk, embed and upsert, marking an item
// processed only after all of its vectors are in the index.
type Pipeline struct {
	ledger    storage.LedgerRepository
	source    feed.Source
	extractor extract.Extractor
	embedder  ai.Embedder
	index     vectorindex.Index
	runs      storage.RunRepository

	spec            vectorindex.Spec
	maxItems        int
	chunker         *chunk.Chunker
	upsertBatchSize int
	extractTimeout  time.Duration
	embedTimeout    time.Duration
	upsertTimeout   time.Duration

	pool     *ants.Pool
	logger   *slog.Logger
	metrics  *metrics
	progress io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithIndexSpec sets the vector index name, dimension and metric.
// Default is DefaultIndexName, DefaultDimension, cosine.
func WithIndexSpec(spec vectorindex.Spec) Option {
	return func(p *Pipeline) error {
		if spec.Metric == "" {
			spec.Metric = vectorindex.Cosine
		}
		if err := spec.Validate(); err != nil {
			return err
		}
		p.spec = spec
		return nil
	}
}

// WithMaxItems sets how many new items a run attempts.
// Default is DefaultMaxItems.
func WithMaxItems(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("max items must be positive, got %d", n)
		}
		p.maxItems = n
		return nil
	}
}

// WithChunking sets the chunk size and overlap in words.
// Default is chunk.DefaultChunkSize and chunk.DefaultOverlap.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		c, err := chunk.New(chunk.WithChunkSize(size), chunk.WithOverlap(overlap))
		if err != nil {
			return err
		}
		p.chunker = c
		return nil
	}
}

// WithUpsertBatchSize sets the sub-batch size for vector upserts.
// Default is vectorindex.DefaultBatchSize.
func WithUpsertBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("upsert batch size must be positive, got %d", n)
		}
		p.upsertBatchSize = n
		return nil
	}
}

// WithTimeouts bounds the extract, embed and upsert steps of each item.
// A zero duration leaves that step's default in place.
func WithTimeouts(extract, embed, upsert time.Duration) Option {
	return func(p *Pipeline) error {
		if extract > 0 {
			p.extractTimeout = extract
		}
		if embed > 0 {
			p.embedTimeout = embed
		}
		if upsert > 0 {
			p.upsertTimeout = upsert
		}
		return nil
	}
}

// WithPoolSize sets how many items are processed concurrently.
// Default is 1, which processes items sequentially in feed order.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics registers run metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Pipeline) error {
		if reg == nil {
			return nil
		}
		m, err := newMetrics(reg)
		if err != nil {
			return err
		}
		p.metrics = m
		return nil
	}
}

// WithProgress writes a progress line to w as items finish.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithRunRecorder persists each run's summary to runs.
func WithRunRecorder(runs storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = runs
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	ledger storage.LedgerRepository,
	source feed.Source,
	extractor extract.Extractor,
	embedder ai.Embedder,
	index vectorindex.Index,
	opts ...Option,
) (*Pipeline, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if source == nil {
		return nil, ErrSourceRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	chunker, err := chunk.New()
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		ledger:    ledger,
		source:    source,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		spec: vectorindex.Spec{
			Name:      DefaultIndexName,
			Dimension: DefaultDimension,
			Metric:    vectorindex.Cosine,
		},
		maxItems:        DefaultMaxItems,
		chunker:         chunker,
		upsertBatchSize: vectorindex.DefaultBatchSize,
		extractTimeout:  DefaultExtractTimeout,
		embedTimeout:    DefaultEmbedTimeout,
		upsertTimeout:   DefaultUpsertTimeout,
		pool:            pool,
		logger:          slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// IndexSpec returns the spec of the index the pipeline writes to.
func (p *Pipeline) IndexSpec() vectorindex.Spec {
	return p.spec
}

// Run performs one ingestion run and returns its summary. Per-item failures
// are reported in the summary and never returned. The error is non-nil only
// when the ledger or index is unavailable or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run", summary.RunID)
	logger.Info("run started", "index", p.spec.Name, "max_items", p.maxItems)

	err := p.run(ctx, logger, summary)
	if err != nil && ctx.Err() != nil {
		summary.Cancelled = true
		err = ctx.Err()
	}
	summary.Success = err == nil
	summary.FinishedAt = time.Now().UTC()

	p.metrics.observe(summary)
	p.recordRun(ctx, logger, summary)

	logger.Info("run finished",
		"success", summary.Success,
		"candidates", summary.Candidates,
		"new", summary.New,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"vectors", summary.Vectors,
		"skipped", summary.Skipped,
		"failed", len(summary.Failures),
		"duration", summary.Duration())
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	processed, err := p.ledger.ListProcessedIDs(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
		}
		logger.Error("cannot load ledger", "err", err)
		return err
	}

	candidates, err := p.source.ListTopItemIDs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("feed listing failed, nothing to do", "err", err)
		summary.Aborted = true
		return nil
	}
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		logger.Warn("feed listing empty, nothing to do")
		summary.Aborted = true
		return nil
	}

	newIDs := SelectNew(candidates, processed)
	summary.New = len(newIDs)
	if len(newIDs) == 0 {
		logger.Info("no new items")
		return nil
	}

	if err := p.index.EnsureIndex(ctx, p.spec); err != nil {
		if !errors.Is(err, vectorindex.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %w", vectorindex.ErrIndexUnavailable, err)
		}
		logger.Error("cannot prepare vector index", "index", p.spec.Name, "err", err)
		return err
	}

	p.processNew(ctx, logger, newIDs, summary)
	return ctx.Err()
}

// processNew resolves new ids in feed order and hands each resolved item to
// the pool until maxItems have resolved. Absent items do not use a slot.
func (p *Pipeline) processNew(ctx context.Context, logger *slog.Logger, newIDs []core.ID, summary *Summary) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tracker *ProgressTracker
	)
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, min(len(newIDs), p.maxItems), 1)
		tracker.Start()
		defer tracker.Finish()
	}

	collect := func(res ItemResult) {
		mu.Lock()
		summary.add(res)
		mu.Unlock()
		p.metrics.item(res)
		tracker.Increment(res.Succeeded())
	}

	for _, id := range newIDs {
		if summary.Attempted >= p.maxItems {
			break
		}
		if ctx.Err() != nil {
			logger.Warn("run cancelled between items", "remaining", p.maxItems-summary.Attempted)
			break
		}

		item, err := p.source.FetchItem(ctx, id)
		if err != nil {
			logger.Warn("item details unavailable", "item", id, "err", err)
			summary.Skipped++
			continue
		}
		if item == nil {
			logger.Debug("item not eligible", "item", id)
			summary.Skipped++
			continue
		}
		if err := core.ValidateItem(item); err != nil {
			logger.Debug("item not eligible", "item", id, "err", err)
			summary.Skipped++
			continue
		}

		summary.Attempted++
		wg.Add(1)
		err = p.pool.Submit(func() {
			defer wg.Done()
			collect(p.processItem(ctx, logger, item))
		})
		if err != nil {
			wg.Done()
			collect(ItemResult{ItemID: item.ID, Reached: StageFetched, Err: err})
		}
	}

	wg.Wait()
}

// SelectNew returns the candidates not in processed, preserving order.
func SelectNew(candidates []core.ID, processed map[core.ID]struct{}) []core.ID {
	out := make([]core.ID, 0, len(candidates))
	seen := make(map[core.ID]struct{}, len(candidates))
	for _, id := range candidates {
		if _, done := processed[id]; done {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (p *Pipeline) recordRun(ctx context.Context, logger *slog.Logger, summary *Summary) {
	if p.runs == nil {
		return
	}
	// Cancelled runs are recorded too
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.runs.SaveRun(ctx, summary.Record()); err != nil {
		logger.Error("error saving run record", "err", err)
	}
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
