package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/extract"
	"github.com/poiesic/hnindex/storage"
	"github.com/poiesic/hnindex/vectorindex"
)

// processItem runs one item from Fetched to Marked. Every failure stops the
// item at the state it reached; nothing propagates past this boundary.
// The ledger is written only after every vector of the item was upserted.
func (p *Pipeline) processItem(ctx context.Context, logger *slog.Logger, item *core.Item) ItemResult {
	res := ItemResult{ItemID: item.ID, Reached: StageFetched}
	logger = logger.With("item", item.ID)

	fail := func(err error) ItemResult {
		res.Err = err
		logger.Warn("item skipped", "stage", res.FailedStep(), "err", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	text, err := p.extract(ctx, item.URL)
	if err != nil {
		return fail(err)
	}
	res.Reached = StageExtracted

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return fail(ErrNoChunks)
	}
	res.Reached = StageChunked

	vectors, err := p.embed(ctx, item, chunks)
	if err != nil {
		return fail(err)
	}
	res.Reached = StageEmbedded

	written, err := p.upsert(ctx, vectors)
	if err != nil {
		logger.Debug("partial upsert", "written", written, "total", len(vectors))
		return fail(err)
	}
	res.Reached = StageUpserted
	res.Vectors = written

	if err := p.ledger.MarkProcessed(ctx, item.ID); err != nil {
		if !errors.Is(err, storage.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", storage.ErrStoreWrite, err)
		}
		return fail(err)
	}
	res.Reached = StageMarked

	logger.Info("item ingested", "chunks", len(chunks), "vectors", written)
	return res
}

func (p *Pipeline) extract(ctx context.Context, url string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.extractTimeout)
	defer cancel()

	text, err := p.extractor.Extract(ctx, url)
	if err != nil {
		if errors.Is(err, extract.ErrExtraction) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", extract.ErrExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text at %s", extract.ErrExtraction, url)
	}
	return text, nil
}

// embed zips the embedder output positionally with chunks. A result of the
// wrong length or dimension fails the item rather than being padded or
// truncated.
func (p *Pipeline) embed(ctx context.Context, item *core.Item, chunks []core.Chunk) ([]core.EmbeddedVector, error) {
	ctx, cancel := withTimeout(ctx, p.embedTimeout)
	defer cancel()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: %w: expected %d, received %d",
			ErrEmbedding, ErrEmbeddingMismatch, len(chunks), len(embeddings))
	}

	vectors := make([]core.EmbeddedVector, len(chunks))
	for i, c := range chunks {
		if len(embeddings[i]) == 0 || (p.spec.Dimension > 0 && len(embeddings[i]) != p.spec.Dimension) {
			return nil, fmt.Errorf("%w: %w: chunk %d has dimension %d, want %d",
				ErrEmbedding, ErrEmbeddingMismatch, c.Index, len(embeddings[i]), p.spec.Dimension)
		}
		vectors[i] = core.EmbeddedVector{
			ID:     core.VectorID(item.ID, c.Index),
			Values: embeddings[i],
			Metadata: core.VectorMetadata{
				ItemID:     item.ID,
				Title:      item.Title,
				URL:        item.URL,
				ChunkIndex: c.Index,
				Text:       c.Text,
			},
		}
	}
	return vectors, nil
}

func (p *Pipeline) upsert(ctx context.Context, vectors []core.EmbeddedVector) (int, error) {
	ctx, cancel := withTimeout(ctx, p.upsertTimeout)
	defer cancel()
	return vectorindex.UpsertBatches(ctx, p.index, p.spec.Name, vectors, p.upsertBatchSize)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
