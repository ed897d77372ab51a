package ingestion

import "errors"

var (
	// ErrLedgerRequired is returned when a ledger repository is not provided.
	ErrLedgerRequired = errors.New("ledger repository required")

	// ErrSourceRequired is returned when a feed source is not provided.
	ErrSourceRequired = errors.New("feed source required")

	// ErrExtractorRequired is returned when a content extractor is not provided.
	ErrExtractorRequired = errors.New("content extractor required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedding indicates the embedder failed for an item.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmbeddingMismatch indicates the embedder returned a different number
	// of vectors than chunks, or vectors of the wrong dimension. Errors
	// wrapping it also match ErrEmbedding.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrNoChunks indicates extracted text produced no chunks.
	ErrNoChunks = errors.New("no chunks")
)
