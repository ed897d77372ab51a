package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID identifies an upstream item. Hacker News item ids are positive integers
// that never change once assigned.
type ID uint64

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// VectorID returns the stable identifier of one chunk's vector: "{item_id}-{chunk_index}".
func VectorID(itemID ID, chunkIndex int) string {
	return itemID.String() + "-" + strconv.Itoa(chunkIndex)
}

// PointID maps a vector id onto a 64-bit key for indexes that only accept
// numeric or UUID point ids. Equal vector ids always map to the same key, so
// re-upserting a chunk overwrites its previous point.
func PointID(vectorID string) uint64 {
	return uint64(IDFromContent(vectorID))
}

// Item is one ingestible story from the upstream feed.
type Item struct {
	ID          ID
	Title       string
	URL         string // Canonical article location, required for ingestion
	Author      string
	Score       int
	PublishedAt time.Time
}

// ProcessedMarker records that every chunk of an item was upserted into the
// vector index at least once.
type ProcessedMarker struct {
	ItemID    ID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a word window of an item's extracted text.
type Chunk struct {
	Index int
	Text  string
}

// VectorMetadata carries the provenance needed to display a search hit
// without going back to the feed.
type VectorMetadata struct {
	ItemID     ID
	Title      string
	URL        string
	ChunkIndex int
	Text       string
}

// EmbeddedVector is the unit written to the vector index.
type EmbeddedVector struct {
	ID       string // See VectorID
	Values   []float32
	Metadata VectorMetadata
}

// SearchHit is a vector index match together with its stored metadata.
type SearchHit struct {
	VectorID string
	Score    float32
	Metadata VectorMetadata
}

// RunRecord summarizes a completed pipeline run.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Attempted  int
	Succeeded  int
	Vectors    int
	Success    bool
}
