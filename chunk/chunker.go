package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/hnindex/core"
)

const (
	DefaultChunkSize = 512
	DefaultOverlap   = 50
)

// ErrInvalidWindow indicates a chunk size and overlap outside 0 <= overlap < size.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunker splits text into overlapping word windows.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the number of words per chunk.
func WithChunkSize(n int) Option {
	return func(c *Chunker) {
		c.size = n
	}
}

// WithOverlap sets how many words each chunk repeats from its predecessor.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		c.overlap = n
	}
}

// New creates a Chunker, validating the window.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := validate(c.size, c.overlap); err != nil {
		return nil, err
	}
	return c, nil
}

// Size returns the configured chunk size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text using the chunker's window.
func (c *Chunker) Split(text string) []core.Chunk {
	return split(strings.Fields(text), c.size, c.overlap)
}

// Split splits text into windows of size words, each repeating overlap words
// of the previous one. Chunk k starts at word k*(size-overlap). Splitting
// stops at the first window that reaches the end of the text, so text of at
// most size words yields exactly one chunk.
func Split(text string, size, overlap int) ([]core.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return split(strings.Fields(text), size, overlap), nil
}

func validate(size, overlap int) error {
	if size <= 0 || overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidWindow, size, overlap)
	}
	return nil
}

func split(words []string, size, overlap int) []core.Chunk {
	if len(words) == 0 {
		return nil
	}
	stride := size - overlap
	chunks := make([]core.Chunk, 0, (len(words)+stride-1)/stride)
	for start := 0; ; start += stride {
		end := min(start+size, len(words))
		chunks = append(chunks, core.Chunk{
			Index: len(chunks),
			Text:  strings.Join(words[start:end], " "),
		})
		if end == len(words) {
			return chunks
		}
	}
}
