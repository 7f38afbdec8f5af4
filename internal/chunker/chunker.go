// Package chunker splits extracted document text into overlapping
// fixed-size segments, the atomic unit of indexing and retrieval.
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates unusable chunking parameters. Chunking
// configuration is validated at startup and rejected immediately.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker splits text into rune-based windows of at most Size runes,
// each window overlapping the previous one by Overlap runes.
type Chunker struct {
	size    int
	overlap int
}

// New validates the chunking parameters and returns a Chunker.
// Requires 0 <= overlap < size and size > 0.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap %d must not be negative", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap between consecutive chunks in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into chunks. Chunk i+1 begins size-overlap runes after
// chunk i; the final chunk may be shorter than size but is always emitted,
// so no trailing content is dropped. Split is pure: identical input always
// produces identical boundaries.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	stride := c.size - c.overlap
	chunks := make([]string, 0, (len(runes)-c.overlap+stride-1)/stride)
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
