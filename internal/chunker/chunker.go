// Package chunker splits document text into fixed-size overlapping
// chunks. The overlap preserves semantic context across chunk
// boundaries; chunk IDs are derived from the document id and position
// so reindexing unchanged content reproduces the same chunk set.
package chunker

import (
	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 100

// Splitter turns a document into chunks.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Overlap must leave forward progress per step.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// Split produces the chunk set for a document. Source, kind, metadata
// and timestamp are copied onto every chunk so filtered search needs no
// join. Empty text produces no chunks.
func (s *Splitter) Split(doc *domain.Document) []domain.Chunk {
	if doc.Text == "" {
		return nil
	}

	text := doc.Text
	step := s.chunkSize - s.overlap
	chunks := make([]domain.Chunk, 0, len(text)/step+1)

	position := 0
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID(), position),
			DocumentID: doc.ID(),
			Source:     doc.Source,
			Kind:       doc.Kind,
			Metadata:   doc.Metadata,
			Timestamp:  doc.LastModified,
			Content:    text[start:end],
			Position:   position,
		})
		position++

		if end == len(text) {
			break
		}
	}

	return chunks
}
