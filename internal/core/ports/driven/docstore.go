package driven

import (
	"context"
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// SearchFilter describes one document store query. Source is always
// set: a query restricted to one source never scans another source's
// partition.
type SearchFilter struct {
	// Source restricts the search to one source partition.
	Source domain.SourceID

	// Vector is the query embedding. When nil the store orders results
	// by descending timestamp instead of similarity.
	Vector []float32

	// Entity filters chunks whose metadata matches every key/value pair.
	Entity map[string]string

	// Cutoff is the time boundary; zero means unrestricted. Newer selects
	// which side of the boundary survives.
	Cutoff time.Time
	Newer  bool

	// Limit bounds the number of returned chunks.
	Limit int
}

// ScoredChunk pairs a chunk with its source-local similarity score.
// Scores are only comparable within one source's result list.
type ScoredChunk struct {
	Chunk domain.Chunk
	Score float64
}

// DocumentStore persists chunks with their vectors and serves
// filtered similarity search over them.
//
// Ingestion is the sole writer and queries are read-only; the store's
// only concurrency obligation is that readers see either the old or the
// fully replaced chunk set of a document, never a partial write.
type DocumentStore interface {
	// Upsert replaces all chunks for the document atomically.
	Upsert(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// Search returns chunks matching the filter, ordered by descending
	// similarity when a vector is given and by descending timestamp
	// otherwise. Signals domain.ErrStoreUnavailable when the underlying
	// index cannot be reached.
	Search(ctx context.Context, filter SearchFilter) ([]ScoredChunk, error)

	// Count returns the number of chunks stored for a source.
	Count(ctx context.Context, source domain.SourceID) (int, error)

	// Close releases resources.
	Close() error
}
