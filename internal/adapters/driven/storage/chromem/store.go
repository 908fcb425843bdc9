// Package chromem provides an in-process vector store backed by
// chromem-go, with one collection per source so a query against one
// source never touches another's data. It keeps no state on disk and
// is meant for development setups and tests; the SQLite store is the
// durable backend.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Reserved metadata keys carried alongside adapter metadata.
const (
	metaDocumentID = "_document_id"
	metaKind       = "_kind"
	metaPosition   = "_position"
	metaTimestamp  = "_timestamp"
)

// Store is the chromem-go backed document store. chromem serves the
// similarity queries; a side index of chunk summaries serves recency
// ordering and time/entity filtering, which chromem's where-clauses do
// not cover.
type Store struct {
	db *chromemgo.DB

	mu sync.RWMutex
	// byDocument tracks chunk IDs per document for atomic replacement.
	byDocument map[string][]string
	// chunks mirrors everything written, minus embeddings.
	chunks map[string]domain.Chunk
}

// NewStore creates an empty in-memory chromem store.
func NewStore() *Store {
	return &Store{
		db:         chromemgo.NewDB(),
		byDocument: make(map[string][]string),
		chunks:     make(map[string]domain.Chunk),
	}
}

// collection returns the per-source collection. Embeddings are always
// precomputed by the ingestion pipeline, so the embedding func must
// never run.
func (s *Store) collection(source domain.SourceID) (*chromemgo.Collection, error) {
	return s.db.GetOrCreateCollection("ctx-"+string(source), nil,
		func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("embeddings are precomputed")
		})
}

// Upsert replaces all chunks for the document.
func (s *Store) Upsert(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	col, err := s.collection(doc.Source)
	if err != nil {
		return fmt.Errorf("%w: collection: %v", domain.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Supersede the previous chunk set under the lock so a concurrent
	// search sees the old set or the new one, nothing in between.
	if old := s.byDocument[doc.ID()]; len(old) > 0 {
		if err := col.Delete(ctx, nil, nil, old...); err != nil {
			return fmt.Errorf("%w: delete stale chunks: %v", domain.ErrStoreUnavailable, err)
		}
		for _, id := range old {
			delete(s.chunks, id)
		}
	}

	ids := make([]string, 0, len(chunks))
	docs := make([]chromemgo.Document, 0, len(chunks))
	for _, chunk := range chunks {
		ids = append(ids, chunk.ID)
		docs = append(docs, chromemgo.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata:  chunkMetadata(chunk),
		})

		summary := chunk
		summary.Embedding = nil
		s.chunks[chunk.ID] = summary
	}
	s.byDocument[doc.ID()] = ids

	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("%w: add documents: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Search implements driven.DocumentStore.
func (s *Store) Search(ctx context.Context, filter driven.SearchFilter) ([]driven.ScoredChunk, error) {
	if filter.Vector == nil {
		return s.recencySearch(filter), nil
	}

	col, err := s.collection(filter.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: collection: %v", domain.ErrStoreUnavailable, err)
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	// Over-fetch so post-filtering on time/entity still fills the limit;
	// chromem requires nResults <= collection size.
	n := filter.Limit * 4
	if n <= 0 || n > count {
		n = count
	}

	hits, err := col.QueryEmbedding(ctx, filter.Vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []driven.ScoredChunk
	for _, hit := range hits {
		chunk, ok := s.chunks[hit.ID]
		if !ok {
			continue // superseded between query and lookup
		}
		if !matches(chunk, filter) {
			continue
		}
		results = append(results, driven.ScoredChunk{Chunk: chunk, Score: float64(hit.Similarity)})
		if filter.Limit > 0 && len(results) == filter.Limit {
			break
		}
	}
	return results, nil
}

// recencySearch serves filter-only queries from the side index,
// ordered by descending timestamp.
func (s *Store) recencySearch(filter driven.SearchFilter) []driven.ScoredChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []driven.ScoredChunk
	for _, chunk := range s.chunks {
		if !matches(chunk, filter) {
			continue
		}
		results = append(results, driven.ScoredChunk{Chunk: chunk})
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Chunk.Timestamp.Equal(results[j].Chunk.Timestamp) {
			return results[i].Chunk.Timestamp.After(results[j].Chunk.Timestamp)
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results
}

// Count returns the number of chunks stored for a source.
func (s *Store) Count(_ context.Context, source domain.SourceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, chunk := range s.chunks {
		if chunk.Source == source {
			n++
		}
	}
	return n, nil
}

// Close implements driven.DocumentStore.
func (s *Store) Close() error {
	return nil
}

// matches applies the source, time and entity filters to one chunk.
func matches(chunk domain.Chunk, filter driven.SearchFilter) bool {
	if chunk.Source != filter.Source {
		return false
	}
	if !filter.Cutoff.IsZero() {
		if filter.Newer && chunk.Timestamp.Before(filter.Cutoff) {
			return false
		}
		if !filter.Newer && chunk.Timestamp.After(filter.Cutoff) {
			return false
		}
	}
	for k, v := range filter.Entity {
		if chunk.Metadata[k] != v {
			return false
		}
	}
	return true
}

// chunkMetadata flattens a chunk into chromem's string metadata map.
func chunkMetadata(chunk domain.Chunk) map[string]string {
	md := make(map[string]string, len(chunk.Metadata)+4)
	for k, v := range chunk.Metadata {
		md[k] = v
	}
	md[metaDocumentID] = chunk.DocumentID
	md[metaKind] = string(chunk.Kind)
	md[metaPosition] = strconv.Itoa(chunk.Position)
	md[metaTimestamp] = chunk.Timestamp.UTC().Format(time.RFC3339Nano)
	return md
}
