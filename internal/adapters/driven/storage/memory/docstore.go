// Package memory provides in-memory implementations of the storage
// ports, used by tests and as a throwaway dev backend.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// Ensure DocStore implements the interface.
var _ driven.DocumentStore = (*DocStore)(nil)

// DocStore is an in-memory document store. Upsert swaps the whole
// chunk slice for a document under the lock, so readers never observe
// a partial replacement.
type DocStore struct {
	mu   sync.RWMutex
	docs map[string]*docEntry
}

type docEntry struct {
	doc    domain.Document
	chunks []domain.Chunk
}

// NewDocStore creates an empty in-memory document store.
func NewDocStore() *DocStore {
	return &DocStore{docs: make(map[string]*docEntry)}
}

// Upsert replaces all chunks for the document.
func (s *DocStore) Upsert(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID()] = &docEntry{doc: *doc, chunks: append([]domain.Chunk(nil), chunks...)}
	return nil
}

// Search implements driven.DocumentStore.
func (s *DocStore) Search(_ context.Context, filter driven.SearchFilter) ([]driven.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []driven.ScoredChunk
	for _, entry := range s.docs {
		if entry.doc.Source != filter.Source {
			continue
		}
		for _, chunk := range entry.chunks {
			if !filter.Cutoff.IsZero() {
				if filter.Newer && chunk.Timestamp.Before(filter.Cutoff) {
					continue
				}
				if !filter.Newer && chunk.Timestamp.After(filter.Cutoff) {
					continue
				}
			}
			if !matchesEntity(chunk.Metadata, filter.Entity) {
				continue
			}

			score := 0.0
			if filter.Vector != nil {
				if len(chunk.Embedding) != len(filter.Vector) {
					continue
				}
				score = cosineSimilarity(filter.Vector, chunk.Embedding)
			}
			results = append(results, driven.ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if filter.Vector != nil && results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Chunk.Timestamp.Equal(results[j].Chunk.Timestamp) {
			return results[i].Chunk.Timestamp.After(results[j].Chunk.Timestamp)
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Count returns the number of chunks stored for a source.
func (s *DocStore) Count(_ context.Context, source domain.SourceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entry := range s.docs {
		if entry.doc.Source == source {
			n += len(entry.chunks)
		}
	}
	return n, nil
}

// Close implements driven.DocumentStore.
func (s *DocStore) Close() error {
	return nil
}

func matchesEntity(metadata, entity map[string]string) bool {
	for k, v := range entity {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
