package services

import (
	"context"
	"sync"
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// mockStore is a hand-written driven.DocumentStore with per-source
// canned results, errors and delays.
type mockStore struct {
	mu        sync.Mutex
	results   map[domain.SourceID][]driven.ScoredChunk
	errs      map[domain.SourceID]error
	delays    map[domain.SourceID]time.Duration
	upsertErr error

	searchFilters []driven.SearchFilter
	upsertedDocs  []domain.Document
	upsertedSets  map[string][]domain.Chunk
}

func newMockStore() *mockStore {
	return &mockStore{
		results:      make(map[domain.SourceID][]driven.ScoredChunk),
		errs:         make(map[domain.SourceID]error),
		delays:       make(map[domain.SourceID]time.Duration),
		upsertedSets: make(map[string][]domain.Chunk),
	}
}

func (m *mockStore) Upsert(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertedDocs = append(m.upsertedDocs, *doc)
	m.upsertedSets[doc.ID()] = chunks
	return nil
}

func (m *mockStore) Search(ctx context.Context, filter driven.SearchFilter) ([]driven.ScoredChunk, error) {
	m.mu.Lock()
	m.searchFilters = append(m.searchFilters, filter)
	delay := m.delays[filter.Source]
	err := m.errs[filter.Source]
	results := m.results[filter.Source]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (m *mockStore) Count(_ context.Context, source domain.SourceID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results[source]), nil
}

func (m *mockStore) Close() error { return nil }

// mockEmbedder returns fixed-size vectors and can fail the first N
// batch calls to exercise retries.
type mockEmbedder struct {
	mu         sync.Mutex
	embedErr   error
	failBatch  int
	batchCalls int
	embedCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float32{float32(len(text)), 1}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.batchCalls <= m.failBatch {
		return nil, domain.ErrEmbeddingUnavailable
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return 2 }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockAdapter streams a canned document list.
type mockAdapter struct {
	source   domain.SourceID
	docs     []domain.Document
	fetchErr error
}

func (m *mockAdapter) Source() domain.SourceID { return m.source }

func (m *mockAdapter) FetchSince(ctx context.Context, since time.Time) (<-chan domain.Document, <-chan error) {
	docsCh := make(chan domain.Document)
	errsCh := make(chan error, 1)
	go func() {
		defer close(docsCh)
		defer close(errsCh)
		if m.fetchErr != nil {
			errsCh <- m.fetchErr
			return
		}
		for _, doc := range m.docs {
			if !since.IsZero() && !doc.LastModified.After(since) {
				continue
			}
			select {
			case docsCh <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docsCh, errsCh
}

func (m *mockAdapter) Close() error { return nil }

// mockCheckpoints is an in-memory driven.CheckpointStore.
type mockCheckpoints struct {
	mu    sync.Mutex
	saved map[domain.SourceID]domain.Checkpoint
}

func newMockCheckpoints() *mockCheckpoints {
	return &mockCheckpoints{saved: make(map[domain.SourceID]domain.Checkpoint)}
}

func (m *mockCheckpoints) Get(_ context.Context, source domain.SourceID) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.saved[source]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cp, nil
}

func (m *mockCheckpoints) Save(_ context.Context, cp domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[cp.Source] = cp
	return nil
}

func (m *mockCheckpoints) Delete(_ context.Context, source domain.SourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, source)
	return nil
}
