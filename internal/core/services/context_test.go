package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

func newTestEngine(store *mockStore, embedder *mockEmbedder) *ContextEngine {
	var embed driven.EmbeddingService
	if embedder != nil {
		embed = embedder
	}
	engine := NewContextEngine(
		NewPlanner(0, 0),
		NewExecutor(store, time.Second),
		NewRanker(0),
		embed,
	)
	engine.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return engine
}

func TestRetrieveEndToEnd(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{
		scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0.9, now.Add(-time.Hour)),
		scoredChunk(domain.SourceGmail, "gmail/m2", 0, 0.4, now.Add(-2*time.Hour)),
	}
	store.results[domain.SourceZoom] = []driven.ScoredChunk{
		scoredChunk(domain.SourceZoom, "zoom/z1", 0, 0.8, now.Add(-30*time.Minute)),
	}

	engine := newTestEngine(store, &mockEmbedder{})
	resp, err := engine.Retrieve(context.Background(), domain.Query{
		Text:    "pricing concerns",
		Sources: []domain.SourceID{domain.SourceGmail, domain.SourceZoom},
		Limit:   5,
	}, domain.AllSources())

	require.NoError(t, err)
	assert.Equal(t, EngineName, resp.Engine)
	assert.Empty(t, resp.DegradedSources)
	require.Len(t, resp.Items, 3)
	// Both source maxima normalize to 1.0; zoom/z1 is the newest.
	assert.Equal(t, "zoom/z1", resp.Items[0].Content)
	assert.Equal(t, "gmail/m1", resp.Items[1].Content)
	assert.Equal(t, "gmail/m2", resp.Items[2].Content)
	assert.Equal(t, engine.now(), resp.GeneratedAt)
}

func TestRetrieveRejectsUnauthorizedSources(t *testing.T) {
	engine := newTestEngine(newMockStore(), nil)

	_, err := engine.Retrieve(context.Background(), domain.Query{
		Text:    "x",
		Sources: []domain.SourceID{domain.SourceSalesforce},
	}, []domain.SourceID{domain.SourceGmail})

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRetrieveIntersectsSources(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(store, nil)

	resp, err := engine.Retrieve(context.Background(), domain.Query{
		Text:    "x",
		Sources: []domain.SourceID{domain.SourceGmail, domain.SourceSalesforce},
	}, []domain.SourceID{domain.SourceGmail})

	require.NoError(t, err)
	// Only the authorized source was planned and queried.
	assert.Equal(t, []domain.SourceID{domain.SourceGmail}, resp.Query.Sources)
	require.Len(t, store.searchFilters, 1)
	assert.Equal(t, domain.SourceGmail, store.searchFilters[0].Source)
}

func TestRetrieveInvalidQuery(t *testing.T) {
	engine := newTestEngine(newMockStore(), nil)

	_, err := engine.Retrieve(context.Background(), domain.Query{Text: "x"}, domain.AllSources())
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = engine.Retrieve(context.Background(), domain.Query{
		Text:      "x",
		Sources:   []domain.SourceID{domain.SourceGmail},
		TimeRange: &domain.TimeRange{DaysBack: -1},
	}, domain.AllSources())
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestRetrieveFallsBackToRecencyOnEmbedFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{
		scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0, now),
	}
	embedder := &mockEmbedder{embedErr: errors.New("gateway down")}

	engine := newTestEngine(store, embedder)
	resp, err := engine.Retrieve(context.Background(), domain.Query{
		Text:    "pricing",
		Sources: []domain.SourceID{domain.SourceGmail},
	}, domain.AllSources())

	// Embedding failure degrades to recency ordering, not an error.
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Len(t, store.searchFilters, 1)
	assert.Nil(t, store.searchFilters[0].Vector)
}

func TestRetrieveRecencyOnlySkipsEmbedding(t *testing.T) {
	store := newMockStore()
	embedder := &mockEmbedder{}

	engine := newTestEngine(store, embedder)
	_, err := engine.Retrieve(context.Background(), domain.Query{
		Sources: []domain.SourceID{domain.SourceGmail},
	}, domain.AllSources())

	require.NoError(t, err)
	assert.Zero(t, embedder.embedCalls)
}

func TestRetrieveReportsDegradedSources(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{
		scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0.9, now),
	}
	store.errs[domain.SourceZoom] = errors.New("zoom search failed")

	engine := newTestEngine(store, &mockEmbedder{})
	resp, err := engine.Retrieve(context.Background(), domain.Query{
		Text:    "pricing",
		Sources: []domain.SourceID{domain.SourceGmail, domain.SourceZoom},
	}, domain.AllSources())

	require.NoError(t, err)
	assert.Equal(t, []domain.SourceID{domain.SourceZoom}, resp.DegradedSources)
	require.Len(t, resp.Items, 1)
}

func TestRetrieveDeterministicResponses(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := newMockStore()
	for _, source := range domain.AllSources() {
		store.results[source] = []driven.ScoredChunk{
			scoredChunk(source, string(source)+"/d1", 0, 0.9, now),
			scoredChunk(source, string(source)+"/d2", 0, 0.5, now.Add(-time.Hour)),
		}
	}

	engine := newTestEngine(store, &mockEmbedder{})
	query := domain.Query{Text: "pricing", Sources: domain.AllSources(), Limit: 6}

	first, err := engine.Retrieve(context.Background(), query, domain.AllSources())
	require.NoError(t, err)
	second, err := engine.Retrieve(context.Background(), query, domain.AllSources())
	require.NoError(t, err)
	assert.Equal(t, first.Items, second.Items)
}
