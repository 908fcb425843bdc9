package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

func subsFor(sources ...domain.SourceID) []domain.SubQuery {
	subs := make([]domain.SubQuery, len(sources))
	for i, source := range sources {
		subs[i] = domain.SubQuery{Source: source, Text: "x", Limit: 30}
	}
	return subs
}

func TestExecuteCollectsAllSources(t *testing.T) {
	now := time.Now().UTC()
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0.9, now)}
	store.results[domain.SourceZoom] = []driven.ScoredChunk{scoredChunk(domain.SourceZoom, "zoom/z1", 0, 0.8, now)}

	executor := NewExecutor(store, time.Second)
	results, degraded, err := executor.Execute(context.Background(),
		subsFor(domain.SourceGmail, domain.SourceZoom), []float32{1, 0})

	require.NoError(t, err)
	assert.Empty(t, degraded)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Scored)
		assert.Len(t, res.Chunks, 1)
	}
}

func TestExecuteDegradesFailedSource(t *testing.T) {
	now := time.Now().UTC()
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0.9, now)}
	store.errs[domain.SourceZoom] = fmt.Errorf("%w: zoom api 500", domain.ErrSourceUnavailable)

	executor := NewExecutor(store, time.Second)
	results, degraded, err := executor.Execute(context.Background(),
		subsFor(domain.SourceGmail, domain.SourceZoom), nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.SourceGmail, results[0].Source)
	assert.Equal(t, []domain.SourceID{domain.SourceZoom}, degraded)
	assert.False(t, results[0].Scored)
}

func TestExecuteDegradesTimedOutSource(t *testing.T) {
	now := time.Now().UTC()
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0.9, now)}
	store.delays[domain.SourceZoom] = 200 * time.Millisecond

	executor := NewExecutor(store, 20*time.Millisecond)
	results, degraded, err := executor.Execute(context.Background(),
		subsFor(domain.SourceGmail, domain.SourceZoom), nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []domain.SourceID{domain.SourceZoom}, degraded)
}

func TestExecuteAllSourcesFailing(t *testing.T) {
	store := newMockStore()
	store.errs[domain.SourceGmail] = errors.New("down")
	store.errs[domain.SourceZoom] = errors.New("down")

	executor := NewExecutor(store, time.Second)
	_, _, err := executor.Execute(context.Background(),
		subsFor(domain.SourceGmail, domain.SourceZoom), nil)

	assert.ErrorIs(t, err, domain.ErrAllSourcesUnavailable)
}

func TestExecuteStoreUnavailableIsFatal(t *testing.T) {
	now := time.Now().UTC()
	store := newMockStore()
	store.results[domain.SourceGmail] = []driven.ScoredChunk{scoredChunk(domain.SourceGmail, "gmail/m1", 0, 0.9, now)}
	store.errs[domain.SourceZoom] = fmt.Errorf("%w: database locked", domain.ErrStoreUnavailable)

	executor := NewExecutor(store, time.Second)
	_, _, err := executor.Execute(context.Background(),
		subsFor(domain.SourceGmail, domain.SourceZoom), nil)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrAllSourcesUnavailable)
}

func TestExecuteDegradedSourcesSorted(t *testing.T) {
	store := newMockStore()
	store.results[domain.SourceGmail] = nil
	store.errs[domain.SourceZoom] = errors.New("down")
	store.errs[domain.SourceNotion] = errors.New("down")

	executor := NewExecutor(store, time.Second)
	_, degraded, err := executor.Execute(context.Background(),
		subsFor(domain.SourceZoom, domain.SourceGmail, domain.SourceNotion), nil)

	require.NoError(t, err)
	assert.Equal(t, []domain.SourceID{domain.SourceNotion, domain.SourceZoom}, degraded)
}

func TestExecutePassesFilterThrough(t *testing.T) {
	store := newMockStore()
	executor := NewExecutor(store, time.Second)

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	subs := []domain.SubQuery{{
		Source: domain.SourceGmail,
		Text:   "renewal",
		Entity: map[string]string{domain.MetaAccountID: "acc-1"},
		Cutoff: cutoff,
		Newer:  true,
		Limit:  30,
	}}
	_, _, err := executor.Execute(context.Background(), subs, []float32{1, 0})
	require.NoError(t, err)

	require.Len(t, store.searchFilters, 1)
	filter := store.searchFilters[0]
	assert.Equal(t, domain.SourceGmail, filter.Source)
	assert.Equal(t, []float32{1, 0}, filter.Vector)
	assert.Equal(t, "acc-1", filter.Entity[domain.MetaAccountID])
	assert.Equal(t, cutoff, filter.Cutoff)
	assert.True(t, filter.Newer)
	assert.Equal(t, 30, filter.Limit)
}
