package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storeDoc(source domain.SourceID, externalID string, modified time.Time) *domain.Document {
	return &domain.Document{
		Source:       source,
		ExternalID:   externalID,
		Kind:         domain.KindEmail,
		Text:         "body of " + externalID,
		Metadata:     map[string]string{"subject": "pricing"},
		LastModified: modified,
	}
}

func storeChunk(doc *domain.Document, position int, embedding []float32, metadata map[string]string) domain.Chunk {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return domain.Chunk{
		ID:         domain.ChunkID(doc.ID(), position),
		DocumentID: doc.ID(),
		Source:     doc.Source,
		Kind:       doc.Kind,
		Content:    doc.Text,
		Position:   position,
		Embedding:  embedding,
		Metadata:   metadata,
		Timestamp:  doc.LastModified,
	}
}

func TestUpsertAndVectorSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	near := storeDoc(domain.SourceGmail, "m1", now.Add(-time.Hour))
	far := storeDoc(domain.SourceGmail, "m2", now.Add(-2*time.Hour))
	require.NoError(t, store.Upsert(ctx, near, []domain.Chunk{storeChunk(near, 0, []float32{1, 0}, nil)}))
	require.NoError(t, store.Upsert(ctx, far, []domain.Chunk{storeChunk(far, 0, []float32{0, 1}, nil)}))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Vector: []float32{1, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID(), results[0].Chunk.DocumentID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[1].Score, 1e-6)
}

func TestUpsertReplacesChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	doc := storeDoc(domain.SourceGmail, "m1", now)
	require.NoError(t, store.Upsert(ctx, doc, []domain.Chunk{
		storeChunk(doc, 0, []float32{1, 0}, nil),
		storeChunk(doc, 1, []float32{0, 1}, nil),
	}))

	// Shorter re-ingest supersedes the old chunk set entirely.
	doc.Text = "rewritten"
	replacement := storeChunk(doc, 0, []float32{1, 0}, nil)
	replacement.Content = "rewritten"
	require.NoError(t, store.Upsert(ctx, doc, []domain.Chunk{replacement}))

	n, err := store.Count(ctx, domain.SourceGmail)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := store.Search(ctx, driven.SearchFilter{Source: domain.SourceGmail, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rewritten", results[0].Chunk.Content)
}

func TestSearchRecencyOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-3 * time.Hour, -time.Hour, -2 * time.Hour} {
		doc := storeDoc(domain.SourceZoom, []string{"z1", "z2", "z3"}[i], now.Add(offset))
		require.NoError(t, store.Upsert(ctx, doc, []domain.Chunk{storeChunk(doc, 0, nil, nil)}))
	}

	results, err := store.Search(ctx, driven.SearchFilter{Source: domain.SourceZoom, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "zoom/z2", results[0].Chunk.DocumentID)
	assert.Equal(t, "zoom/z3", results[1].Chunk.DocumentID)
	assert.Equal(t, "zoom/z1", results[2].Chunk.DocumentID)
}

func TestSearchTimeFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	old := storeDoc(domain.SourceGmail, "m1", now.Add(-48*time.Hour))
	recent := storeDoc(domain.SourceGmail, "m2", now.Add(-time.Hour))
	require.NoError(t, store.Upsert(ctx, old, []domain.Chunk{storeChunk(old, 0, nil, nil)}))
	require.NoError(t, store.Upsert(ctx, recent, []domain.Chunk{storeChunk(recent, 0, nil, nil)}))

	cutoff := now.Add(-24 * time.Hour)

	newer, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail, Cutoff: cutoff, Newer: true, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "gmail/m2", newer[0].Chunk.DocumentID)

	older, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail, Cutoff: cutoff, Newer: false, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "gmail/m1", older[0].Chunk.DocumentID)
}

func TestSearchEntityFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	acme := storeDoc(domain.SourceSalesforce, "a1", now)
	acme.Kind = domain.KindAccount
	globex := storeDoc(domain.SourceSalesforce, "a2", now.Add(-time.Minute))
	globex.Kind = domain.KindAccount
	require.NoError(t, store.Upsert(ctx, acme, []domain.Chunk{
		storeChunk(acme, 0, nil, map[string]string{"account": "acme"}),
	}))
	require.NoError(t, store.Upsert(ctx, globex, []domain.Chunk{
		storeChunk(globex, 0, nil, map[string]string{"account": "globex"}),
	}))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceSalesforce,
		Entity: map[string]string{"account": "acme"},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "salesforce/a1", results[0].Chunk.DocumentID)
}

func TestSearchSourceIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	gmail := storeDoc(domain.SourceGmail, "m1", now)
	zoom := storeDoc(domain.SourceZoom, "z1", now)
	require.NoError(t, store.Upsert(ctx, gmail, []domain.Chunk{storeChunk(gmail, 0, nil, nil)}))
	require.NoError(t, store.Upsert(ctx, zoom, []domain.Chunk{storeChunk(zoom, 0, nil, nil)}))

	results, err := store.Search(ctx, driven.SearchFilter{Source: domain.SourceGmail, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.SourceGmail, results[0].Chunk.Source)
}

func TestSearchSkipsMismatchedDimensions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	doc := storeDoc(domain.SourceGmail, "m1", now)
	require.NoError(t, store.Upsert(ctx, doc, []domain.Chunk{
		storeChunk(doc, 0, []float32{1, 0, 0}, nil),
	}))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Vector: []float32{1, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	_, err := store.Get(ctx, domain.SourceGmail)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cp := domain.Checkpoint{Source: domain.SourceGmail, LastModified: now.Add(-time.Hour), UpdatedAt: now}
	require.NoError(t, store.Save(ctx, cp))

	got, err := store.Get(ctx, domain.SourceGmail)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGmail, got.Source)
	assert.True(t, got.LastModified.Equal(now.Add(-time.Hour)))

	// Saving again overwrites in place.
	cp.LastModified = now
	require.NoError(t, store.Save(ctx, cp))
	got, err = store.Get(ctx, domain.SourceGmail)
	require.NoError(t, err)
	assert.True(t, got.LastModified.Equal(now))

	require.NoError(t, store.Delete(ctx, domain.SourceGmail))
	_, err = store.Get(ctx, domain.SourceGmail)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening an existing database must not re-run applied migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background(), domain.SourceGmail)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
