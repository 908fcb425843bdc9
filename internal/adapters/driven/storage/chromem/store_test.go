package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

func testDoc(externalID string, modified time.Time) *domain.Document {
	return &domain.Document{
		Source:       domain.SourceGmail,
		ExternalID:   externalID,
		Kind:         domain.KindEmail,
		Text:         "body",
		LastModified: modified,
	}
}

func testChunk(docID string, pos int, ts time.Time, vec []float32) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID(docID, pos),
		DocumentID: docID,
		Source:     domain.SourceGmail,
		Kind:       domain.KindEmail,
		Metadata:   map[string]string{domain.MetaSubject: "pricing"},
		Timestamp:  ts,
		Content:    "chunk content",
		Position:   pos,
		Embedding:  vec,
	}
}

func TestStoreVectorSearch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	doc := testDoc("m1", now)
	chunks := []domain.Chunk{
		testChunk(doc.ID(), 0, now, []float32{1, 0, 0}),
		testChunk(doc.ID(), 1, now, []float32{0, 1, 0}),
	}
	require.NoError(t, store.Upsert(ctx, doc, chunks))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Vector: []float32{1, 0, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chunks[0].ID, results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestStoreUpsertReplacesChunks(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	doc := testDoc("m1", now)
	first := []domain.Chunk{
		testChunk(doc.ID(), 0, now, []float32{1, 0, 0}),
		testChunk(doc.ID(), 1, now, []float32{0, 1, 0}),
		testChunk(doc.ID(), 2, now, []float32{0, 0, 1}),
	}
	require.NoError(t, store.Upsert(ctx, doc, first))

	second := []domain.Chunk{
		testChunk(doc.ID(), 0, now, []float32{0.5, 0.5, 0}),
	}
	require.NoError(t, store.Upsert(ctx, doc, second))

	n, err := store.Count(ctx, domain.SourceGmail)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Vector: []float32{0.5, 0.5, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, second[0].ID, results[0].Chunk.ID)
}

func TestStoreRecencySearch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	oldDoc := testDoc("old", now.Add(-48*time.Hour))
	newDoc := testDoc("new", now)
	require.NoError(t, store.Upsert(ctx, oldDoc,
		[]domain.Chunk{testChunk(oldDoc.ID(), 0, now.Add(-48*time.Hour), []float32{1, 0, 0})}))
	require.NoError(t, store.Upsert(ctx, newDoc,
		[]domain.Chunk{testChunk(newDoc.ID(), 0, now, []float32{0, 1, 0})}))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newDoc.ID()+"#000", results[0].Chunk.ID)

	// Cutoff keeps only the fresh side.
	results, err = store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Cutoff: now.Add(-24 * time.Hour),
		Newer:  true,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, newDoc.ID()+"#000", results[0].Chunk.ID)
}

func TestStoreEntityFilter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	doc := testDoc("m1", now)
	chunk := testChunk(doc.ID(), 0, now, []float32{1, 0, 0})
	require.NoError(t, store.Upsert(ctx, doc, []domain.Chunk{chunk}))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Vector: []float32{1, 0, 0},
		Entity: map[string]string{domain.MetaSubject: "pricing"},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceGmail,
		Vector: []float32{1, 0, 0},
		Entity: map[string]string{domain.MetaSubject: "renewal"},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreSourceIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	doc := testDoc("m1", now)
	require.NoError(t, store.Upsert(ctx, doc,
		[]domain.Chunk{testChunk(doc.ID(), 0, now, []float32{1, 0, 0})}))

	results, err := store.Search(ctx, driven.SearchFilter{
		Source: domain.SourceZoom,
		Vector: []float32{1, 0, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
