package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func collect(t *testing.T, a *Adapter, since time.Time) []domain.Document {
	t.Helper()
	docsCh, errsCh := a.FetchSince(context.Background(), since)

	var docs []domain.Document
	for doc := range docsCh {
		docs = append(docs, doc)
	}
	require.NoError(t, <-errsCh)
	return docs
}

func TestFetchSinceStreamsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "inbox.json", `[
		{"external_id": "m2", "kind": "email", "text": "second",
		 "metadata": {"subject": "re: pricing"}, "last_modified": "2026-08-20T10:00:00Z"},
		{"external_id": "m1", "kind": "email", "text": "first",
		 "metadata": {"subject": "pricing"}, "last_modified": "2026-08-19T10:00:00Z"}
	]`)

	adapter, err := NewAdapter(domain.SourceGmail, dir)
	require.NoError(t, err)

	docs := collect(t, adapter, time.Time{})
	require.Len(t, docs, 2)
	assert.Equal(t, "m1", docs[0].ExternalID)
	assert.Equal(t, "m2", docs[1].ExternalID)
	assert.Equal(t, domain.SourceGmail, docs[0].Source)
	assert.Equal(t, "pricing", docs[0].Metadata[domain.MetaSubject])
}

func TestFetchSinceFiltersByCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "inbox.json", `[
		{"external_id": "m1", "kind": "email", "text": "old", "last_modified": "2026-08-19T10:00:00Z"},
		{"external_id": "m2", "kind": "email", "text": "new", "last_modified": "2026-08-20T10:00:00Z"}
	]`)

	adapter, err := NewAdapter(domain.SourceGmail, dir)
	require.NoError(t, err)

	since := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	docs := collect(t, adapter, since)
	require.Len(t, docs, 1)
	assert.Equal(t, "m2", docs[0].ExternalID)

	// A boundary equal to the newest document yields nothing.
	docs = collect(t, adapter, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	assert.Empty(t, docs)
}

func TestFetchSinceRejectsBadRecords(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "bad.json", `[
		{"external_id": "m1", "kind": "fax", "text": "x", "last_modified": "2026-08-19T10:00:00Z"}
	]`)

	adapter, err := NewAdapter(domain.SourceGmail, dir)
	require.NoError(t, err)

	docsCh, errsCh := adapter.FetchSince(context.Background(), time.Time{})
	for range docsCh {
	}
	err = <-errsCh
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestNewAdapterRequiresDirectory(t *testing.T) {
	_, err := NewAdapter(domain.SourceGmail, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "inbox.json", `[]`)

	adapter, err := NewAdapter(domain.SourceGmail, dir)
	require.NoError(t, err)

	changed := make(chan domain.SourceID, 1)
	watcher, err := NewWatcher([]*Adapter{adapter}, func(s domain.SourceID) {
		changed <- s
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(ctx)
	}()

	// Let the watch loop start before touching the file.
	time.Sleep(50 * time.Millisecond)
	writeFixture(t, dir, "inbox.json", `[
		{"external_id": "m1", "kind": "email", "text": "x", "last_modified": "2026-08-19T10:00:00Z"}
	]`)

	select {
	case source := <-changed:
		assert.Equal(t, domain.SourceGmail, source)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	<-done
}
