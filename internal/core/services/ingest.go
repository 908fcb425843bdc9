package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tessellate-ai/contextd/internal/chunker"
	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
	"github.com/tessellate-ai/contextd/internal/core/ports/driving"
	"github.com/tessellate-ai/contextd/internal/logger"
)

// Ingestion defaults.
const (
	DefaultIngestWorkers = 4
	embedRetries         = 3
	embedRetryBackoff    = 250 * time.Millisecond
)

// Ensure Pipeline implements the interface.
var _ driving.Ingestor = (*Pipeline)(nil)

// Pipeline keeps the document store eventually consistent with the
// source adapters. Ingestion workers are independent of query-time
// workers; the store's atomic per-document upsert is the only point of
// contact between the two paths.
type Pipeline struct {
	adapters    map[domain.SourceID]driven.SourceAdapter
	store       driven.DocumentStore
	checkpoints driven.CheckpointStore
	embedder    driven.EmbeddingService
	splitter    *chunker.Splitter
	workers     int
}

// NewPipeline wires the ingestion pipeline. The embedder is optional;
// without it chunks are stored unembedded and retrieval over them falls
// back to recency ordering.
func NewPipeline(
	adapters []driven.SourceAdapter,
	store driven.DocumentStore,
	checkpoints driven.CheckpointStore,
	embedder driven.EmbeddingService,
	splitter *chunker.Splitter,
	workers int,
) *Pipeline {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	bySource := make(map[domain.SourceID]driven.SourceAdapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	return &Pipeline{
		adapters:    bySource,
		store:       store,
		checkpoints: checkpoints,
		embedder:    embedder,
		splitter:    splitter,
		workers:     workers,
	}
}

// Sources implements driving.Ingestor.
func (p *Pipeline) Sources() []domain.SourceID {
	out := make([]domain.SourceID, 0, len(p.adapters))
	for src := range p.adapters {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reindex implements driving.Ingestor. Documents within the batch are
// processed in parallel up to the worker bound; one document failing to
// embed or upsert is recorded and retried on the next run rather than
// aborting the batch. The checkpoint only advances past documents that
// succeeded.
func (p *Pipeline) Reindex(ctx context.Context, source domain.SourceID, full bool) (*domain.IngestionReport, error) {
	adapter, ok := p.adapters[source]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for source %q", domain.ErrNotFound, source)
	}

	var since time.Time
	prev, err := p.checkpoints.Get(ctx, source)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if prev != nil && !full {
		since = prev.LastModified
	}

	logger.Section("Ingestion")
	logger.Info("Reindexing %s (full=%t, since=%s)", source, full, since.Format(time.RFC3339))

	report := &domain.IngestionReport{
		ID:        uuid.New().String(),
		Source:    source,
		Full:      full,
		StartedAt: time.Now().UTC(),
	}

	docsCh, errsCh := adapter.FetchSince(ctx, since)

	var (
		mu           sync.Mutex
		succeededMax time.Time
		failedMin    time.Time
	)

	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	var fetchErr error
consume:
	for {
		select {
		case <-ctx.Done():
			fetchErr = ctx.Err()
			break consume

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil {
				fetchErr = fmt.Errorf("%w: fetch %s: %w", domain.ErrSourceUnavailable, source, err)
				break consume
			}

		case doc, ok := <-docsCh:
			if !ok {
				break consume
			}
			mu.Lock()
			report.DocumentsSeen++
			mu.Unlock()

			g.Go(func() error {
				written, err := p.ingestOne(ctx, &doc)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logger.Warn("Failed to ingest %s: %v", doc.ID(), err)
					report.Failures = append(report.Failures, domain.DocumentFailure{
						DocumentID: doc.ID(),
						Reason:     err.Error(),
					})
					if failedMin.IsZero() || doc.LastModified.Before(failedMin) {
						failedMin = doc.LastModified
					}
					return nil
				}
				report.DocumentsIndexed++
				report.ChunksWritten += written
				if doc.LastModified.After(succeededMax) {
					succeededMax = doc.LastModified
				}
				return nil
			})
		}
	}

	// Wait for in-flight documents before touching the checkpoint.
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].DocumentID < report.Failures[j].DocumentID
	})

	cp := p.nextCheckpoint(source, prev, succeededMax, failedMin)
	if report.DocumentsIndexed > 0 || prev == nil {
		if err := p.checkpoints.Save(ctx, cp); err != nil {
			return report, fmt.Errorf("save checkpoint: %w", err)
		}
	}
	report.Checkpoint = cp
	report.FinishedAt = time.Now().UTC()

	logger.Info("Reindex %s complete: %d/%d documents, %d chunks, %d failures",
		source, report.DocumentsIndexed, report.DocumentsSeen, report.ChunksWritten, len(report.Failures))

	if fetchErr != nil {
		return report, fetchErr
	}
	return report, nil
}

// ingestOne chunks, embeds and upserts a single document. Chunking and
// embedding are sequential per document; parallelism lives at the
// document level.
func (p *Pipeline) ingestOne(ctx context.Context, doc *domain.Document) (int, error) {
	chunks := p.splitter.Split(doc)
	if len(chunks) == 0 {
		// Content-free documents still replace any stale chunk set.
		if err := p.store.Upsert(ctx, doc, nil); err != nil {
			return 0, fmt.Errorf("upsert: %w", err)
		}
		return 0, nil
	}

	if p.embedder != nil {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Content
		}
		vectors, err := p.embedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed: %w", err)
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	}

	if err := p.store.Upsert(ctx, doc, chunks); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return len(chunks), nil
}

// embedBatch calls the embedding gateway with bounded retries and
// exponential backoff; gateway hiccups are transient by contract.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := embedRetryBackoff
	var lastErr error
	for attempt := 0; attempt < embedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		logger.Debug("Embed attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, lastErr)
}

// nextCheckpoint computes the post-run checkpoint: the latest succeeded
// timestamp, pulled back below the earliest failure so failed documents
// re-enter the next incremental run. It never regresses behind the
// previous checkpoint.
func (p *Pipeline) nextCheckpoint(source domain.SourceID, prev *domain.Checkpoint, succeededMax, failedMin time.Time) domain.Checkpoint {
	last := succeededMax
	if !failedMin.IsZero() && !failedMin.After(last) {
		last = failedMin.Add(-time.Nanosecond)
	}
	if prev != nil && prev.LastModified.After(last) {
		last = prev.LastModified
	}
	return domain.Checkpoint{
		Source:       source,
		LastModified: last,
		UpdatedAt:    time.Now().UTC(),
	}
}
