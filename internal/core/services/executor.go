package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
	"github.com/tessellate-ai/contextd/internal/logger"
)

// DefaultSubQueryTimeout bounds each per-source retrieval.
const DefaultSubQueryTimeout = 5 * time.Second

// SourceResult is the outcome of one successful sub-query.
type SourceResult struct {
	// Source the result belongs to.
	Source domain.SourceID

	// Chunks with their source-local scores, in store order.
	Chunks []driven.ScoredChunk

	// Scored is true when similarity search produced the scores and
	// false when the store fell back to recency ordering.
	Scored bool
}

// Executor runs sub-queries against the document store concurrently:
// one unit of work per source, joined before merging.
type Executor struct {
	store   driven.DocumentStore
	timeout time.Duration
}

// NewExecutor creates an executor. A zero timeout selects the default.
func NewExecutor(store driven.DocumentStore, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultSubQueryTimeout
	}
	return &Executor{store: store, timeout: timeout}
}

// Execute fans the sub-queries out, each with its own deadline, and
// joins the partial results. A single source's failure or timeout does
// not fail the request: the source is recorded as degraded and
// contributes zero items. Execute fails only when the store itself is
// unreachable or when every source fails.
func (e *Executor) Execute(ctx context.Context, subs []domain.SubQuery, vector []float32) ([]SourceResult, []domain.SourceID, error) {
	type outcome struct {
		result SourceResult
		err    error
	}

	outcomes := make([]outcome, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub domain.SubQuery) {
			defer wg.Done()

			subCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			chunks, err := e.store.Search(subCtx, driven.SearchFilter{
				Source: sub.Source,
				Vector: vector,
				Entity: sub.Entity,
				Cutoff: sub.Cutoff,
				Newer:  sub.Newer,
				Limit:  sub.Limit,
			})
			if err != nil {
				outcomes[i] = outcome{err: fmt.Errorf("source %s: %w", sub.Source, err)}
				return
			}
			outcomes[i] = outcome{result: SourceResult{
				Source: sub.Source,
				Chunks: chunks,
				Scored: vector != nil,
			}}
		}(i, sub)
	}
	wg.Wait()

	results := make([]SourceResult, 0, len(subs))
	var degraded []domain.SourceID
	var failures []error

	for i, out := range outcomes {
		if out.err == nil {
			results = append(results, out.result)
			continue
		}
		// The store being down dooms every sub-query; propagate instead
		// of reporting four degraded sources.
		if errors.Is(out.err, domain.ErrStoreUnavailable) {
			return nil, nil, out.err
		}
		logger.Warn("Sub-query degraded: %v", out.err)
		degraded = append(degraded, subs[i].Source)
		failures = append(failures, out.err)
	}

	if len(results) == 0 && len(subs) > 0 {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrAllSourcesUnavailable, errors.Join(failures...))
	}

	sort.Slice(degraded, func(i, j int) bool { return degraded[i] < degraded[j] })
	return results, degraded, nil
}
