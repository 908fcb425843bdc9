package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
	"github.com/tessellate-ai/contextd/internal/core/ports/driving"
	"github.com/tessellate-ai/contextd/internal/logger"
)

// EngineName identifies this engine in responses.
const EngineName = "contextd"

// Ensure ContextEngine implements the interface.
var _ driving.ContextService = (*ContextEngine)(nil)

// ContextEngine is the facade over planner, executor and ranker. It is
// the only entry point the transport layers call.
type ContextEngine struct {
	planner  *Planner
	executor *Executor
	ranker   *Ranker
	embedder driven.EmbeddingService

	// now is injectable for tests.
	now func() time.Time
}

// NewContextEngine wires the facade. The embedder is optional; without
// it every query ranks by recency.
func NewContextEngine(planner *Planner, executor *Executor, ranker *Ranker, embedder driven.EmbeddingService) *ContextEngine {
	return &ContextEngine{
		planner:  planner,
		executor: executor,
		ranker:   ranker,
		embedder: embedder,
		now:      time.Now,
	}
}

// Retrieve implements driving.ContextService.
func (e *ContextEngine) Retrieve(ctx context.Context, q domain.Query, authorizedSources []domain.SourceID) (*domain.ContextResponse, error) {
	logger.Section("Context Retrieval")

	q = q.Normalized()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// Never trust the caller's source list alone: intersect with what
	// the principal is actually allowed to see.
	permitted := intersectSources(q.Sources, authorizedSources)
	if len(permitted) == 0 {
		return nil, fmt.Errorf("%w: no authorized overlap with requested sources %v", domain.ErrForbidden, q.Sources)
	}
	q.Sources = permitted
	logger.Debug("Query: text=%q entity=%v sources=%v limit=%d", q.Text, q.EntityFocus, q.Sources, q.Limit)

	now := e.now()
	subs, err := e.planner.Plan(q, now)
	if err != nil {
		return nil, err
	}

	vector := e.queryVector(ctx, q.Text)
	results, degraded, err := e.executor.Execute(ctx, subs, vector)
	if err != nil {
		return nil, err
	}

	items := e.ranker.Merge(results, q.Limit)
	logger.Info("Retrieved %d items (%d sources degraded)", len(items), len(degraded))

	return &domain.ContextResponse{
		Engine:          EngineName,
		Items:           items,
		DegradedSources: degraded,
		Query:           q,
		GeneratedAt:     now,
	}, nil
}

// queryVector embeds the query text. When the gateway is missing or
// fails, retrieval degrades to recency ordering instead of failing the
// request.
func (e *ContextEngine) queryVector(ctx context.Context, text string) []float32 {
	if text == "" || e.embedder == nil {
		return nil
	}
	vector, err := e.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("Query embedding failed, falling back to recency ordering: %v", err)
		return nil
	}
	logger.Debug("Query embedding: %d dimensions", len(vector))
	return vector
}

// intersectSources keeps the requested sources the caller is authorized
// for, preserving request order.
func intersectSources(requested, authorized []domain.SourceID) []domain.SourceID {
	allowed := make(map[domain.SourceID]bool, len(authorized))
	for _, src := range authorized {
		allowed[src] = true
	}
	var out []domain.SourceID
	for _, src := range requested {
		if allowed[src] {
			out = append(out, src)
		}
	}
	return out
}
