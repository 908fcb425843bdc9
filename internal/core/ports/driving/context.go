package driving

import (
	"context"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// ContextService is the engine's sole retrieval entry point.
type ContextService interface {
	// Retrieve assembles the ranked, deduplicated context list for a
	// query. The requested sources are intersected with
	// authorizedSources before planning; an empty intersection fails
	// with domain.ErrForbidden.
	Retrieve(ctx context.Context, q domain.Query, authorizedSources []domain.SourceID) (*domain.ContextResponse, error)
}
