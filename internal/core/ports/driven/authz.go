package driven

import (
	"context"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// AuthorizationProvider resolves the set of sources a principal may
// query. Consumed by the facade only; lower layers never see
// principals.
type AuthorizationProvider interface {
	// AuthorizedSources returns the sources the principal may access.
	// Returns domain.ErrForbidden for unknown or disabled principals.
	AuthorizedSources(ctx context.Context, principal string) ([]domain.SourceID, error)
}
