package driven

import (
	"context"
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// SourceAdapter fetches documents from one content source. Adapters own
// all source-specific concerns (authentication, pagination, rate
// limits); the core consumes them only as a uniform document fetcher.
type SourceAdapter interface {
	// Source returns the source this adapter serves.
	Source() domain.SourceID

	// FetchSince streams documents modified after the given instant.
	// A zero time requests everything the source has. The document
	// channel is closed when the sequence ends; terminal failures are
	// sent on the error channel as domain.ErrSourceUnavailable or
	// domain.ErrAuthExpired wraps.
	FetchSince(ctx context.Context, since time.Time) (<-chan domain.Document, <-chan error)

	// Close releases resources.
	Close() error
}
