package driven

import (
	"context"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// CheckpointStore persists per-source ingestion progress.
type CheckpointStore interface {
	// Get retrieves the checkpoint for a source.
	// Returns domain.ErrNotFound before the first successful run.
	Get(ctx context.Context, source domain.SourceID) (*domain.Checkpoint, error)

	// Save stores or updates a checkpoint.
	Save(ctx context.Context, cp domain.Checkpoint) error

	// Delete removes the checkpoint for a source.
	Delete(ctx context.Context, source domain.SourceID) error
}
