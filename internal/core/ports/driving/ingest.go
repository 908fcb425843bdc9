package driving

import (
	"context"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// Ingestor triggers ingestion runs on demand.
type Ingestor interface {
	// Reindex runs one ingestion pass for a source. When full is true
	// the per-source checkpoint is ignored and everything upstream is
	// refetched; the operation is idempotent either way.
	Reindex(ctx context.Context, source domain.SourceID, full bool) (*domain.IngestionReport, error)

	// Sources lists the sources with a configured adapter.
	Sources() []domain.SourceID
}
