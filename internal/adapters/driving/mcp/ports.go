// Package mcp exposes the context engine to agent runtimes over the
// Model Context Protocol. The MCP surface runs with a fixed set of
// authorized sources configured at startup; per-principal scoping is
// the HTTP API's job.
package mcp

import (
	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP
// server. This provides a single injection point.
type Ports struct {
	// Context provides retrieval.
	Context driving.ContextService

	// Ingest triggers reindex runs. Optional; without it the reindex
	// tool is not registered.
	Ingest driving.Ingestor

	// AuthorizedSources is the source set every tool call may touch.
	AuthorizedSources []domain.SourceID
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Context == nil {
		return ErrMissingContextService
	}
	if len(p.AuthorizedSources) == 0 {
		return ErrNoAuthorizedSources
	}
	return nil
}
