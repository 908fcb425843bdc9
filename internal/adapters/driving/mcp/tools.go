package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// GetContextInput is the input schema for the get_context tool.
type GetContextInput struct {
	Query        string            `json:"query,omitempty" jsonschema:"free-text query to search for"`
	Sources      []string          `json:"sources,omitempty" jsonschema:"sources to search (zoom, gmail, notion, salesforce); all authorized sources when empty"`
	Limit        int               `json:"limit,omitempty" jsonschema:"maximum number of context items to return (default 10)"`
	DaysBack     int               `json:"days_back,omitempty" jsonschema:"restrict results to the last N days"`
	IncludeFresh *bool             `json:"include_fresh,omitempty" jsonschema:"when false, return items older than the days_back cutoff instead"`
	EntityFocus  map[string]string `json:"entity_focus,omitempty" jsonschema:"metadata equality filter, e.g. {\"account_id\": \"acc-1\"}"`
}

// ContextItemOutput represents a single context item.
type ContextItemOutput struct {
	Kind      string            `json:"type"`
	Source    string            `json:"source"`
	Content   string            `json:"content"`
	Score     float64           `json:"relevance_score"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    domain.ItemDetail `json:"detail,omitempty"`
}

// GetContextOutput is the output schema for the get_context tool.
type GetContextOutput struct {
	Items           []ContextItemOutput `json:"context_items"`
	Count           int                 `json:"count"`
	DegradedSources []string            `json:"degraded_sources,omitempty"`
}

// ReindexInput is the input schema for the reindex tool.
type ReindexInput struct {
	Source string `json:"source" jsonschema:"the source to reindex (zoom, gmail, notion, salesforce)"`
	Full   bool   `json:"full,omitempty" jsonschema:"ignore the checkpoint and refetch everything"`
}

// ReindexOutput is the output schema for the reindex tool.
type ReindexOutput struct {
	Source           string `json:"source"`
	Full             bool   `json:"full"`
	DocumentsSeen    int    `json:"documents_seen"`
	DocumentsIndexed int    `json:"documents_indexed"`
	ChunksWritten    int    `json:"chunks_written"`
	Failures         int    `json:"failures"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.inner, &mcp.Tool{
		Name:        "get_context",
		Description: "Retrieve ranked context items from the user's zoom, gmail, notion and salesforce content",
	}, s.handleGetContext)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.inner, &mcp.Tool{
			Name:        "reindex",
			Description: "Re-ingest one source's content into the context index",
		}, s.handleReindex)
	}
}

// handleGetContext handles the get_context tool invocation.
func (s *Server) handleGetContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetContextInput,
) (*mcp.CallToolResult, GetContextOutput, error) {
	query := domain.Query{
		Text:        input.Query,
		EntityFocus: input.EntityFocus,
		Limit:       input.Limit,
	}

	if len(input.Sources) == 0 {
		query.Sources = s.ports.AuthorizedSources
	} else {
		for _, raw := range input.Sources {
			source, err := domain.ParseSourceID(raw)
			if err != nil {
				return nil, GetContextOutput{}, err
			}
			query.Sources = append(query.Sources, source)
		}
	}

	if input.DaysBack > 0 {
		query.TimeRange = &domain.TimeRange{
			DaysBack:     input.DaysBack,
			IncludeFresh: input.IncludeFresh,
		}
	}

	resp, err := s.ports.Context.Retrieve(ctx, query, s.ports.AuthorizedSources)
	if err != nil {
		return nil, GetContextOutput{}, err
	}

	output := GetContextOutput{
		Items: make([]ContextItemOutput, len(resp.Items)),
		Count: len(resp.Items),
	}
	for i := range resp.Items {
		item := resp.Items[i]
		output.Items[i] = ContextItemOutput{
			Kind:      string(item.Kind),
			Source:    string(item.Source),
			Content:   item.Content,
			Score:     item.Score,
			Timestamp: item.Timestamp,
			Detail:    item.Detail,
		}
	}
	for _, source := range resp.DegradedSources {
		output.DegradedSources = append(output.DegradedSources, string(source))
	}

	return nil, output, nil
}

// handleReindex handles the reindex tool invocation.
func (s *Server) handleReindex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReindexInput,
) (*mcp.CallToolResult, ReindexOutput, error) {
	source, err := domain.ParseSourceID(input.Source)
	if err != nil {
		return nil, ReindexOutput{}, err
	}

	authorized := false
	for _, granted := range s.ports.AuthorizedSources {
		if granted == source {
			authorized = true
			break
		}
	}
	if !authorized {
		return nil, ReindexOutput{}, fmt.Errorf("%w: source %s not authorized", domain.ErrForbidden, source)
	}

	report, err := s.ports.Ingest.Reindex(ctx, source, input.Full)
	if err != nil {
		return nil, ReindexOutput{}, err
	}

	return nil, ReindexOutput{
		Source:           string(report.Source),
		Full:             report.Full,
		DocumentsSeen:    report.DocumentsSeen,
		DocumentsIndexed: report.DocumentsIndexed,
		ChunksWritten:    report.ChunksWritten,
		Failures:         len(report.Failures),
	}, nil
}
