package domain

import (
	"fmt"
	"time"
)

// Result limit bounds. Requests outside the bounds are clamped rather
// than rejected.
const (
	DefaultLimit = 10
	MinLimit     = 1
	MaxLimit     = 50
)

// TimeRange restricts a query to a window of recent activity.
type TimeRange struct {
	// DaysBack is the size of the window, counted back from now.
	DaysBack int `json:"days_back"`

	// IncludeFresh selects which side of the cutoff survives: items newer
	// than the cutoff when true (the default), items at or older than the
	// cutoff when false.
	IncludeFresh *bool `json:"include_fresh,omitempty"`
}

// Query is a request to the context engine. At least one of Text and
// EntityFocus should be present; with neither, the query degenerates to
// "most recent per source".
type Query struct {
	// Text is the free-text query, embedded for semantic search.
	Text string `json:"query,omitempty"`

	// EntityFocus narrows results to chunks whose metadata matches every
	// given key/value pair (e.g. account_id).
	EntityFocus map[string]string `json:"entity_focus,omitempty"`

	// TimeRange optionally restricts the window of results.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// Sources is the set of requested sources. Must be non-empty.
	Sources []SourceID `json:"sources"`

	// Limit bounds the final merged result list.
	Limit int `json:"limit,omitempty"`
}

// Normalized returns a copy with the limit defaulted and clamped and
// duplicate sources removed, preserving request order.
func (q Query) Normalized() Query {
	out := q
	switch {
	case out.Limit == 0:
		out.Limit = DefaultLimit
	case out.Limit < MinLimit:
		out.Limit = MinLimit
	case out.Limit > MaxLimit:
		out.Limit = MaxLimit
	}

	seen := make(map[SourceID]bool, len(q.Sources))
	out.Sources = make([]SourceID, 0, len(q.Sources))
	for _, src := range q.Sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		out.Sources = append(out.Sources, src)
	}
	return out
}

// Validate checks structural validity. Limit bounds are not enforced
// here; Normalized clamps them.
func (q Query) Validate() error {
	if len(q.Sources) == 0 {
		return fmt.Errorf("%w: no sources requested", ErrInvalidQuery)
	}
	for _, src := range q.Sources {
		if !src.Valid() {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidQuery, src)
		}
	}
	if q.TimeRange != nil && q.TimeRange.DaysBack <= 0 {
		return fmt.Errorf("%w: days_back must be positive", ErrInvalidQuery)
	}
	return nil
}

// RecencyOnly reports whether the query carries neither text nor an
// entity focus and therefore ranks purely by recency.
func (q Query) RecencyOnly() bool {
	return q.Text == "" && len(q.EntityFocus) == 0
}

// SubQuery is one unit of retrieval work, produced by the planner for
// each requested source.
type SubQuery struct {
	// Source is the single source this sub-query targets.
	Source SourceID

	// Text is the query text, shared across sub-queries.
	Text string

	// Entity carries the entity-focus equality filter.
	Entity map[string]string

	// Cutoff is the resolved time boundary; zero means unrestricted.
	Cutoff time.Time

	// Newer selects items at or after the cutoff when true, at or before
	// it when false. Ignored when Cutoff is zero.
	Newer bool

	// Limit is the per-source retrieval limit, set generously above the
	// final limit to absorb deduplication losses.
	Limit int
}

// ContextResponse is the stable response shape of the engine. It is
// well-defined even when degraded: partial items plus the list of
// sources that failed.
type ContextResponse struct {
	// Engine names the responding system.
	Engine string `json:"source"`

	// Items is the merged, ranked, deduplicated result list.
	Items []ContextItem `json:"context_items"`

	// DegradedSources lists requested sources that failed or timed out
	// and contributed no items.
	DegradedSources []SourceID `json:"degraded_sources,omitempty"`

	// Query echoes the normalized request.
	Query Query `json:"query"`

	// GeneratedAt is the response generation timestamp.
	GeneratedAt time.Time `json:"timestamp"`
}
