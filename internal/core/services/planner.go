package services

import (
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// Planner fan-out defaults. The fanout factor inflates per-source
// limits above the final limit because no single source's top-K is
// guaranteed to contain the cross-source top-K, and deduplication
// discards some of what each source returns.
const (
	DefaultFanoutFactor = 3
	DefaultMaxPerSource = 100
)

// Planner maps a query to one sub-query per requested source.
// Plan is a pure function; the current time is passed in.
type Planner struct {
	// FanoutFactor multiplies the global limit into per-source limits.
	// Values below 2 are raised to 2.
	FanoutFactor int

	// MaxPerSource caps the per-source retrieval limit.
	MaxPerSource int
}

// NewPlanner creates a planner with the given fan-out settings.
// Zero values select the defaults.
func NewPlanner(fanoutFactor, maxPerSource int) *Planner {
	if fanoutFactor == 0 {
		fanoutFactor = DefaultFanoutFactor
	}
	if fanoutFactor < 2 {
		fanoutFactor = 2
	}
	if maxPerSource <= 0 {
		maxPerSource = DefaultMaxPerSource
	}
	return &Planner{FanoutFactor: fanoutFactor, MaxPerSource: maxPerSource}
}

// Plan produces the sub-queries for a normalized query. The query must
// already be validated; an empty source set fails with ErrInvalidQuery.
func (p *Planner) Plan(q domain.Query, now time.Time) ([]domain.SubQuery, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	perSource := q.Limit * p.FanoutFactor
	if perSource > p.MaxPerSource {
		perSource = p.MaxPerSource
	}

	var cutoff time.Time
	newer := true
	if tr := q.TimeRange; tr != nil {
		cutoff = now.AddDate(0, 0, -tr.DaysBack)
		if tr.IncludeFresh != nil {
			newer = *tr.IncludeFresh
		}
	}

	subs := make([]domain.SubQuery, 0, len(q.Sources))
	for _, src := range q.Sources {
		subs = append(subs, domain.SubQuery{
			Source: src,
			Text:   q.Text,
			Entity: q.EntityFocus,
			Cutoff: cutoff,
			Newer:  newer,
			Limit:  perSource,
		})
	}
	return subs, nil
}
