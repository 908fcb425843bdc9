package services

import (
	"sort"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// DefaultRankDecay controls how fast rank-derived scores fall off for
// recency-ordered results.
const DefaultRankDecay = 0.1

// Ranker combines per-source result lists into one bounded, ordered
// context list. Two-phase retrieval (generous per-source limits, then a
// strict global merge) is what makes the cross-source ranking
// meaningful rather than a concatenation of per-source top-Ks.
type Ranker struct {
	// Decay shapes the monotonically decreasing rank-to-score mapping
	// used for recency-ordered results: score = 1/(1+decay*rank).
	Decay float64
}

// NewRanker creates a ranker. A zero decay selects the default.
func NewRanker(decay float64) *Ranker {
	if decay <= 0 {
		decay = DefaultRankDecay
	}
	return &Ranker{Decay: decay}
}

// mergeEntry is one candidate during merge, before normalization.
type mergeEntry struct {
	chunk domain.Chunk
	raw   float64
}

// Merge deduplicates, normalizes and orders the combined results,
// truncated to limit. The output order is deterministic given identical
// inputs regardless of the arrival order of sub-query results.
func (r *Ranker) Merge(results []SourceResult, limit int) []domain.ContextItem {
	// 1. Deduplicate by (source, document id, position), keeping the
	// highest raw score observed across overlapping sub-queries.
	entries := make(map[string]mergeEntry)
	for _, res := range results {
		for rank, sc := range res.Chunks {
			raw := sc.Score
			if !res.Scored {
				// Recency-ordered results carry no similarity score;
				// derive one from the rank so they merge with scored
				// results.
				raw = 1.0 / (1.0 + r.Decay*float64(rank))
			}
			key := sc.Chunk.ID
			if prev, ok := entries[key]; !ok || raw > prev.raw {
				entries[key] = mergeEntry{chunk: sc.Chunk, raw: raw}
			}
		}
	}

	// 2. Normalize scores per source. Similarity scores are source-local
	// (each source's chunk population differs), so each source's scores
	// are mapped onto [0,1] using that source's observed min/max within
	// this result set before any cross-source comparison.
	minBySource := make(map[domain.SourceID]float64)
	maxBySource := make(map[domain.SourceID]float64)
	for _, e := range entries {
		src := e.chunk.Source
		if _, ok := minBySource[src]; !ok {
			minBySource[src] = e.raw
			maxBySource[src] = e.raw
			continue
		}
		if e.raw < minBySource[src] {
			minBySource[src] = e.raw
		}
		if e.raw > maxBySource[src] {
			maxBySource[src] = e.raw
		}
	}

	type scoredEntry struct {
		chunk domain.Chunk
		score float64
	}
	scored := make([]scoredEntry, 0, len(entries))
	for _, e := range entries {
		span := maxBySource[e.chunk.Source] - minBySource[e.chunk.Source]
		score := 1.0
		if span > 0 {
			score = (e.raw - minBySource[e.chunk.Source]) / span
		}
		scored = append(scored, scoredEntry{chunk: e.chunk, score: score})
	}

	// 3. Order by normalized score, then recency, then source name,
	// with the chunk id as a last resort so the result is fully
	// deterministic.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].chunk.Timestamp.Equal(scored[j].chunk.Timestamp) {
			return scored[i].chunk.Timestamp.After(scored[j].chunk.Timestamp)
		}
		if scored[i].chunk.Source != scored[j].chunk.Source {
			return scored[i].chunk.Source < scored[j].chunk.Source
		}
		return scored[i].chunk.ID < scored[j].chunk.ID
	})

	// 4. Truncate to the requested limit.
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	items := make([]domain.ContextItem, len(scored))
	for i, e := range scored {
		items[i] = domain.ContextItem{
			Kind:      e.chunk.Kind,
			Source:    e.chunk.Source,
			Content:   e.chunk.Content,
			Score:     e.score,
			Timestamp: e.chunk.Timestamp,
			Detail:    domain.DetailFromMetadata(e.chunk.Kind, e.chunk.Metadata),
		}
	}
	return items
}
