package domain

import (
	"fmt"
	"time"
)

// ItemKind classifies a piece of content within a source.
type ItemKind string

// Known content kinds. Zoom produces meetings, Gmail produces emails,
// Notion produces pages, Salesforce produces CRM records.
const (
	KindEmail       ItemKind = "email"
	KindMeeting     ItemKind = "meeting"
	KindPage        ItemKind = "document"
	KindOpportunity ItemKind = "opportunity"
	KindAccount     ItemKind = "account"
	KindContact     ItemKind = "contact"
)

// Document is one atomic piece of source content before chunking: an
// email, a meeting transcript, a knowledge-base page or a CRM record.
// Documents are owned by the ingestion pipeline and never mutated by
// the retrieval path.
type Document struct {
	// Source identifies the adapter that produced this document.
	Source SourceID

	// ExternalID is the source-native identifier (thread id, meeting id,
	// page id, record id). Unique within a source.
	ExternalID string

	// Kind classifies the content.
	Kind ItemKind

	// Text is the raw content to be chunked and embedded.
	Text string

	// Metadata holds source-specific display fields (sender, participants,
	// title, duration, entity ids). Shape varies by source.
	Metadata map[string]string

	// LastModified is the upstream modification timestamp. Drives
	// incremental ingestion checkpoints.
	LastModified time.Time
}

// ID returns the store-wide document identifier.
func (d *Document) ID() string {
	return string(d.Source) + "/" + d.ExternalID
}

// Chunk is a bounded slice of a document's text plus its embedding
// vector, the unit of semantic search. Chunks are immutable after
// creation; when the parent document changes, its chunk set is replaced
// atomically.
type Chunk struct {
	// ID is derived from the parent document id and the chunk position,
	// so reindexing unchanged content produces an identical chunk set.
	ID string

	// DocumentID references the parent document.
	DocumentID string

	// Source, Kind, Metadata and Timestamp are copied from the parent so
	// filtered search needs no join.
	Source    SourceID
	Kind      ItemKind
	Metadata  map[string]string
	Timestamp time.Time

	// Content is the text span.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation. Its length always equals
	// the embedding gateway's configured output size.
	Embedding []float32
}

// ChunkID derives the deterministic identifier for a chunk.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s#%03d", documentID, position)
}
