// Package driven defines the interfaces the core calls OUT to
// infrastructure: the secondary ports of the hexagon.
//
// # Required Interfaces
//
//   - DocumentStore: chunk persistence and similarity search
//   - CheckpointStore: per-source ingestion progress
//   - SourceAdapter: fetches documents from one content source
//   - AuthorizationProvider: resolves a principal's permitted sources
//
// # Optional Interfaces
//
//   - EmbeddingService: text to vector. When nil, retrieval degrades to
//     recency ordering and ingestion stores chunks without embeddings.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
