// Package domain defines the core entities of the context engine.
//
// This is the innermost layer of the hexagonal architecture. It defines
// the fundamental types:
//
//   - Document: atomic source content before chunking
//   - Chunk: bounded text slice plus embedding vector, the search unit
//   - ContextItem: externally visible result with a typed payload
//   - Query / SubQuery: engine request and its per-source fan-out
//   - Checkpoint / IngestionReport: incremental ingestion state
//
// # Import Rules
//
//   - Can Import: standard library only
//   - Cannot Import: any internal/ package, any external dependency
package domain
