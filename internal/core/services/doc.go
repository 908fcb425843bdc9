// Package services implements the driving port interfaces: query
// planning, concurrent retrieval, merge and rank, the context facade
// and the ingestion pipeline. Services orchestrate calls to driven
// ports and contain no I/O of their own.
package services
