package domain

import "time"

// Checkpoint marks the last successfully ingested point for one source.
// It is persisted externally and passed into each ingestion run, so runs
// are parallelizable across sources and restartable after a crash.
type Checkpoint struct {
	// Source the checkpoint belongs to.
	Source SourceID

	// LastModified is the upstream modification time the source has been
	// ingested up to. The next incremental run fetches documents modified
	// after this instant.
	LastModified time.Time

	// UpdatedAt records when the checkpoint was last advanced.
	UpdatedAt time.Time
}

// DocumentFailure records one document that could not be ingested.
// Failed documents are retried on the next run because the checkpoint
// never advances past them.
type DocumentFailure struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}

// IngestionReport summarises one ingestion run for one source.
type IngestionReport struct {
	ID               string            `json:"id"`
	Source           SourceID          `json:"source"`
	Full             bool              `json:"full"`
	DocumentsSeen    int               `json:"documents_seen"`
	DocumentsIndexed int               `json:"documents_indexed"`
	ChunksWritten    int               `json:"chunks_written"`
	Failures         []DocumentFailure `json:"failures,omitempty"`
	Checkpoint       Checkpoint        `json:"checkpoint"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}
