package domain

import "errors"

// Engine errors. Request-level errors propagate to the facade caller;
// per-source errors are converted into degraded-source entries by the
// retrieval executor.
var (
	// ErrInvalidQuery indicates a malformed or empty request.
	// Caller error, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrForbidden indicates the requested sources have no overlap with
	// the caller's authorized sources.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable indicates a source adapter failed or timed out.
	// Transient; surfaced as a degraded source at query time.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEmbeddingUnavailable indicates the embedding gateway failed.
	// Transient; retried with backoff during ingestion, degrades a query
	// to recency ordering at retrieval time.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrAllSourcesUnavailable indicates every sub-query of a request
	// failed. Fatal for the request.
	ErrAllSourcesUnavailable = errors.New("all sources unavailable")

	// ErrStoreUnavailable indicates the document store cannot be reached.
	// Fatal for the request.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrAuthExpired indicates an authentication token has expired.
	ErrAuthExpired = errors.New("authentication expired")
)
