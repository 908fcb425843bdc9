package mcp

import "errors"

// ErrMissingContextService is returned when the context service is not provided.
var ErrMissingContextService = errors.New("mcp: context service is required")

// ErrNoAuthorizedSources is returned when no sources are granted to the server.
var ErrNoAuthorizedSources = errors.New("mcp: at least one authorized source is required")
