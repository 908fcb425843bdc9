// Package driving defines the interfaces external surfaces (CLI, HTTP,
// MCP) use to drive the engine. Implementations live in
// internal/core/services.
package driving
