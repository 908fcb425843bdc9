package driven

import "context"

// EmbeddingService generates vector embeddings from text. It is the
// engine's only latency and failure boundary toward the embedding
// model; implementations wrap OpenAI, Ollama or compatible APIs.
//
// Failures surface as errors wrapping domain.ErrEmbeddingUnavailable.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed embedding vector size. Every stored
	// chunk's embedding has this length.
	Dimensions() int

	// Ping verifies the gateway is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
