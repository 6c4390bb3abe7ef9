package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// The same instance must be used for document chunks and for queries: a
// model mismatch silently degrades dense retrieval instead of erroring,
// which is why the bound model is explicit and checkable via ModelName.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// Preferred over calling Embed in a loop during ingestion.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	// This is determined by the model and must match the vector index.
	Dimensions() int

	// ModelName returns the bound embedding model identifier.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
