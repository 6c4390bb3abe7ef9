package driven

import "context"

// VectorIndex provides dense similarity search over chunk embeddings.
// It is a derived, rebuildable cache over the chunk store: it holds nothing
// that cannot be reconstructed from stored chunks.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID. Incremental; no full
	// rebuild is required as documents arrive over time.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k most similar vectors. Higher score means closer,
	// on a consistent scale across calls. An empty index returns an empty
	// list, not an error.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Count returns the number of indexed vectors.
	Count() int

	// Reset drops all vectors, in preparation for a rebuild.
	Reset(ctx context.Context) error

	// Close flushes and releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
