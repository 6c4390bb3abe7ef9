package driven

import "context"

// SearchEngine provides sparse lexical search over chunk tokens using a
// BM25-style ranking. Like VectorIndex it is derived state, rebuildable
// from the chunk store.
//
// Tokens come from the shared script-aware tokeniser; no stemming is
// applied so legal terms of art and statute section numbers survive intact.
type SearchEngine interface {
	// Index adds or replaces the postings for a chunk.
	Index(ctx context.Context, chunkID string, tokens []string) error

	// Delete removes a chunk from the postings.
	Delete(ctx context.Context, chunkID string) error

	// Search ranks chunks against the query tokens. An empty index
	// returns an empty list, not an error.
	Search(ctx context.Context, tokens []string, limit int) ([]SearchHit, error)

	// Count returns the number of indexed chunks.
	Count() int

	// Reset drops all postings, in preparation for a rebuild.
	Reset(ctx context.Context) error

	// Close flushes and releases resources.
	Close() error
}

// SearchHit represents a sparse search result.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the BM25 relevance score.
	Score float64
}
