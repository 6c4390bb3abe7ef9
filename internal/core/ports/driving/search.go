package driving

import (
	"context"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

// SearchService is the query boundary. A query always returns something,
// possibly in a degraded mode, except when nothing has been ingested yet
// (RetrievalNoSources).
type SearchService interface {
	// Search runs hybrid retrieval and returns fused, hydrated results.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.RankedChunks, error)

	// AnswerContext returns the top chunks shaped for the external
	// answer-generation collaborator, with 1-based citation indexes.
	AnswerContext(ctx context.Context, query string, maxResults int) ([]domain.ContextChunk, error)
}
