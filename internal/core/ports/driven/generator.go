package driven

import (
	"context"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

// AnswerGenerator turns a query plus retrieved context chunks into a
// natural-language answer with bracket citations. It is an external
// collaborator consumed downstream of retrieval; vidhik ships no
// implementation, only the boundary contract.
type AnswerGenerator interface {
	// Generate produces an answer grounded in the given context chunks.
	Generate(ctx context.Context, query string, chunks []domain.ContextChunk) (string, error)
}
