package driven

import (
	"context"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

// DocumentStore persists documents and chunks. It is the source of truth:
// both indexes can always be rebuilt from it.
type DocumentStore interface {
	// SaveDocument persists a document record.
	SaveDocument(ctx context.Context, doc domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and all of its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks persists a document's chunks in one transaction.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves a chunk by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// ChunksByDocument returns a document's chunks in sequence order.
	ChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ForEachChunk streams every stored chunk, for index rebuilds.
	// Iteration stops on the first error returned by fn.
	ForEachChunk(ctx context.Context, fn func(domain.Chunk) error) error

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// Close releases the store.
	Close() error
}
