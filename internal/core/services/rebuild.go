package services

import (
	"context"
	"fmt"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driving"
	"github.com/vidhik-labs/vidhik-cli/internal/logger"
	"github.com/vidhik-labs/vidhik-cli/internal/normalisers/text"
)

// Ensure Rebuilder implements the interface.
var _ driving.IndexAdmin = (*Rebuilder)(nil)

// Rebuilder reconstructs both indexes from the chunk store. This is the
// recovery path for a corrupt index file: the store is the source of
// truth, the indexes are derived state.
type Rebuilder struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorIndex
	sparse   driven.SearchEngine
	docStore driven.DocumentStore
}

// NewRebuilder wires an index rebuilder.
func NewRebuilder(
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	sparse driven.SearchEngine,
	docStore driven.DocumentStore,
) *Rebuilder {
	return &Rebuilder{
		embedder: embedder,
		vectors:  vectors,
		sparse:   sparse,
		docStore: docStore,
	}
}

// Rebuild drops both indexes and re-indexes every stored chunk. A chunk
// whose embedding fails is re-indexed sparse-only, same as at ingestion.
func (r *Rebuilder) Rebuild(ctx context.Context) (int, error) {
	logger.Section("Rebuild indexes")

	if err := r.sparse.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset sparse index: %w", err)
	}
	if err := r.vectors.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset vector index: %w", err)
	}

	count := 0
	skippedDense := 0

	err := r.docStore.ForEachChunk(ctx, func(chunk domain.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.sparse.Index(ctx, chunk.ID, text.Tokenise(chunk.Content)); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}

		vec, err := r.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			logger.Warn("Chunk %s: embedding failed, dense index skipped: %v", chunk.ID, err)
			skippedDense++
		} else if err := r.vectors.Add(ctx, chunk.ID, vec); err != nil {
			return fmt.Errorf("add vector for chunk %s: %w", chunk.ID, err)
		}

		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	if skippedDense > 0 {
		logger.Warn("%d of %d chunks rebuilt without dense vectors", skippedDense, count)
	}
	logger.Info("Rebuilt %d chunks", count)
	return count, nil
}
