package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driving"
	"github.com/vidhik-labs/vidhik-cli/internal/logger"
	"github.com/vidhik-labs/vidhik-cli/internal/normalisers/text"
)

// Ensure SearchOrchestrator implements the interface.
var _ driving.SearchService = (*SearchOrchestrator)(nil)

// SearchOrchestrator runs hybrid retrieval: dense and sparse legs in
// parallel, per-query min-max normalisation, weighted fusion over the
// union of candidates. Either leg failing degrades the query rather than
// failing it.
type SearchOrchestrator struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorIndex
	sparse   driven.SearchEngine
	docStore driven.DocumentStore
	settings domain.Settings
}

// NewSearchOrchestrator wires the retrieval pipeline. The embedder must be
// the same instance used at ingestion time.
func NewSearchOrchestrator(
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	sparse driven.SearchEngine,
	docStore driven.DocumentStore,
	settings domain.Settings,
) *SearchOrchestrator {
	return &SearchOrchestrator{
		embedder: embedder,
		vectors:  vectors,
		sparse:   sparse,
		docStore: docStore,
		settings: settings,
	}
}

// candidate accumulates one chunk's raw leg scores before fusion.
type candidate struct {
	chunkID   string
	dense     float64
	sparse    float64
	hasDense  bool
	hasSparse bool
}

// Search runs one hybrid retrieval query.
func (o *SearchOrchestrator) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.RankedChunks, error) {
	normalised := text.Normalise(query)
	if normalised == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	if o.vectors.Count() == 0 && o.sparse.Count() == 0 {
		return &domain.RankedChunks{Mode: domain.RetrievalNoSources}, domain.ErrNoSources
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = o.settings.TopK
	}
	denseK := opts.DenseK
	if denseK <= 0 {
		denseK = o.settings.DenseK
	}
	sparseK := opts.SparseK
	if sparseK <= 0 {
		sparseK = o.settings.SparseK
	}

	// Both legs run concurrently; each failure is recorded, not returned.
	var (
		wg        sync.WaitGroup
		denseHits []driven.VectorHit
		denseErr  error
		sparseHit []driven.SearchHit
		sparseErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		denseHits, denseErr = o.denseLeg(ctx, normalised, denseK)
	}()
	go func() {
		defer wg.Done()
		sparseHit, sparseErr = o.sparse.Search(ctx, text.Tokenise(normalised), sparseK)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := domain.RetrievalHybrid
	switch {
	case denseErr != nil && sparseErr != nil:
		return nil, fmt.Errorf("both retrieval legs failed: dense: %v; sparse: %w", denseErr, sparseErr)
	case denseErr != nil:
		logger.Warn("Dense leg failed, degrading to sparse only: %v", denseErr)
		mode = domain.RetrievalSparseOnly
	case sparseErr != nil:
		logger.Warn("Sparse leg failed, degrading to dense only: %v", sparseErr)
		mode = domain.RetrievalDenseOnly
	}

	fused := fuse(denseHits, sparseHit, o.settings.DenseWeight, o.settings.SparseWeight)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	results, err := o.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	logger.Debug("Query %q: %d results, mode %s", normalised, len(results), mode)
	return &domain.RankedChunks{Results: results, Mode: mode}, nil
}

// denseLeg embeds the query and searches the vector index.
func (o *SearchOrchestrator) denseLeg(ctx context.Context, query string, k int) ([]driven.VectorHit, error) {
	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return o.vectors.Search(ctx, vec, k)
}

// fusedHit is a scored chunk after fusion, before hydration.
type fusedHit struct {
	chunkID string
	dense   float64
	sparse  float64
	score   float64
}

// fuse min-max normalises each leg over its own candidate pool, then
// combines with the configured weights over the union of both pools. A
// chunk absent from a leg contributes 0 for that leg, so a chunk found by
// both legs outranks an equally strong single-leg chunk.
func fuse(dense []driven.VectorHit, sparse []driven.SearchHit, denseWeight, sparseWeight float64) []fusedHit {
	candidates := map[string]*candidate{}
	ensure := func(chunkID string) *candidate {
		c, ok := candidates[chunkID]
		if !ok {
			c = &candidate{chunkID: chunkID}
			candidates[chunkID] = c
		}
		return c
	}

	for _, h := range dense {
		c := ensure(h.ChunkID)
		c.dense = h.Similarity
		c.hasDense = true
	}
	for _, h := range sparse {
		c := ensure(h.ChunkID)
		c.sparse = h.Score
		c.hasSparse = true
	}

	denseMin, denseMax := legRange(dense, func(h driven.VectorHit) float64 { return h.Similarity })
	sparseMin, sparseMax := legRange(sparse, func(h driven.SearchHit) float64 { return h.Score })

	out := make([]fusedHit, 0, len(candidates))
	for _, c := range candidates {
		h := fusedHit{chunkID: c.chunkID}
		if c.hasDense {
			h.dense = minMax(c.dense, denseMin, denseMax)
		}
		if c.hasSparse {
			h.sparse = minMax(c.sparse, sparseMin, sparseMax)
		}
		h.score = denseWeight*h.dense + sparseWeight*h.sparse
		out = append(out, h)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score != b.score {
			return a.score > b.score
		}
		// Ties break towards the stronger individual leg, then by chunk
		// ID so ordering is deterministic across runs.
		aLeg, bLeg := max(a.dense, a.sparse), max(b.dense, b.sparse)
		if aLeg != bLeg {
			return aLeg > bLeg
		}
		return a.chunkID < b.chunkID
	})

	return out
}

// legRange finds the min and max raw score of one leg's candidate pool.
func legRange[T any](hits []T, score func(T) float64) (float64, float64) {
	if len(hits) == 0 {
		return 0, 0
	}
	lo, hi := score(hits[0]), score(hits[0])
	for _, h := range hits[1:] {
		s := score(h)
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}

// minMax scales a raw score into [0,1] over its leg's observed range. A
// degenerate range (single candidate, or all scores equal) maps to 1 so
// the sole candidate keeps its full leg weight.
func minMax(v, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return (v - lo) / (hi - lo)
}

// hydrate resolves fused chunk IDs against the chunk store. A chunk
// missing from the store (deleted since indexing) is skipped, not fatal.
func (o *SearchOrchestrator) hydrate(ctx context.Context, hits []fusedHit) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(hits))
	docs := map[string]*domain.Document{}

	for _, h := range hits {
		chunk, err := o.docStore.GetChunk(ctx, h.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Debug("Chunk %s in index but not in store, skipping", h.chunkID)
				continue
			}
			return nil, fmt.Errorf("load chunk %s: %w", h.chunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = o.docStore.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("load document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		results = append(results, domain.SearchResult{
			Document:    *doc,
			Chunk:       *chunk,
			DenseScore:  h.dense,
			SparseScore: h.sparse,
			Score:       h.score,
		})
	}

	return results, nil
}

// AnswerContext shapes the top results for the external answer generator.
func (o *SearchOrchestrator) AnswerContext(ctx context.Context, query string, maxResults int) ([]domain.ContextChunk, error) {
	if maxResults <= 0 {
		maxResults = o.settings.TopK
	}

	ranked, err := o.Search(ctx, query, domain.SearchOptions{Limit: maxResults})
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.ContextChunk, 0, len(ranked.Results))
	for i, r := range ranked.Results {
		chunks = append(chunks, domain.ContextChunk{
			Citation:   i + 1,
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Document.ID,
			Filename:   r.Document.Filename,
			PageStart:  r.Chunk.PageStart,
			PageEnd:    r.Chunk.PageEnd,
			Text:       r.Chunk.Content,
			Score:      r.Score,
			Degraded:   ranked.Mode.Degraded(),
		})
	}
	return chunks, nil
}
