package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

type searchFixture struct {
	embedder *mockEmbedder
	vectors  *mockVectorIndex
	sparse   *mockSearchEngine
	docStore *mockDocStore
	settings domain.Settings
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	f := &searchFixture{
		embedder: &mockEmbedder{dims: 4},
		vectors:  newMockVectorIndex(),
		sparse:   newMockSearchEngine(),
		docStore: newMockDocStore(),
		settings: domain.DefaultSettings(),
	}

	doc := domain.Document{ID: "doc-1", Filename: "judgment.pdf", PageCount: 3}
	require.NoError(t, f.docStore.SaveDocument(context.Background(), doc))
	return f
}

// seedChunk registers a chunk in the store and marks both indexes
// non-empty so the no-sources gate stays open.
func (f *searchFixture) seedChunk(t *testing.T, chunkID, content string) {
	t.Helper()
	chunk := domain.Chunk{
		ID:         chunkID,
		DocumentID: "doc-1",
		Content:    content,
		PageStart:  0,
		PageEnd:    1,
	}
	require.NoError(t, f.docStore.SaveChunks(context.Background(), []domain.Chunk{chunk}))
	f.vectors.vectors[chunkID] = []float32{0.1, 0.1, 0.1, 0.1}
	f.sparse.postings[chunkID] = []string{"seed"}
}

func (f *searchFixture) orchestrator() *SearchOrchestrator {
	return NewSearchOrchestrator(f.embedder, f.vectors, f.sparse, f.docStore, f.settings)
}

func TestSearch_HybridFusion(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "murder conviction under section 302")
	f.seedChunk(t, "doc-1:0001", "bail application procedure")
	f.seedChunk(t, "doc-1:0002", "हत्या के आरोप में दोषसिद्धि")

	// 0000 is strong on both legs, 0001 dense only, 0002 sparse only.
	f.vectors.hits = []driven.VectorHit{
		{ChunkID: "doc-1:0000", Similarity: 0.95},
		{ChunkID: "doc-1:0001", Similarity: 0.60},
	}
	f.sparse.hits = []driven.SearchHit{
		{ChunkID: "doc-1:0000", Score: 12.4},
		{ChunkID: "doc-1:0002", Score: 5.1},
	}

	ranked, err := f.orchestrator().Search(context.Background(), "section 302 murder", domain.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalHybrid, ranked.Mode)
	require.Len(t, ranked.Results, 3)

	// The chunk found by both legs outranks every single-leg chunk.
	assert.Equal(t, "doc-1:0000", ranked.Results[0].Chunk.ID)
	assert.Equal(t, 1.0, ranked.Results[0].DenseScore)
	assert.Equal(t, 1.0, ranked.Results[0].SparseScore)
	assert.InDelta(t, 1.0, ranked.Results[0].Score, 1e-9)

	// Results remain ordered by fused score.
	for i := 1; i < len(ranked.Results); i++ {
		assert.GreaterOrEqual(t, ranked.Results[i-1].Score, ranked.Results[i].Score)
	}

	// Union recall: the sparse-only chunk still surfaces.
	ids := []string{ranked.Results[0].Chunk.ID, ranked.Results[1].Chunk.ID, ranked.Results[2].Chunk.ID}
	assert.Contains(t, ids, "doc-1:0002")
	assert.Contains(t, ids, "doc-1:0001")

	// Hydration attached the parent document.
	assert.Equal(t, "judgment.pdf", ranked.Results[0].Document.Filename)
}

func TestSearch_WeightsShiftRanking(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "dense favourite")
	f.seedChunk(t, "doc-1:0001", "sparse favourite")
	f.seedChunk(t, "doc-1:0002", "filler")

	f.vectors.hits = []driven.VectorHit{
		{ChunkID: "doc-1:0000", Similarity: 0.9},
		{ChunkID: "doc-1:0002", Similarity: 0.2},
	}
	f.sparse.hits = []driven.SearchHit{
		{ChunkID: "doc-1:0001", Score: 9.0},
		{ChunkID: "doc-1:0002", Score: 2.0},
	}

	f.settings.DenseWeight = 1.0
	f.settings.SparseWeight = 0.0
	ranked, err := f.orchestrator().Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "doc-1:0000", ranked.Results[0].Chunk.ID)

	f.settings.DenseWeight = 0.0
	f.settings.SparseWeight = 1.0
	ranked, err = f.orchestrator().Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "doc-1:0001", ranked.Results[0].Chunk.ID)
}

func TestSearch_DegradesToSparseOnlyOnEmbeddingFailure(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "lexical match")
	f.sparse.hits = []driven.SearchHit{{ChunkID: "doc-1:0000", Score: 4.2}}

	orch := NewSearchOrchestrator(&failingEmbedder{}, f.vectors, f.sparse, f.docStore, f.settings)

	ranked, err := orch.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalSparseOnly, ranked.Mode)
	assert.True(t, ranked.Mode.Degraded())
	require.Len(t, ranked.Results, 1)
	assert.Zero(t, ranked.Results[0].DenseScore)
	assert.Positive(t, ranked.Results[0].SparseScore)
}

func TestSearch_DegradesToDenseOnlyOnSparseFailure(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "semantic match")
	f.vectors.hits = []driven.VectorHit{{ChunkID: "doc-1:0000", Similarity: 0.8}}
	f.sparse.searchErr = fmt.Errorf("%w: postings unreadable", domain.ErrIndexCorrupt)

	ranked, err := f.orchestrator().Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalDenseOnly, ranked.Mode)
	require.Len(t, ranked.Results, 1)
	assert.Zero(t, ranked.Results[0].SparseScore)
}

func TestSearch_BothLegsFailing(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "content")
	f.sparse.searchErr = fmt.Errorf("%w: postings unreadable", domain.ErrIndexCorrupt)

	orch := NewSearchOrchestrator(&failingEmbedder{}, f.vectors, f.sparse, f.docStore, f.settings)

	_, err := orch.Search(context.Background(), "query", domain.SearchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestSearch_NoSources(t *testing.T) {
	f := newSearchFixture(t)

	ranked, err := f.orchestrator().Search(context.Background(), "query", domain.SearchOptions{})
	require.ErrorIs(t, err, domain.ErrNoSources)
	require.NotNil(t, ranked)
	assert.Equal(t, domain.RetrievalNoSources, ranked.Mode)
	assert.Empty(t, ranked.Results)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "content")

	_, err := f.orchestrator().Search(context.Background(), "   \u200b  ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_LimitApplied(t *testing.T) {
	f := newSearchFixture(t)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("doc-1:%04d", i)
		f.seedChunk(t, id, fmt.Sprintf("chunk %d", i))
		f.sparse.hits = append(f.sparse.hits, driven.SearchHit{ChunkID: id, Score: float64(10 - i)})
	}

	ranked, err := f.orchestrator().Search(context.Background(), "query", domain.SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, ranked.Results, 2)
}

func TestSearch_StaleIndexEntrySkipped(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "live chunk")
	// Present in the index but deleted from the store.
	f.sparse.hits = []driven.SearchHit{
		{ChunkID: "doc-1:0000", Score: 3.0},
		{ChunkID: "doc-1:9999", Score: 2.0},
	}

	ranked, err := f.orchestrator().Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, ranked.Results, 1)
	assert.Equal(t, "doc-1:0000", ranked.Results[0].Chunk.ID)
}

func TestFuse_TieBreaksAreDeterministic(t *testing.T) {
	dense := []driven.VectorHit{
		{ChunkID: "doc-1:0002", Similarity: 0.5},
		{ChunkID: "doc-1:0001", Similarity: 0.5},
	}

	for i := 0; i < 10; i++ {
		fused := fuse(dense, nil, 0.5, 0.5)
		require.Len(t, fused, 2)
		assert.Equal(t, "doc-1:0001", fused[0].chunkID)
		assert.Equal(t, "doc-1:0002", fused[1].chunkID)
	}
}

func TestFuse_MinMaxNormalisation(t *testing.T) {
	dense := []driven.VectorHit{
		{ChunkID: "a", Similarity: 0.2},
		{ChunkID: "b", Similarity: 0.6},
		{ChunkID: "c", Similarity: 1.0},
	}

	fused := fuse(dense, nil, 1.0, 0.0)
	byID := map[string]fusedHit{}
	for _, h := range fused {
		byID[h.chunkID] = h
	}

	assert.InDelta(t, 0.0, byID["a"].dense, 1e-9)
	assert.InDelta(t, 0.5, byID["b"].dense, 1e-9)
	assert.InDelta(t, 1.0, byID["c"].dense, 1e-9)
}

func TestFuse_SingleCandidateKeepsFullLegWeight(t *testing.T) {
	sparse := []driven.SearchHit{{ChunkID: "only", Score: 7.3}}

	fused := fuse(nil, sparse, 0.5, 0.5)
	require.Len(t, fused, 1)
	assert.Equal(t, 1.0, fused[0].sparse)
	assert.InDelta(t, 0.5, fused[0].score, 1e-9)
}

func TestFuse_MonotonicInDenseScore(t *testing.T) {
	sparse := []driven.SearchHit{
		{ChunkID: "a", Score: 4.0},
		{ChunkID: "b", Score: 2.0},
	}
	base := []driven.VectorHit{
		{ChunkID: "a", Similarity: 0.3},
		{ChunkID: "b", Similarity: 0.8},
		{ChunkID: "c", Similarity: 0.1},
	}
	raised := []driven.VectorHit{
		{ChunkID: "a", Similarity: 0.6},
		{ChunkID: "b", Similarity: 0.8},
		{ChunkID: "c", Similarity: 0.1},
	}

	scoreOf := func(hits []fusedHit, id string) float64 {
		for _, h := range hits {
			if h.chunkID == id {
				return h.score
			}
		}
		t.Fatalf("chunk %s missing from fused results", id)
		return 0
	}

	before := scoreOf(fuse(base, sparse, 0.5, 0.5), "a")
	after := scoreOf(fuse(raised, sparse, 0.5, 0.5), "a")
	assert.GreaterOrEqual(t, after, before)
}

func TestSearch_ExactStatuteTermOutranksSemanticNeighbour(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "punishment for murder is dealt with under Section 302")
	f.seedChunk(t, "doc-1:0001", "the accused unlawfully killed the deceased with intent")

	// "302 IPC punishment": the digit chunk dominates lexically; the
	// semantic chunk is a dense neighbour only.
	f.sparse.hits = []driven.SearchHit{
		{ChunkID: "doc-1:0000", Score: 11.5},
	}
	f.vectors.hits = []driven.VectorHit{
		{ChunkID: "doc-1:0001", Similarity: 0.82},
		{ChunkID: "doc-1:0000", Similarity: 0.74},
	}

	ranked, err := f.orchestrator().Search(context.Background(), "302 IPC punishment", domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, ranked.Results)

	rankOf := func(id string) int {
		for i, r := range ranked.Results {
			if r.Chunk.ID == id {
				return i
			}
		}
		return len(ranked.Results)
	}
	assert.LessOrEqual(t, rankOf("doc-1:0000"), rankOf("doc-1:0001"))
}

func TestAnswerContext_Citations(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "first relevant passage")
	f.seedChunk(t, "doc-1:0001", "second relevant passage")
	f.sparse.hits = []driven.SearchHit{
		{ChunkID: "doc-1:0000", Score: 5.0},
		{ChunkID: "doc-1:0001", Score: 3.0},
	}
	f.vectors.hits = []driven.VectorHit{
		{ChunkID: "doc-1:0000", Similarity: 0.9},
	}

	chunks, err := f.orchestrator().AnswerContext(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].Citation)
	assert.Equal(t, 2, chunks[1].Citation)
	assert.Equal(t, "doc-1:0000", chunks[0].ChunkID)
	assert.Equal(t, "judgment.pdf", chunks[0].Filename)
	assert.Equal(t, "first relevant passage", chunks[0].Text)
	assert.False(t, chunks[0].Degraded)
}

func TestAnswerContext_DegradedFlag(t *testing.T) {
	f := newSearchFixture(t)
	f.seedChunk(t, "doc-1:0000", "passage")
	f.sparse.hits = []driven.SearchHit{{ChunkID: "doc-1:0000", Score: 5.0}}

	orch := NewSearchOrchestrator(&failingEmbedder{}, f.vectors, f.sparse, f.docStore, f.settings)

	chunks, err := orch.AnswerContext(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Degraded)
}
