package domain

// RetrievalMode records which retrieval legs contributed to a result set.
// Degraded modes are explicit, typed outcomes rather than silent fallbacks.
type RetrievalMode string

const (
	// RetrievalHybrid means both dense and sparse legs ran.
	RetrievalHybrid RetrievalMode = "hybrid"

	// RetrievalSparseOnly means the dense leg was unavailable (embedding
	// or vector index failure) and results come from lexical search alone.
	RetrievalSparseOnly RetrievalMode = "sparse_only"

	// RetrievalDenseOnly means the sparse leg failed and results come
	// from vector search alone.
	RetrievalDenseOnly RetrievalMode = "dense_only"

	// RetrievalNoSources means no documents have been ingested.
	RetrievalNoSources RetrievalMode = "no_sources"
)

// Degraded reports whether the mode is a reduced-quality fallback.
func (m RetrievalMode) Degraded() bool {
	return m == RetrievalSparseOnly || m == RetrievalDenseOnly
}

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// Limit is the maximum number of results (top-k). Zero means the
	// configured default.
	Limit int

	// DenseK overrides the dense candidate pool size. Zero means default.
	DenseK int

	// SparseK overrides the sparse candidate pool size. Zero means default.
	SparseK int
}

// SearchResult is one fused, hydrated retrieval hit.
type SearchResult struct {
	// Document is the parent document.
	Document Document

	// Chunk is the matched chunk.
	Chunk Chunk

	// DenseScore is the min-max normalised dense similarity for this
	// query, 0 when the chunk was not a dense candidate.
	DenseScore float64

	// SparseScore is the min-max normalised BM25 score for this query,
	// 0 when the chunk was not a sparse candidate.
	SparseScore float64

	// Score is the weighted combination of DenseScore and SparseScore.
	Score float64
}

// RankedChunks is the outcome of one retrieval query.
type RankedChunks struct {
	// Results are ordered by Score descending, ties broken by the higher
	// individual leg score, then by chunk ID.
	Results []SearchResult

	// Mode records how the results were produced.
	Mode RetrievalMode
}

// ContextChunk is the answer-context boundary shape handed to the external
// answer-generation collaborator. Citation indexes are 1-based so they map
// directly onto bracket citations in generated answers.
type ContextChunk struct {
	Citation   int     `json:"citation"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	PageStart  int     `json:"page_start"`
	PageEnd    int     `json:"page_end"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Degraded   bool    `json:"degraded"`
}
