package domain

import "time"

// Document represents one ingested PDF.
// It is immutable once ingested; re-ingesting the same file produces a new
// Document with a new ID.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the original upload filename.
	Filename string

	// PageCount is the number of pages in the source PDF.
	PageCount int

	// PageConfidences holds the extraction confidence per page, in page order.
	// A page that produced no text has confidence 0.
	PageConfidences []float64

	// IngestedAt is when ingestion completed.
	IngestedAt time.Time
}

// PageStatus describes the outcome of extracting one page.
// Degraded outcomes are explicit so that callers can tell "no text found"
// apart from "extraction not attempted".
type PageStatus string

const (
	// PageExtracted means a backend produced text for the page.
	PageExtracted PageStatus = "extracted"

	// PageEmpty means every configured backend was tried and none
	// produced text. The page contributes an empty string.
	PageEmpty PageStatus = "empty"

	// PageRenderFailed means the page could not be rasterised, so no
	// backend was attempted.
	PageRenderFailed PageStatus = "render_failed"
)

// PageResult is the extraction outcome for a single page.
// Pages are transient: once chunked, only the concatenated document text and
// the per-page offsets survive for citation mapping.
type PageResult struct {
	// Index is the zero-based page index within the document.
	Index int

	// Text is the raw extracted text before normalisation.
	Text string

	// Confidence is the winning backend's confidence in [0,1].
	Confidence float64

	// Backend is the name of the backend that produced Text.
	// Empty when Status is not PageExtracted.
	Backend string

	// Status records how this result came to be.
	Status PageStatus
}

// PageSpan maps a page index to its byte range within the normalised,
// concatenated document text. Zero-length spans mark pages that yielded
// no text.
type PageSpan struct {
	Index int
	Start int
	End   int
}

// Chunk is a contiguous span of normalised document text, the unit of
// retrieval. Chunk identity is deterministic: the same document text always
// produces the same chunk IDs and boundaries.
type Chunk struct {
	// ID is "<documentID>:<seq>" and is globally unique because document
	// IDs are.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Seq is the zero-based window index within the document.
	Seq int

	// Content is the exact byte span of the normalised document text.
	Content string

	// TokenCount is the number of tokens inside the window.
	TokenCount int

	// Start and End are byte offsets into the normalised document text.
	Start int
	End   int

	// PageStart and PageEnd are the zero-based indexes of the first and
	// last source pages this chunk overlaps, for citation display.
	PageStart int
	PageEnd   int
}

// IngestReport summarises one document ingestion.
type IngestReport struct {
	// Document is the persisted document record.
	Document Document

	// Pages holds the per-page extraction outcomes, in page order.
	Pages []PageResult

	// ChunksIndexed is the number of chunks added to both indexes.
	ChunksIndexed int

	// ChunksSkippedDense is the number of chunks that failed embedding and
	// were therefore left out of the dense index. They remain searchable
	// through the sparse index.
	ChunksSkippedDense int

	// Duration is wall-clock ingestion time.
	Duration time.Duration
}
