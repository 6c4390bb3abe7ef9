package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRender indicates a page could not be rasterised.
	// Unrecoverable per page; the page degrades to empty text.
	ErrRender = errors.New("render failed")

	// ErrExtraction indicates a single backend failed on a page image.
	// Recoverable: the orchestrator moves on to the next backend.
	ErrExtraction = errors.New("extraction failed")

	// ErrBackendUnavailable indicates an extractor backend could not be
	// initialised. The backend is skipped, never fatal.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrEmbedding indicates the embedding model failed. Per chunk at
	// ingestion the chunk is dropped from the dense index only; per query
	// retrieval degrades to sparse-only.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexCorrupt indicates an on-disk index could not be loaded.
	// Surfaced at startup; recovery is an explicit rebuild from the
	// chunk store.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrNoSources indicates no documents have been ingested yet, so a
	// query has nothing to search.
	ErrNoSources = errors.New("no sources available")
)

// IngestReason is the machine-readable reason code reported across the
// ingestion boundary. Callers receive a code, never a raw stack trace.
type IngestReason string

const (
	// ReasonUnreadablePDF means the PDF is corrupt, encrypted without a
	// password, or otherwise cannot be opened.
	ReasonUnreadablePDF IngestReason = "unreadable_pdf"

	// ReasonNoTextExtracted means every page degraded to empty text.
	ReasonNoTextExtracted IngestReason = "no_text_extracted"

	// ReasonStorageFailure means the document or its chunks could not be
	// persisted.
	ReasonStorageFailure IngestReason = "storage_failure"
)

// IngestError is fatal for one document but never for the process.
type IngestError struct {
	Reason IngestReason
	Err    error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest: %s", e.Reason)
	}
	return fmt.Sprintf("ingest: %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IngestError) Unwrap() error {
	return e.Err
}

// NewIngestError wraps err with a reason code.
func NewIngestError(reason IngestReason, err error) *IngestError {
	return &IngestError{Reason: reason, Err: err}
}
