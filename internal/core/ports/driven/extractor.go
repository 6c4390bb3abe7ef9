package driven

import (
	"context"
	"image"
)

// ExtractedText is one backend's result for one page image.
type ExtractedText struct {
	// Text is the extracted page text.
	Text string

	// Confidence is the backend's self-reported confidence in [0,1].
	Confidence float64
}

// Extractor turns a page image into text plus a confidence score.
// Backends form a closed set selected via ordered configuration, never via
// runtime type inspection.
//
// Model load is expensive and may fail, so initialisation is lazy: the
// orchestrator calls Init once before first use and skips backends whose
// Ready remains false. An unready backend is never fatal.
type Extractor interface {
	// Name identifies the backend in configuration and page provenance.
	Name() string

	// Init prepares the backend (loads the model, checks connectivity).
	// Idempotent; safe to call again after a failure.
	Init(ctx context.Context) error

	// Ready reports whether the backend can serve Extract calls.
	Ready() bool

	// Extract runs inference on a page image. Errors wrap
	// domain.ErrExtraction and are absorbed by the orchestrator as "try
	// the next backend", never propagated raw.
	Extract(ctx context.Context, img image.Image) (ExtractedText, error)

	// Close releases model resources.
	Close() error
}
