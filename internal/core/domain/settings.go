package domain

import (
	"fmt"
	"runtime"
	"time"
)

// Default configuration values.
const (
	DefaultRenderDPI        = 300
	DefaultChunkWindow      = 256 // tokens
	DefaultChunkOverlap     = 32  // tokens
	DefaultDenseWeight      = 0.5
	DefaultSparseWeight     = 0.5
	DefaultTopK             = 10
	DefaultCandidateK       = 50
	DefaultBackendTimeout   = 60 * time.Second
	DefaultAcceptConfidence = 0.0 // first successful backend wins
)

// Settings is the full configuration surface, passed in at construction
// time. There is no hidden global state.
type Settings struct {
	// DataDir is the root directory for all persisted state.
	DataDir string `toml:"data_dir"`

	// Backends is the ordered extractor priority list. Order expresses a
	// cost/quality preference: cheap local models before expensive
	// remote APIs.
	Backends []string `toml:"backends"`

	// AcceptConfidence is the minimum confidence at which the orchestrator
	// stops trying further backends for a page. At 0 the first backend
	// that succeeds wins; below it the highest-confidence result seen is
	// kept.
	AcceptConfidence float64 `toml:"accept_confidence"`

	// RenderDPI is the rasterisation resolution for page images.
	RenderDPI int `toml:"render_dpi"`

	// PageConcurrency bounds the page worker pool. Zero derives from the
	// number of CPU cores.
	PageConcurrency int `toml:"page_concurrency"`

	// BackendTimeout is the per-backend, per-page inference deadline.
	BackendTimeout time.Duration `toml:"backend_timeout"`

	// ChunkWindow and ChunkOverlap are measured in tokens.
	ChunkWindow  int `toml:"chunk_window"`
	ChunkOverlap int `toml:"chunk_overlap"`

	// DenseWeight and SparseWeight are the fusion weights. They are a
	// tuning knob, not a derived constant.
	DenseWeight  float64 `toml:"dense_weight"`
	SparseWeight float64 `toml:"sparse_weight"`

	// TopK is the default result count per query.
	TopK int `toml:"top_k"`

	// DenseK and SparseK are the per-leg candidate pool sizes.
	DenseK  int `toml:"dense_k"`
	SparseK int `toml:"sparse_k"`

	// Inference service endpoints.
	DonutURL      string `toml:"donut_url"`
	Pix2StructURL string `toml:"pix2struct_url"`
	OllamaURL     string `toml:"ollama_url"`
	EmbedModel    string `toml:"embed_model"`

	// VisionCredentialsFile is the Google Cloud credentials file for the
	// remote vision backend. VisionAccessToken may be set instead for
	// short-lived tokens.
	VisionCredentialsFile string `toml:"vision_credentials_file"`
	VisionAccessToken     string `toml:"vision_access_token"`

	// VisionRequestsPerMinute caps outbound remote vision calls.
	VisionRequestsPerMinute int `toml:"vision_requests_per_minute"`
}

// DefaultSettings returns the baseline configuration.
func DefaultSettings() Settings {
	return Settings{
		Backends:                []string{"donut", "pix2struct", "gvision", "tesseract"},
		AcceptConfidence:        DefaultAcceptConfidence,
		RenderDPI:               DefaultRenderDPI,
		PageConcurrency:         0,
		BackendTimeout:          DefaultBackendTimeout,
		ChunkWindow:             DefaultChunkWindow,
		ChunkOverlap:            DefaultChunkOverlap,
		DenseWeight:             DefaultDenseWeight,
		SparseWeight:            DefaultSparseWeight,
		TopK:                    DefaultTopK,
		DenseK:                  DefaultCandidateK,
		SparseK:                 DefaultCandidateK,
		VisionRequestsPerMinute: 300,
	}
}

// EffectiveConcurrency resolves the page worker pool size.
func (s Settings) EffectiveConcurrency() int {
	if s.PageConcurrency > 0 {
		return s.PageConcurrency
	}
	return runtime.NumCPU()
}

// Validate checks invariants that would otherwise surface as subtle
// misbehaviour deep inside the pipeline.
func (s Settings) Validate() error {
	if s.ChunkOverlap >= s.ChunkWindow {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than window %d",
			ErrInvalidInput, s.ChunkOverlap, s.ChunkWindow)
	}
	if s.AcceptConfidence < 0 || s.AcceptConfidence > 1 {
		return fmt.Errorf("%w: accept_confidence %v outside [0,1]",
			ErrInvalidInput, s.AcceptConfidence)
	}
	if s.DenseWeight < 0 || s.SparseWeight < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative", ErrInvalidInput)
	}
	if s.DenseWeight+s.SparseWeight == 0 {
		return fmt.Errorf("%w: at least one fusion weight must be positive", ErrInvalidInput)
	}
	if len(s.Backends) == 0 {
		return fmt.Errorf("%w: at least one extractor backend must be configured", ErrInvalidInput)
	}
	return nil
}
