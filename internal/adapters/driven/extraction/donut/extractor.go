// Package donut adapts an OCR-free document-understanding transformer
// served by a local inference server.
package donut

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8601"
	DefaultModel   = "donut-base-finetuned-docvqa"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the donut backend.
type Config struct {
	// BaseURL is the inference server base URL.
	BaseURL string

	// Model is the served model identifier.
	Model string

	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// Extractor sends page images to the inference server and returns text
// plus the model's confidence.
type Extractor struct {
	client  *http.Client
	baseURL string
	model   string

	mu    sync.Mutex
	ready bool
}

type extractRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64-encoded PNG
}

type extractResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// New creates the donut backend. No connection is made until Init.
func New(cfg Config) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Extractor{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// Name identifies the backend in configuration and page provenance.
func (e *Extractor) Name() string {
	return "donut"
}

// Init checks the inference server is up and the model is loaded.
// Idempotent; a failed Init may be retried.
func (e *Extractor) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: donut: %v", domain.ErrBackendUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: donut: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: donut: health returned status %d",
			domain.ErrBackendUnavailable, resp.StatusCode)
	}

	e.ready = true
	return nil
}

// Ready reports whether Init has succeeded.
func (e *Extractor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Extract runs inference on a page image.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (driven.ExtractedText, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: donut: encode image: %v", domain.ErrExtraction, err)
	}

	body, err := json.Marshal(extractRequest{
		Model: e.model,
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: donut: marshal request: %v", domain.ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, e.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: donut: %v", domain.ErrExtraction, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: donut: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			msg = []byte("unreadable body")
		}
		return driven.ExtractedText{}, fmt.Errorf("%w: donut: status %d: %s",
			domain.ErrExtraction, resp.StatusCode, string(msg))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: donut: decode response: %v", domain.ErrExtraction, err)
	}

	return driven.ExtractedText{
		Text:       out.Text,
		Confidence: clamp(out.Confidence),
	}, nil
}

// Close releases resources.
func (e *Extractor) Close() error {
	return nil
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
