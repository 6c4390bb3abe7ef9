// Package pix2struct adapts a visual-QA transformer served over a
// multipart upload API.
package pix2struct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
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
	DefaultBaseURL = "http://localhost:8602"
	DefaultPrompt  = "Transcribe all text on this page."
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the pix2struct backend.
type Config struct {
	// BaseURL is the inference server base URL.
	BaseURL string

	// Prompt is the transcription instruction sent with each page.
	Prompt string

	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// Extractor uploads page images as multipart form data and reads back the
// transcription with a generation score.
type Extractor struct {
	client  *http.Client
	baseURL string
	prompt  string

	mu    sync.Mutex
	ready bool
}

type transcribeResponse struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// New creates the pix2struct backend. No connection is made until Init.
func New(cfg Config) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Extractor{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		prompt:  cfg.Prompt,
	}
}

// Name identifies the backend in configuration and page provenance.
func (e *Extractor) Name() string {
	return "pix2struct"
}

// Init checks the inference server is serving.
func (e *Extractor) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/ready", http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: pix2struct: %v", domain.ErrBackendUnavailable, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: pix2struct: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: pix2struct: ready returned status %d",
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
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("image", "page.png")
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: %v", domain.ErrExtraction, err)
	}
	if err := png.Encode(part, img); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: encode image: %v", domain.ErrExtraction, err)
	}
	if err := mw.WriteField("prompt", e.prompt); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: %v", domain.ErrExtraction, err)
	}
	if err := mw.Close(); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: %v", domain.ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, e.baseURL+"/transcribe", &body)
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: %v", domain.ErrExtraction, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			msg = []byte("unreadable body")
		}
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: status %d: %s",
			domain.ErrExtraction, resp.StatusCode, string(msg))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: pix2struct: decode response: %v", domain.ErrExtraction, err)
	}

	conf := out.Score
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}

	return driven.ExtractedText{Text: out.Text, Confidence: conf}, nil
}

// Close releases resources.
func (e *Extractor) Close() error {
	return nil
}
