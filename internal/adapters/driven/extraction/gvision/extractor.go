// Package gvision adapts the Google Cloud Vision document text detection
// API as a remote extractor backend. It sits late in the default priority
// order: accurate but metered, so the cheap local models get first try.
package gvision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Config holds configuration for the remote vision backend.
type Config struct {
	// CredentialsFile is a Google Cloud service account key file.
	CredentialsFile string

	// AccessToken may be supplied instead of a credentials file for
	// short-lived tokens.
	AccessToken string

	// RequestsPerMinute caps outbound API calls. Zero disables the
	// limiter.
	RequestsPerMinute int

	// LanguageHints bias recognition; legal Hindi+English documents
	// default to both.
	LanguageHints []string
}

// Extractor calls the Cloud Vision images.annotate endpoint.
type Extractor struct {
	cfg     Config
	limiter *rate.Limiter

	mu  sync.Mutex
	svc *vision.Service
}

// New creates the remote vision backend. The API client is built lazily
// in Init because credential resolution may fail and an unready backend
// must only be skipped, never fatal.
func New(cfg Config) *Extractor {
	if len(cfg.LanguageHints) == 0 {
		cfg.LanguageHints = []string{"hi", "en"}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Extractor{cfg: cfg, limiter: limiter}
}

// Name identifies the backend in configuration and page provenance.
func (e *Extractor) Name() string {
	return "gvision"
}

// Init builds the API client from the configured credentials.
func (e *Extractor) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.svc != nil {
		return nil
	}

	var opts []option.ClientOption
	switch {
	case e.cfg.AccessToken != "":
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: e.cfg.AccessToken})
		opts = append(opts, option.WithTokenSource(source))
	case e.cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(e.cfg.CredentialsFile))
	default:
		return fmt.Errorf("%w: gvision: no credentials configured", domain.ErrBackendUnavailable)
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("%w: gvision: %v", domain.ErrBackendUnavailable, err)
	}

	e.svc = svc
	return nil
}

// Ready reports whether the API client has been built.
func (e *Extractor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.svc != nil
}

// Extract annotates a page image with DOCUMENT_TEXT_DETECTION.
// Confidence is the mean of the per-page confidences Vision reports.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (driven.ExtractedText, error) {
	e.mu.Lock()
	svc := e.svc
	e.mu.Unlock()
	if svc == nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: gvision: not initialised", domain.ErrBackendUnavailable)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return driven.ExtractedText{}, fmt.Errorf("%w: gvision: %v", domain.ErrExtraction, err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: gvision: encode image: %v", domain.ErrExtraction, err)
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(buf.Bytes())},
			Features: []*vision.Feature{{
				Type: "DOCUMENT_TEXT_DETECTION",
			}},
			ImageContext: &vision.ImageContext{
				LanguageHints: e.cfg.LanguageHints,
			},
		}},
	}

	resp, err := svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: gvision: %v", domain.ErrExtraction, err)
	}

	if len(resp.Responses) == 0 {
		return driven.ExtractedText{}, fmt.Errorf("%w: gvision: empty response", domain.ErrExtraction)
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: gvision: %s", domain.ErrExtraction, r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		// No text on the page is a valid result, not a failure.
		return driven.ExtractedText{Text: "", Confidence: 0}, nil
	}

	return driven.ExtractedText{
		Text:       r.FullTextAnnotation.Text,
		Confidence: meanPageConfidence(r.FullTextAnnotation),
	}, nil
}

// Close releases resources.
func (e *Extractor) Close() error {
	return nil
}

func meanPageConfidence(annotation *vision.TextAnnotation) float64 {
	if len(annotation.Pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range annotation.Pages {
		sum += p.Confidence
	}
	mean := sum / float64(len(annotation.Pages))
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}
