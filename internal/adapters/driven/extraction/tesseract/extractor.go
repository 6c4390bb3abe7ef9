// Package tesseract adapts the tesseract OCR binary as the last-resort
// extractor backend. It is the only backend that needs no inference
// server, which is exactly why it anchors the end of the fallback chain.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// DefaultLanguages covers mixed Hindi+English legal documents.
const DefaultLanguages = "hin+eng"

// Config holds configuration for the tesseract backend.
type Config struct {
	// Binary is the tesseract executable; resolved on PATH when empty.
	Binary string

	// Languages is the tesseract -l argument.
	Languages string
}

// Extractor shells out to tesseract with TSV output so word-level
// confidences are available.
type Extractor struct {
	cfg Config

	mu     sync.Mutex
	binary string
}

// New creates the tesseract backend. The binary is located in Init.
func New(cfg Config) *Extractor {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = DefaultLanguages
	}
	return &Extractor{cfg: cfg}
}

// Name identifies the backend in configuration and page provenance.
func (e *Extractor) Name() string {
	return "tesseract"
}

// Init locates the tesseract binary.
func (e *Extractor) Init(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.binary != "" {
		return nil
	}

	path, err := exec.LookPath(e.cfg.Binary)
	if err != nil {
		return fmt.Errorf("%w: tesseract: %v", domain.ErrBackendUnavailable, err)
	}
	e.binary = path
	return nil
}

// Ready reports whether the binary has been located.
func (e *Extractor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.binary != ""
}

// Extract runs OCR on a page image.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (driven.ExtractedText, error) {
	e.mu.Lock()
	binary := e.binary
	e.mu.Unlock()
	if binary == "" {
		return driven.ExtractedText{}, fmt.Errorf("%w: tesseract: not initialised", domain.ErrBackendUnavailable)
	}

	dir, err := os.MkdirTemp("", "vidhik-ocr-*")
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: tesseract: %v", domain.ErrExtraction, err)
	}
	defer os.RemoveAll(dir)

	imgPath := filepath.Join(dir, "page.png")
	f, err := os.Create(imgPath)
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: tesseract: %v", domain.ErrExtraction, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return driven.ExtractedText{}, fmt.Errorf("%w: tesseract: encode image: %v", domain.ErrExtraction, err)
	}
	if err := f.Close(); err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: tesseract: %v", domain.ErrExtraction, err)
	}

	cmd := exec.CommandContext(ctx, binary, imgPath, "stdout", "-l", e.cfg.Languages, "tsv")
	out, err := cmd.Output()
	if err != nil {
		return driven.ExtractedText{}, fmt.Errorf("%w: tesseract: %v", domain.ErrExtraction, err)
	}

	text, confidence := parseTSV(string(out))
	return driven.ExtractedText{Text: text, Confidence: confidence}, nil
}

// Close releases resources.
func (e *Extractor) Close() error {
	return nil
}

// parseTSV reassembles text from tesseract TSV output and averages the
// word confidences into [0,1]. TSV rows are:
// level page block par line word left top width height conf text
// Word rows have level 5; a line break is emitted whenever the
// block/paragraph/line triple changes.
func parseTSV(tsv string) (string, float64) {
	var b strings.Builder
	var confSum float64
	var words int
	prevLine := ""

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}

		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}

		lineKey := cols[2] + ":" + cols[3] + ":" + cols[4]
		if words > 0 {
			if lineKey != prevLine {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		prevLine = lineKey

		b.WriteString(word)
		confSum += conf
		words++
	}

	if words == 0 {
		return "", 0
	}
	return b.String(), confSum / float64(words) / 100.0
}
