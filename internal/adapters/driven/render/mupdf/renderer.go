// Package mupdf rasterises PDF pages through the MuPDF bindings.
package mupdf

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.PageRenderer = (*Renderer)(nil)

// DefaultDPI is the accuracy/speed knee for the downstream VLM backends;
// higher values raise accuracy but cost latency and memory linearly per
// page.
const DefaultDPI = domain.DefaultRenderDPI

// Renderer opens PDFs for fixed-DPI page rasterisation.
type Renderer struct {
	dpi int
}

// New creates a renderer at the given DPI (0 means DefaultDPI).
func New(dpi int) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Renderer{dpi: dpi}
}

// Open parses the PDF and returns a page handle.
//
// A structural pre-flight runs first: it rejects encrypted or truncated
// files with a clear error before MuPDF touches them, because MuPDF error
// strings are unhelpful for the "password required" case.
func (r *Renderer) Open(pdfBytes []byte) (driven.RenderedDocument, error) {
	if len(pdfBytes) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrInvalidInput)
	}

	if _, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes))); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}

	return &renderedDocument{doc: doc, dpi: r.dpi}, nil
}

type renderedDocument struct {
	doc *fitz.Document
	dpi int
}

// PageCount returns the number of pages.
func (d *renderedDocument) PageCount() int {
	return d.doc.NumPage()
}

// Render rasterises one page at the configured DPI.
func (d *renderedDocument) Render(ctx context.Context, pageIndex int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= d.doc.NumPage() {
		return nil, fmt.Errorf("%w: page %d out of range [0,%d)",
			domain.ErrRender, pageIndex, d.doc.NumPage())
	}

	img, err := d.doc.ImageDPI(pageIndex, float64(d.dpi))
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", domain.ErrRender, pageIndex, err)
	}
	return img, nil
}

// Close releases the underlying document resources.
func (d *renderedDocument) Close() error {
	return d.doc.Close()
}
