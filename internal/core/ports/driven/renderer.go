package driven

import (
	"context"
	"image"
)

// PageRenderer rasterises PDF pages to fixed-DPI images.
// The DPI is fixed at construction: 300 is the accuracy/speed knee for the
// downstream vision-language extractors.
type PageRenderer interface {
	// Open parses the PDF and returns a handle for page access.
	// Fails for corrupt or password-protected files.
	Open(pdf []byte) (RenderedDocument, error)
}

// RenderedDocument gives page-level access to one opened PDF.
// Implementations may cache rendered pages but must not write to disk.
type RenderedDocument interface {
	// PageCount returns the number of pages.
	PageCount() int

	// Render rasterises the page at the configured DPI.
	// Returns an error wrapping domain.ErrRender if the index is out of
	// range or the page is unreadable.
	Render(ctx context.Context, pageIndex int) (image.Image, error)

	// Close releases the underlying document resources.
	Close() error
}
