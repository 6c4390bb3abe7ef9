// Package chunker splits normalised document text into overlapping
// token-window chunks with stable identifiers.
package chunker

import (
	"fmt"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/normalisers/text"
)

// Defaults, in tokens.
const (
	DefaultWindow  = domain.DefaultChunkWindow
	DefaultOverlap = domain.DefaultChunkOverlap
)

// Processor splits document text into sliding token windows.
// Chunking is deterministic: the same input always yields the same chunk
// boundaries and IDs, which makes re-ingestion detection and citation IDs
// stable across runs.
type Processor struct {
	window  int
	overlap int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithWindow sets the window size in tokens.
func WithWindow(window int) Option {
	return func(p *Processor) {
		if window > 0 {
			p.window = window
		}
	}
}

// WithOverlap sets the overlap between consecutive windows in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		window:  DefaultWindow,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must stay strictly below the window or the cursor cannot
	// advance.
	if p.overlap >= p.window {
		p.overlap = p.window / 4
	}

	return p
}

// ChunkID builds the deterministic chunk identifier for a window index.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s:%04d", documentID, seq)
}

// Chunk splits normalised text into overlapping windows.
//
// Byte spans are arranged so their union covers the full text: the first
// chunk starts at byte 0, the last ends at the final byte, and every other
// boundary falls on the start of the first token of the following window,
// so nothing between tokens is lost even with zero overlap. Overlap applies
// only between consecutive chunks, never at the document edges. A document
// shorter than one window produces exactly one chunk; a final partial
// window is still emitted.
func (p *Processor) Chunk(documentID, normalised string, pages []domain.PageSpan) []domain.Chunk {
	spans := text.TokeniseSpans(normalised)
	if len(spans) == 0 {
		return nil
	}

	step := p.window - p.overlap
	estimated := (len(spans) / step) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	seq := 0
	for startTok := 0; ; startTok += step {
		endTok := startTok + p.window
		last := false
		if endTok >= len(spans) {
			endTok = len(spans)
			last = true
		}

		startByte := spans[startTok].Start
		if seq == 0 {
			startByte = 0
		}
		var endByte int
		if last {
			endByte = len(normalised)
		} else {
			// Extend to the start of the next window's leading token
			// so inter-chunk whitespace stays covered.
			endByte = spans[endTok].Start
		}

		pageStart, pageEnd := pageRange(pages, startByte, endByte)

		chunks = append(chunks, domain.Chunk{
			ID:         ChunkID(documentID, seq),
			DocumentID: documentID,
			Seq:        seq,
			Content:    normalised[startByte:endByte],
			TokenCount: endTok - startTok,
			Start:      startByte,
			End:        endByte,
			PageStart:  pageStart,
			PageEnd:    pageEnd,
		})
		seq++

		if last {
			break
		}
	}

	return chunks
}

// pageRange resolves the first and last source pages overlapping the byte
// span [start, end). Zero-length page spans (pages without text) never
// match. Falls back to page 0 when no page metadata is available.
func pageRange(pages []domain.PageSpan, start, end int) (int, int) {
	first, last := -1, -1
	for _, pg := range pages {
		if pg.Start >= pg.End {
			continue
		}
		if pg.Start < end && pg.End > start {
			if first < 0 {
				first = pg.Index
			}
			last = pg.Index
		}
	}
	if first < 0 {
		return 0, 0
	}
	return first, last
}
