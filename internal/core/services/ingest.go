package services

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driving"
	"github.com/vidhik-labs/vidhik-cli/internal/logger"
	"github.com/vidhik-labs/vidhik-cli/internal/normalisers/text"
	"github.com/vidhik-labs/vidhik-cli/internal/postprocessors/chunker"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestService = (*IngestOrchestrator)(nil)

// embedBatchSize bounds one embedding request during ingestion.
const embedBatchSize = 32

// IngestOrchestrator runs the full pipeline for one PDF: render pages,
// extract text through the backend fallback chain, normalise, chunk,
// embed and index.
type IngestOrchestrator struct {
	renderer   driven.PageRenderer
	extractors []driven.Extractor
	embedder   driven.EmbeddingService
	vectors    driven.VectorIndex
	sparse     driven.SearchEngine
	docStore   driven.DocumentStore
	chunks     *chunker.Processor
	settings   domain.Settings

	// Progress, when set, is called once per completed page.
	Progress func(pageIndex int)
}

// NewIngestOrchestrator wires the ingestion pipeline. The extractor slice
// must already be in priority order: it expresses a cost/quality
// preference, cheap local models before metered remote APIs.
func NewIngestOrchestrator(
	renderer driven.PageRenderer,
	extractors []driven.Extractor,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	sparse driven.SearchEngine,
	docStore driven.DocumentStore,
	chunks *chunker.Processor,
	settings domain.Settings,
) *IngestOrchestrator {
	return &IngestOrchestrator{
		renderer:   renderer,
		extractors: extractors,
		embedder:   embedder,
		vectors:    vectors,
		sparse:     sparse,
		docStore:   docStore,
		chunks:     chunks,
		settings:   settings,
	}
}

// SetProgress installs a per-page completion callback. Pages complete out
// of order, so the index is informational only.
func (o *IngestOrchestrator) SetProgress(fn func(pageIndex int)) {
	o.Progress = fn
}

// Ingest processes one PDF end to end.
func (o *IngestOrchestrator) Ingest(ctx context.Context, pdf []byte, filename string) (*domain.IngestReport, error) {
	logger.Section("Ingest " + filename)
	started := time.Now()

	rdoc, err := o.renderer.Open(pdf)
	if err != nil {
		return nil, domain.NewIngestError(domain.ReasonUnreadablePDF, err)
	}
	defer rdoc.Close()

	pageCount := rdoc.PageCount()
	if pageCount == 0 {
		return nil, domain.NewIngestError(domain.ReasonUnreadablePDF,
			fmt.Errorf("document has no pages"))
	}
	logger.Info("Pages: %d", pageCount)

	pages, err := o.extractPages(ctx, rdoc, pageCount)
	if err != nil {
		return nil, err
	}

	anyText := false
	for _, p := range pages {
		if p.Text != "" {
			anyText = true
			break
		}
	}
	if !anyText {
		return nil, domain.NewIngestError(domain.ReasonNoTextExtracted,
			fmt.Errorf("all %d pages degraded to empty text", pageCount))
	}

	docID := uuid.New().String()
	docText, spans := concatenatePages(pages)
	chunks := o.chunks.Chunk(docID, docText, spans)
	logger.Info("Chunks: %d", len(chunks))

	indexed, skipped, err := o.indexChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	confidences := make([]float64, len(pages))
	for i, p := range pages {
		confidences[i] = p.Confidence
	}

	doc := domain.Document{
		ID:              docID,
		Filename:        filename,
		PageCount:       pageCount,
		PageConfidences: confidences,
		IngestedAt:      time.Now().UTC(),
	}

	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, domain.NewIngestError(domain.ReasonStorageFailure, err)
	}
	if err := o.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, domain.NewIngestError(domain.ReasonStorageFailure, err)
	}

	logger.Info("Ingested %s as %s in %s", filename, docID, time.Since(started).Round(time.Millisecond))

	return &domain.IngestReport{
		Document:           doc,
		Pages:              pages,
		ChunksIndexed:      indexed,
		ChunksSkippedDense: skipped,
		Duration:           time.Since(started),
	}, nil
}

// extractPages runs the per-page extraction tasks on a bounded worker
// pool. Pages complete out of order; results land in a slice indexed by
// page so concatenation is always in page order.
func (o *IngestOrchestrator) extractPages(
	ctx context.Context, rdoc driven.RenderedDocument, pageCount int,
) ([]domain.PageResult, error) {
	results := make([]domain.PageResult, pageCount)

	concurrency := o.settings.EffectiveConcurrency()
	if concurrency > pageCount {
		concurrency = pageCount
	}
	logger.Debug("Page workers: %d", concurrency)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := 0; i < pageCount; i++ {
		// Cooperative cancellation checkpoint between page tasks.
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(pageIndex int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[pageIndex] = o.extractPage(ctx, rdoc, pageIndex)
			if o.Progress != nil {
				o.Progress(pageIndex)
			}
		}(i)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractPage renders one page and walks the backend chain.
func (o *IngestOrchestrator) extractPage(
	ctx context.Context, rdoc driven.RenderedDocument, pageIndex int,
) domain.PageResult {
	img, err := rdoc.Render(ctx, pageIndex)
	if err != nil {
		logger.Warn("Page %d: render failed: %v", pageIndex, err)
		return domain.PageResult{Index: pageIndex, Status: domain.PageRenderFailed}
	}

	return o.runBackends(ctx, pageIndex, img)
}

// runBackends tries the configured backends in priority order, stopping
// at the first whose confidence meets the acceptance threshold. If none
// does, the highest-confidence result seen wins (best-of fallback), so a
// page is never silently dropped just because every backend degraded.
//
// Backends run sequentially within a page on purpose: the ordering is a
// cost preference, and racing all backends would spend the expensive
// remote ones on easy pages.
func (o *IngestOrchestrator) runBackends(ctx context.Context, pageIndex int, img image.Image) domain.PageResult {
	best := domain.PageResult{Index: pageIndex, Status: domain.PageEmpty}
	haveBest := false

	for _, backend := range o.extractors {
		if !backend.Ready() {
			if err := backend.Init(ctx); err != nil {
				logger.Debug("Page %d: backend %s unavailable: %v", pageIndex, backend.Name(), err)
				continue
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if o.settings.BackendTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, o.settings.BackendTimeout)
		}

		extracted, err := backend.Extract(attemptCtx, img)
		cancel()
		if err != nil {
			// Per-backend timeout expiry is this backend's failure,
			// not the orchestrator's.
			logger.Warn("Page %d: backend %s failed: %v", pageIndex, backend.Name(), err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if extracted.Text == "" {
			logger.Debug("Page %d: backend %s returned no text", pageIndex, backend.Name())
			continue
		}

		result := domain.PageResult{
			Index:      pageIndex,
			Text:       extracted.Text,
			Confidence: extracted.Confidence,
			Backend:    backend.Name(),
			Status:     domain.PageExtracted,
		}

		if extracted.Confidence >= o.settings.AcceptConfidence {
			logger.Debug("Page %d: accepted %s (confidence %.2f)",
				pageIndex, backend.Name(), extracted.Confidence)
			return result
		}

		if !haveBest || extracted.Confidence > best.Confidence {
			best = result
			haveBest = true
		}
	}

	if best.Status == domain.PageEmpty {
		logger.Warn("Page %d: no backend produced text", pageIndex)
	} else {
		logger.Debug("Page %d: best-of fallback to %s (confidence %.2f)",
			pageIndex, best.Backend, best.Confidence)
	}
	return best
}

// concatenatePages normalises each page and joins them in page order,
// recording byte spans for citation mapping. Chunk identity derives from
// this sorted order, never from worker completion order.
func concatenatePages(pages []domain.PageResult) (string, []domain.PageSpan) {
	sorted := make([]domain.PageResult, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var b strings.Builder
	spans := make([]domain.PageSpan, 0, len(sorted))

	for _, p := range sorted {
		normalised := text.Normalise(p.Text)
		if normalised == "" {
			spans = append(spans, domain.PageSpan{Index: p.Index, Start: b.Len(), End: b.Len()})
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(normalised)
		spans = append(spans, domain.PageSpan{Index: p.Index, Start: start, End: b.Len()})
	}

	return b.String(), spans
}

// indexChunks embeds and indexes all chunks. An embedding failure drops
// the chunk from the dense index only; the sparse index still receives
// it, and ingestion of the document continues.
func (o *IngestOrchestrator) indexChunks(ctx context.Context, chunks []domain.Chunk) (indexed, skippedDense int, err error) {
	vectors := o.embedChunks(ctx, chunks)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return indexed, skippedDense, err
		}

		tokens := text.Tokenise(chunk.Content)
		if err := o.sparse.Index(ctx, chunk.ID, tokens); err != nil {
			return indexed, skippedDense, domain.NewIngestError(domain.ReasonStorageFailure, err)
		}

		if vectors[i] == nil {
			skippedDense++
			indexed++
			continue
		}
		if err := o.vectors.Add(ctx, chunk.ID, vectors[i]); err != nil {
			return indexed, skippedDense, domain.NewIngestError(domain.ReasonStorageFailure, err)
		}
		indexed++
	}

	return indexed, skippedDense, nil
}

// embedChunks embeds chunk contents in batches. A failed batch is retried
// chunk by chunk so one bad chunk costs only itself; failures leave a nil
// vector.
func (o *IngestOrchestrator) embedChunks(ctx context.Context, chunks []domain.Chunk) [][]float32 {
	vectors := make([][]float32, len(chunks))

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		batch, err := o.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			copy(vectors[start:end], batch)
			continue
		}
		logger.Warn("Embedding batch [%d,%d) failed, retrying per chunk: %v", start, end, err)

		for i := start; i < end; i++ {
			vec, err := o.embedder.Embed(ctx, chunks[i].Content)
			if err != nil {
				logger.Warn("Chunk %s: embedding failed, dense index skipped: %v", chunks[i].ID, err)
				continue
			}
			vectors[i] = vec
		}
	}

	return vectors
}
