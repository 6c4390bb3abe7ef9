package cli

import (
	"context"
	"time"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
)

// stubSearchService serves canned results for command tests.
type stubSearchService struct {
	ranked *domain.RankedChunks
	chunks []domain.ContextChunk
	err    error
}

func (s *stubSearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.RankedChunks, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ranked, nil
}

func (s *stubSearchService) AnswerContext(ctx context.Context, query string, maxResults int) ([]domain.ContextChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

type stubIngestService struct {
	report *domain.IngestReport
	err    error
}

func (s *stubIngestService) Ingest(ctx context.Context, pdf []byte, filename string) (*domain.IngestReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubIndexAdmin struct {
	count int
	err   error
}

func (s *stubIndexAdmin) Rebuild(ctx context.Context) (int, error) {
	return s.count, s.err
}

// stubDocumentStore holds a fixed document set.
type stubDocumentStore struct {
	docs   []domain.Document
	chunks []domain.Chunk
}

func (s *stubDocumentStore) SaveDocument(ctx context.Context, doc domain.Document) error { return nil }

func (s *stubDocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	for _, d := range s.docs {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubDocumentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.docs, nil
}

func (s *stubDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	for i, d := range s.docs {
		if d.ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubDocumentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error { return nil }

func (s *stubDocumentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	for _, c := range s.chunks {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubDocumentStore) ChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubDocumentStore) ForEachChunk(ctx context.Context, fn func(domain.Chunk) error) error {
	for _, c := range s.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubDocumentStore) CountDocuments(ctx context.Context) (int, error) {
	return len(s.docs), nil
}

func (s *stubDocumentStore) Close() error { return nil }

var _ driven.DocumentStore = (*stubDocumentStore)(nil)

// setupTestServices installs stub services and returns a cleanup that
// restores the previous wiring.
func setupTestServices() func() {
	prevIngest := ingestService
	prevSearch := searchService
	prevAdmin := indexAdmin
	prevStore := documentStore

	doc := domain.Document{
		ID:         "doc-1",
		Filename:   "judgment.pdf",
		PageCount:  2,
		IngestedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	chunk := domain.Chunk{
		ID:         "doc-1:0000",
		DocumentID: "doc-1",
		Content:    "The appellant was convicted under Section 302.",
		PageStart:  0,
		PageEnd:    0,
	}

	ingestService = &stubIngestService{report: &domain.IngestReport{
		Document:      doc,
		ChunksIndexed: 1,
	}}
	searchService = &stubSearchService{
		ranked: &domain.RankedChunks{
			Mode: domain.RetrievalHybrid,
			Results: []domain.SearchResult{{
				Document: doc,
				Chunk:    chunk,
				Score:    0.91,
			}},
		},
		chunks: []domain.ContextChunk{{
			Citation:   1,
			ChunkID:    chunk.ID,
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Text:       chunk.Content,
			Score:      0.91,
		}},
	}
	indexAdmin = &stubIndexAdmin{count: 3}
	documentStore = &stubDocumentStore{docs: []domain.Document{doc}, chunks: []domain.Chunk{chunk}}

	return func() {
		ingestService = prevIngest
		searchService = prevSearch
		indexAdmin = prevAdmin
		documentStore = prevStore
	}
}
