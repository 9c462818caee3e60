package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"document-rag-platform/internal/chunker"
	"document-rag-platform/internal/config"
	"document-rag-platform/internal/logger"
	"document-rag-platform/internal/vectorstore"
	"document-rag-platform/models"
)

// PartialIngestionError means chunk metadata was persisted but the vector
// upsert did not land. The document is inconsistent until the whole
// ingestion is retried; retries reuse the Document id and replace the rows.
type PartialIngestionError struct {
	DocID string
	Err   error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("partial ingestion of document %s: chunk metadata persisted without vectors: %v", e.DocID, e.Err)
}

func (e *PartialIngestionError) Unwrap() error {
	return e.Err
}

// DocumentMeta carries the upload attributes of a new document.
type DocumentMeta struct {
	Filename    string
	StoragePath string
}

// IngestionService turns extracted document text into chunk records and
// vectors in the tenant's collection.
type IngestionService struct {
	cfg      *config.Config
	store    DocumentStore
	embedder Embedder
	index    VectorIndex
	chunker  *chunker.Chunker
}

func NewIngestionService(cfg *config.Config, store DocumentStore, embedder Embedder, index VectorIndex) *IngestionService {
	return &IngestionService{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		index:    index,
		chunker:  chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap),
	}
}

// Ingest persists a new Document record and processes its text. The record
// is created first so an embedding failure never loses the upload itself.
func (s *IngestionService) Ingest(ctx context.Context, text string, meta DocumentMeta, tenant string) (*models.Document, []models.Chunk, error) {
	doc := &models.Document{
		Filename:    meta.Filename,
		StoragePath: meta.StoragePath,
		Tenant:      tenant,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, nil, err
	}

	chunks, err := s.IngestDocument(ctx, doc, text)
	return doc, chunks, err
}

// IngestDocument runs segmentation, embedding and vector upsert for an
// already-persisted document. It is the retry entry point: the same
// Document id converges on re-runs because chunk rows are replaced and
// vector points overwrite by id.
func (s *IngestionService) IngestDocument(ctx context.Context, doc *models.Document, text string) ([]models.Chunk, error) {
	if err := s.store.SetDocumentStatus(ctx, doc.ID, models.StatusProcessing, 0, ""); err != nil {
		return nil, err
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		// An empty document is valid but unsearchable.
		if err := s.store.SetDocumentStatus(ctx, doc.ID, models.StatusCompleted, 0, ""); err != nil {
			return nil, err
		}
		doc.Status = models.StatusCompleted
		logger.Info("document had no extractable text", "doc_id", doc.ID.Hex())
		return nil, nil
	}

	// The first embedding discovers the tenant's vector dimensionality.
	first, err := s.embedder.Embed(ctx, pieces[0])
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	collection := CollectionName(doc.Tenant)
	if err := s.index.EnsureCollection(ctx, collection, len(first)); err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	points := make([]vectorstore.Point, 0, len(pieces))
	rows := make([]models.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		vector := first
		if i > 0 {
			vector, err = s.embedder.Embed(ctx, piece)
			if err != nil {
				return nil, s.fail(ctx, doc, err)
			}
		}

		pointID := uuid.NewString()
		points = append(points, vectorstore.Point{
			ID:     pointID,
			Vector: vector,
			Payload: map[string]any{
				"doc_id": doc.ID.Hex(),
				"text":   piece,
			},
		})
		rows = append(rows, models.Chunk{
			DocID:   doc.ID,
			Order:   i,
			Text:    piece,
			PointID: pointID,
		})
	}

	// Chunk metadata lands before the vectors. If the upsert then fails the
	// rows are orphans; that state is surfaced as a distinct retryable error
	// instead of being swallowed.
	if err := s.store.ReplaceChunks(ctx, doc.ID, rows); err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	if err := s.index.Upsert(ctx, collection, points); err != nil {
		perr := &PartialIngestionError{DocID: doc.ID.Hex(), Err: err}
		if serr := s.store.SetDocumentStatus(ctx, doc.ID, models.StatusFailed, 0, perr.Error()); serr != nil {
			logger.Error("failed to record ingestion failure", "doc_id", doc.ID.Hex(), "error", serr)
		}
		doc.Status = models.StatusFailed
		return nil, perr
	}

	if err := s.store.SetDocumentStatus(ctx, doc.ID, models.StatusCompleted, len(rows), ""); err != nil {
		return nil, err
	}
	doc.Status = models.StatusCompleted
	doc.ChunkCount = len(rows)

	logger.Info("document ingested",
		"doc_id", doc.ID.Hex(),
		"tenant", doc.Tenant,
		"chunks", len(rows),
	)
	return rows, nil
}

func (s *IngestionService) fail(ctx context.Context, doc *models.Document, err error) error {
	if serr := s.store.SetDocumentStatus(ctx, doc.ID, models.StatusFailed, 0, err.Error()); serr != nil {
		logger.Error("failed to record ingestion failure", "doc_id", doc.ID.Hex(), "error", serr)
	}
	doc.Status = models.StatusFailed
	return fmt.Errorf("ingest document %s: %w", doc.ID.Hex(), err)
}
