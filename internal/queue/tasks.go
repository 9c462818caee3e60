package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-rag-platform/internal/logger"
	"document-rag-platform/internal/store"
	"document-rag-platform/internal/telemetry"
	"document-rag-platform/models"
	"document-rag-platform/services"
)

const TaskDocumentIngest = "document:ingest"

type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
	Tenant     string `json:"tenant"`
}

func NewDocumentIngestTask(docID, filePath, tenant string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentIngestPayload{
		DocumentID: docID,
		FilePath:   filePath,
		Tenant:     tenant,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentIngest,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Enqueuer submits ingestion tasks to the Redis-backed queue.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueIngest(ctx context.Context, docID, filePath, tenant string) error {
	task, err := NewDocumentIngestTask(docID, filePath, tenant)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue ingest task for %s: %w", docID, err)
	}
	logger.Info("ingest task enqueued", "doc_id", docID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// TaskProcessor runs queued tasks inside the worker process.
type TaskProcessor struct {
	store     *store.MetadataStore
	extractor *services.TextExtractor
	ingestion *services.IngestionService
	metrics   *telemetry.Metrics
}

func NewTaskProcessor(metaStore *store.MetadataStore, extractor *services.TextExtractor, ingestion *services.IngestionService, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		store:     metaStore,
		extractor: extractor,
		ingestion: ingestion,
		metrics:   metrics,
	}
}

// ProcessDocumentIngest extracts a stored file and runs the full ingestion
// pipeline for its document record. Partial ingestion errors are returned
// so asynq retries the task; retries converge because ingestion replaces
// chunk rows and vector points for the same document id.
func (p *TaskProcessor) ProcessDocumentIngest(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	docID, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", payload.DocumentID, asynq.SkipRetry)
	}

	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	logger.Info("processing ingest task", "doc_id", payload.DocumentID, "tenant", doc.Tenant)

	text, err := p.extractor.Extract(payload.FilePath)
	if err != nil {
		// A missing or unreadable file will not fix itself on retry.
		if serr := p.store.SetDocumentStatus(ctx, docID, models.StatusFailed, 0, err.Error()); serr != nil {
			logger.Error("failed to record extraction failure", "doc_id", payload.DocumentID, "error", serr)
		}
		return errors.Join(err, asynq.SkipRetry)
	}

	start := time.Now()
	if _, err := p.ingestion.IngestDocument(ctx, doc, text); err != nil {
		if p.metrics != nil {
			p.metrics.RecordIngest(time.Since(start).Seconds(), models.StatusFailed)
		}
		return err
	}
	if p.metrics != nil {
		p.metrics.RecordIngest(time.Since(start).Seconds(), models.StatusCompleted)
	}

	logger.Info("ingest task completed", "doc_id", payload.DocumentID, "chunks", doc.ChunkCount)
	return nil
}
