package services

import (
	"context"
	"time"

	"document-rag-platform/internal/logger"
	"document-rag-platform/models"
)

// StalledLister finds documents whose ingestion never completed.
type StalledLister interface {
	ListStalledDocuments(ctx context.Context, cutoff time.Time) ([]models.Document, error)
}

// TaskEnqueuer submits background ingestion work for a document.
type TaskEnqueuer interface {
	EnqueueIngest(ctx context.Context, docID, filePath, tenant string) error
}

// RetrySweeper periodically re-enqueues documents whose ingestion never
// reached a terminal success, so transient provider or store outages and
// worker crashes heal without operator action.
type RetrySweeper struct {
	store    StalledLister
	enqueuer TaskEnqueuer
	interval time.Duration
	stopChan chan struct{}
}

func NewRetrySweeper(store StalledLister, enqueuer TaskEnqueuer, interval time.Duration) *RetrySweeper {
	return &RetrySweeper{
		store:    store,
		enqueuer: enqueuer,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *RetrySweeper) Start() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("starting ingestion retry sweeper", "interval", s.interval.String())

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.sweep(ctx); err != nil {
				logger.Error("retry sweep failed", "error", err)
			}
			cancel()

		case <-s.stopChan:
			logger.Info("stopping ingestion retry sweeper")
			return
		}
	}
}

func (s *RetrySweeper) Stop() {
	close(s.stopChan)
}

// sweep re-enqueues every document still pending, processing or failed
// after one full sweep interval. Enqueue errors on individual documents
// are logged and skipped; the rest of the batch continues.
func (s *RetrySweeper) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.interval)
	stalled, err := s.store.ListStalledDocuments(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, doc := range stalled {
		if doc.StoragePath == "" {
			continue
		}
		if err := s.enqueuer.EnqueueIngest(ctx, doc.ID.Hex(), doc.StoragePath, doc.Tenant); err != nil {
			logger.Error("failed to re-enqueue stalled document", "doc_id", doc.ID.Hex(), "error", err)
			continue
		}
		logger.Info("re-enqueued stalled document", "doc_id", doc.ID.Hex(), "status", doc.Status)
	}
	return nil
}
