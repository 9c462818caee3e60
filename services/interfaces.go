package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-rag-platform/internal/ai"
	"document-rag-platform/internal/vectorstore"
	"document-rag-platform/models"
)

// Embedder converts text into a fixed-length vector. Dimensionality is
// constant for a given provider configuration.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer runs one generative completion against the named model.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (*ai.Completion, error)
}

// VectorIndex is the per-tenant vector collection surface.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, name string, points []vectorstore.Point) error
	Search(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.ScoredPoint, error)
}

// DocumentStore persists Document and Chunk metadata records.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error)
	SetDocumentStatus(ctx context.Context, id primitive.ObjectID, status string, chunkCount int, errMsg string) error
	ReplaceChunks(ctx context.Context, docID primitive.ObjectID, chunks []models.Chunk) error
}

// CollectionName maps a tenant to its vector collection. An empty tenant
// falls back to the shared global partition.
func CollectionName(tenant string) string {
	if tenant == "" {
		tenant = "global"
	}
	return "user_" + tenant
}
