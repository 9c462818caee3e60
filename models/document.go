package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is one uploaded document. Created on successful upload and
// immutable afterwards except for processing status fields.
type Document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename     string             `bson:"filename" json:"filename"`
	StoragePath  string             `bson:"storage_path" json:"-"`
	Tenant       string             `bson:"tenant" json:"tenant"`
	Status       string             `bson:"status" json:"status"`
	ChunkCount   int                `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Chunk is one retrievable slice of a document's text. Each chunk maps to
// exactly one point in the tenant's vector collection; a chunk row without
// its vector means the ingestion is incomplete.
type Chunk struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocID       primitive.ObjectID `bson:"doc_id" json:"doc_id"`
	Order       int                `bson:"order" json:"order"`
	Text        string             `bson:"text" json:"text"`
	Compressed  bool               `bson:"compressed,omitempty" json:"-"`
	Compression string             `bson:"compression,omitempty" json:"-"`
	PointID     string             `bson:"point_id" json:"point_id"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	TaskID     string `json:"task_id,omitempty"` // For async processing
	Message    string `json:"message"`
}

// QueryRequest is a natural-language question against the tenant's documents.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// QueryResponse carries the synthesized answer and the retrieved source
// chunk texts that grounded it.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}
