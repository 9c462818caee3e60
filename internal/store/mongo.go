package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-rag-platform/models"
	"document-rag-platform/utils"
)

// MetadataStore persists Document and Chunk records in MongoDB. Chunk text
// above the compression threshold is gzip-compressed at rest; readers get
// plain text back.
type MetadataStore struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
}

func NewMetadataStore(db *mongo.Database) *MetadataStore {
	return &MetadataStore{
		documents: db.Collection("documents"),
		chunks:    db.Collection("chunks"),
	}
}

// CreateDocument inserts the document record with pending status. The record
// exists before any embedding work starts, so a later provider failure never
// loses the upload.
func (s *MetadataStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	doc.ID = primitive.NewObjectID()
	doc.Status = models.StatusPending
	doc.UploadedAt = time.Now()

	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *MetadataStore) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	if err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("find document %s: %w", id.Hex(), err)
	}
	return &doc, nil
}

func (s *MetadataStore) ListDocuments(ctx context.Context, tenant string) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"tenant": tenant},
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

// SetDocumentStatus records a processing state transition. Completed
// documents get their chunk count and processed timestamp; failed ones keep
// the error message for the retry sweeper.
func (s *MetadataStore) SetDocumentStatus(ctx context.Context, id primitive.ObjectID, status string, chunkCount int, errMsg string) error {
	update := bson.M{
		"status":        status,
		"chunk_count":   chunkCount,
		"error_message": errMsg,
	}
	if status == models.StatusCompleted {
		now := time.Now()
		update["processed_at"] = now
	}
	if _, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// ReplaceChunks removes any previous chunk rows for the document and inserts
// the new batch. Re-running an ingestion for the same document id therefore
// converges instead of accumulating rows.
func (s *MetadataStore) ReplaceChunks(ctx context.Context, docID primitive.ObjectID, chunks []models.Chunk) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"doc_id": docID}); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", docID.Hex(), err)
	}
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(chunks))
	for i := range chunks {
		row := chunks[i]
		row.DocID = docID
		if err := compressChunk(&row); err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if _, err := s.chunks.InsertMany(ctx, rows); err != nil {
		return fmt.Errorf("insert chunks for %s: %w", docID.Hex(), err)
	}
	return nil
}

func (s *MetadataStore) GetChunks(ctx context.Context, docID primitive.ObjectID) ([]models.Chunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"doc_id": docID},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	for i := range chunks {
		if err := decompressChunk(&chunks[i]); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// ListStalledDocuments returns documents that never reached a terminal
// success since before the cutoff; the retry sweeper re-enqueues them.
// Processing counts as stalled too: a worker crash mid-ingestion would
// otherwise strand the document in that state forever.
func (s *MetadataStore) ListStalledDocuments(ctx context.Context, cutoff time.Time) ([]models.Document, error) {
	filter := bson.M{
		"status":      bson.M{"$in": []string{models.StatusPending, models.StatusProcessing, models.StatusFailed}},
		"uploaded_at": bson.M{"$lt": cutoff},
	}
	cursor, err := s.documents.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list stalled documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode stalled documents: %w", err)
	}
	return docs, nil
}

func compressChunk(chunk *models.Chunk) error {
	compressed, algorithm, err := utils.CompressText(chunk.Text)
	if err != nil {
		return fmt.Errorf("compress chunk %d: %w", chunk.Order, err)
	}
	if algorithm == utils.CompressionNone {
		return nil
	}
	chunk.Text = base64.StdEncoding.EncodeToString(compressed)
	chunk.Compressed = true
	chunk.Compression = string(algorithm)
	return nil
}

func decompressChunk(chunk *models.Chunk) error {
	if !chunk.Compressed {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(chunk.Text)
	if err != nil {
		return fmt.Errorf("decode chunk %d: %w", chunk.Order, err)
	}
	text, err := utils.DecompressText(raw, utils.CompressionAlgorithm(chunk.Compression))
	if err != nil {
		return fmt.Errorf("decompress chunk %d: %w", chunk.Order, err)
	}
	chunk.Text = text
	chunk.Compressed = false
	chunk.Compression = ""
	return nil
}
