package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-rag-platform/internal/ai"
	"document-rag-platform/internal/vectorstore"
	"document-rag-platform/models"
)

type fakeEmbedder struct {
	dim       int
	failAfter int // fail on the nth call (1-based); 0 means never
	calls     int
	lastText  string
	texts     []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	f.texts = append(f.texts, text)
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, &ai.ProviderError{Op: "embed", Err: errors.New("provider down")}
	}
	dim := f.dim
	if dim == 0 {
		dim = 3
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(len(text) % (i + 2))
	}
	return vec, nil
}

type fakeIndex struct {
	collections map[string]int
	points      map[string][]vectorstore.Point
	ensures     int
	failUpsert  bool
	searchHits  []vectorstore.ScoredPoint
	searchErr   error
	lastSearch  string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		collections: make(map[string]int),
		points:      make(map[string][]vectorstore.Point),
	}
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, name string, dimension int) error {
	f.ensures++
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = dimension
	}
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if f.failUpsert {
		return &vectorstore.StoreError{Op: "upsert", Err: errors.New("store unavailable")}
	}
	byID := make(map[string]int, len(f.points[name]))
	for i, p := range f.points[name] {
		byID[p.ID] = i
	}
	for _, p := range points {
		if i, ok := byID[p.ID]; ok {
			f.points[name][i] = p
		} else {
			f.points[name] = append(f.points[name], p)
		}
	}
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.ScoredPoint, error) {
	f.lastSearch = name
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchHits != nil {
		return f.searchHits, nil
	}
	// No canned hits: serve whatever was upserted, insertion order as rank.
	hits := make([]vectorstore.ScoredPoint, 0, limit)
	for i, p := range f.points[name] {
		if i >= limit {
			break
		}
		hits = append(hits, vectorstore.ScoredPoint{
			ID:      p.ID,
			Score:   1.0 - float64(i)*0.1,
			Payload: p.Payload,
		})
	}
	return hits, nil
}

type fakeStore struct {
	docs     map[string]*models.Document
	chunks   map[string][]models.Chunk
	statuses []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[string]*models.Document),
		chunks: make(map[string][]models.Chunk),
	}
}

func (f *fakeStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	doc.ID = primitive.NewObjectID()
	doc.Status = models.StatusPending
	f.docs[doc.ID.Hex()] = doc
	return nil
}

func (f *fakeStore) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	doc, ok := f.docs[id.Hex()]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id.Hex())
	}
	return doc, nil
}

func (f *fakeStore) SetDocumentStatus(ctx context.Context, id primitive.ObjectID, status string, chunkCount int, errMsg string) error {
	f.statuses = append(f.statuses, status)
	if doc, ok := f.docs[id.Hex()]; ok {
		doc.Status = status
		doc.ChunkCount = chunkCount
		doc.ErrorMessage = errMsg
	}
	return nil
}

func (f *fakeStore) ReplaceChunks(ctx context.Context, docID primitive.ObjectID, chunks []models.Chunk) error {
	f.chunks[docID.Hex()] = chunks
	return nil
}

type fakeCompleter struct {
	completeFn func(model, system, user string) (*ai.Completion, error)
	lastSystem map[string]string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, system, user string) (*ai.Completion, error) {
	if f.lastSystem == nil {
		f.lastSystem = make(map[string]string)
	}
	f.lastSystem[model] = system
	return f.completeFn(model, system, user)
}

func stopCompletion(text string) *ai.Completion {
	return &ai.Completion{Candidates: []ai.Candidate{{Reason: ai.FinishStop, Text: text}}}
}
